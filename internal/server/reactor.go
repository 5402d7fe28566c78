package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/codefionn/sqmean/internal/actor"
	"github.com/codefionn/sqmean/internal/conn"
	"github.com/codefionn/sqmean/internal/dump"
)

// Reactor messages. Everything that changes supervisor state arrives as one
// of these.
type (
	connAccepted  struct{ nc net.Conn }
	connFinished  struct{ res conn.Result }
	acceptStopped struct{ err error }
	stopRequest   struct{}
	drainTick     struct{}
	fault         struct{ err error }
)

func (connAccepted) Type() string  { return "conn_accepted" }
func (connFinished) Type() string  { return "conn_finished" }
func (acceptStopped) Type() string { return "accept_stopped" }
func (stopRequest) Type() string   { return "stop_request" }
func (drainTick) Type() string     { return "drain_tick" }
func (fault) Type() string         { return "fault" }

// reactor adapts a Server to the actor runtime.
type reactor struct {
	s *Server
}

func (r *reactor) ID() string { return "supervisor" }

// Start runs before the first message is delivered: it brings up the status
// endpoint, the dumper and the acceptor and moves the server to Running.
func (r *reactor) Start(ctx context.Context) error {
	s := r.s

	if s.cfg.StatusAddr != "" {
		st, err := newStatusServer(s, s.cfg.StatusAddr)
		if err != nil {
			return err
		}
		s.status = st
		st.start(func(err error) { _ = s.ref.Send(fault{err: err}) })
	}

	if fs, ok := s.cfg.Sink.(*dump.FileSink); ok {
		s.log.Info("writing snapshots to %s every %s", fs.Path(), s.cfg.DumpInterval)
	}
	dumpCtx, cancel := context.WithCancel(ctx)
	s.dumpCancel = cancel
	go s.dumper.Run(dumpCtx)

	s.setState(StateRunning)
	s.wg.Add(1)
	go s.accept(s.listener)

	s.log.Info("listening on %s", s.listener.Addr())
	return nil
}

func (r *reactor) Stop(ctx context.Context) error {
	r.s.log.Debug("reactor stopped")
	return nil
}

func (r *reactor) Receive(ctx context.Context, msg actor.Message) (err error) {
	s := r.s
	defer func() {
		if p := recover(); p != nil {
			s.fail(fmt.Errorf("panic while handling %s: %v", msg.Type(), p))
		}
	}()

	switch m := msg.(type) {
	case connAccepted:
		s.onAccepted(m.nc)
	case connFinished:
		s.onFinished(m.res)
	case acceptStopped:
		s.onAcceptStopped(m.err)
	case stopRequest:
		s.stop()
	case drainTick:
		s.drain()
	case fault:
		s.fail(m.err)
	default:
		return fmt.Errorf("unexpected message %s", msg.Type())
	}
	return nil
}

func (s *Server) onAccepted(nc net.Conn) {
	if s.State() != StateRunning {
		nc.Close()
		return
	}

	s.nextID++
	c := conn.New(s.nextID, nc, s.agg, conn.Options{
		WriteTimeout: s.cfg.WriteTimeout,
		Logger:       s.log,
	})
	s.registry.add(c)
	s.accepted.Add(1)
	s.live.Store(int64(s.registry.len()))

	s.log.Info("connection %d accepted from %s", c.ID(), nc.RemoteAddr())
	c.Start(func(res conn.Result) {
		// Fails only once the reactor is gone, when nobody is waiting for it.
		_ = s.ref.Send(connFinished{res: res})
	})
}

func (s *Server) onFinished(res conn.Result) {
	if !s.registry.remove(res.ConnID) {
		return
	}
	s.live.Store(int64(s.registry.len()))

	switch res.Kind {
	case conn.KindClientDisconnected:
		s.log.Info("connection %d disconnected", res.ConnID)
	case conn.KindStopped:
		s.log.Debug("connection %d stopped", res.ConnID)
	default:
		s.failed.Add(1)
		s.log.Warn("connection %d dropped: %v", res.ConnID, res.Err)
	}
}

func (s *Server) onAcceptStopped(err error) {
	if errors.Is(err, net.ErrClosed) && s.State() != StateRunning {
		s.log.Info("%v", ErrAcceptAborted)
		return
	}
	s.fail(fmt.Errorf("accept: %w", err))
}

// fail records an untagged fault and shuts the server down.
func (s *Server) fail(err error) {
	s.log.Error("%v", err)
	if s.fatalErr == nil {
		s.fatalErr = fmt.Errorf("%w: %w", ErrFatal, err)
	}
	s.stop()
}

func (s *Server) stop() {
	if s.State() != StateRunning {
		return
	}
	s.setState(StateStopping)
	s.log.Info("stopping, %d connections live", s.registry.len())

	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn("failed to close listener: %v", err)
	}
	for _, c := range s.registry.ordered() {
		c.RequestStop()
	}

	s.drainDeadline = time.Now().Add(s.cfg.DrainTimeout)
	s.drain()
}

// drain finishes once every registered connection has stopped, and
// otherwise schedules another check.
func (s *Server) drain() {
	if s.State() != StateStopping {
		return
	}
	if s.registry.allStopped() {
		s.finish()
		return
	}

	if !s.forced && time.Now().After(s.drainDeadline) {
		s.forced = true
		for _, c := range s.registry.ordered() {
			if !c.IsStopped() {
				s.log.Warn("connection %d still %s after %s, closing", c.ID(), c.State(), s.cfg.DrainTimeout)
				c.Close()
			}
		}
	}

	time.AfterFunc(s.cfg.DrainPoll, func() {
		_ = s.ref.Send(drainTick{})
	})
}

func (s *Server) finish() {
	s.registry.clear()
	s.live.Store(0)

	s.dumpCancel()
	select {
	case <-s.dumper.Done():
	case <-time.After(s.cfg.DumperStopTimeout):
		s.log.Warn("dumper did not stop within %s", s.cfg.DumperStopTimeout)
	}

	if s.status != nil {
		s.status.shutdown()
	}

	s.setState(StateStopped)
	s.log.Info("stopped")
	s.closeFinished()
}

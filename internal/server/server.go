package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codefionn/sqmean/internal/actor"
	"github.com/codefionn/sqmean/internal/aggregate"
	"github.com/codefionn/sqmean/internal/consts"
	"github.com/codefionn/sqmean/internal/dump"
	"github.com/codefionn/sqmean/internal/logger"
)

// Config holds the constructor parameters of a Server. Zero values select
// the defaults from package consts.
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string
	// Listener, when set, is used instead of listening on Addr.
	Listener net.Listener

	// DumpPath is the snapshot file. Ignored when Sink is set; when both
	// are empty snapshots are kept in memory only.
	DumpPath     string
	Sink         dump.Sink
	DumpInterval time.Duration

	WriteTimeout      time.Duration
	DrainPoll         time.Duration
	DrainTimeout      time.Duration
	DumperStopTimeout time.Duration

	// StatusAddr enables the HTTP status endpoint when non-empty.
	StatusAddr string

	Logger *logger.Logger
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = net.JoinHostPort(consts.DefaultHost, strconv.Itoa(consts.DefaultPort))
	}
	if c.Sink == nil {
		if c.DumpPath != "" {
			c.Sink = dump.NewFileSink(c.DumpPath)
		} else {
			c.Sink = dump.NewMemorySink()
		}
	}
	if c.DumpInterval <= 0 {
		c.DumpInterval = consts.DumpInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = consts.WriteTimeout
	}
	if c.DrainPoll <= 0 {
		c.DrainPoll = consts.DrainPollInterval
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = consts.DrainTimeout
	}
	if c.DumperStopTimeout <= 0 {
		c.DumperStopTimeout = consts.DumperStopTimeout
	}
	if c.Logger == nil {
		c.Logger = logger.Global()
	}
}

// Server is the connection supervisor.
type Server struct {
	cfg    Config
	log    *logger.Logger
	agg    *aggregate.Set
	dumper *dump.Dumper
	ref    *actor.ActorRef

	// Owned by the reactor goroutine.
	listener      net.Listener
	registry      *registry
	nextID        uint64
	drainDeadline time.Time
	forced        bool
	fatalErr      error
	dumpCancel    context.CancelFunc
	status        *statusServer

	// Published for Stats.
	state    atomic.Int32
	live     atomic.Int64
	accepted atomic.Int64
	failed   atomic.Int64

	started   atomic.Bool
	stopAsked atomic.Bool
	wg        sync.WaitGroup
	ready     chan struct{}
	finished  chan struct{}
	finishOne sync.Once
}

// New creates a stopped server.
func New(cfg Config) *Server {
	cfg.applyDefaults()

	s := &Server{
		cfg:      cfg,
		log:      cfg.Logger.WithPrefix("server"),
		agg:      aggregate.New(),
		registry: newRegistry(),
		ready:    make(chan struct{}),
		finished: make(chan struct{}),
	}
	s.dumper = dump.NewDumper(s.agg, cfg.Sink, cfg.DumpInterval, cfg.Logger)
	s.ref = actor.NewActorRef("supervisor", &reactor{s: s}, consts.SupervisorMailboxSize)
	return s
}

// Start listens, runs the server and blocks until shutdown has completed.
// Cancelling ctx has the same effect as StopAsync. The returned error wraps
// ErrFatal when the server stopped because of a fault that was not tied to a
// single connection.
func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s.setState(StateStarting)

	ln := s.cfg.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			s.setState(StateStopped)
			s.closeFinished()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
		}
	}
	s.listener = ln

	// The reactor outlives ctx: cancellation only requests a stop, the
	// drain itself still needs the mailbox.
	if err := s.ref.Start(context.WithoutCancel(ctx)); err != nil {
		ln.Close()
		s.setState(StateStopped)
		s.closeFinished()
		return fmt.Errorf("failed to start server: %w", err)
	}
	close(s.ready)

	go func() {
		select {
		case <-ctx.Done():
			s.StopAsync()
		case <-s.finished:
		}
	}()

	<-s.finished

	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.DumperStopTimeout)
	defer cancel()
	if err := s.ref.Stop(stopCtx); err != nil {
		s.log.Warn("reactor did not stop: %v", err)
	}
	s.wg.Wait()

	return s.fatalErr
}

// StopAsync requests shutdown and returns immediately. It is safe to call
// from any goroutine, any number of times, before or during Start.
func (s *Server) StopAsync() {
	if !s.stopAsked.CompareAndSwap(false, true) {
		return
	}
	if err := s.ref.TrySend(stopRequest{}); errors.Is(err, actor.ErrMailboxFull) {
		go func() {
			_ = s.ref.Send(stopRequest{})
		}()
	}
}

// Ready is closed once the server accepts connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once shutdown has completed, or once Start has failed.
func (s *Server) Done() <-chan struct{} {
	return s.finished
}

// Addr returns the bound address, or nil before Ready is closed.
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.listener.Addr()
	default:
		return nil
	}
}

// StatusAddr returns the bound address of the status endpoint, or nil when
// it is disabled or the server is not ready.
func (s *Server) StatusAddr() net.Addr {
	select {
	case <-s.ready:
		if s.status != nil {
			return s.status.addr()
		}
	default:
	}
	return nil
}

// State returns the lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// DumpOnce writes one snapshot outside the dump schedule.
func (s *Server) DumpOnce() error {
	return s.dumper.DumpOnce()
}

func (s *Server) closeFinished() {
	s.finishOne.Do(func() { close(s.finished) })
}

func (s *Server) setState(st State) {
	s.state.Store(int32(st))
}

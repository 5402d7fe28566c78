// Package conn drives a single client socket through the request/response
// cycle of the sqmean protocol.
//
// Each Conn runs on its own goroutine and performs at most one read or one
// write at a time. It never returns errors to its caller; the terminal
// outcome is handed to the report callback exactly once as a tagged Result.
package conn

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codefionn/sqmean/internal/consts"
	"github.com/codefionn/sqmean/internal/logger"
	"github.com/codefionn/sqmean/internal/protocol"
)

// ErrMessageTooLong is reported when a request line does not fit the read buffer.
var ErrMessageTooLong = errors.New("message too long")

// Aggregate is the shared state a connection updates on each num request.
type Aggregate interface {
	Add(v int32) bool
	Mean() (float64, error)
}

// Options configures a connection.
type Options struct {
	// WriteTimeout bounds each response write. Zero means consts.WriteTimeout.
	WriteTimeout time.Duration
	// Logger is the parent logger; the connection logs with prefix conn:<id>.
	Logger *logger.Logger
}

// Conn owns one client socket.
type Conn struct {
	id           uint64
	nc           net.Conn
	agg          Aggregate
	reader       *bufio.Reader
	wbuf         []byte
	writeTimeout time.Duration
	log          *logger.Logger

	state         atomic.Int32
	busy          atomic.Bool
	stopRequested atomic.Bool
	stopped       atomic.Bool
	started       atomic.Bool
	closeOnce     sync.Once
}

// New wraps nc. The connection does nothing until Start is called.
func New(id uint64, nc net.Conn, agg Aggregate, opts Options) *Conn {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = consts.WriteTimeout
	}
	parent := opts.Logger
	if parent == nil {
		parent = logger.Global()
	}

	return &Conn{
		id:           id,
		nc:           nc,
		agg:          agg,
		reader:       bufio.NewReaderSize(nc, consts.MaxMessageSize),
		wbuf:         make([]byte, 0, consts.MaxMessageSize),
		writeTimeout: opts.WriteTimeout,
		log:          parent.WithPrefix(fmt.Sprintf("conn:%d", id)),
	}
}

// ID returns the connection id.
func (c *Conn) ID() uint64 { return c.id }

// State returns the current cycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Start begins the read/process/write cycle on a new goroutine. report is
// called exactly once, after the socket has been closed. Calling Start more
// than once has no effect.
func (c *Conn) Start(report func(Result)) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.setState(StateReading)
	go c.run(report)
}

// RequestStop asks the connection to send stop and close. An outstanding
// read is interrupted; an outstanding write is allowed to complete first.
func (c *Conn) RequestStop() {
	if !c.stopRequested.CompareAndSwap(false, true) {
		return
	}
	// Unblocks a pending read. The deadline stays in the past so a read
	// that has not started yet fails immediately as well.
	_ = c.nc.SetReadDeadline(time.Now())
}

// Close force-closes the socket. Any outstanding I/O fails and the
// connection reports its result as usual.
func (c *Conn) Close() {
	c.closeSocket()
}

// IsStopped reports whether the socket is closed and no I/O is outstanding.
func (c *Conn) IsStopped() bool {
	return c.stopped.Load() && !c.busy.Load()
}

func (c *Conn) run(report func(Result)) {
	res := c.loop()
	c.finish()

	switch {
	case res.Kind.IsFailure():
		c.log.Debug("closed: %v", res.Err)
	default:
		c.log.Debug("closed: %s", res.Kind)
	}
	report(res)
}

func (c *Conn) loop() (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = c.fault(KindInternal, fmt.Errorf("panic: %v", r))
		}
	}()

	for {
		if r := c.step(); r != nil {
			return *r
		}
	}
}

// step runs one read/process/write cycle. It returns nil to continue.
func (c *Conn) step() *Result {
	if c.stopRequested.Load() {
		return c.sendStop()
	}

	c.setState(StateReading)
	line, err := c.readLine()

	// A stop request wins over whatever the read produced.
	if c.stopRequested.Load() {
		return c.sendStop()
	}
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return c.faultp(KindProtocolError, ErrMessageTooLong)
		}
		return c.faultp(KindIOError, err)
	}

	c.setState(StateProcessing)
	req, err := protocol.ParseRequest(line)
	if err != nil {
		return c.faultp(KindProtocolError, err)
	}

	switch req.Command {
	case protocol.CmdNum:
		c.agg.Add(req.Value)
		mean, err := c.agg.Mean()
		if err != nil {
			return c.faultp(KindInternal, err)
		}
		if err := c.write(protocol.AppendOK(c.wbuf[:0], mean)); err != nil {
			return c.faultp(KindIOError, err)
		}
		c.setState(StateIdle)
		return nil

	case protocol.CmdDisconnect:
		c.setState(StateStopping)
		if err := c.write(protocol.AppendDisconnected(c.wbuf[:0])); err != nil {
			return c.faultp(KindIOError, err)
		}
		return &Result{ConnID: c.id, Kind: KindClientDisconnected}
	}

	return c.faultp(KindProtocolError, fmt.Errorf("%w: %q", protocol.ErrUnexpectedMessage, req.Command))
}

func (c *Conn) sendStop() *Result {
	c.setState(StateStopping)
	if err := c.write(protocol.AppendStop(c.wbuf[:0])); err != nil {
		return c.faultp(KindIOError, err)
	}
	return &Result{ConnID: c.id, Kind: KindStopped}
}

// readLine returns the next line including its delimiter. The slice is only
// valid until the next read.
func (c *Conn) readLine() ([]byte, error) {
	c.busy.Store(true)
	defer c.busy.Store(false)
	return c.reader.ReadSlice(protocol.Delimiter)
}

func (c *Conn) write(p []byte) error {
	if len(p) > consts.MaxMessageSize {
		panic(fmt.Sprintf("conn: response of %d bytes exceeds write buffer", len(p)))
	}

	c.setState(StateWriting)
	c.busy.Store(true)
	defer c.busy.Store(false)

	if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	_, err := c.nc.Write(p)
	return err
}

func (c *Conn) finish() {
	c.closeSocket()
	c.busy.Store(false)
	c.setState(StateStopped)
	c.stopped.Store(true)
}

func (c *Conn) closeSocket() {
	c.closeOnce.Do(func() {
		if err := c.nc.Close(); err != nil {
			c.log.Debug("close: %v", err)
		}
	})
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Conn) fault(kind Kind, err error) Result {
	return Result{
		ConnID: c.id,
		Kind:   kind,
		Err:    &Fault{ConnID: c.id, Kind: kind, Err: err},
	}
}

func (c *Conn) faultp(kind Kind, err error) *Result {
	r := c.fault(kind, err)
	return &r
}

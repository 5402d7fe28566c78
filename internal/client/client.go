// Package client speaks the sqmean protocol from the client side.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/codefionn/sqmean/internal/consts"
	"github.com/codefionn/sqmean/internal/protocol"
)

var (
	// ErrServerStopped is returned when the server answered with stop and
	// closed the connection
	ErrServerStopped = errors.New("server stopped")
	// ErrClosed is returned by operations on a closed client
	ErrClosed = errors.New("client closed")
)

// Config holds client configuration
type Config struct {
	// Addr is the server's TCP address
	Addr string
	// ConnectTimeout is the timeout for the initial connection
	ConnectTimeout time.Duration
	// RequestTimeout bounds one request/response round trip
	RequestTimeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:           net.JoinHostPort(consts.DefaultHost, fmt.Sprint(consts.DefaultPort)),
		ConnectTimeout: consts.DialTimeout,
		RequestTimeout: consts.WriteTimeout,
	}
}

// Client is one connection to a sqmean server. It is not safe for
// concurrent use; run one Client per goroutine.
type Client struct {
	cfg    *Config
	nc     net.Conn
	reader *bufio.Reader
	buf    []byte

	mu     sync.Mutex
	closed bool
}

// Dial connects to cfg.Addr. A nil cfg uses DefaultConfig.
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	nc, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Addr, err)
	}
	return &Client{
		cfg:    cfg,
		nc:     nc,
		reader: bufio.NewReaderSize(nc, consts.MaxMessageSize),
		buf:    make([]byte, 0, 32),
	}, nil
}

// LocalAddr returns the client side of the connection.
func (c *Client) LocalAddr() net.Addr {
	return c.nc.LocalAddr()
}

// Send submits v and returns the server's current mean of squares.
func (c *Client) Send(ctx context.Context, v int32) (float64, error) {
	reply, err := c.roundTrip(ctx, protocol.AppendNum(c.buf[:0], v))
	if err != nil {
		return 0, err
	}
	switch reply.Kind {
	case protocol.ReplyKindOK:
		return reply.Metric, nil
	case protocol.ReplyKindStop:
		c.Close()
		return 0, ErrServerStopped
	default:
		return 0, fmt.Errorf("%w: %s in reply to num", protocol.ErrUnexpectedMessage, reply.Kind)
	}
}

// Disconnect performs the polite disconnect handshake and closes the client.
func (c *Client) Disconnect(ctx context.Context) error {
	defer c.Close()

	reply, err := c.roundTrip(ctx, protocol.AppendDisconnect(c.buf[:0]))
	if err != nil {
		return err
	}
	switch reply.Kind {
	case protocol.ReplyKindDisconnected:
		return nil
	case protocol.ReplyKindStop:
		return ErrServerStopped
	default:
		return fmt.Errorf("%w: %s in reply to disconnect", protocol.ErrUnexpectedMessage, reply.Kind)
	}
}

// Close closes the connection without the disconnect handshake.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.nc.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) roundTrip(ctx context.Context, req []byte) (protocol.Reply, error) {
	if c.isClosed() {
		return protocol.Reply{}, ErrClosed
	}

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.nc.SetDeadline(deadline); err != nil {
		return protocol.Reply{}, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetDeadline(time.Now())
	})
	defer stop()

	// A server that is shutting down may have sent stop already; the
	// reply is still worth reading when the write fails.
	_, werr := c.nc.Write(req)

	line, err := c.reader.ReadSlice(protocol.Delimiter)
	if err != nil {
		if ctx.Err() != nil {
			return protocol.Reply{}, ctx.Err()
		}
		if werr != nil {
			return protocol.Reply{}, fmt.Errorf("failed to send request: %w", werr)
		}
		return protocol.Reply{}, fmt.Errorf("failed to read reply: %w", err)
	}
	return protocol.ParseReply(line)
}

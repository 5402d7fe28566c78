package consts

import "time"

// Protocol limits
const (
	// MaxMessageSize is the capacity of a connection's read and write buffers.
	// A request line longer than this is a protocol violation.
	MaxMessageSize = 1024
)

// Network defaults
const (
	// DefaultHost is the interface the server binds when none is configured
	DefaultHost = "127.0.0.1"
	// DefaultPort is the TCP port the server listens on
	DefaultPort = 8001
)

// Mailbox sizes
const (
	// SupervisorMailboxSize bounds the number of queued reactor messages
	SupervisorMailboxSize = 256
)

// Intervals and timeouts for the server lifecycle
const (
	// DrainPollInterval is how often shutdown checks for live connections
	DrainPollInterval = 100 * time.Millisecond
	// DrainTimeout is how long shutdown waits before force-closing connections
	DrainTimeout = 5 * time.Second
	// DumperStopTimeout bounds the wait for the dumper to acknowledge cancellation
	DumperStopTimeout = 1 * time.Second
	// DumpInterval is the default period between two snapshots
	DumpInterval = 10 * time.Second
	// WriteTimeout bounds a single response write to a client
	WriteTimeout = 10 * time.Second
	// StatusShutdownTimeout bounds the graceful shutdown of the status endpoint
	StatusShutdownTimeout = 2 * time.Second
	// StatsPushInterval is the default period of the status websocket feed
	StatsPushInterval = 1 * time.Second
	// DialTimeout is the client's connect timeout
	DialTimeout = 5 * time.Second
)

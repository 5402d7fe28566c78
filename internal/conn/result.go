package conn

import "fmt"

// Kind classifies how a connection terminated.
type Kind int

const (
	// KindIOError is a read, write or deadline failure on the socket
	KindIOError Kind = iota
	// KindProtocolError is an unparseable or unknown command
	KindProtocolError
	// KindClientDisconnected is a polite disconnect; not a failure
	KindClientDisconnected
	// KindStopped means the server asked the connection to stop
	KindStopped
	// KindInternal is a recovered panic inside the connection cycle
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindIOError:
		return "io error"
	case KindProtocolError:
		return "protocol error"
	case KindClientDisconnected:
		return "client disconnected"
	case KindStopped:
		return "stopped"
	case KindInternal:
		return "internal error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsFailure reports whether the kind should be treated as a fault.
func (k Kind) IsFailure() bool {
	switch k {
	case KindClientDisconnected, KindStopped:
		return false
	default:
		return true
	}
}

// Result is the terminal outcome of a connection, reported exactly once.
// Err is a *Fault for failure kinds and nil otherwise.
type Result struct {
	ConnID uint64
	Kind   Kind
	Err    error
}

// Fault is a connection-scoped error tagged with the offending connection.
type Fault struct {
	ConnID uint64
	Kind   Kind
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("conn %d: %s: %v", f.ConnID, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

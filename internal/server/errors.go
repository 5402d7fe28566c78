package server

import "errors"

var (
	// ErrFatal wraps faults that are not tied to a single connection.
	// Start returns an error wrapping it after shutting down.
	ErrFatal = errors.New("fatal server error")

	// ErrAcceptAborted describes the accept that fails because shutdown
	// closed the listener. It is informational.
	ErrAcceptAborted = errors.New("accept aborted: listener closed")

	// ErrAlreadyStarted is returned by a second call to Start
	ErrAlreadyStarted = errors.New("server already started")
)

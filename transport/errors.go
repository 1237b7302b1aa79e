package transport

import (
	"fmt"
	"time"
)

// ConnectionError indicates the server process could not be reached:
// spawn failure, broken pipe, or a transport that has shut down.
type ConnectionError struct {
	Server string
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection error (%s): %s: %v", e.Server, e.Reason, e.Err)
	}
	return fmt.Sprintf("connection error (%s): %s", e.Server, e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates a request received no response in time.
// The pending entry has already been removed; a late response will be
// discarded as unmatched.
type TimeoutError struct {
	Server  string
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout (%s): no response to %s within %s", e.Server, e.Method, e.Timeout)
}

package client

import "fmt"

// ServerNotFoundError indicates an operation named a server with no
// active session.
type ServerNotFoundError struct {
	Server string
}

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server not connected: %s", e.Server)
}

// ToolExecutionError indicates the server ran the tool and reported a
// failure result.
type ToolExecutionError struct {
	Server  string
	Tool    string
	Message string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed on %s: %s", e.Tool, e.Server, e.Message)
}

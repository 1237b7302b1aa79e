package executor

import "fmt"

// ToolNotFoundError indicates a tool id that could not be executed:
// malformed id, unknown server, or a failing call.
type ToolNotFoundError struct {
	ToolID string
	Reason string
	Err    error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s: %s", e.ToolID, e.Reason)
}

func (e *ToolNotFoundError) Unwrap() error {
	return e.Err
}

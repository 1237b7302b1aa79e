package manager

import "fmt"

// ServerNotFoundError indicates an operation on a server name that is not
// in the inventory.
type ServerNotFoundError struct {
	Server string
}

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server %s is not configured", e.Server)
}

// ServerDisabledError indicates a start attempt on a disabled server.
type ServerDisabledError struct {
	Server string
}

func (e *ServerDisabledError) Error() string {
	return fmt.Sprintf("server %s is disabled", e.Server)
}

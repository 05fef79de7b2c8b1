package connection

import (
	"fmt"
	"strings"
)

// ConnectionError reports that a connection could not be opened or used.
type ConnectionError struct {
	Host     string
	Database string
	Op       string // "open", "ping", "query"
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s/%s failed during %s: %v", e.Host, e.Database, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InvalidOptionsError lists every problem found by Options.Validate.
type InvalidOptionsError struct {
	Problems []string
}

func (e *InvalidOptionsError) Error() string {
	return "invalid connection options: " + strings.Join(e.Problems, "; ")
}

// RPCCode maps the error to invalid params.
func (e *InvalidOptionsError) RPCCode() int { return -32602 }

// UnknownServerTypeError is returned when no opener is registered for a
// server type.
type UnknownServerTypeError struct {
	Type      string
	Available []string
}

func (e *UnknownServerTypeError) Error() string {
	return fmt.Sprintf("unknown server type %q\nAvailable server types: %v", e.Type, e.Available)
}

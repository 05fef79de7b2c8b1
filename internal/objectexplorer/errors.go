package objectexplorer

import (
	"fmt"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/jsonrpc"
)

// UnknownSessionError is returned for a session id that is not registered,
// including ids of closed sessions.
type UnknownSessionError struct {
	SessionID string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("unknown object explorer session %q", e.SessionID)
}

// RPCCode maps the error to invalid params.
func (e *UnknownSessionError) RPCCode() int { return jsonrpc.CodeInvalidParams }

// NodePathNotFoundError is returned when a path does not lead to a node of
// the session's tree as populated so far.
type NodePathNotFoundError struct {
	Path    string
	Segment string
	Reason  string
}

func (e *NodePathNotFoundError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("node path %q not found: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("node path %q not found at %q: %s", e.Path, e.Segment, e.Reason)
}

// RPCCode maps the error to invalid params.
func (e *NodePathNotFoundError) RPCCode() int { return jsonrpc.CodeInvalidParams }

package smo

import "fmt"

// MalformedMetadataError is returned when a metadata row cannot be turned
// into a node. The row is skipped; its siblings are still built.
type MalformedMetadataError struct {
	Type   NodeType
	Field  string
	Reason string
}

func (e *MalformedMetadataError) Error() string {
	return fmt.Sprintf("malformed %s row: field %q %s", e.Type, e.Field, e.Reason)
}

// NodePopulationError is returned when a collection's children cannot be
// loaded.
type NodePopulationError struct {
	Parent     string
	Collection string
	Err        error
}

func (e *NodePopulationError) Error() string {
	return fmt.Sprintf("loading %s of %s: %v", e.Collection, e.Parent, e.Err)
}

func (e *NodePopulationError) Unwrap() error { return e.Err }

// NotScriptableError is returned when a node type does not support a script
// operation.
type NotScriptableError struct {
	Type      NodeType
	Operation string
}

func (e *NotScriptableError) Error() string {
	return fmt.Sprintf("%s objects do not support %s scripts", e.Type, e.Operation)
}

// RPCCode maps the error to JSON-RPC invalid params.
func (e *NotScriptableError) RPCCode() int { return -32602 }

// ObjectNotFoundError is returned when a properties query finds no row,
// usually because the object was dropped since it was listed.
type ObjectNotFoundError struct {
	Type NodeType
	Name string
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("%s %q no longer exists", e.Type, e.Name)
}

package templating

import (
	"fmt"
	"strings"
)

// CodeTemplateError is the JSON-RPC error code for script template failures.
const CodeTemplateError = -32001

// TemplateResolutionError is returned when a category or an operation file
// does not exist, or a template cannot be parsed or rendered.
type TemplateResolutionError struct {
	Category string
	Op       string
	Reason   string
	Err      error
}

func (e *TemplateResolutionError) Error() string {
	var sb strings.Builder
	sb.WriteString("template ")
	sb.WriteString(e.Category)
	if e.Op != "" {
		sb.WriteString("/")
		sb.WriteString(e.Op)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *TemplateResolutionError) Unwrap() error { return e.Err }

// RPCCode implements the dispatcher's error code mapping.
func (e *TemplateResolutionError) RPCCode() int { return CodeTemplateError }

// NoCompatibleTemplateError is returned when every version directory of a
// category is newer than the server.
type NoCompatibleTemplateError struct {
	Category      string
	ServerVersion int
	Available     []string
}

func (e *NoCompatibleTemplateError) Error() string {
	return fmt.Sprintf("no %s templates for server version %s (available: %s)",
		e.Category, FormatVersionNum(e.ServerVersion), strings.Join(e.Available, ", "))
}

// RPCCode implements the dispatcher's error code mapping.
func (e *NoCompatibleTemplateError) RPCCode() int { return CodeTemplateError }

package starlark

import (
	"fmt"
	"sync"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/macro"
	"go.starlark.net/starlark"
)

// ExecutionContext provides the globals a script template is evaluated
// against: the render data, the target server and macro namespaces.
type ExecutionContext struct {
	// Data holds the converted render data. Every key is a global.
	Data starlark.StringDict

	// Server describes the server the script targets.
	// Accessible as: server.version_num, server.type
	Server *ServerInfo

	// Macros contains loaded macro namespaces
	// Each key is a namespace (e.g., "utils") with a struct of functions
	Macros starlark.StringDict

	globals starlark.StringDict
	mu      sync.RWMutex
}

// NewExecutionContext converts data to Starlark and builds a context.
func NewExecutionContext(data map[string]any, server *ServerInfo, opts ...ContextOption) (*ExecutionContext, error) {
	converted, err := DataToStarlark(data)
	if err != nil {
		return nil, err
	}

	ctx := &ExecutionContext{
		Data:   converted,
		Server: server,
		Macros: make(starlark.StringDict),
	}
	for _, opt := range opts {
		opt(ctx)
	}

	if err := ctx.checkNamespaces(ctx.Macros); err != nil {
		return nil, err
	}
	ctx.buildGlobals()
	return ctx, nil
}

func (ctx *ExecutionContext) buildGlobals() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.globals = Predeclared(ctx.Data, ctx.Server)
	for name, m := range ctx.Macros {
		ctx.globals[name] = m
	}
}

// Globals returns the combined globals dictionary for Starlark execution.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.globals
}

// AddMacros adds macro namespaces to the context.
// Returns error if a macro name conflicts with a builtin or a data key.
func (ctx *ExecutionContext) AddMacros(macros starlark.StringDict) error {
	if err := ctx.checkNamespaces(macros); err != nil {
		return err
	}

	ctx.mu.Lock()
	for name, m := range macros {
		ctx.Macros[name] = m
	}
	ctx.mu.Unlock()

	ctx.buildGlobals()
	return nil
}

func (ctx *ExecutionContext) checkNamespaces(macros starlark.StringDict) error {
	for name := range macros {
		if name == "server" {
			return fmt.Errorf("macro namespace %q conflicts with builtin", name)
		}
		if _, ok := ctx.Data[name]; ok {
			return fmt.Errorf("macro namespace %q conflicts with template data", name)
		}
	}
	return nil
}

// EvalExpr evaluates a single Starlark expression and returns the result.
func (ctx *ExecutionContext) EvalExpr(expr string, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(expr, filename, line, nil)
}

// EvalExprWithLocals evaluates a Starlark expression with additional local
// variables. Loop variables are passed this way.
func (ctx *ExecutionContext) EvalExprWithLocals(expr string, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := &starlark.Thread{
		Name:  filename,
		Print: func(_ *starlark.Thread, _ string) {},
	}

	globals := ctx.Globals()
	if len(locals) > 0 {
		combined := make(starlark.StringDict, len(globals)+len(locals))
		for k, v := range globals {
			combined[k] = v
		}
		for k, v := range locals {
			combined[k] = v
		}
		globals = combined
	}

	result, err := starlark.Eval(thread, filename, expr, globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
		}
	}

	return result, nil
}

// EvalExprString evaluates a Starlark expression and returns the string result.
func (ctx *ExecutionContext) EvalExprString(expr string, filename string, line int) (string, error) {
	result, err := ctx.EvalExpr(expr, filename, line)
	if err != nil {
		return "", err
	}

	switch v := result.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.NoneType:
		return "", nil
	default:
		return result.String(), nil
	}
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}

// ContextOption is a functional option for configuring ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithMacros sets the macros for the context.
func WithMacros(macros starlark.StringDict) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.Macros = macros
	}
}

// WithMacroRegistry sets macros from a macro.Registry.
func WithMacroRegistry(registry *macro.Registry) ContextOption {
	return func(ctx *ExecutionContext) {
		if registry != nil {
			ctx.Macros = registry.ToStarlarkDict()
		}
	}
}

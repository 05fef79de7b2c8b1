package templating

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/starlark"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/template"
)

// Handle is a resolved, version-compatible view of one category.
type Handle struct {
	Category      string
	Version       string // chosen version directory
	ServerVersion int

	dirs []string // chosen directory first, then older ones
	r    *Resolver
}

// File returns the bundle path that serves op.
func (h *Handle) File(op Op) (string, error) {
	name := string(op) + ".sql"
	for _, dir := range h.dirs {
		file := path.Join(dir, name)
		if _, err := fs.Stat(h.r.fsys, file); err == nil {
			return file, nil
		}
	}
	return "", &TemplateResolutionError{
		Category: h.Category,
		Op:       string(op),
		Reason:   fmt.Sprintf("no %s.sql in %s or older", op, h.Version),
	}
}

// Has reports whether the bundle has a template for op.
func (h *Handle) Has(op Op) bool {
	_, err := h.File(op)
	return err == nil
}

// Render renders op with data as template globals. The result is trimmed of
// surrounding whitespace. Rendering has no side effects.
func (h *Handle) Render(op Op, data map[string]any) (string, error) {
	file, err := h.File(op)
	if err != nil {
		return "", err
	}

	tmpl, err := h.r.parsed(file)
	if err != nil {
		return "", &TemplateResolutionError{Category: h.Category, Op: string(op), Reason: "cannot load " + file, Err: err}
	}

	registry, err := h.r.macroRegistry()
	if err != nil {
		return "", &TemplateResolutionError{Category: h.Category, Op: string(op), Reason: "cannot load macros", Err: err}
	}

	ctx, err := starlark.NewExecutionContext(data, &starlark.ServerInfo{
		Type:       h.r.serverType,
		VersionNum: h.ServerVersion,
		Version:    FormatVersionNum(h.ServerVersion),
	}, starlark.WithMacroRegistry(registry))
	if err != nil {
		return "", &ScriptGenerationError{File: file, Err: err}
	}

	out, err := template.Render(tmpl, ctx)
	if err != nil {
		return "", &ScriptGenerationError{File: file, Err: err}
	}
	return strings.TrimSpace(out), nil
}

// RenderCreate renders the create script.
func (h *Handle) RenderCreate(data map[string]any) (string, error) {
	return h.Render(OpCreate, data)
}

// RenderUpdate renders the update script.
func (h *Handle) RenderUpdate(data map[string]any) (string, error) {
	return h.Render(OpUpdate, data)
}

// RenderDelete renders the delete script.
func (h *Handle) RenderDelete(data map[string]any) (string, error) {
	return h.Render(OpDelete, data)
}

// ScriptGenerationError is returned when a template was found but failed to
// render with the given data.
type ScriptGenerationError struct {
	File string
	Err  error
}

func (e *ScriptGenerationError) Error() string {
	return fmt.Sprintf("generating script from %s: %v", e.File, e.Err)
}

func (e *ScriptGenerationError) Unwrap() error { return e.Err }

// RPCCode implements the dispatcher's error code mapping.
func (e *ScriptGenerationError) RPCCode() int { return CodeTemplateError }

// IsTemplateError reports whether err came from template resolution or
// rendering.
func IsTemplateError(err error) bool {
	var (
		resErr  *TemplateResolutionError
		compErr *NoCompatibleTemplateError
		genErr  *ScriptGenerationError
	)
	return errors.As(err, &resErr) || errors.As(err, &compErr) || errors.As(err, &genErr)
}

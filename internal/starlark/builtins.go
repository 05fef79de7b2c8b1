package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
)

// DataToStarlark converts render data to a globals dict, one entry per key.
func DataToStarlark(data map[string]any) (starlark.StringDict, error) {
	out := make(starlark.StringDict, len(data))
	for k, v := range data {
		if !isIdentifier(k) {
			return nil, fmt.Errorf("template data key %q is not an identifier", k)
		}
		sv, err := GoToStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("template data key %q: %w", k, err)
		}
		out[k] = sv
	}
	return out, nil
}

// Predeclared returns all globals for template execution: the data keys and
// "server". Macros are added separately via the macro registry.
func Predeclared(data starlark.StringDict, server *ServerInfo) starlark.StringDict {
	globals := make(starlark.StringDict, len(data)+1)
	for k, v := range data {
		globals[k] = v
	}

	if server != nil {
		globals["server"] = server.ToStarlark()
	} else {
		globals["server"] = starlark.None
	}

	return globals
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

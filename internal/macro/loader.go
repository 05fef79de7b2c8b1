// Package macro loads Starlark macro modules for script templates.
// Macros are loaded from .star files and auto-namespaced based on filename.
package macro

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// Loader scans a directory of an fs.FS for .star files and loads them as
// Starlark modules.
type Loader struct {
	fsys fs.FS
	dir  string
}

// NewLoader creates a new macro loader for dir inside fsys.
func NewLoader(fsys fs.FS, dir string) *Loader {
	return &Loader{fsys: fsys, dir: dir}
}

// LoadedModule represents an executed Starlark macro file.
type LoadedModule struct {
	// Namespace is derived from filename (e.g., "utils" from "utils.star")
	Namespace string

	// Path is the slash-separated path of the .star file within the FS
	Path string

	// Exports contains all exported functions/values (names not starting with _)
	Exports starlark.StringDict
}

// Load reads every .star file of the macro directory, in name order.
// A missing directory yields no modules and no error.
func (l *Loader) Load() ([]*LoadedModule, error) {
	info, err := fs.Stat(l.fsys, l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access macros directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("macros path is not a directory: %s", l.dir)
	}

	files, err := fs.Glob(l.fsys, path.Join(l.dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan macros directory: %w", err)
	}
	sort.Strings(files)

	var modules []*LoadedModule
	for _, file := range files {
		module, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}

	return modules, nil
}

func (l *Loader) loadFile(file string) (*LoadedModule, error) {
	content, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		return nil, &LoadError{
			File:    file,
			Message: fmt.Sprintf("failed to read file: %v", err),
		}
	}

	namespace := strings.TrimSuffix(path.Base(file), ".star")
	if err := validateNamespace(namespace); err != nil {
		return nil, &LoadError{File: file, Message: err.Error()}
	}

	thread := &starlark.Thread{
		Name:  fmt.Sprintf("load:%s", namespace),
		Print: func(_ *starlark.Thread, _ string) {},
	}

	globals, err := starlark.ExecFile(thread, file, content, nil) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		return nil, &LoadError{
			File:    file,
			Message: fmt.Sprintf("Starlark execution error: %v", err),
		}
	}

	exports := make(starlark.StringDict)
	for name, value := range globals {
		if !strings.HasPrefix(name, "_") {
			exports[name] = value
		}
	}

	return &LoadedModule{
		Namespace: namespace,
		Path:      file,
		Exports:   exports,
	}, nil
}

func validateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}

	for i, r := range name {
		if i == 0 {
			if !isLetter(r) && r != '_' {
				return fmt.Errorf("namespace must start with letter or underscore: %s", name)
			}
		} else if !isLetter(r) && !isDigit(r) && r != '_' {
			return fmt.Errorf("namespace contains invalid character: %s", name)
		}
	}

	return nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// LoadError represents an error loading a macro file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("macros/%s: %s", path.Base(e.File), e.Message)
}

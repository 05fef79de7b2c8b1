// Package templating resolves versioned SQL script template bundles and
// renders them.
//
// A bundle is an fs.FS laid out as <category>/<major.minor>/<op>.sql with
// Starlark macros under macros/. A category's version directory only needs
// the files that changed since the previous version; lookups fall back to
// older directories.
package templating

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/macro"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/template"
)

// MacrosDir is the bundle directory holding .star macro files.
const MacrosDir = "macros"

// Op names a template file within a version directory.
type Op string

// Template operations.
const (
	OpNodes      Op = "nodes"
	OpProperties Op = "properties"
	OpCreate     Op = "create"
	OpUpdate     Op = "update"
	OpDelete     Op = "delete"
)

// Resolver maps an object category and a server version to a template
// handle. Parsed templates and the macro registry are cached until Reset.
type Resolver struct {
	fsys       fs.FS
	serverType string
	logger     *slog.Logger

	mu        sync.Mutex
	templates map[string]*template.Template
	versions  map[string][]bundleVersion
	macros    *macro.Registry
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithServerType sets the value of server.type seen by templates.
func WithServerType(serverType string) Option {
	return func(r *Resolver) {
		r.serverType = serverType
	}
}

// New creates a resolver over a bundle.
func New(fsys fs.FS, opts ...Option) *Resolver {
	r := &Resolver{
		fsys:       fsys,
		serverType: "pg",
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		templates:  make(map[string]*template.Template),
		versions:   make(map[string][]bundleVersion),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reset drops every cached template, version listing and macro.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates = make(map[string]*template.Template)
	r.versions = make(map[string][]bundleVersion)
	r.macros = nil
}

// Categories lists the bundle's categories, sorted.
func (r *Resolver) Categories() ([]string, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading template bundle: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != MacrosDir && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Versions lists a category's version directories, oldest first.
func (r *Resolver) Versions(category string) ([]string, error) {
	versions, err := r.categoryVersions(category)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.dir
	}
	return out, nil
}

// Resolve picks the highest version directory of category that is not newer
// than serverVersion (server_version_num form).
func (r *Resolver) Resolve(category string, serverVersion int) (*Handle, error) {
	versions, err := r.categoryVersions(category)
	if err != nil {
		return nil, err
	}

	idx := sort.Search(len(versions), func(i int) bool {
		return versions[i].num > serverVersion
	}) - 1
	if idx < 0 {
		available := make([]string, len(versions))
		for i, v := range versions {
			available[i] = v.dir
		}
		return nil, &NoCompatibleTemplateError{
			Category:      category,
			ServerVersion: serverVersion,
			Available:     available,
		}
	}

	dirs := make([]string, 0, idx+1)
	for i := idx; i >= 0; i-- {
		dirs = append(dirs, path.Join(category, versions[i].dir))
	}

	return &Handle{
		Category:      category,
		Version:       versions[idx].dir,
		ServerVersion: serverVersion,
		dirs:          dirs,
		r:             r,
	}, nil
}

func (r *Resolver) categoryVersions(category string) ([]bundleVersion, error) {
	if category == "" || category == MacrosDir || strings.Contains(category, "/") || !fs.ValidPath(category) {
		return nil, &TemplateResolutionError{Category: category, Reason: "invalid category"}
	}

	r.mu.Lock()
	cached, ok := r.versions[category]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	entries, err := fs.ReadDir(r.fsys, category)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &TemplateResolutionError{Category: category, Reason: "unknown category"}
		}
		return nil, &TemplateResolutionError{Category: category, Reason: "cannot list versions", Err: err}
	}

	var versions []bundleVersion
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		num, err := ParseVersionDir(e.Name())
		if err != nil {
			r.logger.Warn("ignoring template directory", "category", category, "dir", e.Name(), "error", err)
			continue
		}
		versions = append(versions, bundleVersion{dir: e.Name(), num: num})
	}
	if len(versions) == 0 {
		return nil, &TemplateResolutionError{Category: category, Reason: "no version directories"}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].num < versions[j].num })

	r.mu.Lock()
	r.versions[category] = versions
	r.mu.Unlock()
	return versions, nil
}

// parsed returns the cached template for file, parsing it on first use.
func (r *Resolver) parsed(file string) (*template.Template, error) {
	r.mu.Lock()
	tmpl, ok := r.templates[file]
	r.mu.Unlock()
	if ok {
		return tmpl, nil
	}

	content, err := fs.ReadFile(r.fsys, file)
	if err != nil {
		return nil, err
	}
	tmpl, err = template.ParseString(string(content), file)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.templates[file] = tmpl
	r.mu.Unlock()
	r.logger.Debug("parsed template", "file", file)
	return tmpl, nil
}

func (r *Resolver) macroRegistry() (*macro.Registry, error) {
	r.mu.Lock()
	registry := r.macros
	r.mu.Unlock()
	if registry != nil {
		return registry, nil
	}

	registry, err := macro.LoadAndRegister(r.fsys, MacrosDir)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.macros = registry
	r.mu.Unlock()
	return registry, nil
}

// MacroDocs statically parses the bundle's macro files.
func (r *Resolver) MacroDocs() ([]*macro.ParsedNamespace, error) {
	return macro.ParseDir(r.fsys, MacrosDir)
}

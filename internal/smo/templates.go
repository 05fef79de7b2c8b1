package smo

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
)

//go:embed all:templates
var templatesFS embed.FS

// Bundle returns the built-in template bundle for serverType, e.g. "pg".
func Bundle(serverType string) (fs.FS, error) {
	dir := path.Join("templates", serverType)
	if info, err := fs.Stat(templatesFS, dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no built-in template bundle for server type %q", serverType)
	}
	return fs.Sub(templatesFS, dir)
}

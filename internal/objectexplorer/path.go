package objectexplorer

import (
	"net/url"
	"strings"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/smo"
)

// RootPath is the path of a session's root node.
const RootPath = "/"

// Target is what a node path denotes: an object, or one of an object's
// collections (a folder node).
type Target struct {
	Object     smo.Object
	Collection *smo.Collection // nil for object targets
}

// IsFolder reports whether the target is a collection.
func (t Target) IsFolder() bool { return t.Collection != nil }

// Path returns the canonical path of the target.
func (t Target) Path() string {
	if t.Collection != nil {
		return FolderPath(t.Collection)
	}
	return ObjectPath(t.Object)
}

// ObjectPath is the inverse of Resolve for objects. Segments alternate
// collection keys and escaped object names; the server is "/".
func ObjectPath(obj smo.Object) string {
	var segments []string
	for o := obj; o != nil && o.Parent() != nil; o = o.Parent() {
		segments = append(segments, url.PathEscape(o.Name()), o.CollectionKey())
	}
	if len(segments) == 0 {
		return RootPath
	}
	var sb strings.Builder
	sb.WriteString("/")
	for i := len(segments) - 1; i >= 0; i-- {
		sb.WriteString(segments[i])
		sb.WriteString("/")
	}
	return sb.String()
}

// FolderPath returns the path of a collection's folder node.
func FolderPath(c *smo.Collection) string {
	return ObjectPath(c.Parent()) + c.Key() + "/"
}

// normalizePath strips the session id prefix and ensures the leading and
// trailing slash.
func normalizePath(sessionID, path string) string {
	if rest, ok := strings.CutPrefix(path, sessionID); ok {
		path = "/" + rest
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

// Resolve walks path from root through populated collections only. It
// never issues queries; a name that is not in its collection's current
// contents is a NodePathNotFoundError.
func Resolve(root smo.Object, path string) (Target, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return Target{Object: root}, nil
	}

	obj := root
	segments := strings.Split(trimmed, "/")
	for i := 0; i < len(segments); i += 2 {
		key := segments[i]
		coll := obj.Collection(key)
		if coll == nil {
			return Target{}, &NodePathNotFoundError{Path: path, Segment: key, Reason: obj.Type().String() + " has no such collection"}
		}
		if i+1 == len(segments) {
			return Target{Object: obj, Collection: coll}, nil
		}

		name, err := url.PathUnescape(segments[i+1])
		if err != nil {
			return Target{}, &NodePathNotFoundError{Path: path, Segment: segments[i+1], Reason: "invalid escape"}
		}
		if !coll.Populated() {
			return Target{}, &NodePathNotFoundError{Path: path, Segment: segments[i+1], Reason: key + " has not been expanded"}
		}
		child, ok := coll.Lookup(name)
		if !ok {
			return Target{}, &NodePathNotFoundError{Path: path, Segment: segments[i+1], Reason: "no such object"}
		}
		obj = child
	}
	return Target{Object: obj}, nil
}

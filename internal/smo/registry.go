package smo

import (
	"fmt"
	"sort"
	"sync"
)

// CollectionSpec declares one child collection of a node type.
type CollectionSpec struct {
	Key   string // path segment, e.g. "tables"
	Label string // folder label, e.g. "Tables"
	Child NodeType
}

// typeSpec is the registration record of a node type.
type typeSpec struct {
	typ         NodeType
	collections []CollectionSpec

	// fromRow builds the concrete object around n from a nodes query row.
	fromRow func(n *node, r *rowReader) Object

	// guard, when set, is checked before a collection of this type's
	// instances is populated.
	guard func(parent Object) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[NodeType]*typeSpec)
)

// register adds a node type. Called by each type's init function.
func register(spec *typeSpec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[spec.typ]; dup {
		panic(fmt.Sprintf("smo: node type %s registered twice", spec.typ))
	}
	registry[spec.typ] = spec
}

func lookupSpec(t NodeType) (*typeSpec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[t]
	return s, ok
}

// CollectionSpecs returns the collections declared by type t.
func CollectionSpecs(t NodeType) []CollectionSpec {
	s, ok := lookupSpec(t)
	if !ok {
		return nil
	}
	return append([]CollectionSpec(nil), s.collections...)
}

// RegisteredTypes lists registered node types, sorted.
func RegisteredTypes() []NodeType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]NodeType, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// construct builds one child object of type t from a metadata row.
func construct(server *Server, parent Object, collKey string, t NodeType, row Row) (Object, error) {
	spec, ok := lookupSpec(t)
	if !ok || spec.fromRow == nil {
		return nil, fmt.Errorf("smo: node type %s is not registered", t)
	}

	r := newRowReader(t, row)
	n := &node{
		typ:     t,
		oid:     r.oid("oid"),
		name:    r.str("name"),
		parent:  parent,
		server:  server,
		collKey: collKey,
	}
	obj := spec.fromRow(n, r)
	if r.err != nil {
		return nil, r.err
	}

	initCollections(obj, spec)
	return obj, nil
}

func initCollections(obj Object, spec *typeSpec) {
	n := obj.base()
	n.collections = make([]*Collection, len(spec.collections))
	n.byKey = make(map[string]*Collection, len(spec.collections))
	for i, cs := range spec.collections {
		c := newCollection(obj, cs)
		n.collections[i] = c
		n.byKey[cs.Key] = c
	}
}

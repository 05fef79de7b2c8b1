// Package smo is the server management object model: typed metadata nodes
// built from catalog query rows, each owning lazily populated child
// collections and optionally able to produce DDL scripts.
package smo

import (
	"context"
)

// Object is a node of the object tree. The interface is sealed; every
// implementation embeds *node.
type Object interface {
	Type() NodeType
	OID() uint32
	Name() string
	Label() string
	Parent() Object
	Server() *Server

	// CollectionKey is the key of the parent collection holding the object,
	// "" for the server.
	CollectionKey() string
	Collections() []*Collection
	Collection(key string) *Collection

	FullProperties(ctx context.Context) (Row, error)
	InvalidateProperties()

	base() *node
}

// node carries the identity and child collections shared by every type.
// Identity never changes after construction.
type node struct {
	typ     NodeType
	oid     uint32
	name    string
	label   string
	parent  Object
	server  *Server
	collKey string

	collections []*Collection
	byKey       map[string]*Collection
	props       propertyCache
}

func (n *node) Type() NodeType        { return n.typ }
func (n *node) OID() uint32           { return n.oid }
func (n *node) Name() string          { return n.name }
func (n *node) Parent() Object        { return n.parent }
func (n *node) Server() *Server       { return n.server }
func (n *node) CollectionKey() string { return n.collKey }
func (n *node) base() *node           { return n }

// Label is the display text; it defaults to the name.
func (n *node) Label() string {
	if n.label != "" {
		return n.label
	}
	return n.name
}

// Collections returns the declared collections in declaration order.
func (n *node) Collections() []*Collection { return n.collections }

// Collection returns the collection declared under key, or nil.
func (n *node) Collection(key string) *Collection { return n.byKey[key] }

// InvalidateProperties drops cached full properties.
func (n *node) InvalidateProperties() { n.props.invalidate() }

// IsLeaf reports whether obj declares no child collections.
func IsLeaf(obj Object) bool {
	return len(obj.Collections()) == 0
}

// Ancestors returns obj's ancestors from the server down to obj's parent.
func Ancestors(obj Object) []Object {
	var chain []Object
	for p := obj.Parent(); p != nil; p = p.Parent() {
		chain = append(chain, p)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Nearest returns the closest ancestor of obj (or obj itself) of type t.
func Nearest(obj Object, t NodeType) Object {
	for o := obj; o != nil; o = o.Parent() {
		if o.Type() == t {
			return o
		}
	}
	return nil
}

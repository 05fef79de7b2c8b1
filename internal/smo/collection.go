package smo

import (
	"context"
	"errors"
	"sync"
)

// Collection is a lazily populated, name-indexed list of child objects of
// one type under one parent.
//
// Population is coalesced: callers that arrive while a fetch is running
// share its result. A forced refresh only shares a fetch that started after
// it was issued; otherwise it waits for the running fetch and then starts a
// new one. At most one fetch per collection is in flight.
type Collection struct {
	spec   CollectionSpec
	parent Object

	mu          sync.Mutex
	started     uint64 // number of fetches started
	invalidated uint64 // fetches numbered <= this may not populate
	inflight    *fetch
	populated   bool
	gen         uint64 // fetch number that produced items
	items       []Object
	byName      map[string]Object
}

type fetch struct {
	gen   uint64
	done  chan struct{}
	items []Object
	err   error
}

func newCollection(parent Object, spec CollectionSpec) *Collection {
	return &Collection{spec: spec, parent: parent}
}

// Key returns the collection's path segment.
func (c *Collection) Key() string { return c.spec.Key }

// Label returns the folder label.
func (c *Collection) Label() string { return c.spec.Label }

// ChildType returns the type of the collection's objects.
func (c *Collection) ChildType() NodeType { return c.spec.Child }

// Parent returns the owning object.
func (c *Collection) Parent() Object { return c.parent }

// Get returns the children, fetching them when the collection is not
// populated or force is set. The returned slice must not be modified.
func (c *Collection) Get(ctx context.Context, force bool) ([]Object, error) {
	c.mu.Lock()
	if !force && c.populated {
		items := c.items
		c.mu.Unlock()
		return items, nil
	}

	var minGen uint64
	if force {
		minGen = c.started + 1
	}

	for c.inflight != nil {
		f := c.inflight
		c.mu.Unlock()
		if err := wait(ctx, f); err != nil {
			return nil, err
		}
		if f.gen >= minGen {
			return f.items, f.err
		}
		c.mu.Lock()
	}

	// A newer fetch may have finished while this call was queued.
	if c.populated && c.gen >= minGen {
		items := c.items
		c.mu.Unlock()
		return items, nil
	}

	c.started++
	f := &fetch{gen: c.started, done: make(chan struct{})}
	c.inflight = f
	c.mu.Unlock()

	f.items, f.err = c.load(ctx)

	c.mu.Lock()
	if f.err == nil && f.gen > c.invalidated {
		c.items = f.items
		c.byName = indexByName(f.items)
		c.populated = true
		c.gen = f.gen
	} else if f.err != nil {
		c.items, c.byName, c.populated = nil, nil, false
	}
	c.inflight = nil
	c.mu.Unlock()
	close(f.done)

	return f.items, f.err
}

func wait(ctx context.Context, f *fetch) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func indexByName(items []Object) map[string]Object {
	m := make(map[string]Object, len(items))
	for _, o := range items {
		m[o.Name()] = o
	}
	return m
}

// Lookup returns the populated child named name. It never fetches.
func (c *Collection) Lookup(name string) (Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.populated {
		return nil, false
	}
	o, ok := c.byName[name]
	return o, ok
}

// Items returns the populated children, or nil. It never fetches.
func (c *Collection) Items() []Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// Populated reports whether the collection holds a fetched result.
func (c *Collection) Populated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.populated
}

// Invalidate forces the collection back to unpopulated. A fetch already in
// flight still answers its callers but does not repopulate the collection.
func (c *Collection) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = c.started
	c.items, c.byName, c.populated = nil, nil, false
}

// Available reports, without I/O, whether the collection can be populated
// at all. It returns the NodePopulationError Get would fail with.
func (c *Collection) Available() error {
	if spec, ok := lookupSpec(c.spec.Child); ok && spec.guard != nil {
		if err := spec.guard(c.parent); err != nil {
			return c.populationError(err)
		}
	}
	return nil
}

// load runs the nodes query and builds one child per row. Malformed rows are
// logged and skipped.
func (c *Collection) load(ctx context.Context) ([]Object, error) {
	srv := c.parent.Server()

	if err := c.Available(); err != nil {
		return nil, err
	}

	rows, err := srv.listChildren(ctx, c.parent, c.spec.Child)
	if err != nil {
		return nil, c.populationError(err)
	}

	items := make([]Object, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		obj, err := construct(srv, c.parent, c.spec.Key, c.spec.Child, row)
		if err != nil {
			var malformed *MalformedMetadataError
			if !errors.As(err, &malformed) {
				return nil, c.populationError(err)
			}
			srv.logger.Warn("skipping malformed row", "type", c.spec.Child, "parent", c.parent.Label(), "error", err)
			continue
		}
		if seen[obj.Name()] {
			srv.logger.Warn("skipping duplicate name", "type", c.spec.Child, "name", obj.Name())
			continue
		}
		seen[obj.Name()] = true
		items = append(items, obj)
	}

	srv.logger.Debug("populated collection", "parent", c.parent.Label(), "collection", c.spec.Key, "count", len(items))
	return items, nil
}

func (c *Collection) populationError(err error) error {
	var popErr *NodePopulationError
	if errors.As(err, &popErr) {
		return err
	}
	return &NodePopulationError{Parent: c.parent.Label(), Collection: c.spec.Key, Err: err}
}

package smo

import (
	"context"
	"maps"
	"sync"

	"golang.org/x/sync/singleflight"
)

// propertyCache holds an object's full properties. Concurrent first
// accesses share one query.
type propertyCache struct {
	group singleflight.Group

	mu     sync.Mutex
	props  Row
	loaded bool
	epoch  uint64
}

func (p *propertyCache) get(ctx context.Context, load func(context.Context) (Row, error)) (Row, error) {
	p.mu.Lock()
	if p.loaded {
		props := p.props
		p.mu.Unlock()
		return props, nil
	}
	epoch := p.epoch
	p.mu.Unlock()

	v, err, _ := p.group.Do("props", func() (any, error) {
		props, err := load(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		if p.epoch == epoch {
			p.props, p.loaded = props, true
		}
		p.mu.Unlock()
		return props, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Row), nil
}

func (p *propertyCache) invalidate() {
	p.mu.Lock()
	p.props, p.loaded = nil, false
	p.epoch++
	p.mu.Unlock()
	p.group.Forget("props")
}

// FullProperties returns the object's extended properties, querying them on
// first access. The returned map is a copy.
func (n *node) FullProperties(ctx context.Context) (Row, error) {
	props, err := n.props.get(ctx, func(ctx context.Context) (Row, error) {
		return n.server.queryProperties(ctx, n)
	})
	if err != nil {
		return nil, err
	}
	return maps.Clone(props), nil
}

package smo

import "context"

// Tablespace is a server tablespace.
type Tablespace struct {
	*node
	owner string
}

// Owner returns the tablespace owner.
func (t *Tablespace) Owner() string { return t.owner }

// CreateData implements Creatable.
func (t *Tablespace) CreateData(ctx context.Context) (map[string]any, error) {
	data, err := withProps(ctx, t, map[string]any{"name": t.name, "spcuser": t.owner})
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": data}, nil
}

// DeleteData implements Deletable.
func (t *Tablespace) DeleteData(context.Context) (map[string]any, error) {
	return map[string]any{"name": t.name}, nil
}

func init() {
	register(&typeSpec{
		typ: TypeTablespace,
		fromRow: func(n *node, r *rowReader) Object {
			return &Tablespace{node: n, owner: r.optStr("owner")}
		},
	})
}

package smo

import "context"

// Collation is a schema collation.
type Collation struct {
	*node
}

// CreateData implements Creatable.
func (c *Collation) CreateData(ctx context.Context) (map[string]any, error) {
	data, err := withProps(ctx, c, qualified(c))
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": data}, nil
}

// DeleteData implements Deletable.
func (c *Collation) DeleteData(context.Context) (map[string]any, error) {
	return qualified(c), nil
}

func init() {
	register(&typeSpec{
		typ: TypeCollation,
		fromRow: func(n *node, _ *rowReader) Object {
			return &Collation{node: n}
		},
	})
}

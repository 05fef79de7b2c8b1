package smo

import "context"

// View is a plain view.
type View struct {
	*node
}

// CreateData implements Creatable.
func (v *View) CreateData(ctx context.Context) (map[string]any, error) {
	data, err := withProps(ctx, v, qualified(v))
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": data}, nil
}

// DeleteData implements Deletable.
func (v *View) DeleteData(context.Context) (map[string]any, error) {
	return qualified(v), nil
}

func init() {
	register(&typeSpec{
		typ: TypeView,
		collections: []CollectionSpec{
			{Key: "columns", Label: "Columns", Child: TypeColumn},
		},
		fromRow: func(n *node, _ *rowReader) Object {
			return &View{node: n}
		},
	})
}

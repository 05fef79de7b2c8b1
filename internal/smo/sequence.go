package smo

import "context"

// Sequence is a sequence generator.
type Sequence struct {
	*node
}

// CreateData implements Creatable.
func (s *Sequence) CreateData(ctx context.Context) (map[string]any, error) {
	data, err := withProps(ctx, s, qualified(s))
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": data}, nil
}

// DeleteData implements Deletable.
func (s *Sequence) DeleteData(context.Context) (map[string]any, error) {
	return qualified(s), nil
}

func init() {
	register(&typeSpec{
		typ: TypeSequence,
		fromRow: func(n *node, _ *rowReader) Object {
			return &Sequence{node: n}
		},
	})
}

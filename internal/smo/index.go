package smo

import "context"

// Index is a table index. Indexes can be dropped but are created through
// their table.
type Index struct {
	*node
	unique  bool
	primary bool
}

// Unique reports indisunique.
func (i *Index) Unique() bool { return i.unique }

// Primary reports indisprimary.
func (i *Index) Primary() bool { return i.primary }

// DeleteData implements Deletable.
func (i *Index) DeleteData(context.Context) (map[string]any, error) {
	return qualified(i), nil
}

func init() {
	register(&typeSpec{
		typ: TypeIndex,
		fromRow: func(n *node, r *rowReader) Object {
			return &Index{node: n, unique: r.optBool("indisunique"), primary: r.optBool("indisprimary")}
		},
	})
}

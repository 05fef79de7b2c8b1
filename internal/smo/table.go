package smo

import "context"

// Table is an ordinary or partitioned table.
type Table struct {
	*node
	partitioned bool
}

// Partitioned reports whether the table is a partitioned parent.
func (t *Table) Partitioned() bool { return t.partitioned }

// CreateData implements Creatable. Columns are read from the populated
// columns collection, fetching it if needed.
func (t *Table) CreateData(ctx context.Context) (map[string]any, error) {
	data, err := withProps(ctx, t, qualified(t))
	if err != nil {
		return nil, err
	}

	cols, err := t.Collection("columns").Get(ctx, false)
	if err != nil {
		return nil, err
	}
	columns := make([]any, 0, len(cols))
	for _, c := range cols {
		col := c.(*Column)
		columns = append(columns, map[string]any{
			"name":     col.name,
			"datatype": col.dataType,
			"not_null": col.notNull,
			"default":  col.defaultValue,
		})
	}
	data["columns"] = columns
	return map[string]any{"data": data}, nil
}

// DeleteData implements Deletable.
func (t *Table) DeleteData(context.Context) (map[string]any, error) {
	return qualified(t), nil
}

func init() {
	register(&typeSpec{
		typ: TypeTable,
		collections: []CollectionSpec{
			{Key: "columns", Label: "Columns", Child: TypeColumn},
			{Key: "indexes", Label: "Indexes", Child: TypeIndex},
			{Key: "triggers", Label: "Triggers", Child: TypeTrigger},
		},
		fromRow: func(n *node, r *rowReader) Object {
			return &Table{node: n, partitioned: r.optBool("is_partitioned")}
		},
	})
}

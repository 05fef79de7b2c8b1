package smo

import "context"

// DataType is a user defined type: composite, enum, range or base.
type DataType struct {
	*node
	kind string
}

// Kind returns typtype: c, e, r, b or d.
func (d *DataType) Kind() string { return d.kind }

// DeleteData implements Deletable.
func (d *DataType) DeleteData(context.Context) (map[string]any, error) {
	return qualified(d), nil
}

func init() {
	register(&typeSpec{
		typ: TypeDataType,
		fromRow: func(n *node, r *rowReader) Object {
			return &DataType{node: n, kind: r.optStr("typtype")}
		},
	})
}

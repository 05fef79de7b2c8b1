package smo

import (
	"context"
	"fmt"
)

// Column is a table or view column. Its oid is the attribute number.
type Column struct {
	*node
	dataType     string
	notNull      bool
	defaultValue string
	primaryKey   bool
}

// DataType returns the formatted column type.
func (c *Column) DataType() string { return c.dataType }

// NotNull reports attnotnull.
func (c *Column) NotNull() bool { return c.notNull }

// Default returns the default expression, or "".
func (c *Column) Default() string { return c.defaultValue }

// PrimaryKey reports whether the column is part of the primary key.
func (c *Column) PrimaryKey() bool { return c.primaryKey }

func (c *Column) tableData() map[string]any {
	data := qualified(c)
	data["table"] = c.parent.Name()
	return data
}

// CreateData implements Creatable. Only table columns can be added.
func (c *Column) CreateData(context.Context) (map[string]any, error) {
	if c.parent.Type() != TypeTable {
		return nil, &NotScriptableError{Type: TypeColumn, Operation: OpCreate + " on " + c.parent.Type().String()}
	}
	data := c.tableData()
	data["datatype"] = c.dataType
	data["not_null"] = c.notNull
	data["default"] = c.defaultValue
	return map[string]any{"data": data}, nil
}

// DeleteData implements Deletable.
func (c *Column) DeleteData(context.Context) (map[string]any, error) {
	if c.parent.Type() != TypeTable {
		return nil, &NotScriptableError{Type: TypeColumn, Operation: OpDelete + " on " + c.parent.Type().String()}
	}
	return c.tableData(), nil
}

func init() {
	register(&typeSpec{
		typ: TypeColumn,
		fromRow: func(n *node, r *rowReader) Object {
			c := &Column{
				node:         n,
				dataType:     r.optStr("datatype"),
				notNull:      r.optBool("not_null"),
				defaultValue: r.optStr("default"),
				primaryKey:   r.optBool("is_pk"),
			}
			if c.dataType != "" {
				c.label = fmt.Sprintf("%s (%s)", n.name, c.dataType)
			}
			return c
		},
	})
}

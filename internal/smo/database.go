package smo

import (
	"context"
	"fmt"
)

// Database is a database of the server. Only the connected database can be
// browsed below the database level.
type Database struct {
	*node
	allowConn  bool
	canCreate  bool
	isTemplate bool
}

// AllowConn reports datallowconn.
func (d *Database) AllowConn() bool { return d.allowConn }

// CanCreate reports whether the current user may create schemas in it.
func (d *Database) CanCreate() bool { return d.canCreate }

// IsTemplate reports datistemplate.
func (d *Database) IsTemplate() bool { return d.isTemplate }

// IsConnected reports whether the session's connection is bound to d.
func (d *Database) IsConnected() bool { return d.server.IsConnectedDatabase(d.name) }

// CreateData implements Creatable.
func (d *Database) CreateData(ctx context.Context) (map[string]any, error) {
	data, err := withProps(ctx, d, map[string]any{"name": d.name})
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": data}, nil
}

// DeleteData implements Deletable.
func (d *Database) DeleteData(context.Context) (map[string]any, error) {
	return map[string]any{"name": d.name}, nil
}

func init() {
	register(&typeSpec{
		typ: TypeDatabase,
		collections: []CollectionSpec{
			{Key: "schemas", Label: "Schemas", Child: TypeSchema},
		},
		fromRow: func(n *node, r *rowReader) Object {
			return &Database{
				node:       n,
				allowConn:  r.optBool("datallowconn"),
				canCreate:  r.optBool("cancreate"),
				isTemplate: r.optBool("datistemplate"),
			}
		},
	})
}

// schemaGuard refuses to list schemas of a database other than the
// connected one.
func schemaGuard(parent Object) error {
	db, ok := parent.(*Database)
	if !ok {
		return nil
	}
	if !db.IsConnected() {
		return fmt.Errorf("database %q is not the connected database %q; open a session on it to browse its objects",
			db.name, db.server.info.Database)
	}
	return nil
}

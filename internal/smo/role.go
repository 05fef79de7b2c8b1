package smo

import "context"

// Role is a login or group role.
type Role struct {
	*node
	canLogin  bool
	superuser bool
}

// CanLogin reports rolcanlogin.
func (r *Role) CanLogin() bool { return r.canLogin }

// Superuser reports rolsuper.
func (r *Role) Superuser() bool { return r.superuser }

// CreateData implements Creatable.
func (r *Role) CreateData(ctx context.Context) (map[string]any, error) {
	data, err := withProps(ctx, r, map[string]any{"name": r.name})
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": data}, nil
}

// DeleteData implements Deletable.
func (r *Role) DeleteData(context.Context) (map[string]any, error) {
	return map[string]any{"name": r.name}, nil
}

func init() {
	register(&typeSpec{
		typ: TypeRole,
		fromRow: func(n *node, r *rowReader) Object {
			return &Role{
				node:      n,
				canLogin:  r.optBool("rolcanlogin"),
				superuser: r.optBool("rolsuper"),
			}
		},
	})
}

package smo

import (
	"context"
)

// Creatable objects can produce a CREATE script.
type Creatable interface {
	Object
	CreateData(ctx context.Context) (map[string]any, error)
}

// Updatable objects can produce an ALTER script. The data carries the
// current values under "data" and the original ones under "o_data".
type Updatable interface {
	Object
	UpdateData(ctx context.Context) (map[string]any, error)
}

// Deletable objects can produce a DROP script.
type Deletable interface {
	Object
	DeleteData(ctx context.Context) (map[string]any, error)
}

// Script operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// BuildCreateScript renders obj's create template.
func BuildCreateScript(ctx context.Context, obj Object) (string, error) {
	c, ok := obj.(Creatable)
	if !ok {
		return "", &NotScriptableError{Type: obj.Type(), Operation: OpCreate}
	}
	h, err := obj.Server().Handle(obj.Type())
	if err != nil {
		return "", err
	}
	data, err := c.CreateData(ctx)
	if err != nil {
		return "", err
	}
	return h.RenderCreate(data)
}

// BuildUpdateScript renders obj's update template.
func BuildUpdateScript(ctx context.Context, obj Object) (string, error) {
	u, ok := obj.(Updatable)
	if !ok {
		return "", &NotScriptableError{Type: obj.Type(), Operation: OpUpdate}
	}
	h, err := obj.Server().Handle(obj.Type())
	if err != nil {
		return "", err
	}
	data, err := u.UpdateData(ctx)
	if err != nil {
		return "", err
	}
	return h.RenderUpdate(data)
}

// BuildDeleteScript renders obj's delete template.
func BuildDeleteScript(ctx context.Context, obj Object) (string, error) {
	d, ok := obj.(Deletable)
	if !ok {
		return "", &NotScriptableError{Type: obj.Type(), Operation: OpDelete}
	}
	h, err := obj.Server().Handle(obj.Type())
	if err != nil {
		return "", err
	}
	data, err := d.DeleteData(ctx)
	if err != nil {
		return "", err
	}
	return h.RenderDelete(data)
}

// BuildScript dispatches on operation name.
func BuildScript(ctx context.Context, obj Object, operation string) (string, error) {
	switch operation {
	case OpCreate:
		return BuildCreateScript(ctx, obj)
	case OpUpdate:
		return BuildUpdateScript(ctx, obj)
	case OpDelete:
		return BuildDeleteScript(ctx, obj)
	default:
		return "", &NotScriptableError{Type: obj.Type(), Operation: operation}
	}
}

// Capabilities lists the script operations obj supports.
func Capabilities(obj Object) []string {
	var ops []string
	if _, ok := obj.(Creatable); ok {
		ops = append(ops, OpCreate)
	}
	if _, ok := obj.(Updatable); ok {
		ops = append(ops, OpUpdate)
	}
	if _, ok := obj.(Deletable); ok {
		ops = append(ops, OpDelete)
	}
	return ops
}

// qualified is the schema-qualified data most child objects script with.
func qualified(obj Object) map[string]any {
	data := map[string]any{"name": obj.Name()}
	if s := Nearest(obj.Parent(), TypeSchema); s != nil {
		data["schema"] = s.Name()
	}
	return data
}

// withProps merges full properties over base.
func withProps(ctx context.Context, obj Object, base map[string]any) (map[string]any, error) {
	props, err := obj.FullProperties(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range props {
		if _, ok := base[k]; !ok {
			base[k] = v
		}
	}
	return base, nil
}

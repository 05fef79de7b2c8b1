package smo

import "context"

// Function is a function or trigger function. Its name is the identity
// signature, e.g. "add(integer, integer)", since overloads share a proname.
type Function struct {
	*node
	proName    string
	language   string
	returnType string
}

// ProName returns the bare function name.
func (f *Function) ProName() string { return f.proName }

// Language returns the implementation language.
func (f *Function) Language() string { return f.language }

// ReturnType returns the result type.
func (f *Function) ReturnType() string { return f.returnType }

// CreateData implements Creatable.
func (f *Function) CreateData(ctx context.Context) (map[string]any, error) {
	data, err := withProps(ctx, f, qualified(f))
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": data}, nil
}

// DeleteData implements Deletable.
func (f *Function) DeleteData(context.Context) (map[string]any, error) {
	data := qualified(f)
	data["proname"] = f.proName
	return data, nil
}

func newFunction(n *node, r *rowReader) Object {
	f := &Function{
		node:       n,
		proName:    r.optStr("proname"),
		language:   r.optStr("lanname"),
		returnType: r.optStr("rettype"),
	}
	if f.proName == "" {
		f.proName = n.name
	}
	return f
}

func init() {
	register(&typeSpec{typ: TypeFunction, fromRow: newFunction})
	register(&typeSpec{typ: TypeTriggerFunction, fromRow: newFunction})
}

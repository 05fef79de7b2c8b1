package smo

import "context"

// Schema is a namespace of the connected database.
type Schema struct {
	*node
	canCreate bool
	hasUsage  bool
}

// CanCreate reports whether the current user may create objects in it.
func (s *Schema) CanCreate() bool { return s.canCreate }

// HasUsage reports whether the current user has USAGE on it.
func (s *Schema) HasUsage() bool { return s.hasUsage }

func (s *Schema) properties(ctx context.Context) (Row, error) {
	props, err := s.FullProperties(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range []string{"namespaceowner", "description", "nspacl", "seclabels", "defacl"} {
		if props[k] == nil {
			props[k] = ""
		}
	}
	if props["cascade"] == nil {
		props["cascade"] = false
	}
	return props, nil
}

// CreateData implements Creatable.
func (s *Schema) CreateData(ctx context.Context) (map[string]any, error) {
	props, err := s.properties(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": map[string]any{
		"name":           s.name,
		"namespaceowner": props["namespaceowner"],
		"description":    props["description"],
		"nspacl":         props["nspacl"],
		"seclabels":      props["seclabels"],
	}}, nil
}

// UpdateData implements Updatable. The original values carry only the
// name, so the script restates owner, comment and privileges.
func (s *Schema) UpdateData(ctx context.Context) (map[string]any, error) {
	props, err := s.properties(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"data": map[string]any{
			"name":           s.name,
			"namespaceowner": props["namespaceowner"],
			"description":    props["description"],
			"nspacl":         props["nspacl"],
			"defacl":         props["defacl"],
			"seclabels":      props["seclabels"],
		},
		"o_data": map[string]any{
			"name":           s.name,
			"namespaceowner": "",
			"description":    "",
		},
	}, nil
}

// DeleteData implements Deletable.
func (s *Schema) DeleteData(ctx context.Context) (map[string]any, error) {
	props, err := s.properties(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": s.name, "cascade": props["cascade"]}, nil
}

func init() {
	register(&typeSpec{
		typ: TypeSchema,
		collections: []CollectionSpec{
			{Key: "collations", Label: "Collations", Child: TypeCollation},
			{Key: "datatypes", Label: "Data Types", Child: TypeDataType},
			{Key: "functions", Label: "Functions", Child: TypeFunction},
			{Key: "sequences", Label: "Sequences", Child: TypeSequence},
			{Key: "tables", Label: "Tables", Child: TypeTable},
			{Key: "triggerfunctions", Label: "Trigger Functions", Child: TypeTriggerFunction},
			{Key: "views", Label: "Views", Child: TypeView},
		},
		fromRow: func(n *node, r *rowReader) Object {
			return &Schema{
				node:      n,
				canCreate: r.optBool("can_create"),
				hasUsage:  r.optBool("has_usage"),
			}
		},
		guard: schemaGuard,
	})
}

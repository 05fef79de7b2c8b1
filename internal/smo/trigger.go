package smo

// Trigger is a table trigger. It is read-only.
type Trigger struct {
	*node
	enabled bool
}

// Enabled reports whether the trigger fires.
func (t *Trigger) Enabled() bool { return t.enabled }

func init() {
	register(&typeSpec{
		typ: TypeTrigger,
		fromRow: func(n *node, r *rowReader) Object {
			return &Trigger{node: n, enabled: r.optBool("is_enabled")}
		},
	})
}

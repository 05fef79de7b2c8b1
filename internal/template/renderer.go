package template

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// Evaluator evaluates Starlark expressions for the renderer. Locals shadow
// the evaluator's globals; they carry loop variables.
type Evaluator interface {
	EvalExprWithLocals(expr, file string, line int, locals starlark.StringDict) (starlark.Value, error)
}

// RenderString parses and renders input in one step.
func RenderString(input, file string, ev Evaluator) (string, error) {
	tmpl, err := ParseString(input, file)
	if err != nil {
		return "", err
	}
	return Render(tmpl, ev)
}

// Render renders a parsed template. It has no side effects beyond evaluating
// expressions against ev.
func Render(tmpl *Template, ev Evaluator) (string, error) {
	r := &renderer{file: tmpl.File, ev: ev}
	var sb strings.Builder
	if err := r.renderNodes(&sb, tmpl.Nodes, nil); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type renderer struct {
	file string
	ev   Evaluator
}

func (r *renderer) renderNodes(sb *strings.Builder, nodes []Node, locals starlark.StringDict) error {
	for _, n := range nodes {
		if err := r.renderNode(sb, n, locals); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderNode(sb *strings.Builder, n Node, locals starlark.StringDict) error {
	switch n := n.(type) {
	case *TextNode:
		sb.WriteString(n.Text)
	case *ExprNode:
		v, err := r.eval(n.Expr, n.Pos(), locals)
		if err != nil {
			return err
		}
		sb.WriteString(valueString(v))
	case *ForBlock:
		return r.renderFor(sb, n, locals)
	case *IfBlock:
		return r.renderIf(sb, n, locals)
	default:
		return renderError(n.Pos(), fmt.Sprintf("unexpected node %T", n), nil)
	}
	return nil
}

func (r *renderer) renderFor(sb *strings.Builder, n *ForBlock, locals starlark.StringDict) error {
	v, err := r.eval(n.IterExpr, n.Pos(), locals)
	if err != nil {
		return err
	}

	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return renderError(n.Pos(), fmt.Sprintf("cannot iterate over %s", v.Type()), nil)
	}

	iter := iterable.Iterate()
	defer iter.Done()

	scope := make(starlark.StringDict, len(locals)+len(n.VarNames))
	for k, v := range locals {
		scope[k] = v
	}

	var item starlark.Value
	for iter.Next(&item) {
		if err := bindLoopVars(scope, n.VarNames, item); err != nil {
			return renderError(n.Pos(), "cannot unpack loop item", err)
		}
		if err := r.renderNodes(sb, n.Body, scope); err != nil {
			return err
		}
	}
	return nil
}

func bindLoopVars(scope starlark.StringDict, names []string, item starlark.Value) error {
	if len(names) == 1 {
		scope[names[0]] = item
		return nil
	}

	seq, ok := item.(starlark.Indexable)
	if !ok {
		return fmt.Errorf("got %s, want sequence of %d", item.Type(), len(names))
	}
	if seq.Len() != len(names) {
		return fmt.Errorf("got %d values, want %d", seq.Len(), len(names))
	}
	for i, name := range names {
		scope[name] = seq.Index(i)
	}
	return nil
}

func (r *renderer) renderIf(sb *strings.Builder, n *IfBlock, locals starlark.StringDict) error {
	ok, err := r.truth(n.Condition, n.Pos(), locals)
	if err != nil {
		return err
	}
	if ok {
		return r.renderNodes(sb, n.Body, locals)
	}

	for _, branch := range n.ElseIfs {
		ok, err := r.truth(branch.Condition, branch.Pos(), locals)
		if err != nil {
			return err
		}
		if ok {
			return r.renderNodes(sb, branch.Body, locals)
		}
	}

	return r.renderNodes(sb, n.Else, locals)
}

func (r *renderer) truth(expr string, pos Position, locals starlark.StringDict) (bool, error) {
	v, err := r.eval(expr, pos, locals)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}

func (r *renderer) eval(expr string, pos Position, locals starlark.StringDict) (starlark.Value, error) {
	v, err := r.ev.EvalExprWithLocals(expr, r.file, pos.Line, locals)
	if err != nil {
		return nil, renderError(pos, fmt.Sprintf("evaluating %q", expr), err)
	}
	return v, nil
}

func valueString(v starlark.Value) string {
	switch v := v.(type) {
	case starlark.String:
		return string(v)
	case starlark.NoneType:
		return ""
	default:
		return v.String()
	}
}

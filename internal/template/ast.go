// Package template implements the SQL script template language used by the
// object scripting bundles. {{ expr }} evaluates a Starlark expression,
// {* stmt *} drives for/if control flow and {# ... #} is a comment.
package template

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is implemented by every template AST node.
type Node interface {
	Pos() Position
	node()
}

type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode is literal SQL copied to the output unchanged.
type TextNode struct {
	nodeBase
	Text string
}

// ExprNode is a {{ expr }} substitution. Expr holds the Starlark source.
type ExprNode struct {
	nodeBase
	Expr string
}

// StmtKind identifies a control flow statement.
type StmtKind int

// StmtKind values.
const (
	StmtUnknown StmtKind = iota
	StmtFor
	StmtEndFor
	StmtIf
	StmtElif
	StmtElse
	StmtEndIf
)

func (k StmtKind) String() string {
	switch k {
	case StmtFor:
		return "for"
	case StmtEndFor:
		return "endfor"
	case StmtIf:
		return "if"
	case StmtElif:
		return "elif"
	case StmtElse:
		return "else"
	case StmtEndIf:
		return "endif"
	default:
		return "unknown"
	}
}

// ForBlock is a complete for loop. VarNames has more than one entry when the
// loop unpacks tuples ({* for k, v in pairs: *}).
type ForBlock struct {
	nodeBase
	VarNames []string
	IterExpr string
	Body     []Node
}

// IfBlock is a complete if/elif/else conditional.
type IfBlock struct {
	nodeBase
	Condition string
	Body      []Node
	ElseIfs   []Branch
	Else      []Node
}

// Branch is one elif arm of an IfBlock.
type Branch struct {
	Condition string
	Body      []Node
	pos       Position
}

// Pos returns where the elif tag starts.
func (b Branch) Pos() Position { return b.pos }

// Template is a parsed template ready for rendering.
type Template struct {
	Nodes []Node
	File  string
}

package template

import (
	"regexp"
	"slices"
	"strings"
)

var (
	forPattern   = regexp.MustCompile(`^for\s+(.+?)\s+in\s+(.+?)\s*:?$`)
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// statement is a parsed {* ... *} tag.
type statement struct {
	kind StmtKind
	expr string
	vars []string
	pos  Position
}

type parser struct {
	tokens []Token
	pos    int
}

// ParseString tokenizes and parses a template.
func ParseString(input, file string) (*Template, error) {
	tokens, err := NewLexer(input, file).Tokenize()
	if err != nil {
		return nil, err
	}
	return Parse(tokens, file)
}

// Parse builds the block structure of a token stream.
func Parse(tokens []Token, file string) (*Template, error) {
	p := &parser{tokens: tokens}
	nodes, _, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	return &Template{Nodes: nodes, File: file}, nil
}

// parseNodes collects nodes until EOF or a statement whose kind is in stop.
// The terminating statement is returned; nil means EOF was reached.
func (p *parser) parseNodes(stop ...StmtKind) ([]Node, *statement, error) {
	var nodes []Node

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++

		switch tok.Type {
		case TokenEOF:
			return nodes, nil, nil
		case TokenText:
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenExpr:
			if tok.Value == "" {
				return nil, nil, parseErrorf(tok.Pos, "empty expression")
			}
			nodes = append(nodes, &ExprNode{nodeBase: nodeBase{pos: tok.Pos}, Expr: tok.Value})
		case TokenComment:
		case TokenStmt:
			st, err := parseStatement(tok)
			if err != nil {
				return nil, nil, err
			}
			if slices.Contains(stop, st.kind) {
				return nodes, st, nil
			}

			switch st.kind {
			case StmtFor:
				block, err := p.parseFor(st)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			case StmtIf:
				block, err := p.parseIf(st)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			default:
				return nil, nil, unmatchedBlock(st.pos, st.kind)
			}
		}
	}

	return nodes, nil, nil
}

func (p *parser) parseFor(st *statement) (*ForBlock, error) {
	body, end, err := p.parseNodes(StmtEndFor)
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, unmatchedBlock(st.pos, StmtFor)
	}
	return &ForBlock{
		nodeBase: nodeBase{pos: st.pos},
		VarNames: st.vars,
		IterExpr: st.expr,
		Body:     body,
	}, nil
}

func (p *parser) parseIf(st *statement) (*IfBlock, error) {
	block := &IfBlock{nodeBase: nodeBase{pos: st.pos}, Condition: st.expr}

	body, end, err := p.parseNodes(StmtElif, StmtElse, StmtEndIf)
	if err != nil {
		return nil, err
	}
	block.Body = body

	for {
		if end == nil {
			return nil, unmatchedBlock(st.pos, StmtIf)
		}

		switch end.kind {
		case StmtEndIf:
			return block, nil
		case StmtElif:
			elif := end
			body, end, err = p.parseNodes(StmtElif, StmtElse, StmtEndIf)
			if err != nil {
				return nil, err
			}
			block.ElseIfs = append(block.ElseIfs, Branch{Condition: elif.expr, Body: body, pos: elif.pos})
		case StmtElse:
			body, end, err = p.parseNodes(StmtEndIf)
			if err != nil {
				return nil, err
			}
			if end == nil {
				return nil, unmatchedBlock(st.pos, StmtIf)
			}
			block.Else = body
			return block, nil
		}
	}
}

func parseStatement(tok Token) (*statement, error) {
	src := strings.TrimSpace(tok.Value)
	st := &statement{pos: tok.Pos}

	switch {
	case src == "endfor":
		st.kind = StmtEndFor
	case src == "endif":
		st.kind = StmtEndIf
	case src == "else" || src == "else:":
		st.kind = StmtElse
	case strings.HasPrefix(src, "for "):
		m := forPattern.FindStringSubmatch(src)
		if m == nil {
			return nil, parseErrorf(tok.Pos, "malformed for statement %q", src)
		}
		for _, name := range strings.Split(m[1], ",") {
			name = strings.TrimSpace(name)
			if !identPattern.MatchString(name) {
				return nil, parseErrorf(tok.Pos, "invalid loop variable %q", name)
			}
			st.vars = append(st.vars, name)
		}
		st.kind = StmtFor
		st.expr = m[2]
	case strings.HasPrefix(src, "if "):
		st.kind = StmtIf
		st.expr = condition(src, "if ")
	case strings.HasPrefix(src, "elif "):
		st.kind = StmtElif
		st.expr = condition(src, "elif ")
	default:
		return nil, parseErrorf(tok.Pos, "unknown statement %q", src)
	}

	if (st.kind == StmtIf || st.kind == StmtElif) && st.expr == "" {
		return nil, parseErrorf(tok.Pos, "%s statement without condition", st.kind)
	}
	return st, nil
}

func condition(src, keyword string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(src, keyword), ":"))
}

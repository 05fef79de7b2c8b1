package template

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText    TokenType = iota // Literal text (SQL)
	TokenExpr                     // Expression content (between {{ and }})
	TokenStmt                     // Statement content (between {* and *})
	TokenComment                  // Comment content (between {# and #})
	TokenEOF                      // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenExpr:
		return "EXPR"
	case TokenStmt:
		return "STMT"
	case TokenComment:
		return "COMMENT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lexer tokenizes a template string.
type Lexer struct {
	input    string
	file     string
	pos      int
	line     int
	col      int
	lastLine int
	lastCol  int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens. Statement and comment
// tags that stand alone on a line swallow that line, so block structure does
// not leave blank lines in generated scripts.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	return trimStandaloneTags(tokens), nil
}

func (l *Lexer) nextToken() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}, nil
	}

	switch {
	case l.matchString("{{"):
		return l.scanExpression()
	case l.matchString("{*"):
		return l.scanDelimited(TokenStmt, "*}", "unclosed statement: missing '*}'")
	case l.matchString("{#"):
		return l.scanDelimited(TokenComment, "#}", "unclosed comment: missing '#}'")
	}

	return l.scanText()
}

func (l *Lexer) atTagStart() bool {
	return l.matchString("{{") || l.matchString("{*") || l.matchString("{#")
}

func (l *Lexer) scanText() (Token, error) {
	l.markStart()
	start := l.pos

	for l.pos < len(l.input) && !l.atTagStart() {
		l.advance()
	}

	if l.pos == start {
		return Token{}, lexError(l.position(), "unexpected state in lexer")
	}

	return Token{
		Type:  TokenText,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

// scanExpression scans {{ expr }}, tolerating braces nested inside the
// expression (dict literals).
func (l *Lexer) scanExpression() (Token, error) {
	l.markStart()
	l.skip(2)
	l.skipWhitespace()

	exprStart := l.pos
	depth := 0

	for l.pos < len(l.input) {
		if depth == 0 && l.matchString("}}") {
			expr := strings.TrimSpace(l.input[exprStart:l.pos])
			l.skip(2)
			return Token{Type: TokenExpr, Value: expr, Pos: l.startPosition()}, nil
		}

		switch l.peek() {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
		l.advance()
	}

	return Token{}, lexError(l.startPosition(), "unclosed expression: missing '}}'")
}

func (l *Lexer) scanDelimited(typ TokenType, closing, unclosed string) (Token, error) {
	l.markStart()
	l.skip(2)
	l.skipWhitespace()

	start := l.pos
	for l.pos < len(l.input) {
		if l.matchString(closing) {
			value := strings.TrimSpace(l.input[start:l.pos])
			l.skip(len(closing))
			return Token{Type: typ, Value: value, Pos: l.startPosition()}, nil
		}
		l.advance()
	}

	return Token{}, lexError(l.startPosition(), unclosed)
}

// trimStandaloneTags removes the indentation and the line break around
// statement and comment tags that are the only content of their line.
func trimStandaloneTags(tokens []Token) []Token {
	lineStart := true

	for i := range tokens {
		tok := &tokens[i]
		switch tok.Type {
		case TokenText:
			lineStart = endsAtLineStart(tok.Value, lineStart)
		case TokenExpr:
			lineStart = false
		case TokenStmt, TokenComment:
			if !lineStart {
				continue
			}
			next := &tokens[i+1]
			rest, ok := consumeLineEnd(next)
			if !ok {
				lineStart = false
				continue
			}
			if i > 0 && tokens[i-1].Type == TokenText {
				prev := &tokens[i-1]
				prev.Value = prev.Value[:len(prev.Value)-len(trailingBlanks(prev.Value))]
			}
			if next.Type == TokenText {
				next.Value = rest
			}
		}
	}

	out := tokens[:0]
	for _, tok := range tokens {
		if tok.Type == TokenText && tok.Value == "" {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// endsAtLineStart reports whether only blanks follow the last line break of
// text, or text is all blanks and started at a line start.
func endsAtLineStart(text string, startedAtLineStart bool) bool {
	idx := strings.LastIndexByte(text, '\n')
	if idx < 0 {
		return startedAtLineStart && isBlank(text)
	}
	return isBlank(text[idx+1:])
}

// consumeLineEnd returns the remainder of next once the blanks and the
// newline ending the tag's line are removed.
func consumeLineEnd(next *Token) (string, bool) {
	switch next.Type {
	case TokenEOF:
		return "", true
	case TokenText:
		idx := strings.IndexByte(next.Value, '\n')
		if idx < 0 {
			return "", false
		}
		if !isBlank(strings.TrimSuffix(next.Value[:idx], "\r")) {
			return "", false
		}
		return next.Value[idx+1:], true
	default:
		return "", false
	}
}

func trailingBlanks(s string) string {
	i := len(s)
	for i > 0 && (s[i-1] == ' ' || s[i-1] == '\t') {
		i--
	}
	return s[i:]
}

func isBlank(s string) bool {
	return strings.Trim(s, " \t") == ""
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// skip advances over n bytes known not to contain a newline.
func (l *Lexer) skip(n int) {
	l.pos += n
	l.col += n
}

func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r := l.peek()
		if r != ' ' && r != '\t' {
			break
		}
		l.advance()
	}
}

func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

func (l *Lexer) startPosition() Position {
	return Position{File: l.file, Line: l.lastLine, Column: l.lastCol}
}

package template

import "fmt"

// Error is the common shape of lexing, parsing and rendering failures. The
// position names the DDL template file and the line in it that failed.
type Error interface {
	error
	Position() Position
}

// String formats p as file:line:col, dropping the file for inline sources.
func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// LexError means a tag delimiter was opened and never closed.
type LexError struct {
	Pos Position
	Msg string
}

func lexError(pos Position, msg string) *LexError {
	return &LexError{Pos: pos, Msg: msg}
}

func (e *LexError) Error() string      { return e.Pos.String() + ": " + e.Msg }
func (e *LexError) Position() Position { return e.Pos }

// ParseError rejects a statement or expression tag, such as a for loop
// without "in" or an empty {{ }}.
type ParseError struct {
	Pos Position
	Msg string
}

func parseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *ParseError) Error() string      { return e.Pos.String() + ": " + e.Msg }
func (e *ParseError) Position() Position { return e.Pos }

// UnmatchedBlockError is a for or if block left open at end of file, or a
// closing tag with nothing to close. Stmt is the offending statement.
type UnmatchedBlockError struct {
	Pos  Position
	Stmt StmtKind
}

func unmatchedBlock(pos Position, stmt StmtKind) *UnmatchedBlockError {
	return &UnmatchedBlockError{Pos: pos, Stmt: stmt}
}

func (e *UnmatchedBlockError) Error() string {
	var msg string
	switch e.Stmt {
	case StmtFor, StmtIf:
		closer := StmtEndFor
		if e.Stmt == StmtIf {
			closer = StmtEndIf
		}
		msg = fmt.Sprintf("%s block is never closed with {* %s *}", e.Stmt, closer)
	case StmtEndFor:
		msg = "{* endfor *} outside a for block"
	case StmtEndIf, StmtElse, StmtElif:
		msg = fmt.Sprintf("{* %s *} outside an if block", e.Stmt)
	default:
		msg = "unmatched " + e.Stmt.String()
	}
	return e.Pos.String() + ": " + msg
}

func (e *UnmatchedBlockError) Position() Position { return e.Pos }

// RenderError is a failure while filling a template with catalog values.
// Cause carries the Starlark error when an expression or macro call failed.
type RenderError struct {
	Pos   Position
	Msg   string
	Cause error
}

func renderError(pos Position, msg string, cause error) *RenderError {
	return &RenderError{Pos: pos, Msg: msg, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause == nil {
		return e.Pos.String() + ": " + e.Msg
	}
	return fmt.Sprintf("%s: %s: %v", e.Pos, e.Msg, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

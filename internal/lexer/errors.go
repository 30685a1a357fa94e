package lexer

import (
	"fmt"

	"github.com/trailql/tql/internal/ast"
)

// Error is a LexerError: fatal for the current parse, always
// carrying the offending span.
type Error struct {
	Message string
	Span    ast.Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Span.Start, e.Span.End, e.Message)
}

func newError(pos int, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Span: ast.Span{Start: pos, End: pos + 1}}
}

package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/lexer"
)

// Error is a ParseError: fatal for the current parse, optionally
// naming what the parser expected.
type Error struct {
	Message  string
	Span     ast.Span
	Expected []string
}

func (e *Error) Error() string {
	if len(e.Expected) == 0 {
		return fmt.Sprintf("parse error at %d:%d: %s", e.Span.Start, e.Span.End, e.Message)
	}
	return fmt.Sprintf("parse error at %d:%d: %s (expected %s)", e.Span.Start, e.Span.End, e.Message, strings.Join(e.Expected, ", "))
}

func errAt(tok lexer.Token, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Span: tok.Span}
}

func errExpected(tok lexer.Token, expected ...string) *Error {
	msg := "unexpected token"
	if tok.Kind == lexer.KindEOF {
		msg = "unexpected end of input"
	} else {
		msg = fmt.Sprintf("unexpected %s %q", tok.Kind, tok.Text)
	}
	sort.Strings(expected)
	return &Error{Message: msg, Span: tok.Span, Expected: expected}
}

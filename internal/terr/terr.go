// Package terr holds the error kinds raised above the lexer/parser layer:
// ValidationError/ValidationErrors and RuntimeError. Validation errors
// aggregate via go.uber.org/multierr: each check appends its own plain
// error, and the fan-out happens across many checks within one query
// rather than stopping at the first failure.
package terr

import (
	"fmt"

	pcerrors "github.com/pingcap/errors"
	"go.uber.org/multierr"

	"github.com/trailql/tql/internal/ast"
)

// Code is the closed set of validation error codes.
type Code string

const (
	UnknownRelation      Code = "UNKNOWN_RELATION"
	UnknownGroup         Code = "UNKNOWN_GROUP"
	UnknownFunction      Code = "UNKNOWN_FUNCTION"
	InvalidArity         Code = "INVALID_ARITY"
	AmbiguousIdentifier  Code = "AMBIGUOUS_IDENTIFIER"
	UnknownIdentifier    Code = "UNKNOWN_IDENTIFIER"
	TypeMismatch         Code = "TYPE_MISMATCH"
	CircularReference    Code = "CIRCULAR_REFERENCE"
	InvalidRangeType     Code = "INVALID_RANGE_TYPE"
)

// ValidationError is one accumulated finding from the validator.
type ValidationError struct {
	Message string
	Span    ast.Span
	Code    Code
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s] at %d:%d: %s", e.Code, e.Span.Start, e.Span.End, e.Message)
}

// NewValidationErrors combines the accumulated per-check errors into a
// single error the validator returns, or nil if errs is empty.
func NewValidationErrors(errs []*ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	combined := error(nil)
	for _, e := range errs {
		combined = multierr.Append(combined, e)
	}
	return combined
}

// Errors unwraps a combined ValidationErrors error back into its
// individual *ValidationError values, for callers that want structured
// access rather than the formatted multierr string.
func Errors(err error) []*ValidationError {
	var out []*ValidationError
	for _, e := range multierr.Errors(err) {
		if ve, ok := e.(*ValidationError); ok {
			out = append(out, ve)
		}
	}
	return out
}

// RuntimeError is fatal for the current execution. It carries a
// pingcap/errors stack trace: traversal recursion can be many frames deep
// by the time something fails, and a stack is the only way to tell which
// frame did it. Unlike lexer/parser errors, a single span is not enough.
type RuntimeError struct {
	cause error
	Span  ast.Span
}

func NewRuntimeError(span ast.Span, format string, args ...any) *RuntimeError {
	return &RuntimeError{cause: pcerrors.Errorf(format, args...), Span: span}
}

func WrapRuntimeError(span ast.Span, err error) *RuntimeError {
	return &RuntimeError{cause: pcerrors.AddStack(err), Span: span}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at %d:%d: %s", e.Span.Start, e.Span.End, e.cause.Error())
}

func (e *RuntimeError) Unwrap() error { return e.cause }

// StackTrace exposes the pingcap/errors-captured frames for diagnostic
// tooling that wants more than Error()'s one-line message.
func (e *RuntimeError) StackTrace() string {
	return fmt.Sprintf("%+v", e.cause)
}

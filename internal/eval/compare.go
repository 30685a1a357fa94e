package eval

import (
	"strings"
	"time"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/terr"
)

func (ev *Evaluator) evalCompare(n *ast.CompareExpr, c *Context) (ast.Value, error) {
	left, err := ev.Eval(n.Left, c)
	if err != nil {
		return ast.Null, err
	}
	right, err := ev.Eval(n.Right, c)
	if err != nil {
		return ast.Null, err
	}
	switch n.Op {
	case ast.CmpEq:
		if left.IsNull() || right.IsNull() {
			return ast.Bool(left.IsNull() && right.IsNull()), nil
		}
		return ast.Bool(ev.equal(left, right)), nil
	case ast.CmpNeq:
		if left.IsNull() || right.IsNull() {
			return ast.Bool(!(left.IsNull() && right.IsNull())), nil
		}
		return ast.Bool(!ev.equal(left, right)), nil
	case ast.CmpNullSafeEq:
		if left.IsNull() {
			return ast.Bool(false), nil
		}
		return ast.Bool(!right.IsNull() && ev.equal(left, right)), nil
	case ast.CmpNullSafeNeq:
		if left.IsNull() {
			return ast.Bool(true), nil
		}
		return ast.Bool(right.IsNull() || !ev.equal(left, right)), nil
	case ast.CmpLt, ast.CmpGt, ast.CmpLte, ast.CmpGte:
		if left.IsNull() || right.IsNull() {
			return ast.Null, nil
		}
		cmp := ev.compare(left, right)
		switch n.Op {
		case ast.CmpLt:
			return ast.Bool(cmp < 0), nil
		case ast.CmpGt:
			return ast.Bool(cmp > 0), nil
		case ast.CmpLte:
			return ast.Bool(cmp <= 0), nil
		default:
			return ast.Bool(cmp >= 0), nil
		}
	default:
		return ast.Null, terr.NewRuntimeError(n.Pos(), "unknown comparison operator")
	}
}

// equal implements null-aware structural equality: dates compare by
// instant, lists compare elementwise and in order, everything else
// requires matching kinds.
func (ev *Evaluator) equal(a, b ast.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.Kind == ast.KindDate && b.Kind == ast.KindDate {
		return a.Date.Equal(b.Date)
	}
	if a.Kind == ast.KindList && b.Kind == ast.KindList {
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !ev.equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ast.KindBool:
		return a.Bool == b.Bool
	case ast.KindNumber:
		return a.Num == b.Num
	case ast.KindString:
		return a.Str == b.Str
	default:
		return false
	}
}

// Compare exposes the ordering used by <, >, sort, and range membership
// to packages above eval (internal/sortkey, internal/aggregate) that need
// the same locale-aware rules outside of evaluating a CompareExpr node.
func (ev *Evaluator) Compare(a, b ast.Value) int { return ev.compare(a, b) }

// Equal exposes the null-aware structural equality used by = and !=.
func (ev *Evaluator) Equal(a, b ast.Value) bool { return ev.equal(a, b) }

// compare orders two non-null values: numeric for numbers, locale-aware
// for strings, by instant for dates, and string-representation fallback
// for any mismatched-kind pair.
func (ev *Evaluator) compare(a, b ast.Value) int {
	if a.Kind == ast.KindNumber && b.Kind == ast.KindNumber {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	}
	if a.Kind == ast.KindDate && b.Kind == ast.KindDate {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case a.Date.After(b.Date):
			return 1
		default:
			return 0
		}
	}
	if a.Kind == ast.KindString && b.Kind == ast.KindString {
		if ev.Collator != nil {
			return ev.Collator.CompareString(a.Str, b.Str)
		}
		return strings.Compare(a.Str, b.Str)
	}
	return strings.Compare(a.String(), b.String())
}

func (ev *Evaluator) evalArith(n *ast.ArithExpr, c *Context) (ast.Value, error) {
	left, err := ev.Eval(n.Left, c)
	if err != nil {
		return ast.Null, err
	}
	right, err := ev.Eval(n.Right, c)
	if err != nil {
		return ast.Null, err
	}
	if left.IsNull() || right.IsNull() {
		return ast.Null, nil
	}
	switch {
	case left.Kind == ast.KindNumber && right.Kind == ast.KindNumber:
		if n.Op == ast.ArithAdd {
			return ast.Number(left.Num + right.Num), nil
		}
		return ast.Number(left.Num - right.Num), nil
	case left.Kind == ast.KindDate && right.Kind == ast.KindNumber:
		delta := msToDuration(right.Num)
		if n.Op == ast.ArithSub {
			delta = -delta
		}
		return ast.Date(left.Date.Add(delta)), nil
	case left.Kind == ast.KindNumber && right.Kind == ast.KindDate && n.Op == ast.ArithAdd:
		return ast.Date(right.Date.Add(msToDuration(left.Num))), nil
	case n.Op == ast.ArithAdd && (left.Kind == ast.KindString || right.Kind == ast.KindString):
		return ast.String(left.String() + right.String()), nil
	default:
		return ast.Null, terr.NewRuntimeError(n.Pos(), "cannot apply arithmetic to %s and %s", kindName(left), kindName(right))
	}
}

func (ev *Evaluator) evalMembership(n *ast.MembershipExpr, c *Context) (ast.Value, error) {
	subject, err := ev.Eval(n.Subject, c)
	if err != nil {
		return ast.Null, err
	}
	if n.Range {
		low, err := ev.Eval(n.Low, c)
		if err != nil {
			return ast.Null, err
		}
		high, err := ev.Eval(n.High, c)
		if err != nil {
			return ast.Null, err
		}
		if subject.IsNull() || low.IsNull() || high.IsNull() {
			return ast.Null, nil
		}
		return ast.Bool(ev.compare(subject, low) >= 0 && ev.compare(subject, high) <= 0), nil
	}
	collection, err := ev.Eval(n.Collection, c)
	if err != nil {
		return ast.Null, err
	}
	if collection.IsNull() {
		return ast.Bool(false), nil
	}
	if collection.Kind == ast.KindString && subject.Kind == ast.KindString {
		return ast.Bool(strings.Contains(collection.Str, subject.Str)), nil
	}
	if collection.Kind != ast.KindList {
		return ast.Null, terr.NewRuntimeError(n.Pos(), "right-hand side of 'in' must be a list, string, or range")
	}
	for _, item := range collection.List {
		if ev.equal(subject, item) {
			return ast.Bool(true), nil
		}
	}
	return ast.Bool(false), nil
}

func msToDuration(ms float64) time.Duration { return time.Duration(ms * float64(time.Millisecond)) }

func kindName(v ast.Value) string {
	switch v.Kind {
	case ast.KindNull:
		return "null"
	case ast.KindBool:
		return "boolean"
	case ast.KindNumber:
		return "number"
	case ast.KindString:
		return "string"
	case ast.KindDate:
		return "date"
	case ast.KindList:
		return "list"
	default:
		return "unknown"
	}
}

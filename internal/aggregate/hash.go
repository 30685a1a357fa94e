package aggregate

import (
	"fmt"
	"strings"

	"github.com/trailql/tql/internal/ast"
)

// signature renders an expression tree into a deterministic string so two
// structurally identical condition expressions (built by separate parses,
// hence separate pointers) collapse to the same cache key. Spans are
// deliberately excluded: two conditions differing only in source
// position are still the same condition.
func signature(e ast.Expr) string {
	if e == nil {
		return "-"
	}
	switch n := e.(type) {
	case *ast.LiteralExpr:
		return "lit(" + n.Value.String() + ")"
	case *ast.DurationLit:
		return fmt.Sprintf("dur(%g%c)", n.Amount, n.Unit)
	case *ast.PropertyExpr:
		return "prop(" + n.Path.String() + ")"
	case *ast.RelativeDateExpr:
		return fmt.Sprintf("reldate(%d)", n.Which)
	case *ast.LogicalExpr:
		return fmt.Sprintf("logical(%d,%s,%s)", n.Op, signature(n.Left), signature(n.Right))
	case *ast.UnaryExpr:
		return "not(" + signature(n.X) + ")"
	case *ast.CompareExpr:
		return fmt.Sprintf("cmp(%d,%s,%s)", n.Op, signature(n.Left), signature(n.Right))
	case *ast.ArithExpr:
		return fmt.Sprintf("arith(%d,%s,%s)", n.Op, signature(n.Left), signature(n.Right))
	case *ast.MembershipExpr:
		if n.Range {
			return fmt.Sprintf("range(%s,%s,%s)", signature(n.Subject), signature(n.Low), signature(n.High))
		}
		return fmt.Sprintf("in(%s,%s)", signature(n.Subject), signature(n.Collection))
	case *ast.CallExpr:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = signature(a)
		}
		return "call(" + n.Name + "," + strings.Join(args, ",") + ")"
	case *ast.AggregateExpr:
		return fmt.Sprintf("agg(%d,%d,%s,%s,%s)", n.Func, n.Source.Kind, n.Source.Name, n.Property.String(), signature(n.Condition))
	default:
		return fmt.Sprintf("%T", e)
	}
}

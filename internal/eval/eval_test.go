package eval_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/eval"
	"github.com/trailql/tql/internal/graph"
	"github.com/trailql/tql/internal/memgraph"
)

func newEvaluator(t *testing.T) (*eval.Evaluator, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)) // a Friday
	return &eval.Evaluator{Clock: mock, Collator: collate.New(language.Und)}, mock
}

func prop(path ...string) *ast.PropertyExpr {
	return &ast.PropertyExpr{Path: ast.PropertyPath(path)}
}

func lit(v ast.Value) *ast.LiteralExpr { return &ast.LiteralExpr{Value: v} }

func TestEvalArithmeticNullPropagation(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	expr := &ast.ArithExpr{Op: ast.ArithAdd, Left: lit(ast.Null), Right: lit(ast.Number(3))}
	v, err := ev.Eval(expr, ctx)
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestEvalArithmeticDatePlusDuration(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expr := &ast.ArithExpr{
		Op:    ast.ArithAdd,
		Left:  lit(ast.Date(base)),
		Right: &ast.DurationLit{Amount: 3, Unit: 'd'},
	}
	v, err := ev.Eval(expr, ctx)
	require.NoError(t, err)
	require.Equal(t, ast.KindDate, v.Kind)
	require.Equal(t, base.AddDate(0, 0, 3), v.Date)
}

func TestEvalStringConcat(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	expr := &ast.ArithExpr{Op: ast.ArithAdd, Left: lit(ast.String("foo-")), Right: lit(ast.Number(7))}
	v, err := ev.Eval(expr, ctx)
	require.NoError(t, err)
	require.Equal(t, "foo-7", v.Str)
}

func TestEvalComparisonNullYieldsNull(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	expr := &ast.CompareExpr{Op: ast.CmpLt, Left: lit(ast.Null), Right: lit(ast.Number(1))}
	v, err := ev.Eval(expr, ctx)
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestEvalEqualityNullSafe(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	expr := &ast.CompareExpr{Op: ast.CmpNullSafeEq, Left: lit(ast.Null), Right: lit(ast.Null)}
	v, err := ev.Eval(expr, ctx)
	require.NoError(t, err)
	require.Equal(t, ast.Bool(false), v)
}

func TestEvalMembershipRange(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	expr := &ast.MembershipExpr{
		Subject: lit(ast.Number(5)),
		Range:   true,
		Low:     lit(ast.Number(1)),
		High:    lit(ast.Number(10)),
	}
	v, err := ev.Eval(expr, ctx)
	require.NoError(t, err)
	require.Equal(t, ast.Bool(true), v)
}

func TestEvalPropertyFlatFallback(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	props := map[string]ast.Value{"metadata.author": ast.String("ada")}
	ctx := ev.NewContext(g, "a.md", props, graph.TraversalContext{})

	v, err := ev.Eval(prop("metadata", "author"), ctx)
	require.NoError(t, err)
	require.Equal(t, ast.String("ada"), v)
}

func TestEvalFileProperty(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	g.SetMetadata("a.md", graph.FileMetadata{Name: "a.md", Folder: "notes", Tags: []string{"x"}})
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	v, err := ev.Eval(prop("file", "folder"), ctx)
	require.NoError(t, err)
	require.Equal(t, ast.String("notes"), v)
}

func TestEvalRelativeDateUsesClock(t *testing.T) {
	ev, mock := newEvaluator(t)
	g := memgraph.New()
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	v, err := ev.Eval(&ast.RelativeDateExpr{Which: ast.RelToday}, ctx)
	require.NoError(t, err)
	require.Equal(t, mock.Now().Year(), v.Date.Year())
	require.Equal(t, mock.Now().Day(), v.Date.Day())
}

func TestEvalCallBuiltin(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	expr := &ast.CallExpr{Name: "upper", Args: []ast.Expr{lit(ast.String("hi"))}}
	v, err := ev.Eval(expr, ctx)
	require.NoError(t, err)
	require.Equal(t, ast.String("HI"), v)
}

func TestEvalUnknownFunctionErrors(t *testing.T) {
	ev, _ := newEvaluator(t)
	g := memgraph.New()
	ctx := ev.NewContext(g, "a.md", map[string]ast.Value{}, graph.TraversalContext{})

	_, err := ev.Eval(&ast.CallExpr{Name: "doesNotExist"}, ctx)
	require.Error(t, err)
}

package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/parser"
)

func TestParseMinimalQuery(t *testing.T) {
	q, err := parser.Parse(`group "all links" from links`)
	require.NoError(t, err)
	require.Equal(t, "all links", q.Group)
	require.Len(t, q.From, 1)
	require.Equal(t, "links", q.From[0].Name)
	require.Equal(t, 1, q.From[0].Depth)
}

func TestParseRelSpecModifiers(t *testing.T) {
	q, err := parser.Parse(`group "g" from links depth unlimited flatten`)
	require.NoError(t, err)
	require.Equal(t, ast.Unlimited, q.From[0].Depth)
	require.True(t, q.From[0].Flatten)
}

func TestParseRelSpecExtend(t *testing.T) {
	q, err := parser.Parse(`group "g" from links depth 2 extend "Projects"`)
	require.NoError(t, err)
	require.NotNil(t, q.From[0].Extend)
	require.Equal(t, "Projects", *q.From[0].Extend)
}

func TestParseWhereComparisonAndLogical(t *testing.T) {
	q, err := parser.Parse(`group "g" from links where priority > 2 and done = false`)
	require.NoError(t, err)
	logical, ok := q.Where.(*ast.LogicalExpr)
	require.True(t, ok)
	require.Equal(t, ast.LogicalAnd, logical.Op)
	cmp, ok := logical.Left.(*ast.CompareExpr)
	require.True(t, ok)
	require.Equal(t, ast.CmpGt, cmp.Op)
}

func TestParseMembershipRange(t *testing.T) {
	q, err := parser.Parse(`group "g" from links where priority in 1..5`)
	require.NoError(t, err)
	m, ok := q.Where.(*ast.MembershipExpr)
	require.True(t, ok)
	require.True(t, m.Range)
}

func TestParseNotOperator(t *testing.T) {
	q, err := parser.Parse(`group "g" from links where not done`)
	require.NoError(t, err)
	_, ok := q.Where.(*ast.UnaryExpr)
	require.True(t, ok)
}

func TestParseDurationArithmeticOnDate(t *testing.T) {
	q, err := parser.Parse(`group "g" from links where created > today - 7d`)
	require.NoError(t, err)
	cmp, ok := q.Where.(*ast.CompareExpr)
	require.True(t, ok)
	arith, ok := cmp.Right.(*ast.ArithExpr)
	require.True(t, ok)
	require.Equal(t, ast.ArithSub, arith.Op)
	_, ok = arith.Left.(*ast.RelativeDateExpr)
	require.True(t, ok)
	dur, ok := arith.Right.(*ast.DurationLit)
	require.True(t, ok)
	require.Equal(t, byte('d'), dur.Unit)
}

func TestParseCallExpression(t *testing.T) {
	q, err := parser.Parse(`group "g" from links where contains(title, "todo")`)
	require.NoError(t, err)
	call, ok := q.Where.(*ast.CallExpr)
	require.True(t, ok)
	require.Equal(t, "contains", call.Name)
	require.Len(t, call.Args, 2)
}

func TestParseAggregateCountBareIdent(t *testing.T) {
	q, err := parser.Parse(`group "g" from links where count(links) > 0`)
	require.NoError(t, err)
	cmp, ok := q.Where.(*ast.CompareExpr)
	require.True(t, ok)
	agg, ok := cmp.Left.(*ast.AggregateExpr)
	require.True(t, ok)
	require.Equal(t, ast.AggCount, agg.Func)
	require.Equal(t, ast.AggSourceBareIdent, agg.Source.Kind)
}

func TestParseAggregateSumWithProperty(t *testing.T) {
	q, err := parser.Parse(`group "g" from links where sum(links, score) > 10`)
	require.NoError(t, err)
	cmp := q.Where.(*ast.CompareExpr)
	agg := cmp.Left.(*ast.AggregateExpr)
	require.Equal(t, ast.AggSum, agg.Func)
	require.Equal(t, ast.PropertyPath{"score"}, agg.Property)
}

func TestParseAggregateGroupSource(t *testing.T) {
	q, err := parser.Parse(`group "g" from links where count(group("Projects")) > 1`)
	require.NoError(t, err)
	cmp := q.Where.(*ast.CompareExpr)
	agg := cmp.Left.(*ast.AggregateExpr)
	require.Equal(t, ast.AggSourceGroup, agg.Source.Kind)
	require.Equal(t, "Projects", agg.Source.Name)
}

func TestParseSortByChainThenProperty(t *testing.T) {
	q, err := parser.Parse(`group "g" from links sort by chain, priority desc`)
	require.NoError(t, err)
	require.Len(t, q.Sort, 2)
	require.True(t, q.Sort[0].Chain)
	require.False(t, q.Sort[1].Chain)
	require.Equal(t, ast.Desc, q.Sort[1].Direction)
}

func TestParseDisplayAll(t *testing.T) {
	q, err := parser.Parse(`group "g" from links display all`)
	require.NoError(t, err)
	require.True(t, q.Display.All)
}

func TestParseDisplayPropertyList(t *testing.T) {
	q, err := parser.Parse(`group "g" from links display title, metadata.author`)
	require.NoError(t, err)
	require.Len(t, q.Display.Properties, 2)
	require.Equal(t, ast.PropertyPath{"metadata", "author"}, q.Display.Properties[1])
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	_, err := parser.Parse(`group "g" from links extra`)
	require.Error(t, err)
}

func TestParseRejectsMissingGroup(t *testing.T) {
	_, err := parser.Parse(`from links`)
	require.Error(t, err)
}

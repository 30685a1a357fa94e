package validator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/memgraph"
	"github.com/trailql/tql/internal/terr"
	"github.com/trailql/tql/internal/validator"
)

func TestValidateAcceptsKnownRelation(t *testing.T) {
	g := memgraph.New()
	g.AddEdge("root.md", "links", "a.md", false)

	q := &ast.Query{From: ast.FromClause{{Name: "links", Depth: 1}}}
	out, err := validator.Validate(q, g)
	require.NoError(t, err)
	require.Same(t, q, out)
}

func TestValidateRejectsUnknownRelation(t *testing.T) {
	g := memgraph.New()
	q := &ast.Query{From: ast.FromClause{{Name: "ghost", Depth: 1}}}
	_, err := validator.Validate(q, g)
	require.Error(t, err)
	errs := terr.Errors(err)
	require.Len(t, errs, 1)
	require.Equal(t, terr.UnknownRelation, errs[0].Code)
}

func TestValidateRejectsUnknownFunctionAndArity(t *testing.T) {
	g := memgraph.New()
	g.AddEdge("root.md", "links", "a.md", false)
	q := &ast.Query{
		From:  ast.FromClause{{Name: "links", Depth: 1}},
		Where: &ast.CallExpr{Name: "doesNotExist"},
	}
	_, err := validator.Validate(q, g)
	require.Error(t, err)
	errs := terr.Errors(err)
	require.Len(t, errs, 1)
	require.Equal(t, terr.UnknownFunction, errs[0].Code)

	q = &ast.Query{
		From:  ast.FromClause{{Name: "links", Depth: 1}},
		Where: &ast.CallExpr{Name: "upper"},
	}
	_, err = validator.Validate(q, g)
	require.Error(t, err)
	errs = terr.Errors(err)
	require.Len(t, errs, 1)
	require.Equal(t, terr.InvalidArity, errs[0].Code)
}

func TestValidateAggregateAmbiguousIdentifier(t *testing.T) {
	g := memgraph.New()
	g.AddEdge("root.md", "projects", "a.md", false)
	g.AddGroup("projects", &ast.Query{From: ast.FromClause{{Name: "projects", Depth: 1}}})

	q := &ast.Query{
		From: ast.FromClause{{Name: "projects", Depth: 1}},
		Where: &ast.CompareExpr{
			Op:   ast.CmpGt,
			Left: &ast.AggregateExpr{Func: ast.AggCount, Source: ast.AggSource{Kind: ast.AggSourceBareIdent, Name: "projects"}},
			Right: &ast.LiteralExpr{Value: ast.Number(0)},
		},
	}
	_, err := validator.Validate(q, g)
	require.Error(t, err)
	errs := terr.Errors(err)
	require.Len(t, errs, 1)
	require.Equal(t, terr.AmbiguousIdentifier, errs[0].Code)
}

func TestValidateAggregateRequiresPropertyForSum(t *testing.T) {
	g := memgraph.New()
	g.AddEdge("root.md", "links", "a.md", false)
	q := &ast.Query{
		From: ast.FromClause{{Name: "links", Depth: 1}},
		Where: &ast.CompareExpr{
			Op:   ast.CmpGt,
			Left: &ast.AggregateExpr{Func: ast.AggSum, Source: ast.AggSource{Kind: ast.AggSourceBareIdent, Name: "links"}},
			Right: &ast.LiteralExpr{Value: ast.Number(0)},
		},
	}
	_, err := validator.Validate(q, g)
	require.Error(t, err)
	errs := terr.Errors(err)
	require.Equal(t, terr.InvalidArity, errs[0].Code)
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	g := memgraph.New()
	q := &ast.Query{
		From:  ast.FromClause{{Name: "ghost", Depth: 1}},
		Where: &ast.CallExpr{Name: "nope"},
	}
	_, err := validator.Validate(q, g)
	require.Error(t, err)
	require.Len(t, terr.Errors(err), 2)
}

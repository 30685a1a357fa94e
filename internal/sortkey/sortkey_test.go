package sortkey_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/eval"
	"github.com/trailql/tql/internal/memgraph"
	"github.com/trailql/tql/internal/sortkey"
	"github.com/trailql/tql/internal/traversal"
)

func newEval() *eval.Evaluator {
	return &eval.Evaluator{Collator: collate.New(language.Und)}
}

func node(path string, props map[string]ast.Value) *traversal.ResultNode {
	return &traversal.ResultNode{Path: path, Properties: props}
}

func TestSortByNumericPropertyAscending(t *testing.T) {
	g := memgraph.New()
	ev := newEval()
	nodes := []*traversal.ResultNode{
		node("c.md", map[string]ast.Value{"priority": ast.Number(3)}),
		node("a.md", map[string]ast.Value{"priority": ast.Number(1)}),
		node("b.md", map[string]ast.Value{"priority": ast.Number(2)}),
	}
	keys := []ast.SortKey{{Property: ast.PropertyPath{"priority"}, Direction: ast.Asc}}

	sortkey.Sort(nodes, keys, g, ev)

	require.Equal(t, []string{"a.md", "b.md", "c.md"}, pathsOf(nodes))
}

func TestSortNullsLastRegardlessOfDirection(t *testing.T) {
	g := memgraph.New()
	ev := newEval()
	nodes := []*traversal.ResultNode{
		node("a.md", map[string]ast.Value{"priority": ast.Null}),
		node("b.md", map[string]ast.Value{"priority": ast.Number(5)}),
	}
	keys := []ast.SortKey{{Property: ast.PropertyPath{"priority"}, Direction: ast.Desc}}

	sortkey.Sort(nodes, keys, g, ev)

	require.Equal(t, []string{"b.md", "a.md"}, pathsOf(nodes))
}

func TestSortTiebreaksOnBasename(t *testing.T) {
	g := memgraph.New()
	ev := newEval()
	nodes := []*traversal.ResultNode{
		node("z/b.md", map[string]ast.Value{"priority": ast.Number(1)}),
		node("z/a.md", map[string]ast.Value{"priority": ast.Number(1)}),
	}
	keys := []ast.SortKey{{Property: ast.PropertyPath{"priority"}, Direction: ast.Asc}}

	sortkey.Sort(nodes, keys, g, ev)

	require.Equal(t, []string{"z/a.md", "z/b.md"}, pathsOf(nodes))
}

func TestSortChainFollowsSequentialRelation(t *testing.T) {
	g := memgraph.New()
	g.SetSequential("next", true)
	g.AddEdge("day2.md", "next", "day3.md", false)
	g.AddEdge("day1.md", "next", "day2.md", false)
	ev := newEval()

	nodes := []*traversal.ResultNode{
		node("day3.md", nil),
		node("day1.md", nil),
		node("day2.md", nil),
	}
	keys := []ast.SortKey{{Chain: true}}

	sortkey.Sort(nodes, keys, g, ev)

	require.Equal(t, []string{"day1.md", "day2.md", "day3.md"}, pathsOf(nodes))
}

func TestSortSecondaryChainGroupsBeforeLinearizing(t *testing.T) {
	g := memgraph.New()
	g.SetSequential("next", true)
	g.AddEdge("a1.md", "next", "a2.md", false)
	g.AddEdge("b1.md", "next", "b2.md", false)
	ev := newEval()

	nodes := []*traversal.ResultNode{
		node("b2.md", map[string]ast.Value{"project": ast.String("B")}),
		node("a2.md", map[string]ast.Value{"project": ast.String("A")}),
		node("b1.md", map[string]ast.Value{"project": ast.String("B")}),
		node("a1.md", map[string]ast.Value{"project": ast.String("A")}),
	}
	keys := []ast.SortKey{
		{Property: ast.PropertyPath{"project"}, Direction: ast.Asc},
		{Chain: true},
	}

	sortkey.Sort(nodes, keys, g, ev)

	require.Equal(t, []string{"a1.md", "a2.md", "b1.md", "b2.md"}, pathsOf(nodes))
}

func pathsOf(nodes []*traversal.ResultNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Path
	}
	return out
}

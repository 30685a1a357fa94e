// Package memgraph is an in-memory graph.Provider/graph.ValidationCatalog
// used by the test suites of internal/eval, internal/traversal,
// internal/aggregate, internal/sortkey, and the top-level tql package.
// None of them has a real host app to query, so each builds one of these
// in place of a mock generated per package.
package memgraph

import (
	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/graph"
)

type node struct {
	properties map[string]ast.Value
	metadata   graph.FileMetadata
	hasMeta    bool
}

// Graph is a small mutable graph built up with AddNode/AddEdge, useful in
// tests that need a concrete graph.Provider without a real host app.
type Graph struct {
	active      string
	nodes       map[string]*node
	edges       []graph.Edge
	relations   map[string]graph.VisualDirection
	sequential  map[string]bool
	groups      map[string]*ast.Query
}

func New() *Graph {
	return &Graph{
		nodes:      make(map[string]*node),
		relations:  make(map[string]graph.VisualDirection),
		sequential: make(map[string]bool),
		groups:     make(map[string]*ast.Query),
	}
}

func (g *Graph) SetActive(path string) { g.active = path }

func (g *Graph) AddNode(path string, properties map[string]ast.Value) {
	g.nodes[path] = &node{properties: properties}
}

func (g *Graph) SetMetadata(path string, meta graph.FileMetadata) {
	n, ok := g.nodes[path]
	if !ok {
		n = &node{properties: map[string]ast.Value{}}
		g.nodes[path] = n
	}
	n.metadata = meta
	n.hasMeta = true
}

func (g *Graph) AddEdge(from, relation, to string, implied bool) {
	g.edges = append(g.edges, graph.Edge{FromPath: from, ToPath: to, Relation: relation, Implied: implied})
	if _, ok := g.relations[relation]; !ok {
		g.relations[relation] = graph.Ascending
	}
}

func (g *Graph) SetVisualDirection(relation string, dir graph.VisualDirection) {
	g.relations[relation] = dir
}

func (g *Graph) SetSequential(relation string, sequential bool) {
	g.sequential[relation] = sequential
	if _, ok := g.relations[relation]; !ok {
		g.relations[relation] = graph.Sequential
	}
}

func (g *Graph) AddGroup(name string, q *ast.Query) { g.groups[name] = q }

// ---- graph.Provider ----

func (g *Graph) ActiveFilePath() string { return g.active }

func (g *Graph) ActiveFileProperties() map[string]ast.Value {
	return g.GetProperties(g.active)
}

func (g *Graph) GetOutgoingEdges(path, relation string) []graph.Edge {
	var out []graph.Edge
	for _, e := range g.edges {
		if e.FromPath != path {
			continue
		}
		if relation != "" && e.Relation != relation {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (g *Graph) GetIncomingEdges(path, relation string) []graph.Edge {
	var out []graph.Edge
	for _, e := range g.edges {
		if e.ToPath != path {
			continue
		}
		if relation != "" && e.Relation != relation {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (g *Graph) GetProperties(path string) map[string]ast.Value {
	n, ok := g.nodes[path]
	if !ok {
		return map[string]ast.Value{}
	}
	return n.properties
}

func (g *Graph) GetFileMetadata(path string) (graph.FileMetadata, bool) {
	n, ok := g.nodes[path]
	if !ok || !n.hasMeta {
		return graph.FileMetadata{}, false
	}
	return n.metadata, true
}

func (g *Graph) GetRelationNames() []string {
	out := make([]string, 0, len(g.relations))
	for r := range g.relations {
		out = append(out, r)
	}
	return out
}

func (g *Graph) GetVisualDirection(relation string) graph.VisualDirection {
	return g.relations[relation]
}

func (g *Graph) GetSequentialRelations() map[string]bool { return g.sequential }

func (g *Graph) ResolveGroupQuery(name string) (*ast.Query, bool) {
	q, ok := g.groups[name]
	return q, ok
}

// ---- graph.ValidationCatalog ----

func (g *Graph) HasRelation(name string) bool {
	_, ok := g.relations[name]
	return ok
}

func (g *Graph) HasGroup(name string) bool {
	_, ok := g.groups[name]
	return ok
}

func (g *Graph) GetGroupNames() []string {
	out := make([]string, 0, len(g.groups))
	for name := range g.groups {
		out = append(out, name)
	}
	return out
}

// Package traversal implements walking the host graph outward from an
// active node along each "from" relation spec, in either tree mode
// (depth-limited DFS, ancestor-set cycle avoidance, leaf "extend" into
// another group) or flatten mode (breadth-first with a whole-subtree
// visited set, "extend" ignored with a warning since flatten discards the
// hierarchy extend would otherwise continue from).
//
// Engine also implements aggregate.Runner, so internal/aggregate can run
// an ad hoc subquery without importing this package back. The reverse
// import (traversal depending on aggregate for its Node/Runner types)
// is safe precisely because aggregate never imports traversal.
package traversal

import (
	"fmt"

	"github.com/trailql/tql/internal/aggregate"
	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/eval"
	"github.com/trailql/tql/internal/graph"
)

// Logger receives non-fatal diagnostics such as "extend ignored in
// flatten mode". Nil is not a valid value; use NoopLogger.
type Logger interface {
	Warnf(format string, args ...any)
}

type NoopLogger struct{}

func (NoopLogger) Warnf(string, ...any) {}

// ResultNode is one matched-or-connecting node in a traversal's result
// tree. Matched is false for a structural connector kept only because a
// descendant matched "where" (gap promotion) while the node itself did
// not.
type ResultNode struct {
	Path       string
	Properties map[string]ast.Value
	Relation   string
	IsImplied  bool
	Depth      int
	Matched    bool
	Children   []*ResultNode
}

type Engine struct {
	Provider graph.Provider
	Eval     *eval.Evaluator
	Log      Logger

	warnings []string
}

func New(provider graph.Provider, ev *eval.Evaluator) *Engine {
	return &Engine{Provider: provider, Eval: ev, Log: NoopLogger{}}
}

// BeginExecution resets the diagnostics accumulated by the previous
// top-level Run, so warnings stay local to one execution and never leak
// into the next one's QueryResult.
func (en *Engine) BeginExecution() {
	en.warnings = nil
}

// Warnings returns the non-fatal diagnostics raised since the last
// BeginExecution.
func (en *Engine) Warnings() []string {
	return en.warnings
}

func (en *Engine) warnf(format string, args ...any) {
	en.Log.Warnf(format, args...)
	en.warnings = append(en.warnings, fmt.Sprintf(format, args...))
}

// Run executes every relation spec in q.From starting from activePath and
// returns their result forests concatenated.
func (en *Engine) Run(q *ast.Query, activePath string) ([]*ResultNode, error) {
	return en.runFrom(q, activePath, map[string]bool{activePath: true})
}

func (en *Engine) runFrom(q *ast.Query, activePath string, ancestors map[string]bool) ([]*ResultNode, error) {
	var out []*ResultNode
	for _, spec := range q.From {
		var (
			nodes []*ResultNode
			err   error
		)
		if spec.Flatten {
			nodes, err = en.flattenWalk(spec, activePath, q)
		} else {
			nodes, err = en.treeWalk(spec, activePath, q, ancestors, 0)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

// RunQuery implements aggregate.Runner: run q and flatten its result tree
// down to the nodes that actually matched "where", discarding gap
// connectors and hierarchy.
func (en *Engine) RunQuery(q *ast.Query, activePath string) ([]aggregate.Node, error) {
	forest, err := en.Run(q, activePath)
	if err != nil {
		return nil, err
	}
	var out []aggregate.Node
	var walk func([]*ResultNode)
	walk = func(nodes []*ResultNode) {
		for _, n := range nodes {
			if n.Matched {
				out = append(out, aggregate.Node{
					Path:       n.Path,
					Properties: n.Properties,
					Traversal: graph.TraversalContext{
						Depth: n.Depth, Relation: n.Relation, IsImplied: n.IsImplied, Path: n.Path,
					},
				})
			}
			walk(n.Children)
		}
	}
	walk(forest)
	return out, nil
}

func (en *Engine) treeWalk(spec ast.RelationSpec, parentPath string, q *ast.Query, ancestors map[string]bool, depth int) ([]*ResultNode, error) {
	edges := en.Provider.GetOutgoingEdges(parentPath, spec.Name)
	var result []*ResultNode
	for _, edge := range edges {
		if ancestors[edge.ToPath] {
			continue
		}
		childDepth := depth + 1
		props := en.Provider.GetProperties(edge.ToPath)
		tc := graph.TraversalContext{Depth: childDepth, Relation: edge.Relation, IsImplied: edge.Implied, Parent: parentPath, Path: edge.ToPath}
		ctx := en.Eval.NewContext(en.Provider, edge.ToPath, props, tc)

		if q.Prune != nil {
			pruned, err := en.Eval.Eval(q.Prune, ctx)
			if err != nil {
				return nil, err
			}
			if pruned.Truthy() {
				continue
			}
		}

		matched := true
		if q.Where != nil {
			v, err := en.Eval.Eval(q.Where, ctx)
			if err != nil {
				return nil, err
			}
			matched = v.Truthy()
		}

		node := &ResultNode{Path: edge.ToPath, Properties: props, Relation: edge.Relation, IsImplied: edge.Implied, Depth: childDepth, Matched: matched}

		nextAncestors := make(map[string]bool, len(ancestors)+1)
		for k := range ancestors {
			nextAncestors[k] = true
		}
		nextAncestors[edge.ToPath] = true

		atMaxDepth := spec.Depth != ast.Unlimited && childDepth >= spec.Depth
		if !atMaxDepth {
			children, err := en.treeWalk(spec, edge.ToPath, q, nextAncestors, childDepth)
			if err != nil {
				return nil, err
			}
			node.Children = children
		}

		if len(node.Children) == 0 && spec.Extend != nil {
			extChildren, err := en.runExtend(*spec.Extend, edge.ToPath, nextAncestors)
			if err != nil {
				return nil, err
			}
			node.Children = extChildren
		}

		// gap promotion: keep a non-matching node only if something
		// beneath it matched, so the match isn't orphaned from the root.
		if matched || len(node.Children) > 0 {
			result = append(result, node)
		}
	}
	return result, nil
}

func (en *Engine) flattenWalk(spec ast.RelationSpec, startPath string, q *ast.Query) ([]*ResultNode, error) {
	type queued struct {
		path  string
		depth int
	}
	visited := map[string]bool{startPath: true}
	queue := []queued{{startPath, 0}}
	var out []*ResultNode
	warnedExtend := spec.Extend == nil

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if spec.Depth != ast.Unlimited && cur.depth >= spec.Depth {
			continue
		}
		edges := en.Provider.GetOutgoingEdges(cur.path, spec.Name)
		for _, edge := range edges {
			if visited[edge.ToPath] {
				continue
			}
			visited[edge.ToPath] = true
			childDepth := cur.depth + 1
			props := en.Provider.GetProperties(edge.ToPath)
			tc := graph.TraversalContext{Depth: childDepth, Relation: edge.Relation, IsImplied: edge.Implied, Parent: cur.path, Path: edge.ToPath}
			ctx := en.Eval.NewContext(en.Provider, edge.ToPath, props, tc)

			if q.Prune != nil {
				pruned, err := en.Eval.Eval(q.Prune, ctx)
				if err != nil {
					return nil, err
				}
				if pruned.Truthy() {
					continue
				}
			}

			if !warnedExtend {
				en.warnf("extend %q is ignored for flattened relation %q", *spec.Extend, spec.Name)
				warnedExtend = true
			}

			matched := true
			if q.Where != nil {
				v, err := en.Eval.Eval(q.Where, ctx)
				if err != nil {
					return nil, err
				}
				matched = v.Truthy()
			}
			if matched {
				out = append(out, &ResultNode{Path: edge.ToPath, Properties: props, Relation: edge.Relation, IsImplied: edge.Implied, Depth: childDepth, Matched: true})
			}
			queue = append(queue, queued{edge.ToPath, childDepth})
		}
	}
	return out, nil
}

// runExtend continues the traversal into groupName's own "from" clause,
// threading the caller's accumulated ancestor set through so a cycle
// introduced by the extend itself (looping back to an ancestor earlier in
// the chain, not just fromPath) is still caught.
func (en *Engine) runExtend(groupName string, fromPath string, ancestors map[string]bool) ([]*ResultNode, error) {
	q, ok := en.Provider.ResolveGroupQuery(groupName)
	if !ok {
		en.warnf("extend group %q not found; extension from %q skipped", groupName, fromPath)
		return nil, nil
	}
	return en.runFrom(q, fromPath, ancestors)
}

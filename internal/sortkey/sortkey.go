// Package sortkey implements ordering of a set of sibling result nodes
// by a "sort by" clause. A plain key compares resolved property values
// (numeric, locale string, date, null-last) with an alphabetical-basename
// final tiebreak. A "chain" key instead orders nodes by their position
// along a sequential relation: siblings connected by a sequential
// relation collapse into weakly-connected components (union-find), each
// component is linearized by following its directed edges from the node
// with no incoming edge (or, if the component is cyclic, from its
// alphabetically-first basename), and components are themselves ordered
// by that same basename.
//
// Where "chain" sits in the key list changes how the chain structure is
// computed. Primary (chain first) builds it once over every sibling;
// with no chain key at all no chain structure is built and the property
// keys alone decide. Secondary (chain after one or more property keys)
// first groups siblings into runs with equal values for the keys
// preceding chain, then rebuilds the chain structure separately within
// each run, so a chain that crosses a group boundary is truncated to its
// per-group segment. In both modes every node gets a distinct chain rank
// (components ordered by head basename), so keys after chain never
// decide the order; heads are not sorted by them.
package sortkey

import (
	"path"
	"sort"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/eval"
	"github.com/trailql/tql/internal/graph"
	"github.com/trailql/tql/internal/traversal"
)

// Sort orders nodes in place according to keys, evaluated against
// provider/ev. A sort key named "chain" appears at most once per query;
// its position in keys selects primary or secondary chain-sort mode.
func Sort(nodes []*traversal.ResultNode, keys []ast.SortKey, provider graph.Provider, ev *eval.Evaluator) {
	if len(nodes) < 2 || len(keys) == 0 {
		return
	}
	chainIdx := -1
	for i, k := range keys {
		if k.Chain {
			chainIdx = i
			break
		}
	}
	if chainIdx > 0 {
		sortSecondaryChain(nodes, keys, chainIdx, provider, ev)
		return
	}
	var rank map[string]int
	if chainIdx == 0 {
		rank = buildChainRank(nodes, provider)
	}
	sortByKeysAndRank(nodes, keys, rank, provider, ev)
}

// sortByKeysAndRank is the primary-mode (and no-chain) comparator: walk
// keys in order, resolving a "chain" key against rank, falling through to
// the alphabetical basename tiebreak. Chain ranks are distinct, so keys
// after a chain key are never reached.
func sortByKeysAndRank(nodes []*traversal.ResultNode, keys []ast.SortKey, rank map[string]int, provider graph.Provider, ev *eval.Evaluator) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		for _, k := range keys {
			var cmp int
			if k.Chain {
				cmp = intCompare(rank[a.Path], rank[b.Path])
			} else {
				cmp = comparePropertyKey(a, b, k, provider, ev)
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return basename(a.Path) < basename(b.Path)
	})
}

// sortSecondaryChain handles "sort by ..., chain, ...": group siblings
// into contiguous runs with equal values for the keys preceding chain,
// then rebuild the chain structure independently within each run (so a
// chain crossing a group boundary is truncated to its in-group segment)
// and order the run by that rank. Ranks are distinct within a run, so
// the keys after chain and the basename tiebreak never decide the order.
func sortSecondaryChain(nodes []*traversal.ResultNode, keys []ast.SortKey, chainIdx int, provider graph.Provider, ev *eval.Evaluator) {
	preKeys := keys[:chainIdx]
	postKeys := keys[chainIdx+1:]

	sort.SliceStable(nodes, func(i, j int) bool {
		return compareByKeys(nodes[i], nodes[j], preKeys, provider, ev) < 0
	})

	for start := 0; start < len(nodes); {
		end := start + 1
		for end < len(nodes) && compareByKeys(nodes[start], nodes[end], preKeys, provider, ev) == 0 {
			end++
		}
		group := nodes[start:end]
		if len(group) > 1 {
			rank := buildChainRank(group, provider)
			sort.SliceStable(group, func(i, j int) bool {
				a, b := group[i], group[j]
				if c := intCompare(rank[a.Path], rank[b.Path]); c != 0 {
					return c < 0
				}
				if c := compareByKeys(a, b, postKeys, provider, ev); c != 0 {
					return c < 0
				}
				return basename(a.Path) < basename(b.Path)
			})
		}
		start = end
	}
}

// compareByKeys applies plain (non-chain) property comparisons in order,
// returning the first nonzero result or 0 if every key ties.
func compareByKeys(a, b *traversal.ResultNode, keys []ast.SortKey, provider graph.Provider, ev *eval.Evaluator) int {
	for _, k := range keys {
		if cmp := comparePropertyKey(a, b, k, provider, ev); cmp != 0 {
			return cmp
		}
	}
	return 0
}

func comparePropertyKey(a, b *traversal.ResultNode, key ast.SortKey, provider graph.Provider, ev *eval.Evaluator) int {
	va := propertyValue(a, key.Property, provider, ev)
	vb := propertyValue(b, key.Property, provider, ev)
	switch {
	case va.IsNull() && vb.IsNull():
		return 0
	case va.IsNull():
		return 1 // nulls sort last regardless of direction
	case vb.IsNull():
		return -1
	}
	cmp := ev.Compare(va, vb)
	if key.Direction == ast.Desc {
		cmp = -cmp
	}
	return cmp
}

func propertyValue(n *traversal.ResultNode, prop ast.PropertyPath, provider graph.Provider, ev *eval.Evaluator) ast.Value {
	ctx := ev.NewContext(provider, n.Path, n.Properties, graph.TraversalContext{Depth: n.Depth, Relation: n.Relation, IsImplied: n.IsImplied, Path: n.Path})
	v, _ := ev.Eval(&ast.PropertyExpr{Path: prop}, ctx)
	return v
}

// buildChainRank assigns every node a total-order integer: component
// order (by head basename) times a large stride, plus position within
// the component's linearization.
func buildChainRank(nodes []*traversal.ResultNode, provider graph.Provider) map[string]int {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.Path] = i
	}
	uf := newUnionFind(len(nodes))
	// next: directed sequential-relation edges among siblings, out-degree
	// tracked so each node has at most one outgoing chain edge (the
	// grammar's "sequential relation" is 1:1 by construction; a node with
	// more than one is treated as chaining to the first found).
	next := make(map[string]string)
	hasIncoming := make(map[string]bool)
	for _, n := range nodes {
		for relName, seq := range provider.GetSequentialRelations() {
			if !seq {
				continue
			}
			for _, edge := range provider.GetOutgoingEdges(n.Path, relName) {
				if j, ok := index[edge.ToPath]; ok {
					uf.union(index[n.Path], j)
					if _, already := next[n.Path]; !already {
						next[n.Path] = edge.ToPath
						hasIncoming[edge.ToPath] = true
					}
				}
			}
		}
	}

	components := make(map[int][]string)
	for _, n := range nodes {
		root := uf.find(index[n.Path])
		components[root] = append(components[root], n.Path)
	}

	type component struct {
		head  string
		order []string
	}
	var comps []component
	for _, members := range components {
		head := ""
		for _, m := range members {
			if !hasIncoming[m] && (head == "" || basename(m) < basename(head)) {
				head = m
			}
		}
		if head == "" {
			head = members[0]
		}
		if len(members) > 1 {
			// if every member has an incoming edge the component is a
			// pure cycle; pick the alphabetically-first basename as head.
			allHaveIncoming := true
			for _, m := range members {
				if !hasIncoming[m] {
					allHaveIncoming = false
					break
				}
			}
			if allHaveIncoming {
				head = members[0]
				for _, m := range members {
					if basename(m) < basename(head) {
						head = m
					}
				}
			}
		}
		visited := map[string]bool{}
		order := []string{}
		cur := head
		for cur != "" && !visited[cur] {
			visited[cur] = true
			order = append(order, cur)
			cur = next[cur]
		}
		for _, m := range members {
			if !visited[m] {
				order = append(order, m)
			}
		}
		comps = append(comps, component{head: head, order: order})
	}
	sort.Slice(comps, func(i, j int) bool { return basename(comps[i].head) < basename(comps[j].head) })

	const stride = 1 << 20
	rank := make(map[string]int, len(nodes))
	for ci, c := range comps {
		for pi, p := range c.order {
			rank[p] = ci*stride + pi
		}
	}
	return rank
}

func basename(p string) string { return path.Base(p) }

func intCompare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

type unionFind struct{ parent []int }

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// Package tql is the public surface of the Trail Query Language engine:
// Parse, Validate, and an Engine that ties the lexer/parser/validator/
// executor pipeline together against a host-supplied graph.Provider.
// Engine construction uses the functional-options shape of
// NewClient(dsn, opts ...Option) generalized from dialect/pool options to
// cache sizing, clock, and logger options.
package tql

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/trailql/tql/internal/aggregate"
	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/cache"
	"github.com/trailql/tql/internal/eval"
	"github.com/trailql/tql/internal/graph"
	"github.com/trailql/tql/internal/parser"
	"github.com/trailql/tql/internal/sortkey"
	"github.com/trailql/tql/internal/terr"
	"github.com/trailql/tql/internal/tlog"
	"github.com/trailql/tql/internal/traversal"
	"github.com/trailql/tql/internal/validator"
)

// Re-exported types, so callers never need to import the internal
// packages directly to hold a Query, a Value, or an error kind.
type (
	Query            = ast.Query
	Value            = ast.Value
	Expr             = ast.Expr
	Edge             = graph.Edge
	FileMetadata     = graph.FileMetadata
	TraversalContext = graph.TraversalContext
	ValidationError  = terr.ValidationError
	RuntimeError     = terr.RuntimeError
)

// HostGraph is what an embedding application must implement: the live
// traversal provider plus the static catalog the validator checks
// relation/group names against. Most hosts implement both on one type.
type HostGraph interface {
	graph.Provider
	graph.ValidationCatalog
}

// Parse lexes and parses src into a Query, independent of any Engine or
// cache.
func Parse(src string) (*Query, error) {
	return parser.Parse(src)
}

// Validate statically checks q against cat's known relations/groups and
// functions. Execution must never be attempted on a query that fails
// here.
func Validate(q *Query, cat graph.ValidationCatalog) (*Query, error) {
	return validator.Validate(q, cat)
}

// QueryResultNode is one node of a query's result tree.
type QueryResultNode struct {
	Path       string
	Properties map[string]ast.Value
	Relation   string
	IsImplied  bool
	Depth      int
	Matched    bool
	Children   []*QueryResultNode
}

// QueryResult is the output of a successful Execute. Visible is false iff
// the "when" clause evaluated false at the active node, in which case
// Nodes is empty. Warnings collects non-fatal diagnostics raised during
// traversal or aggregate resolution (an unresolved extend group, extend
// ignored under flatten, a circular aggregate reference) rather than
// aborting the query.
type QueryResult struct {
	Visible       bool
	Nodes         []*QueryResultNode
	IncludedPaths []string
	Warnings      []string
}

// Option configures an Engine at construction time.
type Option func(*Engine)

func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }
func WithLogger(l *tlog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}
func WithCacheSizes(parsedCapacity, resultCapacity int) Option {
	return func(e *Engine) { e.parsedCap, e.resultCap = parsedCapacity, resultCapacity }
}
func WithResultTTL(ttl time.Duration) Option { return func(e *Engine) { e.resultTTL = ttl } }

// WithRedisTier gives the Engine a RedisTier to hold. Run and Execute do
// not read or write it; they use only the in-process QueryCache.
func WithRedisTier(client *redis.Client, keyPrefix string) Option {
	return func(e *Engine) { e.redis = cache.NewRedisTier(client, keyPrefix) }
}

// Engine is the wired pipeline: one Evaluator, one aggregate Engine, one
// traversal Engine, and the two-tier QueryCache, all sharing a clock.
type Engine struct {
	provider HostGraph
	ev       *eval.Evaluator
	agg      *aggregate.Engine
	trav     *traversal.Engine
	cache    *cache.QueryCache
	redis    *cache.RedisTier
	log      *tlog.Logger

	clock     clock.Clock
	parsedCap int
	resultCap int
	resultTTL time.Duration
}

// New wires an Engine around provider. Defaults: a real clock, a
// no-op logger, a 100-entry parsed cache, and a 50-entry result cache
// with a five-second TTL.
func New(provider HostGraph, opts ...Option) *Engine {
	e := &Engine{
		provider:  provider,
		clock:     clock.New(),
		log:       tlog.Noop(),
		parsedCap: 100,
		resultCap: 50,
		resultTTL: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ev = &eval.Evaluator{Clock: e.clock, Collator: collate.New(language.Und)}
	e.trav = traversal.New(provider, e.ev)
	e.trav.Log = e.log
	e.agg = aggregate.New(e.ev, e.trav, provider)
	e.agg.Log = e.log
	e.ev.Aggregates = e.agg
	e.cache = cache.New(e.parsedCap, e.resultCap, e.resultTTL, e.clock)
	return e
}

// Cache exposes the underlying QueryCache, e.g. for a host's file-watcher
// to call InvalidateFile/InvalidatePattern on edits.
func (e *Engine) Cache() *cache.QueryCache { return e.cache }

// Run parses (via cache), validates, and executes src starting from the
// provider's active node, reusing a cached result when one is live.
func (e *Engine) Run(src string) (*QueryResult, error) {
	q, err := e.parseCached(src)
	if err != nil {
		return nil, err
	}
	if _, err := Validate(q, e.provider); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s\x00%s", e.provider.ActiveFilePath(), src)
	v, err := e.cache.ExecuteCached(key, func() (any, []string, error) {
		res, err := e.Execute(q)
		if err != nil {
			return nil, nil, err
		}
		return res, res.IncludedPaths, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*QueryResult), nil
}

func (e *Engine) parseCached(src string) (*Query, error) {
	if v, ok := e.cache.GetParsed(src); ok {
		return v.(*Query), nil
	}
	q, err := Parse(src)
	if err != nil {
		return nil, err
	}
	e.cache.PutParsed(src, q)
	return q, nil
}

// Execute runs an already-parsed-and-validated query against the
// provider's active node, skipping both cache tiers.
func (e *Engine) Execute(q *Query) (*QueryResult, error) {
	active := e.provider.ActiveFilePath()
	e.trav.BeginExecution()
	e.agg.BeginExecution()

	if q.When != nil {
		ctx := e.ev.NewContext(e.provider, active, e.provider.GetProperties(active), graph.TraversalContext{Path: active})
		v, err := e.ev.Eval(q.When, ctx)
		if err != nil {
			return nil, err
		}
		if !v.Truthy() {
			return &QueryResult{Visible: false, IncludedPaths: []string{active}}, nil
		}
	}

	forest, err := e.trav.Run(q, active)
	if err != nil {
		return nil, err
	}
	if len(q.Sort) > 0 {
		sortTree(forest, q.Sort, e.provider, e.ev)
	}

	included := map[string]bool{active: true}
	nodes := make([]*QueryResultNode, len(forest))
	for i, n := range forest {
		nodes[i] = e.projectNode(q, n, included)
	}
	paths := make([]string, 0, len(included))
	for p := range included {
		paths = append(paths, p)
	}
	warnings := append(e.trav.Warnings(), e.agg.Warnings()...)
	return &QueryResult{Visible: true, Nodes: nodes, IncludedPaths: paths, Warnings: warnings}, nil
}

func sortTree(nodes []*traversal.ResultNode, keys []ast.SortKey, provider graph.Provider, ev *eval.Evaluator) {
	sortkey.Sort(nodes, keys, provider, ev)
	for _, n := range nodes {
		sortTree(n.Children, keys, provider, ev)
	}
}

func (e *Engine) projectNode(q *Query, n *traversal.ResultNode, included map[string]bool) *QueryResultNode {
	included[n.Path] = true
	ctx := e.ev.NewContext(e.provider, n.Path, n.Properties, graph.TraversalContext{Depth: n.Depth, Relation: n.Relation, IsImplied: n.IsImplied, Path: n.Path})
	out := &QueryResultNode{
		Path:       n.Path,
		Properties: e.projectDisplay(q, n.Properties, ctx),
		Relation:   n.Relation,
		IsImplied:  n.IsImplied,
		Depth:      n.Depth,
		Matched:    n.Matched,
	}
	if len(n.Children) > 0 {
		out.Children = make([]*QueryResultNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = e.projectNode(q, c, included)
		}
	}
	return out
}

// projectDisplay implements the display clause's property projection: no
// clause or "display all" passes every known property through unfiltered
// ("display all" also adds any listed paths), an explicit list resolves
// each path (with the same dotted-key lookup as any other property read)
// into an output map keyed by its dotted path string.
func (e *Engine) projectDisplay(q *Query, properties map[string]ast.Value, ctx *eval.Context) map[string]ast.Value {
	if q.Display == nil || q.Display.All {
		out := make(map[string]ast.Value, len(properties))
		for k, v := range properties {
			out[k] = v
		}
		if q.Display != nil {
			for _, p := range q.Display.Properties {
				v, _ := e.ev.Eval(&ast.PropertyExpr{Path: p}, ctx)
				out[p.String()] = v
			}
		}
		return out
	}
	out := make(map[string]ast.Value, len(q.Display.Properties))
	for _, p := range q.Display.Properties {
		v, _ := e.ev.Eval(&ast.PropertyExpr{Path: p}, ctx)
		out[p.String()] = v
	}
	return out
}

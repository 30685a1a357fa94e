// Package aggregate implements the five aggregate functions
// (count/sum/avg/min/max plus the any/all predicates) over one of the
// three subquery source shapes a parsed AggregateExpr can carry. It sits
// above internal/eval, satisfying eval.AggregateResolver so eval can
// dispatch AggregateExpr nodes back down into here, and is itself run by
// a Runner supplied from outside (internal/traversal implements it and
// imports this package for Node and Runner; this package never imports
// traversal) so the traversal and aggregate engines can call into each
// other without an import cycle.
package aggregate

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/montanaflynn/stats"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/eval"
	"github.com/trailql/tql/internal/graph"
	"github.com/trailql/tql/internal/terr"
)

// Node is one candidate produced by a subquery run, carrying just enough
// to build an eval.Context against it.
type Node struct {
	Path       string
	Properties map[string]ast.Value
	Traversal  graph.TraversalContext
}

// Runner executes an ad hoc query (an inline "from" list, a resolved
// group, or a bare-identifier source normalized to one) starting from
// activePath and returns its result nodes, flattened. It is implemented
// by internal/traversal's Engine.
type Runner interface {
	RunQuery(q *ast.Query, activePath string) ([]Node, error)
}

// Logger receives non-fatal diagnostics, e.g. count() ignoring a
// condition argument. Nil is a valid no-op logger.
type Logger interface {
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...any) {}

// Engine resolves AggregateExpr nodes. One Engine is shared across a
// whole query execution so its memoization cache is effective, but memo,
// stack, and warnings are all reset at the start of each execution (see
// BeginExecution): a memoized value or cycle-detection entry from a prior
// Run must never leak into a later one against a different active node.
type Engine struct {
	Eval     *eval.Evaluator
	Runner   Runner
	Provider graph.Provider
	Log      Logger

	mu      sync.Mutex
	memo    map[uint64]ast.Value
	stack   map[string]bool // group names currently being resolved, for cycle detection
	stackMu sync.Mutex

	warnMu   sync.Mutex
	warnings []string
}

func New(ev *eval.Evaluator, runner Runner, provider graph.Provider) *Engine {
	e := &Engine{Eval: ev, Runner: runner, Provider: provider, Log: noopLogger{}}
	e.BeginExecution()
	return e
}

// BeginExecution clears the memoization cache, cycle-detection stack, and
// accumulated warnings, so none of them survive into a later execution.
func (e *Engine) BeginExecution() {
	e.mu.Lock()
	e.memo = make(map[uint64]ast.Value)
	e.mu.Unlock()

	e.stackMu.Lock()
	e.stack = make(map[string]bool)
	e.stackMu.Unlock()

	e.warnMu.Lock()
	e.warnings = nil
	e.warnMu.Unlock()
}

// Warnings returns the non-fatal diagnostics raised since the last
// BeginExecution.
func (e *Engine) Warnings() []string {
	e.warnMu.Lock()
	defer e.warnMu.Unlock()
	return e.warnings
}

func (e *Engine) warnf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Warnf(format, args...)
	}
	e.warnMu.Lock()
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
	e.warnMu.Unlock()
}

// Resolve implements eval.AggregateResolver.
func (e *Engine) Resolve(c *eval.Context, expr *ast.AggregateExpr) (ast.Value, error) {
	key := e.cacheKey(c.Path, expr)
	e.mu.Lock()
	if v, ok := e.memo[key]; ok {
		e.mu.Unlock()
		return v, nil
	}
	e.mu.Unlock()

	v, err := e.resolveUncached(c, expr)
	if err != nil {
		return ast.Null, err
	}

	e.mu.Lock()
	e.memo[key] = v
	e.mu.Unlock()
	return v, nil
}

func (e *Engine) resolveUncached(c *eval.Context, expr *ast.AggregateExpr) (ast.Value, error) {
	groupName, isGroup := e.groupCycleName(expr)
	if isGroup {
		e.stackMu.Lock()
		if e.stack[groupName] {
			e.stackMu.Unlock()
			e.warnf("circular aggregate reference through group %q at %d:%d, evaluated as null", groupName, expr.Pos().Start, expr.Pos().End)
			return ast.Null, nil
		}
		e.stack[groupName] = true
		e.stackMu.Unlock()
		defer func() {
			e.stackMu.Lock()
			delete(e.stack, groupName)
			e.stackMu.Unlock()
		}()
	}

	q, err := e.buildSubquery(expr)
	if err != nil {
		return ast.Null, err
	}
	nodes, err := e.Runner.RunQuery(q, c.Path)
	if err != nil {
		return ast.Null, err
	}

	switch expr.Func {
	case ast.AggCount:
		if expr.Condition != nil {
			e.warnf("count() ignores its condition argument at %d:%d", expr.Pos().Start, expr.Pos().End)
		}
		return ast.Number(float64(len(nodes))), nil
	case ast.AggSum, ast.AggAvg, ast.AggMin, ast.AggMax:
		return e.numericAggregate(expr, nodes)
	case ast.AggAny:
		return e.predicateAggregate(expr, nodes, true)
	case ast.AggAll:
		return e.predicateAggregate(expr, nodes, false)
	default:
		return ast.Null, terr.NewRuntimeError(expr.Pos(), "unknown aggregate function")
	}
}

func (e *Engine) numericAggregate(expr *ast.AggregateExpr, nodes []Node) (ast.Value, error) {
	var data stats.Float64Data
	for _, n := range nodes {
		ctx := e.Eval.NewContext(e.Provider, n.Path, n.Properties, n.Traversal)
		v, err := e.Eval.Eval(&ast.PropertyExpr{Path: expr.Property, Span_: expr.Pos()}, ctx)
		if err != nil {
			return ast.Null, err
		}
		if v.Kind != ast.KindNumber {
			continue
		}
		data = append(data, v.Num)
	}
	if len(data) == 0 {
		return ast.Null, nil
	}
	var (
		result float64
		err    error
	)
	switch expr.Func {
	case ast.AggSum:
		result, err = data.Sum()
	case ast.AggAvg:
		result, err = data.Mean()
	case ast.AggMin:
		result, err = data.Min()
	case ast.AggMax:
		result, err = data.Max()
	}
	if err != nil {
		return ast.Null, terr.WrapRuntimeError(expr.Pos(), fmt.Errorf("%s: %w", expr.Func, err))
	}
	return ast.Number(result), nil
}

func (e *Engine) predicateAggregate(expr *ast.AggregateExpr, nodes []Node, isAny bool) (ast.Value, error) {
	if len(nodes) == 0 {
		return ast.Bool(!isAny), nil
	}
	for _, n := range nodes {
		ctx := e.Eval.NewContext(e.Provider, n.Path, n.Properties, n.Traversal)
		v, err := e.Eval.Eval(expr.Condition, ctx)
		if err != nil {
			return ast.Null, err
		}
		if isAny && v.Truthy() {
			return ast.Bool(true), nil
		}
		if !isAny && !v.Truthy() {
			return ast.Bool(false), nil
		}
	}
	return ast.Bool(!isAny), nil
}

// buildSubquery normalizes the three source shapes to a runnable Query.
// A bare identifier tries a group first, then falls back to a relation;
// the validator has already ruled out the ambiguous/unknown cases.
func (e *Engine) buildSubquery(expr *ast.AggregateExpr) (*ast.Query, error) {
	switch expr.Source.Kind {
	case ast.AggSourceFrom:
		return &ast.Query{From: expr.Source.From}, nil
	case ast.AggSourceGroup:
		q, ok := e.Provider.ResolveGroupQuery(expr.Source.Name)
		if !ok {
			return nil, terr.NewRuntimeError(expr.Pos(), "unknown group %q", expr.Source.Name)
		}
		return q, nil
	case ast.AggSourceBareIdent:
		if q, ok := e.Provider.ResolveGroupQuery(expr.Source.Name); ok {
			return q, nil
		}
		return &ast.Query{From: ast.FromClause{{Name: expr.Source.Name, Depth: 1}}}, nil
	default:
		return nil, terr.NewRuntimeError(expr.Pos(), "unknown aggregate source")
	}
}

// groupCycleName returns the group name this source resolves to, for
// cycle tracking. Inline "from" sources never participate in a cycle by
// name since they have none.
func (e *Engine) groupCycleName(expr *ast.AggregateExpr) (string, bool) {
	switch expr.Source.Kind {
	case ast.AggSourceGroup:
		return expr.Source.Name, true
	case ast.AggSourceBareIdent:
		if _, ok := e.Provider.ResolveGroupQuery(expr.Source.Name); ok {
			return expr.Source.Name, true
		}
	}
	return "", false
}

// cacheKey mixes the evaluating node's path, the function, the source
// shape, the property path, and a structural hash of the condition
// expression (aggregates with textually identical conditions but
// different object identities must still share a cache entry).
func (e *Engine) cacheKey(path string, expr *ast.AggregateExpr) uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%d\x00", path, expr.Func)
	switch expr.Source.Kind {
	case ast.AggSourceFrom:
		for _, spec := range expr.Source.From {
			ext := "-"
			if spec.Extend != nil {
				ext = fmt.Sprintf("%q", *spec.Extend)
			}
			fmt.Fprintf(h, "from:%s:%d:%s:%v\x00", spec.Name, spec.Depth, ext, spec.Flatten)
		}
	case ast.AggSourceGroup:
		fmt.Fprintf(h, "group:%s\x00", expr.Source.Name)
	case ast.AggSourceBareIdent:
		fmt.Fprintf(h, "ident:%s\x00", expr.Source.Name)
	}
	fmt.Fprintf(h, "prop:%s\x00", expr.Property.String())
	fmt.Fprintf(h, "cond:%s\x00", signature(expr.Condition))
	return h.Sum64()
}

// Package eval implements the expression evaluator: the type switch that
// walks an ast.Expr and produces an ast.Value against one traversal step's
// file path, properties, and traversal context. It is the lowest-level of
// the four post-validation stages (eval, aggregate, sortkey, cache all sit
// above it), so it must not import any of them. Aggregate expression
// evaluation is reached back through the AggregateResolver interface
// declared here instead, an inversion that avoids the obvious import
// cycle between the evaluator and the aggregate engine it dispatches into.
package eval

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/builtins"
	"github.com/trailql/tql/internal/graph"
	"github.com/trailql/tql/internal/terr"
)

// AggregateResolver is implemented by internal/aggregate so the evaluator
// can dispatch AggregateExpr nodes without importing it.
type AggregateResolver interface {
	Resolve(c *Context, expr *ast.AggregateExpr) (ast.Value, error)
}

// Evaluator holds the collaborators every Eval call needs: a clock so
// now()/today resolve against a mockable time source, a locale collator
// for string ordering, and the aggregate engine (wired in by the top-level
// package after both are constructed, to break the import cycle above).
type Evaluator struct {
	Clock      clock.Clock
	Collator   *collate.Collator
	Aggregates AggregateResolver
}

// New builds an Evaluator with a real clock and the root (Unicode default
// collation ordering) locale.
func New() *Evaluator {
	return &Evaluator{Clock: clock.New(), Collator: collate.New(language.Und)}
}

// NewContext builds the per-step environment for path, stamping it with
// this Evaluator's clock so date builtins stay mockable.
func (ev *Evaluator) NewContext(provider graph.Provider, path string, properties map[string]ast.Value, tc graph.TraversalContext) *Context {
	return &Context{Provider: provider, Path: path, Properties: properties, Traversal: tc, Clock: ev.Clock}
}

// Context is the per-evaluation environment: the active file and the
// properties/traversal tuple attached to the current step.
type Context struct {
	Provider   graph.Provider
	Path       string
	Properties map[string]ast.Value
	Traversal  graph.TraversalContext
	Clock      clock.Clock
}

func (c *Context) FilePath() string { return c.Path }

func (c *Context) Now() time.Time {
	if c.Clock != nil {
		return c.Clock.Now()
	}
	return time.Now()
}

func (c *Context) GetProperties(path string) map[string]ast.Value {
	if path == c.Path {
		return c.Properties
	}
	return c.Provider.GetProperties(path)
}

func (c *Context) GetFileMetadata(path string) (graph.FileMetadata, bool) {
	return c.Provider.GetFileMetadata(path)
}

// Eval dispatches on the concrete expression type. A nil expr is treated
// as absent by callers (prune/where/when are all optional); Eval itself
// never receives nil.
func (ev *Evaluator) Eval(e ast.Expr, c *Context) (ast.Value, error) {
	switch n := e.(type) {
	case *ast.LiteralExpr:
		return n.Value, nil
	case *ast.DurationLit:
		return ast.Number(n.Amount * unitMs(n.Unit)), nil
	case *ast.PropertyExpr:
		return ev.evalProperty(n, c), nil
	case *ast.RelativeDateExpr:
		return ast.Date(ev.relativeDate(n.Which)), nil
	case *ast.LogicalExpr:
		return ev.evalLogical(n, c)
	case *ast.UnaryExpr:
		x, err := ev.Eval(n.X, c)
		if err != nil {
			return ast.Null, err
		}
		return ast.Bool(!x.Truthy()), nil
	case *ast.CompareExpr:
		return ev.evalCompare(n, c)
	case *ast.ArithExpr:
		return ev.evalArith(n, c)
	case *ast.MembershipExpr:
		return ev.evalMembership(n, c)
	case *ast.CallExpr:
		return ev.evalCall(n, c)
	case *ast.AggregateExpr:
		if ev.Aggregates == nil {
			return ast.Null, terr.NewRuntimeError(n.Pos(), "aggregate evaluation is not available in this context")
		}
		return ev.Aggregates.Resolve(c, n)
	default:
		return ast.Null, terr.NewRuntimeError(e.Pos(), "unhandled expression kind %T", e)
	}
}

// evalProperty resolves the file./traversal. reserved namespaces and
// falls back to the flat property map otherwise. Value's closed union has
// no nested-object kind, so storage is keyed by the full dotted path
// rather than by nested maps.
func (ev *Evaluator) evalProperty(n *ast.PropertyExpr, c *Context) ast.Value {
	if len(n.Path) >= 2 && n.Path[0] == "file" {
		return ev.evalFileProperty(n.Path[1:], c)
	}
	if len(n.Path) >= 2 && n.Path[0] == "traversal" {
		return evalTraversalProperty(n.Path[1:], c.Traversal)
	}
	full := n.Path.String()
	if v, ok := c.Properties[full]; ok {
		return v
	}
	if len(n.Path) == 1 {
		return ast.Null
	}
	// fall back to progressively shorter joined prefixes, in case the
	// provider stored an intermediate segment as its own flat key.
	for i := len(n.Path) - 1; i > 0; i-- {
		if v, ok := c.Properties[ast.PropertyPath(n.Path[:i]).String()]; ok {
			return v
		}
	}
	return ast.Null
}

func (ev *Evaluator) evalFileProperty(rest []string, c *Context) ast.Value {
	meta, ok := c.Provider.GetFileMetadata(c.Path)
	if !ok || len(rest) == 0 {
		return ast.Null
	}
	switch rest[0] {
	case "name":
		return ast.String(meta.Name)
	case "path":
		return ast.String(meta.Path)
	case "folder":
		return ast.String(meta.Folder)
	case "created":
		return ast.Date(meta.Created)
	case "modified":
		return ast.Date(meta.Modified)
	case "size":
		return ast.Number(float64(meta.Size))
	case "tags":
		return stringList(meta.Tags)
	case "links":
		return stringList(meta.Links)
	case "backlinks":
		return stringList(meta.Backlinks)
	default:
		return ast.Null
	}
}

func evalTraversalProperty(rest []string, tc graph.TraversalContext) ast.Value {
	if len(rest) == 0 {
		return ast.Null
	}
	switch rest[0] {
	case "depth":
		return ast.Number(float64(tc.Depth))
	case "relation":
		return ast.String(tc.Relation)
	case "isImplied":
		return ast.Bool(tc.IsImplied)
	case "parent":
		return ast.String(tc.Parent)
	case "path":
		return ast.String(tc.Path)
	default:
		return ast.Null
	}
}

func stringList(ss []string) ast.Value {
	out := make([]ast.Value, len(ss))
	for i, s := range ss {
		out[i] = ast.String(s)
	}
	return ast.List(out)
}

func (ev *Evaluator) evalLogical(n *ast.LogicalExpr, c *Context) (ast.Value, error) {
	left, err := ev.Eval(n.Left, c)
	if err != nil {
		return ast.Null, err
	}
	if n.Op == ast.LogicalAnd && !left.Truthy() {
		return ast.Bool(false), nil
	}
	if n.Op == ast.LogicalOr && left.Truthy() {
		return ast.Bool(true), nil
	}
	right, err := ev.Eval(n.Right, c)
	if err != nil {
		return ast.Null, err
	}
	return ast.Bool(right.Truthy()), nil
}

func (ev *Evaluator) evalCall(n *ast.CallExpr, c *Context) (ast.Value, error) {
	b, ok := builtins.Registry[n.Name]
	if !ok {
		return ast.Null, terr.NewRuntimeError(n.Pos(), "unknown function %q", n.Name)
	}
	args := make([]ast.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := ev.Eval(a, c)
		if err != nil {
			return ast.Null, err
		}
		args[i] = v
	}
	v, err := b.Call(args, c)
	if err != nil {
		return ast.Null, terr.WrapRuntimeError(n.Pos(), fmt.Errorf("%s: %w", n.Name, err))
	}
	return v, nil
}

// relativeDate resolves today/yesterday/tomorrow/startOfWeek/endOfWeek
// against ev.Clock, truncated to the local day boundary. Weeks start on
// Monday.
func (ev *Evaluator) relativeDate(which ast.RelativeDate) time.Time {
	now := ev.Clock.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch which {
	case ast.RelToday:
		return day
	case ast.RelYesterday:
		return day.AddDate(0, 0, -1)
	case ast.RelTomorrow:
		return day.AddDate(0, 0, 1)
	case ast.RelStartOfWeek:
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case ast.RelEndOfWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, 6-offset)
	default:
		return day
	}
}

// unitMs converts a duration literal's unit suffix to a millisecond
// factor using calendar approximations (30-day months, 365-day years),
// an explicit simplification rather than pulling in a calendar-aware
// duration library.
func unitMs(unit byte) float64 {
	const dayMs = 86.4e6
	switch unit {
	case 'd':
		return dayMs
	case 'w':
		return 7 * dayMs
	case 'm':
		return 30 * dayMs
	case 'y':
		return 365 * dayMs
	default:
		return dayMs
	}
}

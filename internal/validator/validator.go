// Package validator implements static checks against a catalog of known
// relations and groups. All findings are collected before returning a
// single aggregated error, fanning out across check kinds within one
// query rather than stopping at the first failure.
package validator

import (
	"fmt"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/builtins"
	"github.com/trailql/tql/internal/graph"
	"github.com/trailql/tql/internal/terr"
)

type validator struct {
	cat    graph.ValidationCatalog
	errs   []*terr.ValidationError
	groups map[string]bool // set for HasGroup, used for ambiguity checks
}

// Validate walks query and returns it unmodified on success, or a combined
// error (unwrap with terr.Errors) if any check failed. Execution must
// never be attempted when this returns an error.
func Validate(query *ast.Query, cat graph.ValidationCatalog) (*ast.Query, error) {
	v := &validator{cat: cat}
	v.checkFrom(query.From)
	for _, e := range []ast.Expr{query.Prune, query.Where, query.When} {
		if e != nil {
			v.walkExpr(e)
		}
	}
	for _, sk := range query.Sort {
		if !sk.Chain && len(sk.Property) == 0 {
			v.fail(sk.Span, terr.TypeMismatch, "sort key property path must not be empty")
		}
	}
	if query.Display != nil {
		for _, p := range query.Display.Properties {
			if len(p) == 0 {
				v.fail(query.Display.Span, terr.TypeMismatch, "display property path must not be empty")
			}
		}
	}
	if err := terr.NewValidationErrors(v.errs); err != nil {
		return nil, err
	}
	return query, nil
}

func (v *validator) fail(span ast.Span, code terr.Code, format string, args ...any) {
	v.errs = append(v.errs, &terr.ValidationError{Message: fmt.Sprintf(format, args...), Span: span, Code: code})
}

func (v *validator) checkFrom(from ast.FromClause) {
	for _, spec := range from {
		if !v.cat.HasRelation(spec.Name) {
			v.fail(spec.Span, terr.UnknownRelation, "unknown relation %q", spec.Name)
		}
		if spec.Extend != nil && !v.cat.HasGroup(*spec.Extend) {
			v.fail(spec.Span, terr.UnknownGroup, "unknown group %q", *spec.Extend)
		}
	}
}

func (v *validator) walkExpr(e ast.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.LogicalExpr:
		v.walkExpr(n.Left)
		v.walkExpr(n.Right)
	case *ast.UnaryExpr:
		v.walkExpr(n.X)
	case *ast.CompareExpr:
		v.walkExpr(n.Left)
		v.walkExpr(n.Right)
	case *ast.ArithExpr:
		v.walkExpr(n.Left)
		v.walkExpr(n.Right)
	case *ast.MembershipExpr:
		v.walkExpr(n.Subject)
		v.walkExpr(n.Collection)
		v.walkExpr(n.Low)
		v.walkExpr(n.High)
	case *ast.CallExpr:
		v.checkCall(n)
		for _, a := range n.Args {
			v.walkExpr(a)
		}
	case *ast.AggregateExpr:
		v.checkAggregate(n)
	case *ast.PropertyExpr:
		if len(n.Path) == 0 {
			v.fail(n.Span_, terr.TypeMismatch, "property path must not be empty")
		}
	}
}

func (v *validator) checkCall(n *ast.CallExpr) {
	min, max, ok := builtins.Arity(n.Name)
	if !ok {
		v.fail(n.Span_, terr.UnknownFunction, "unknown function %q", n.Name)
		return
	}
	argc := len(n.Args)
	if argc < min || (max >= 0 && argc > max) {
		v.fail(n.Span_, terr.InvalidArity, "function %q takes %s arguments, got %d", n.Name, arityDesc(min, max), argc)
	}
}

func arityDesc(min, max int) string {
	if max < 0 {
		return fmt.Sprintf("at least %d", min)
	}
	if min == max {
		return fmt.Sprintf("exactly %d", min)
	}
	return fmt.Sprintf("%d-%d", min, max)
}

func (v *validator) checkAggregate(n *ast.AggregateExpr) {
	switch n.Source.Kind {
	case ast.AggSourceGroup:
		if !v.cat.HasGroup(n.Source.Name) {
			v.fail(n.Span_, terr.UnknownGroup, "unknown group %q", n.Source.Name)
		}
	case ast.AggSourceFrom:
		v.checkFrom(n.Source.From)
	case ast.AggSourceBareIdent:
		hasRel := v.cat.HasRelation(n.Source.Name)
		hasGrp := v.cat.HasGroup(n.Source.Name)
		switch {
		case hasRel && hasGrp:
			v.fail(n.Span_, terr.AmbiguousIdentifier, "%q matches both a relation and a group", n.Source.Name)
		case !hasRel && !hasGrp:
			v.fail(n.Span_, terr.UnknownIdentifier, "%q is neither a known relation nor a known group", n.Source.Name)
		}
	}

	switch n.Func {
	case ast.AggSum, ast.AggAvg, ast.AggMin, ast.AggMax:
		if len(n.Property) == 0 {
			v.fail(n.Span_, terr.InvalidArity, "%s() requires a property argument", n.Func)
		}
	case ast.AggAny, ast.AggAll:
		if n.Condition == nil {
			v.fail(n.Span_, terr.InvalidArity, "%s() requires a condition argument", n.Func)
		}
	}
	if n.Condition != nil {
		v.walkExpr(n.Condition)
	}
}

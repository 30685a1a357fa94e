package parser

import (
	"strconv"
	"time"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/lexer"
)

var aggFuncs = map[string]ast.AggFunc{
	"count": ast.AggCount,
	"sum":   ast.AggSum,
	"avg":   ast.AggAvg,
	"min":   ast.AggMin,
	"max":   ast.AggMax,
	"any":   ast.AggAny,
	"all":   ast.AggAll,
}

// parseExpr is the entry point for the precedence-climbing expression
// grammar: or, and, not, comparison (incl. in/range), additive, primary,
// lowest to highest precedence, all left-associative.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalExpr{Op: ast.LogicalOr, Left: left, Right: right, Span_: left.Pos().Merge(right.Pos())}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalExpr{Op: ast.LogicalAnd, Left: left, Right: right, Span_: left.Pos().Merge(right.Pos())}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.isKeyword("not") || p.isOp("!") {
		start := p.advance().Span
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{X: x, Span_: start.Merge(x.Pos())}, nil
	}
	return p.parseComparison()
}

var cmpOps = map[string]ast.CompareOp{
	"=": ast.CmpEq, "!=": ast.CmpNeq, "<": ast.CmpLt, ">": ast.CmpGt,
	"<=": ast.CmpLte, ">=": ast.CmpGte, "=?": ast.CmpNullSafeEq, "!=?": ast.CmpNullSafeNeq,
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == lexer.KindOperator {
		if op, ok := cmpOps[p.cur().Text]; ok {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &ast.CompareExpr{Op: op, Left: left, Right: right, Span_: left.Pos().Merge(right.Pos())}, nil
		}
	}
	if p.isKeyword("in") {
		p.advance()
		first, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if p.isOp("..") {
			p.advance()
			high, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &ast.MembershipExpr{Subject: left, Range: true, Low: first, High: high, Span_: left.Pos().Merge(high.Pos())}, nil
		}
		return &ast.MembershipExpr{Subject: left, Collection: first, Span_: left.Pos().Merge(first.Pos())}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		opTok := p.advance()
		op := ast.ArithAdd
		if opTok.Text == "-" {
			op = ast.ArithSub
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &ast.ArithExpr{Op: op, Left: left, Right: right, Span_: left.Pos().Merge(right.Pos())}
	}
	return left, nil
}

var relativeDates = map[string]ast.RelativeDate{
	"today": ast.RelToday, "yesterday": ast.RelYesterday, "tomorrow": ast.RelTomorrow,
	"startOfWeek": ast.RelStartOfWeek, "endOfWeek": ast.RelEndOfWeek,
}

// parsePrimary implements:
//   primary := literal | call | prop | date-expr | "(" expr ")"
// date-expr's base case (a bare ISO literal or relative-date keyword) is
// produced here; the "+/- duration" composition is handled one level up
// by parseAdditive, since it is structurally identical to other arithmetic.
func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.Kind {
	case lexer.KindDelimiter:
		if t.Text == "(" {
			p.advance()
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			closeTok, err := p.expectDelim(")")
			if err != nil {
				return nil, err
			}
			return wrapSpan(inner, t.Span.Merge(closeTok.Span)), nil
		}
	case lexer.KindString:
		p.advance()
		return &ast.LiteralExpr{Value: ast.String(t.Text), Span_: t.Span}, nil
	case lexer.KindNumber:
		p.advance()
		n, _ := strconv.ParseFloat(t.Text, 64)
		return &ast.LiteralExpr{Value: ast.Number(n), Span_: t.Span}, nil
	case lexer.KindBool:
		p.advance()
		return &ast.LiteralExpr{Value: ast.Bool(t.Text == "true"), Span_: t.Span}, nil
	case lexer.KindNull:
		p.advance()
		return &ast.LiteralExpr{Value: ast.Null, Span_: t.Span}, nil
	case lexer.KindDuration:
		p.advance()
		amount, unit := splitDuration(t.Text)
		return &ast.DurationLit{Amount: amount, Unit: unit, Span_: t.Span}, nil
	case lexer.KindDate:
		p.advance()
		when, err := parseISODate(t.Text)
		if err != nil {
			return nil, errAt(t, "%s", err.Error())
		}
		return &ast.LiteralExpr{Value: ast.Date(when), Span_: t.Span}, nil
	case lexer.KindKeyword:
		if rd, ok := relativeDates[t.Text]; ok {
			p.advance()
			return &ast.RelativeDateExpr{Which: rd, Span_: t.Span}, nil
		}
		if t.Text == "all" {
			if p.peekAt(1).Kind == lexer.KindDelimiter && p.peekAt(1).Text == "(" {
				return p.parseCall(p.advance())
			}
		}
	case lexer.KindIdent:
		if p.peekAt(1).Kind == lexer.KindDelimiter && p.peekAt(1).Text == "(" {
			return p.parseCall(p.advance())
		}
		path, err := p.parsePropertyPath()
		if err != nil {
			return nil, err
		}
		return &ast.PropertyExpr{Path: path, Span_: t.Span.Merge(p.toks[p.pos-1].Span)}, nil
	}
	return nil, errExpected(t, "expression")
}

// wrapSpan re-spans a parenthesized literal by copying it with the full
// "( expr )" extent as its span. Any other expression is returned as is,
// so its Pos() covers only the inner expression.
func wrapSpan(e ast.Expr, span ast.Span) ast.Expr {
	switch v := e.(type) {
	case *ast.LiteralExpr:
		c := *v
		c.Span_ = span
		return &c
	default:
		return e // non-literal nodes keep their own span; acceptable for diagnostics
	}
}

func splitDuration(text string) (float64, byte) {
	unit := text[len(text)-1]
	n, _ := strconv.ParseFloat(text[:len(text)-1], 64)
	return n, unit
}

func parseISODate(text string) (time.Time, error) {
	if len(text) > 10 {
		return time.ParseInLocation("2006-01-02T15:04:05", text, time.Local)
	}
	return time.ParseInLocation("2006-01-02", text, time.Local)
}

// parseCall parses a call whose name token has already been consumed's
// peek confirmed a following "(". nameTok itself is passed in already
// advanced past.
func (p *Parser) parseCall(nameTok lexer.Token) (ast.Expr, error) {
	if fn, ok := aggFuncs[nameTok.Text]; ok {
		return p.parseAggregateCall(nameTok, fn)
	}
	if _, err := p.expectDelim("("); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if !p.isDelim(")") {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		for p.isDelim(",") {
			p.advance()
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
	}
	closeTok, err := p.expectDelim(")")
	if err != nil {
		return nil, err
	}
	return &ast.CallExpr{Name: nameTok.Text, Args: args, Span_: nameTok.Span.Merge(closeTok.Span)}, nil
}

// parseAggregateCall implements the aggregate-call grammar: the source is
// one of `from relSpec(,relSpec)*`, `group("Name")`, or a bare identifier;
// an optional trailing comma-argument is a property path (sum/avg/min/max)
// or a condition expression (any/all/count-ignored).
func (p *Parser) parseAggregateCall(nameTok lexer.Token, fn ast.AggFunc) (ast.Expr, error) {
	if _, err := p.expectDelim("("); err != nil {
		return nil, err
	}
	expr := &ast.AggregateExpr{Func: fn, Span_: nameTok.Span}

	switch {
	case p.isKeyword("from"):
		from, err := p.parseAggregateFrom()
		if err != nil {
			return nil, err
		}
		expr.Source = ast.AggSource{Kind: ast.AggSourceFrom, From: from}
	case p.isKeyword("group") && p.peekAt(1).Kind == lexer.KindDelimiter && p.peekAt(1).Text == "(":
		p.advance() // "group"
		p.advance() // "("
		nameStr, err := p.expectString()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectDelim(")"); err != nil {
			return nil, err
		}
		expr.Source = ast.AggSource{Kind: ast.AggSourceGroup, Name: nameStr.Text}
	case p.cur().Kind == lexer.KindIdent:
		id := p.advance()
		expr.Source = ast.AggSource{Kind: ast.AggSourceBareIdent, Name: id.Text}
	default:
		return nil, errExpected(p.cur(), "from", "group(...)", "identifier")
	}

	if p.isDelim(",") {
		p.advance()
		switch fn {
		case ast.AggSum, ast.AggAvg, ast.AggMin, ast.AggMax:
			path, err := p.parsePropertyPath()
			if err != nil {
				return nil, err
			}
			expr.Property = path
		default:
			cond, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			expr.Condition = cond
		}
	}

	closeTok, err := p.expectDelim(")")
	if err != nil {
		return nil, err
	}
	expr.Span_ = nameTok.Span.Merge(closeTok.Span)
	return expr, nil
}

// parseAggregateFrom parses the inline relSpec list inside an aggregate's
// "from ..." source, using one piece of look-ahead: after a relSpec, a
// following comma starts another relSpec
// only if it is an identifier immediately followed by "depth" or "extend";
// otherwise the comma introduces the aggregate's property/condition arg.
func (p *Parser) parseAggregateFrom() (ast.FromClause, error) {
	p.advance() // "from"
	var specs ast.FromClause
	spec, err := p.parseRelSpec()
	if err != nil {
		return nil, err
	}
	specs = append(specs, spec)
	for p.isDelim(",") && p.looksLikeAnotherRelSpec() {
		p.advance()
		spec, err := p.parseRelSpec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (p *Parser) looksLikeAnotherRelSpec() bool {
	next := p.peekAt(1)
	after := p.peekAt(2)
	if next.Kind != lexer.KindIdent {
		return false
	}
	return after.Kind == lexer.KindKeyword && (after.Text == "depth" || after.Text == "extend")
}

// Package parser implements the recursive-descent, precedence-climbing
// parser that turns tokens into an AST, holding a Parser struct over a
// token slice rather than a string-splitting CRUD/DDL dispatcher: TQL's
// grammar is one small clause language, not five SQL-dialect sublanguages.
package parser

import (
	"strconv"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/lexer"
)

type Parser struct {
	toks []lexer.Token
	pos  int
}

// Parse lexes and parses src into a Query AST.
func Parse(src string) (*ast.Query, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseQuery()
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if t.Kind != lexer.KindEOF {
		p.pos++
	}
	return t
}

func (p *Parser) isKeyword(text string) bool {
	t := p.cur()
	return t.Kind == lexer.KindKeyword && t.Text == text
}

func (p *Parser) isDelim(text string) bool {
	t := p.cur()
	return t.Kind == lexer.KindDelimiter && t.Text == text
}

func (p *Parser) isOp(text string) bool {
	t := p.cur()
	return t.Kind == lexer.KindOperator && t.Text == text
}

func (p *Parser) expectKeyword(text string) (lexer.Token, error) {
	if !p.isKeyword(text) {
		return lexer.Token{}, errExpected(p.cur(), text)
	}
	return p.advance(), nil
}

func (p *Parser) expectDelim(text string) (lexer.Token, error) {
	if !p.isDelim(text) {
		return lexer.Token{}, errExpected(p.cur(), text)
	}
	return p.advance(), nil
}

func (p *Parser) expectString() (lexer.Token, error) {
	if p.cur().Kind != lexer.KindString {
		return lexer.Token{}, errExpected(p.cur(), "string")
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent() (lexer.Token, error) {
	if p.cur().Kind != lexer.KindIdent {
		return lexer.Token{}, errExpected(p.cur(), "identifier")
	}
	return p.advance(), nil
}

// parseQuery implements:
//   query := "group" string from prune? where? when? sort? display? EOF
func (p *Parser) parseQuery() (*ast.Query, error) {
	start := p.cur().Span
	if _, err := p.expectKeyword("group"); err != nil {
		return nil, err
	}
	groupTok, err := p.expectString()
	if err != nil {
		return nil, err
	}

	q := &ast.Query{Group: groupTok.Text}

	from, err := p.parseFrom()
	if err != nil {
		return nil, err
	}
	q.From = from

	if p.isKeyword("prune") {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		q.Prune = expr
	}
	if p.isKeyword("where") {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		q.Where = expr
	}
	if p.isKeyword("when") {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		q.When = expr
	}
	if p.isKeyword("sort") {
		sort, err := p.parseSort()
		if err != nil {
			return nil, err
		}
		q.Sort = sort
	}
	if p.isKeyword("display") {
		disp, err := p.parseDisplay()
		if err != nil {
			return nil, err
		}
		q.Display = disp
	}

	if p.cur().Kind != lexer.KindEOF {
		return nil, errExpected(p.cur(), "end of input")
	}
	q.Span = start.Merge(p.cur().Span)
	return q, nil
}

// parseFrom implements: from := "from" relSpec ("," relSpec)*
func (p *Parser) parseFrom() (ast.FromClause, error) {
	if _, err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	var specs ast.FromClause
	spec, err := p.parseRelSpec()
	if err != nil {
		return nil, err
	}
	specs = append(specs, spec)
	for p.isDelim(",") {
		p.advance()
		spec, err := p.parseRelSpec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// parseRelSpec implements:
//   relSpec := ident { "depth" (Number|"unlimited") | "extend" (string|ident) | "flatten" }*
func (p *Parser) parseRelSpec() (ast.RelationSpec, error) {
	nameTok, err := p.expectIdent()
	if err != nil {
		return ast.RelationSpec{}, err
	}
	spec := ast.RelationSpec{Name: nameTok.Text, Depth: 1, Span: nameTok.Span}

	for {
		switch {
		case p.isKeyword("depth"):
			p.advance()
			if p.isKeyword("unlimited") {
				p.advance()
				spec.Depth = ast.Unlimited
				continue
			}
			if p.cur().Kind != lexer.KindNumber {
				return ast.RelationSpec{}, errExpected(p.cur(), "number", "unlimited")
			}
			n, err := strconv.Atoi(p.advance().Text)
			if err != nil {
				return ast.RelationSpec{}, errAt(p.cur(), "invalid depth")
			}
			spec.Depth = n
		case p.isKeyword("extend"):
			p.advance()
			if p.cur().Kind == lexer.KindString {
				v := p.advance().Text
				spec.Extend = &v
			} else if p.cur().Kind == lexer.KindIdent {
				v := p.advance().Text
				spec.Extend = &v
			} else {
				return ast.RelationSpec{}, errExpected(p.cur(), "string", "identifier")
			}
		case p.isKeyword("flatten"):
			p.advance()
			spec.Flatten = true
		default:
			spec.Span = spec.Span.Merge(p.toks[p.pos-1].Span)
			return spec, nil
		}
	}
}

// parseSort implements: sort := "sort" "by" sortKey ("," sortKey)*
func (p *Parser) parseSort() ([]ast.SortKey, error) {
	p.advance() // "sort"
	if _, err := p.expectKeyword("by"); err != nil {
		return nil, err
	}
	var keys []ast.SortKey
	k, err := p.parseSortKey()
	if err != nil {
		return nil, err
	}
	keys = append(keys, k)
	for p.isDelim(",") {
		p.advance()
		k, err := p.parseSortKey()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// parseSortKey implements: sortKey := ("chain"|propertyPath) ("asc"|"desc")?
func (p *Parser) parseSortKey() (ast.SortKey, error) {
	var key ast.SortKey
	start := p.cur().Span
	if p.isKeyword("chain") {
		p.advance()
		key.Chain = true
	} else {
		path, err := p.parsePropertyPath()
		if err != nil {
			return ast.SortKey{}, err
		}
		key.Property = path
	}
	key.Direction = ast.Asc
	if p.isKeyword("asc") {
		p.advance()
	} else if p.isKeyword("desc") {
		p.advance()
		key.Direction = ast.Desc
	}
	key.Span = start.Merge(p.toks[p.pos-1].Span)
	return key, nil
}

// parseDisplay implements: display := "display" ("all" | propertyPath) ("," propertyPath)*
func (p *Parser) parseDisplay() (*ast.DisplayClause, error) {
	start := p.cur().Span
	p.advance() // "display"
	disp := &ast.DisplayClause{}
	if p.isKeyword("all") {
		p.advance()
		disp.All = true
	} else {
		path, err := p.parsePropertyPath()
		if err != nil {
			return nil, err
		}
		disp.Properties = append(disp.Properties, path)
	}
	for p.isDelim(",") {
		p.advance()
		path, err := p.parsePropertyPath()
		if err != nil {
			return nil, err
		}
		disp.Properties = append(disp.Properties, path)
	}
	disp.Span = start.Merge(p.toks[p.pos-1].Span)
	return disp, nil
}

// parsePropertyPath implements: prop := IDENT ("." IDENT)*
func (p *Parser) parsePropertyPath() (ast.PropertyPath, error) {
	first, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	path := ast.PropertyPath{first.Text}
	for p.isOp(".") {
		p.advance()
		seg, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		path = append(path, seg.Text)
	}
	return path, nil
}

package lexer

import "github.com/trailql/tql/internal/ast"

// Kind is the closed set of token kinds.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDuration
	KindDate
	KindBool
	KindNull
	KindIdent
	KindKeyword
	KindOperator
	KindDelimiter
	KindEOF
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDuration:
		return "duration"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	case KindIdent:
		return "identifier"
	case KindKeyword:
		return "keyword"
	case KindOperator:
		return "operator"
	case KindDelimiter:
		return "delimiter"
	case KindEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Token is a single lexical token with its source span.
type Token struct {
	Kind Kind
	Text string
	Span ast.Span
}

// Keywords is the reserved word table.
var Keywords = map[string]bool{
	"group": true, "from": true, "depth": true, "unlimited": true,
	"extend": true, "flatten": true, "prune": true, "where": true,
	"when": true, "sort": true, "by": true, "chain": true, "asc": true,
	"desc": true, "display": true, "all": true, "and": true, "or": true,
	"not": true, "in": true, "true": true, "false": true, "null": true,
	"today": true, "yesterday": true, "tomorrow": true,
	"startOfWeek": true, "endOfWeek": true,
}

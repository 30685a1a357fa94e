package ast

// Expr is implemented by every expression node. Evaluation is a type
// switch over the concrete variants, not a visitor interface: two
// otherwise-plausible AST shapes (a plain-object tree, or a class-based
// tree with visitor methods) collapse here into one sum type.
type Expr interface {
	exprNode()
	Pos() Span
}

// Unlimited marks a RelationSpec depth with no bound.
const Unlimited = -1

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// AggFunc is the closed set of aggregate functions.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggAny
	AggAll
)

func (f AggFunc) String() string {
	switch f {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggAny:
		return "any"
	case AggAll:
		return "all"
	default:
		return "unknown"
	}
}

// PropertyPath is an ordered list of dotted path segments, e.g. "a.b.c".
type PropertyPath []string

func (p PropertyPath) String() string {
	s := ""
	for i, seg := range p {
		if i > 0 {
			s += "."
		}
		s += seg
	}
	return s
}

// RelationSpec is one element of a FromClause: a named relation plus its
// traversal modifiers (depth/extend/flatten), in any order per the grammar.
type RelationSpec struct {
	Name    string
	Depth   int // Unlimited for "depth unlimited"; 1 is the default when omitted
	Extend  *string
	Flatten bool
	Span    Span
}

// FromClause is the ordered, non-empty list of relation specs a query
// traverses from the active node.
type FromClause []RelationSpec

// AggSourceKind distinguishes the three forms an aggregate subquery source
// can take.
type AggSourceKind int

const (
	AggSourceGroup AggSourceKind = iota
	AggSourceFrom
	AggSourceBareIdent
)

// AggSource is the resolved-or-resolvable source of an aggregate subquery.
type AggSource struct {
	Kind  AggSourceKind
	Name  string       // AggSourceGroup / AggSourceBareIdent
	From  FromClause   // AggSourceFrom
}

// SortKey is one element of a "sort by" clause.
type SortKey struct {
	Chain     bool // true for the literal "chain" key
	Property  PropertyPath
	Direction Direction
	Span      Span
}

// DisplayClause projects a set of properties, optionally unioned with every
// top-level non-reserved property when All is set.
type DisplayClause struct {
	All        bool
	Properties []PropertyPath
	Span       Span
}

// Query is the top-level parsed-and-validated AST.
type Query struct {
	Group   string
	From    FromClause
	Prune   Expr
	Where   Expr
	When    Expr
	Sort    []SortKey
	Display *DisplayClause
	Span    Span
}

// ---- expression variants ----

type LiteralExpr struct {
	Value Value
	Span_ Span
}

func (e *LiteralExpr) exprNode() {}
func (e *LiteralExpr) Pos() Span { return e.Span_ }

// DurationLit is a number+suffix literal (e.g. "3d") kept distinct from a
// plain number so arithmetic can recognise it before it collapses to
// milliseconds at evaluation time.
type DurationLit struct {
	Amount float64
	Unit   byte // 'd', 'w', 'm', 'y'
	Span_  Span
}

func (e *DurationLit) exprNode() {}
func (e *DurationLit) Pos() Span { return e.Span_ }

type PropertyExpr struct {
	Path  PropertyPath
	Span_ Span
}

func (e *PropertyExpr) exprNode() {}
func (e *PropertyExpr) Pos() Span { return e.Span_ }

type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

type LogicalExpr struct {
	Op    LogicalOp
	Left  Expr
	Right Expr
	Span_ Span
}

func (e *LogicalExpr) exprNode() {}
func (e *LogicalExpr) Pos() Span { return e.Span_ }

type UnaryExpr struct {
	X     Expr
	Span_ Span
}

func (e *UnaryExpr) exprNode() {}
func (e *UnaryExpr) Pos() Span { return e.Span_ }

type CompareOp int

const (
	CmpEq CompareOp = iota
	CmpNeq
	CmpLt
	CmpGt
	CmpLte
	CmpGte
	CmpNullSafeEq
	CmpNullSafeNeq
)

type CompareExpr struct {
	Op    CompareOp
	Left  Expr
	Right Expr
	Span_ Span
}

func (e *CompareExpr) exprNode() {}
func (e *CompareExpr) Pos() Span { return e.Span_ }

type ArithOp int

const (
	ArithAdd ArithOp = iota
	ArithSub
)

type ArithExpr struct {
	Op    ArithOp
	Left  Expr
	Right Expr
	Span_ Span
}

func (e *ArithExpr) exprNode() {}
func (e *ArithExpr) Pos() Span { return e.Span_ }

// MembershipExpr covers both "x in list" and the range form "x in lo..hi".
type MembershipExpr struct {
	Subject    Expr
	Collection Expr // nil when Range
	Range      bool
	Low, High  Expr // set when Range
	Span_      Span
}

func (e *MembershipExpr) exprNode() {}
func (e *MembershipExpr) Pos() Span { return e.Span_ }

type CallExpr struct {
	Name  string
	Args  []Expr
	Span_ Span
}

func (e *CallExpr) exprNode() {}
func (e *CallExpr) Pos() Span { return e.Span_ }

type AggregateExpr struct {
	Func      AggFunc
	Source    AggSource
	Property  PropertyPath // sum/avg/min/max
	Condition Expr         // any/all
	Span_     Span
}

func (e *AggregateExpr) exprNode() {}
func (e *AggregateExpr) Pos() Span { return e.Span_ }

// RelativeDateKeyword values recognised as date bases. A date base followed
// by "+"/"-" and a duration is represented directly as an ArithExpr. The
// arithmetic evaluator already implements "date plus-or-minus a duration
// in milliseconds equals a date", so no separate node is needed to carry
// that composition.
type RelativeDate int

const (
	RelToday RelativeDate = iota
	RelYesterday
	RelTomorrow
	RelStartOfWeek
	RelEndOfWeek
)

type RelativeDateExpr struct {
	Which RelativeDate
	Span_ Span
}

func (e *RelativeDateExpr) exprNode() {}
func (e *RelativeDateExpr) Pos() Span { return e.Span_ }

// Package builtins is the registry of pure functions: strings, dates,
// arrays, file metadata, and existence helpers, each declared with a
// min/max arity the validator checks before execution ever runs. The
// registry shape, name to {arity bounds, Call}, is a name-keyed
// dispatch table generalized from a closed keyword set to a closed
// function set.
package builtins

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/graph"
)

// Builtin is one registered function.
type Builtin struct {
	MinArity int
	MaxArity int // -1 for unbounded
	Call     func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error)
}

// Registry maps a builtin's name to its definition. It is read-only after
// init; callers must not mutate it.
var Registry map[string]*Builtin

// Has reports whether name is a known builtin.
func Has(name string) bool {
	_, ok := Registry[name]
	return ok
}

// Arity returns the [min, max] arity of a known builtin.
func Arity(name string) (min, max int, ok bool) {
	b, ok := Registry[name]
	if !ok {
		return 0, 0, false
	}
	return b.MinArity, b.MaxArity, true
}

func reg(name string, min, max int, call func([]ast.Value, graph.FuncContext) (ast.Value, error)) {
	Registry[name] = &Builtin{MinArity: min, MaxArity: max, Call: call}
}

func init() {
	Registry = make(map[string]*Builtin)
	registerExistence()
	registerString()
	registerArray()
	registerDate()
	registerFile()
}

// ---- existence ----

func registerExistence() {
	reg("prop", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		name := args[0].Str
		props := ctx.GetProperties(ctx.FilePath())
		if v, ok := props[name]; ok {
			return v, nil
		}
		return ast.Null, nil
	})
	reg("exists", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		return ast.Bool(!args[0].IsNull()), nil
	})
	reg("coalesce", 1, -1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return ast.Null, nil
	})
	reg("ifnull", 2, 2, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		if !args[0].IsNull() {
			return args[0], nil
		}
		return args[1], nil
	})
}

// ---- string ----

func registerString() {
	reg("contains", 2, 2, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		return ast.Bool(strings.Contains(args[0].Str, args[1].Str)), nil
	})
	reg("startsWith", 2, 2, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		return ast.Bool(strings.HasPrefix(args[0].Str, args[1].Str)), nil
	})
	reg("endsWith", 2, 2, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		return ast.Bool(strings.HasSuffix(args[0].Str, args[1].Str)), nil
	})
	reg("length", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		return ast.Number(float64(len([]rune(args[0].Str)))), nil
	})
	reg("lower", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		return ast.String(strings.ToLower(args[0].Str)), nil
	})
	reg("upper", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		return ast.String(strings.ToUpper(args[0].Str)), nil
	})
	reg("trim", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		return ast.String(strings.TrimSpace(args[0].Str)), nil
	})
	reg("split", 2, 2, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		parts := strings.Split(args[0].Str, args[1].Str)
		out := make([]ast.Value, len(parts))
		for i, p := range parts {
			out[i] = ast.String(p)
		}
		return ast.List(out), nil
	})
	reg("matches", 2, 3, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		pattern := args[1].Str
		if len(args) == 3 && strings.Contains(args[2].Str, "i") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return ast.Null, fmt.Errorf("matches: invalid pattern: %w", err)
		}
		return ast.Bool(re.MatchString(args[0].Str)), nil
	})
}

// ---- array ----

func registerArray() {
	reg("len", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		if args[0].Kind != ast.KindList {
			return ast.Null, nil
		}
		return ast.Number(float64(len(args[0].List))), nil
	})
	reg("first", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		if args[0].Kind != ast.KindList || len(args[0].List) == 0 {
			return ast.Null, nil
		}
		return args[0].List[0], nil
	})
	reg("last", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		if args[0].Kind != ast.KindList || len(args[0].List) == 0 {
			return ast.Null, nil
		}
		return args[0].List[len(args[0].List)-1], nil
	})
	reg("isEmpty", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		switch args[0].Kind {
		case ast.KindList:
			return ast.Bool(len(args[0].List) == 0), nil
		case ast.KindString:
			return ast.Bool(args[0].Str == ""), nil
		case ast.KindNull:
			return ast.Bool(true), nil
		default:
			return ast.Bool(false), nil
		}
	})
}

// ---- date ----

func registerDate() {
	reg("now", 0, 0, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		return ast.Date(ctx.Now()), nil
	})
	reg("date", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		if args[0].Kind == ast.KindDate {
			return args[0], nil
		}
		t, err := time.ParseInLocation("2006-01-02", args[0].Str, time.Local)
		if err != nil {
			return ast.Null, nil
		}
		return ast.Date(t), nil
	})
	reg("year", 1, 1, dateField(func(t time.Time) float64 { return float64(t.Year()) }))
	reg("month", 1, 1, dateField(func(t time.Time) float64 { return float64(t.Month()) }))
	reg("day", 1, 1, dateField(func(t time.Time) float64 { return float64(t.Day()) }))
	reg("weekday", 1, 1, dateField(func(t time.Time) float64 { return float64(t.Weekday()) }))
	reg("hours", 1, 1, dateField(func(t time.Time) float64 { return float64(t.Hour()) }))
	reg("minutes", 1, 1, dateField(func(t time.Time) float64 { return float64(t.Minute()) }))
	reg("format", 2, 2, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		if args[0].Kind != ast.KindDate {
			return ast.Null, nil
		}
		return ast.String(formatDate(args[0].Date, args[1].Str)), nil
	})
	reg("dateDiff", 2, 3, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		if args[0].Kind != ast.KindDate || args[1].Kind != ast.KindDate {
			return ast.Null, nil
		}
		unit := "days"
		if len(args) == 3 {
			unit = args[2].Str
		}
		diff := args[0].Date.Sub(args[1].Date)
		var v float64
		switch unit {
		case "ms":
			v = float64(diff.Milliseconds())
		case "seconds":
			v = diff.Seconds()
		case "minutes":
			v = diff.Minutes()
		case "hours":
			v = diff.Hours()
		default:
			v = diff.Hours() / 24
		}
		return ast.Number(math.Floor(v)), nil
	})
}

func dateField(f func(time.Time) float64) func([]ast.Value, graph.FuncContext) (ast.Value, error) {
	return func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		if args[0].Kind != ast.KindDate {
			return ast.Null, nil
		}
		return ast.Number(f(args[0].Date)), nil
	}
}

// formatDate implements a YYYY MM DD HH mm ss token vocabulary, not Go's
// reference-time layout: tokens are order-independent substitutions
// rather than a single reference string.
func formatDate(t time.Time, pattern string) string {
	repl := strings.NewReplacer(
		"YYYY", strconv.Itoa(t.Year()),
		"MM", fmt.Sprintf("%02d", int(t.Month())),
		"DD", fmt.Sprintf("%02d", t.Day()),
		"HH", fmt.Sprintf("%02d", t.Hour()),
		"mm", fmt.Sprintf("%02d", t.Minute()),
		"ss", fmt.Sprintf("%02d", t.Second()),
	)
	return repl.Replace(pattern)
}

// ---- file ----

func registerFile() {
	reg("inFolder", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		meta, ok := ctx.GetFileMetadata(ctx.FilePath())
		if !ok {
			return ast.Bool(false), nil
		}
		want := strings.TrimSuffix(args[0].Str, "/")
		folder := strings.TrimSuffix(meta.Folder, "/")
		return ast.Bool(folder == want || strings.HasPrefix(folder, want+"/")), nil
	})
	reg("hasExtension", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		meta, ok := ctx.GetFileMetadata(ctx.FilePath())
		if !ok {
			return ast.Bool(false), nil
		}
		ext := strings.TrimPrefix(args[0].Str, ".")
		return ast.Bool(strings.HasSuffix(meta.Name, "."+ext)), nil
	})
	reg("hasTag", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		meta, ok := ctx.GetFileMetadata(ctx.FilePath())
		if !ok {
			return ast.Bool(false), nil
		}
		for _, t := range meta.Tags {
			if t == args[0].Str {
				return ast.Bool(true), nil
			}
		}
		return ast.Bool(false), nil
	})
	reg("tags", 0, 0, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		meta, ok := ctx.GetFileMetadata(ctx.FilePath())
		if !ok {
			return ast.List(nil), nil
		}
		return stringsToValue(meta.Tags), nil
	})
	reg("hasLink", 1, 1, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		meta, ok := ctx.GetFileMetadata(ctx.FilePath())
		if !ok {
			return ast.Bool(false), nil
		}
		for _, l := range meta.Links {
			if l == args[0].Str {
				return ast.Bool(true), nil
			}
		}
		return ast.Bool(false), nil
	})
	reg("backlinks", 0, 0, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		meta, ok := ctx.GetFileMetadata(ctx.FilePath())
		if !ok {
			return ast.List(nil), nil
		}
		return stringsToValue(meta.Backlinks), nil
	})
	reg("outlinks", 0, 0, func(args []ast.Value, ctx graph.FuncContext) (ast.Value, error) {
		meta, ok := ctx.GetFileMetadata(ctx.FilePath())
		if !ok {
			return ast.List(nil), nil
		}
		return stringsToValue(meta.Links), nil
	})
}

func stringsToValue(ss []string) ast.Value {
	out := make([]ast.Value, len(ss))
	for i, s := range ss {
		out[i] = ast.String(s)
	}
	return ast.List(out)
}

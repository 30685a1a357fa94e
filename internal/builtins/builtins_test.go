package builtins_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trailql/tql/internal/ast"
	"github.com/trailql/tql/internal/builtins"
	"github.com/trailql/tql/internal/graph"
)

type fakeCtx struct {
	path  string
	props map[string]ast.Value
	meta  graph.FileMetadata
	hasMe bool
	now   time.Time
}

func (f *fakeCtx) FilePath() string { return f.path }
func (f *fakeCtx) GetProperties(path string) map[string]ast.Value {
	if path == f.path {
		return f.props
	}
	return nil
}
func (f *fakeCtx) GetFileMetadata(path string) (graph.FileMetadata, bool) {
	if path == f.path {
		return f.meta, f.hasMe
	}
	return graph.FileMetadata{}, false
}
func (f *fakeCtx) Now() time.Time { return f.now }

func call(t *testing.T, name string, args []ast.Value, ctx graph.FuncContext) ast.Value {
	t.Helper()
	b, ok := builtins.Registry[name]
	require.True(t, ok, "builtin %q must be registered", name)
	v, err := b.Call(args, ctx)
	require.NoError(t, err)
	return v
}

func TestStringBuiltins(t *testing.T) {
	ctx := &fakeCtx{}
	require.Equal(t, ast.String("HELLO"), call(t, "upper", []ast.Value{ast.String("hello")}, ctx))
	require.Equal(t, ast.Bool(true), call(t, "contains", []ast.Value{ast.String("hello world"), ast.String("world")}, ctx))
	require.Equal(t, ast.Number(5), call(t, "length", []ast.Value{ast.String("hello")}, ctx))
}

func TestCoalesceAndIfnull(t *testing.T) {
	ctx := &fakeCtx{}
	v := call(t, "coalesce", []ast.Value{ast.Null, ast.Null, ast.String("fallback")}, ctx)
	require.Equal(t, ast.String("fallback"), v)

	v = call(t, "ifnull", []ast.Value{ast.Null, ast.Number(5)}, ctx)
	require.Equal(t, ast.Number(5), v)
}

func TestNowUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := &fakeCtx{now: fixed}
	v := call(t, "now", nil, ctx)
	require.Equal(t, ast.KindDate, v.Kind)
	require.True(t, fixed.Equal(v.Date))
}

func TestDateArithmeticHelpers(t *testing.T) {
	ctx := &fakeCtx{}
	d := ast.Date(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.Equal(t, ast.Number(2024), call(t, "year", []ast.Value{d}, ctx))
	require.Equal(t, ast.Number(3), call(t, "month", []ast.Value{d}, ctx))
	require.Equal(t, ast.Number(15), call(t, "day", []ast.Value{d}, ctx))
}

func TestFormatDateTokens(t *testing.T) {
	ctx := &fakeCtx{}
	d := ast.Date(time.Date(2024, 3, 5, 8, 9, 1, 0, time.UTC))
	v := call(t, "format", []ast.Value{d, ast.String("YYYY-MM-DD HH:mm:ss")}, ctx)
	require.Equal(t, ast.String("2024-03-05 08:09:01"), v)
}

func TestFileMetadataBuiltins(t *testing.T) {
	ctx := &fakeCtx{
		path:  "notes/daily/today.md",
		hasMe: true,
		meta:  graph.FileMetadata{Name: "today.md", Folder: "notes/daily", Tags: []string{"journal"}, Links: []string{"a.md"}},
	}
	require.Equal(t, ast.Bool(true), call(t, "inFolder", []ast.Value{ast.String("notes/daily")}, ctx))
	require.Equal(t, ast.Bool(false), call(t, "inFolder", []ast.Value{ast.String("notes/weekly")}, ctx))
	require.Equal(t, ast.Bool(true), call(t, "hasExtension", []ast.Value{ast.String("md")}, ctx))
	require.Equal(t, ast.Bool(true), call(t, "hasTag", []ast.Value{ast.String("journal")}, ctx))
	require.Equal(t, ast.Bool(true), call(t, "hasLink", []ast.Value{ast.String("a.md")}, ctx))
}

func TestArityIsEnforcedByValidatorSurface(t *testing.T) {
	min, max, ok := builtins.Arity("coalesce")
	require.True(t, ok)
	require.Equal(t, 1, min)
	require.Equal(t, -1, max)

	_, _, ok = builtins.Arity("doesNotExist")
	require.False(t, ok)
}

// Package graph defines the external collaborator interfaces TQL consumes:
// the host's graph provider, its relation/group validation catalog, and
// the small value types that cross that boundary. Only their shape lives
// here, never an implementation.
package graph

import (
	"time"

	"github.com/trailql/tql/internal/ast"
)

// VisualDirection classifies how a relation should be drawn/ordered by the
// host, and whether it participates in chain sort (the Sequential variant).
type VisualDirection int

const (
	Ascending VisualDirection = iota
	Descending
	Sequential
)

// Edge is one traversal step returned by the provider.
type Edge struct {
	FromPath    string
	ToPath      string
	Relation    string
	Implied     bool
	ImpliedFrom string // meaningful only when Implied
}

// FileMetadata is the host-supplied descriptor behind file.* properties
// and the file-oriented builtins.
type FileMetadata struct {
	Name      string
	Path      string
	Folder    string
	Created   time.Time
	Modified  time.Time
	Size      int64
	Tags      []string
	Links     []string
	Backlinks []string
}

// TraversalContext is the (depth, relation, isImplied, parent, path) tuple
// attached to each expression evaluation during traversal.
type TraversalContext struct {
	Depth     int
	Relation  string
	IsImplied bool
	Parent    string
	Path      string
}

// Provider is the graph/context provider the executor requires.
type Provider interface {
	ActiveFilePath() string
	ActiveFileProperties() map[string]ast.Value

	// GetOutgoingEdges returns edges leaving path. relation == "" means
	// "every relation".
	GetOutgoingEdges(path, relation string) []Edge
	// GetIncomingEdges is reserved for future use. The core
	// never calls it, but a provider must implement it.
	GetIncomingEdges(path, relation string) []Edge

	GetProperties(path string) map[string]ast.Value
	GetFileMetadata(path string) (FileMetadata, bool)

	GetRelationNames() []string
	GetVisualDirection(relation string) VisualDirection
	GetSequentialRelations() map[string]bool

	ResolveGroupQuery(name string) (*ast.Query, bool)
}

// ValidationCatalog is the lighter-weight catalog the validator consumes;
// it needs only name lookups, not a live active node.
type ValidationCatalog interface {
	HasRelation(name string) bool
	HasGroup(name string) bool
	GetRelationNames() []string
	GetGroupNames() []string
}

// FuncContext is what a builtin function receives alongside its evaluated
// arguments: the current file path and the two
// provider lookups a builtin is allowed to make directly.
type FuncContext interface {
	FilePath() string
	GetProperties(path string) map[string]ast.Value
	GetFileMetadata(path string) (FileMetadata, bool)
	// Now returns the evaluator's clock time, so now()/date-relative
	// builtins stay mockable instead of reaching for time.Now() directly.
	Now() time.Time
}

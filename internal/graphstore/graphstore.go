// Package graphstore defines the Code Graph Store contract: parameterized
// query execution plus node/edge MERGE, independent of backing store.
package graphstore

import (
	"context"
	"fmt"
)

// Kind is a CodeEntity's tagged-variant discriminator.
type Kind string

const (
	KindType       Kind = "Type"
	KindMethod     Kind = "Method"
	KindField      Kind = "Field"
	KindAnnotation Kind = "Annotation"
)

// RelationKind is drawn from the closed edge-kind enum in the data model.
type RelationKind string

const (
	RelationExtends        RelationKind = "EXTENDS"
	RelationImplements     RelationKind = "IMPLEMENTS"
	RelationDeclares       RelationKind = "DECLARES"
	RelationCalls          RelationKind = "CALLS"
	RelationInjects        RelationKind = "INJECTS"
	RelationReturns        RelationKind = "RETURNS"
	RelationAccepts        RelationKind = "ACCEPTS"
	RelationThrows         RelationKind = "THROWS"
	RelationUses           RelationKind = "USES"
	RelationAnnotatedBy    RelationKind = "ANNOTATED_BY"
	RelationTypeDependency RelationKind = "TYPE_DEPENDENCY"
)

var validRelationKinds = map[RelationKind]bool{
	RelationExtends: true, RelationImplements: true, RelationDeclares: true,
	RelationCalls: true, RelationInjects: true, RelationReturns: true,
	RelationAccepts: true, RelationThrows: true, RelationUses: true,
	RelationAnnotatedBy: true, RelationTypeDependency: true,
}

// SafeInterpolateKind is the only place a relationship kind may be
// concatenated into query text rather than bound as a parameter -- every
// other value in a graph query must travel through $-bound parameters.
func SafeInterpolateKind(kind string) (string, error) {
	if !validRelationKinds[RelationKind(kind)] {
		return "", fmt.Errorf("graphstore: %q is not a recognized relationship kind", kind)
	}
	return kind, nil
}

// Node is a CodeEntity as stored in the graph.
type Node struct {
	ID             string
	RepositoryID   string
	Kind           Kind
	Name           string
	FullyQualified string
	FilePath       string
	LineStart      int
	LineEnd        int
	SourceText     string
	Summary        string
	Annotations    []string
}

// Edge is a directed Relationship.
type Edge struct {
	FromID     string
	ToID       string
	Kind       RelationKind
	Properties map[string]string
}

// Row is one result row from a parameterized graph Query.
type Row map[string]any

// Store is the contract every concrete backend (sqlitegraph, ...) implements.
type Store interface {
	// MergeNode inserts or updates a node, keyed by ID.
	MergeNode(ctx context.Context, node Node) error
	// MergeEdge inserts or updates an edge, keyed by (fromId, toId, kind). The
	// write is silently dropped - never persisted as a dangling edge - if
	// either endpoint does not exist at write time.
	MergeEdge(ctx context.Context, edge Edge) error
	// Query executes a parameterized query and returns matching rows. Only
	// params travel as bound values; callers must not build query strings by
	// concatenating arbitrary input (see SafeInterpolateKind).
	Query(ctx context.Context, query string, params map[string]any) ([]Row, error)
	// DeleteRepository removes every node and edge owned by repositoryID.
	// There is no exported unscoped wipe.
	DeleteRepository(ctx context.Context, repositoryID string) error
	// FullTextSearch searches sourceText/summary for a substring, scoped to repositoryID.
	FullTextSearch(ctx context.Context, repositoryID, term string, limit int) ([]Node, error)
}

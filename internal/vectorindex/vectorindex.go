// Package vectorindex defines the Vector Index contract: upsert, filtered
// delete, fetch-by-id, and similarity query, independent of backing store.
package vectorindex

import (
	"context"
	"fmt"
)

// MaxUpsertBatch is the maximum number of vectors submitted in one Upsert call.
const MaxUpsertBatch = 100

// MetadataIndexType marks the distinguished IndexState vector in metadata.
const MetadataIndexType = "INDEX_METADATA"

// Vector is one entry in the index: an embedding plus string metadata.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// Filter is a conjunction of metadata equality constraints, e.g.
// {"repo_name": "R", "file_path": "P"}.
type Filter map[string]string

// Match is one scored result from Query.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Index is the contract every concrete store (pgvector, ...) implements.
type Index interface {
	// Upsert inserts or replaces vectors. Callers must pre-chunk to MaxUpsertBatch.
	Upsert(ctx context.Context, vectors []Vector) error
	// DeleteByFilter deletes every vector whose metadata matches filter exactly.
	DeleteByFilter(ctx context.Context, filter Filter) error
	// FetchByIDs retrieves vectors by exact ID; missing IDs are simply absent
	// from the result (never an error).
	FetchByIDs(ctx context.Context, ids []string) ([]Vector, error)
	// Query performs a similarity search, optionally restricted by filter. A
	// nil vector with a non-nil filter performs a metadata-only scan.
	Query(ctx context.Context, vector []float32, filter Filter, topK int, includeMetadata bool) ([]Match, error)
}

// ValidateDimension returns an error if vec does not have exactly dim values,
// per the pinned-per-deployment embedding dimension (spec §9 resolution).
func ValidateDimension(vec []float32, dim int) error {
	if len(vec) != dim {
		return fmt.Errorf("vector has %d dimensions, expected %d", len(vec), dim)
	}
	return nil
}

// IndexStateVectorID returns the deterministic ID of a repository's
// distinguished IndexState metadata vector.
func IndexStateVectorID(repo string) string {
	return fmt.Sprintf("__metadata__:%s:index_state", repo)
}

// Chunks splits vectors into batches of at most MaxUpsertBatch, each upserted
// by an independent call per the sync algorithm.
func Chunks(vectors []Vector) [][]Vector {
	var out [][]Vector
	for len(vectors) > 0 {
		n := MaxUpsertBatch
		if n > len(vectors) {
			n = len(vectors)
		}
		out = append(out, vectors[:n])
		vectors = vectors[n:]
	}
	return out
}

// Package pgvector adapts a Postgres database with the pgvector extension to
// the vectorindex.Index contract, using the pgx/v5 pool driver.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssharma1011/ragforge/internal/vectorindex"
)

// Store is a vectorindex.Index backed by a `vectors` table with a pgvector
// `embedding` column and a JSONB `metadata` column.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
}

// Open connects to Postgres using dsn and returns a Store pinned to dimension.
func Open(ctx context.Context, dsn string, dimension int) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: ping: %w", err)
	}
	return &Store{pool: pool, dimension: dimension}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// EnsureSchema creates the vectors table and its pgvector index if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS vectors (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		);
		CREATE INDEX IF NOT EXISTS vectors_embedding_idx
			ON vectors USING ivfflat (embedding vector_cosine_ops);
	`, s.dimension))
	if err != nil {
		return fmt.Errorf("pgvector: ensure schema: %w", err)
	}
	return nil
}

func encodeVector(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%f", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (s *Store) Upsert(ctx context.Context, vectors []vectorindex.Vector) error {
	for _, batch := range vectorindex.Chunks(vectors) {
		if err := s.upsertBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, batch []vectorindex.Vector) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvector: begin upsert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, v := range batch {
		if err := vectorindex.ValidateDimension(v.Values, s.dimension); err != nil {
			return fmt.Errorf("pgvector: upsert %s: %w", v.ID, err)
		}
		metadata, err := json.Marshal(v.Metadata)
		if err != nil {
			return fmt.Errorf("pgvector: marshal metadata for %s: %w", v.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO vectors (id, embedding, metadata) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata
		`, v.ID, encodeVector(v.Values), metadata)
		if err != nil {
			return fmt.Errorf("pgvector: upsert %s: %w", v.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgvector: commit upsert: %w", err)
	}
	return nil
}

// DeleteByFilter deletes vectors whose metadata matches every key/value in
// filter. Filter keys are never interpolated into query text; only the JSONB
// path operands are parameterized.
func (s *Store) DeleteByFilter(ctx context.Context, filter vectorindex.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("pgvector: refusing unscoped delete (empty filter)")
	}
	var conds []string
	var args []any
	i := 1
	for k, v := range filter {
		conds = append(conds, fmt.Sprintf("metadata->>$%d = $%d", i, i+1))
		args = append(args, k, v)
		i += 2
	}
	query := "DELETE FROM vectors WHERE " + strings.Join(conds, " AND ")
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("pgvector: delete by filter: %w", err)
	}
	return nil
}

func (s *Store) FetchByIDs(ctx context.Context, ids []string) ([]vectorindex.Vector, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, metadata FROM vectors WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("pgvector: fetch by ids: %w", err)
	}
	defer rows.Close()

	var out []vectorindex.Vector
	for rows.Next() {
		var id string
		var metadataRaw []byte
		if err := rows.Scan(&id, &metadataRaw); err != nil {
			return nil, fmt.Errorf("pgvector: scan fetch row: %w", err)
		}
		var metadata map[string]string
		if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
			return nil, fmt.Errorf("pgvector: unmarshal metadata for %s: %w", id, err)
		}
		out = append(out, vectorindex.Vector{ID: id, Metadata: metadata})
	}
	return out, rows.Err()
}

func (s *Store) Query(ctx context.Context, vector []float32, filter vectorindex.Filter, topK int, includeMetadata bool) ([]vectorindex.Match, error) {
	if topK <= 0 {
		topK = 20
	}
	var conds []string
	args := []any{}
	argIdx := 1

	if vector != nil {
		args = append(args, encodeVector(vector))
		argIdx++
	}
	for k, v := range filter {
		conds = append(conds, fmt.Sprintf("metadata->>$%d = $%d", argIdx, argIdx+1))
		args = append(args, k, v)
		argIdx += 2
	}

	selectCols := "id"
	if includeMetadata {
		selectCols += ", metadata"
	}
	orderBy := "id"
	if vector != nil {
		orderBy = "embedding <=> $1"
		selectCols += fmt.Sprintf(", 1 - (embedding <=> $1) AS score")
	} else {
		selectCols += ", 1.0 AS score"
	}

	query := fmt.Sprintf("SELECT %s FROM vectors", selectCols)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s LIMIT %d", orderBy, topK)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: query: %w", err)
	}
	defer rows.Close()

	var out []vectorindex.Match
	for rows.Next() {
		m := vectorindex.Match{}
		var metadataRaw []byte
		if includeMetadata {
			if err := rows.Scan(&m.ID, &metadataRaw, &m.Score); err != nil {
				return nil, fmt.Errorf("pgvector: scan query row: %w", err)
			}
			var metadata map[string]string
			if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
				return nil, fmt.Errorf("pgvector: unmarshal query metadata: %w", err)
			}
			m.Metadata = metadata
		} else {
			if err := rows.Scan(&m.ID, &m.Score); err != nil {
				return nil, fmt.Errorf("pgvector: scan query row: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ vectorindex.Index = (*Store)(nil)

// Package sqlitegraph adapts a SQLite database with an FTS5 virtual table to
// the graphstore.Store contract, grounded on the DOT/graph store + FTS5
// retrieval idiom used elsewhere in this codebase for knowledge graphs.
package sqlitegraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // driver registration

	"github.com/ssharma1011/ragforge/internal/graphstore"
)

// Store is a graphstore.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitegraph: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT NOT NULL,
			repository_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			fully_qualified TEXT NOT NULL,
			file_path TEXT,
			line_start INTEGER,
			line_end INTEGER,
			source_text TEXT,
			summary TEXT,
			annotations TEXT,
			PRIMARY KEY (repository_id, id)
		);

		CREATE TABLE IF NOT EXISTS edges (
			repository_id TEXT NOT NULL,
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			properties TEXT,
			PRIMARY KEY (repository_id, from_id, to_id, kind)
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			id UNINDEXED,
			repository_id UNINDEXED,
			source_text,
			summary,
			content=nodes,
			content_rowid=rowid
		);
	`)
	if err != nil {
		return fmt.Errorf("sqlitegraph: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) MergeNode(ctx context.Context, node graphstore.Node) error {
	annotations, err := json.Marshal(node.Annotations)
	if err != nil {
		return fmt.Errorf("sqlitegraph: marshal annotations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, repository_id, kind, name, fully_qualified, file_path, line_start, line_end, source_text, summary, annotations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repository_id, id) DO UPDATE SET
			kind = excluded.kind, name = excluded.name, fully_qualified = excluded.fully_qualified,
			file_path = excluded.file_path, line_start = excluded.line_start, line_end = excluded.line_end,
			source_text = excluded.source_text, summary = excluded.summary, annotations = excluded.annotations
	`, node.ID, node.RepositoryID, string(node.Kind), node.Name, node.FullyQualified,
		node.FilePath, node.LineStart, node.LineEnd, node.SourceText, node.Summary, string(annotations))
	if err != nil {
		return fmt.Errorf("sqlitegraph: merge node %s: %w", node.ID, err)
	}
	return nil
}

// MergeEdge inserts or updates edge, silently dropping the write if either
// endpoint is absent - dangling edges are never persisted (spec invariant).
func (s *Store) MergeEdge(ctx context.Context, edge graphstore.Edge) error {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM nodes WHERE id IN (?, ?)
	`, edge.FromID, edge.ToID).Scan(&count)
	if err != nil {
		return fmt.Errorf("sqlitegraph: check edge endpoints: %w", err)
	}
	if count < 2 {
		return nil // endpoint missing: the edge is dropped without an error
	}

	var repositoryID string
	if err := s.db.QueryRowContext(ctx, `SELECT repository_id FROM nodes WHERE id = ? LIMIT 1`, edge.FromID).Scan(&repositoryID); err != nil {
		return fmt.Errorf("sqlitegraph: resolve repository for edge: %w", err)
	}

	properties, err := json.Marshal(edge.Properties)
	if err != nil {
		return fmt.Errorf("sqlitegraph: marshal edge properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO edges (repository_id, from_id, to_id, kind, properties) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (repository_id, from_id, to_id, kind) DO UPDATE SET properties = excluded.properties
	`, repositoryID, edge.FromID, edge.ToID, string(edge.Kind), string(properties))
	if err != nil {
		return fmt.Errorf("sqlitegraph: merge edge %s->%s: %w", edge.FromID, edge.ToID, err)
	}
	return nil
}

// Query executes a parameterized SQL query against the graph tables. Each
// `$name` placeholder is rewritten to `?` and params[name] is bound in the
// order the placeholders appear in query; callers must never concatenate untrusted
// strings into query - the only sanctioned exception is graphstore.SafeInterpolateKind.
func (s *Store) Query(ctx context.Context, query string, params map[string]any) ([]graphstore.Row, error) {
	boundQuery, args := bindNamedParams(query, params)
	rows, err := s.db.QueryContext(ctx, boundQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitegraph: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlitegraph: query columns: %w", err)
	}

	var out []graphstore.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlitegraph: scan query row: %w", err)
		}
		row := make(graphstore.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// bindNamedParams rewrites `$name` placeholders to `?` in the order they appear in query,
// matching the graph-query strategy's `$repoName`-style bound parameters.
func bindNamedParams(query string, params map[string]any) (string, []any) {
	var args []any
	var b strings.Builder
	i := 0
	for i < len(query) {
		if query[i] == '$' {
			j := i + 1
			for j < len(query) && (isIdentChar(query[j])) {
				j++
			}
			name := query[i+1 : j]
			if v, ok := params[name]; ok {
				b.WriteByte('?')
				args = append(args, v)
				i = j
				continue
			}
		}
		b.WriteByte(query[i])
		i++
	}
	return b.String(), args
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// DeleteRepository removes every node and edge owned by repositoryID. This
// is the only delete path; it is always scoped and never an unconditional wipe.
func (s *Store) DeleteRepository(ctx context.Context, repositoryID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitegraph: begin delete repository: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE repository_id = ?`, repositoryID); err != nil {
		return fmt.Errorf("sqlitegraph: delete edges for %s: %w", repositoryID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE repository_id = ?`, repositoryID); err != nil {
		return fmt.Errorf("sqlitegraph: delete nodes for %s: %w", repositoryID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitegraph: commit delete repository: %w", err)
	}
	return nil
}

// FullTextSearch performs an FTS5 substring search over sourceText/summary,
// scoped to repositoryID.
func (s *Store) FullTextSearch(ctx context.Context, repositoryID, term string, limit int) ([]graphstore.Node, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := strings.Fields(term)
	if len(terms) == 0 {
		return nil, nil
	}
	ftsQuery := strings.Join(terms, " OR ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.kind, n.name, n.fully_qualified, n.file_path, n.line_start, n.line_end, n.source_text, n.summary
		FROM nodes_fts f
		JOIN nodes n ON n.rowid = f.rowid
		WHERE f.nodes_fts MATCH ? AND n.repository_id = ?
		LIMIT ?
	`, ftsQuery, repositoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitegraph: full text search: %w", err)
	}
	defer rows.Close()

	var out []graphstore.Node
	for rows.Next() {
		n := graphstore.Node{RepositoryID: repositoryID}
		if err := rows.Scan(&n.ID, &n.Kind, &n.Name, &n.FullyQualified, &n.FilePath, &n.LineStart, &n.LineEnd, &n.SourceText, &n.Summary); err != nil {
			return nil, fmt.Errorf("sqlitegraph: scan full text row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

var _ graphstore.Store = (*Store)(nil)

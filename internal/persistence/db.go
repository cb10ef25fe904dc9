// Package persistence stores conversation snapshots and the append-only
// message audit log in SQLite, mirroring the teacher's single-writer,
// WAL-mode database discipline.
package persistence

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// CurrentSchemaVersion is bumped whenever createSchema's table set changes.
const CurrentSchemaVersion = 1

// Open creates (if necessary) and initializes the SQLite database at path,
// configured for a single writer: SQLite's WAL mode allows concurrent
// readers but only one writer at a time, so the pool is capped at one
// connection to avoid SQLITE_BUSY under concurrent agent runs.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening persistence database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging persistence database: %w", err)
	}
	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing persistence schema: %w", err)
	}
	return db, nil
}

func initializeSchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version == CurrentSchemaVersion {
		return nil
	}
	if version != 0 {
		return fmt.Errorf("unsupported schema version %d, expected 0 or %d", version, CurrentSchemaVersion)
	}
	return createSchema(db)
}

func schemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}
	var version int
	err = db.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

func createSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("executing pragma %s: %w", pragma, err)
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		// One row per conversation holding the latest WorkflowState snapshot.
		`CREATE TABLE IF NOT EXISTS conversation_snapshots (
			conversation_id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			status TEXT NOT NULL,
			state_json TEXT NOT NULL,
			updated_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		// Append-only audit log of every message added to a conversation.
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL REFERENCES conversation_snapshots(conversation_id),
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conversation_messages_conversation
			ON conversation_messages(conversation_id, seq)`,
	}
	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	_, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, CurrentSchemaVersion)
	return err
}

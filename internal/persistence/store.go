package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ssharma1011/ragforge/internal/logx"
	"github.com/ssharma1011/ragforge/internal/proto"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(timestampLayout, value)
}

// request is a fire-and-forget write sent to the Store's worker goroutine,
// mirroring the teacher's channel-based persistence Request.
type request struct {
	run func(db *sql.DB) error
}

// Store persists WorkflowState snapshots and the per-conversation message
// log. Writes are serialized through a single worker goroutine consuming a
// buffered channel, since the database is opened with a one-connection
// pool (SQLite allows only one writer at a time under WAL mode).
type Store struct {
	db     *sql.DB
	writes chan *request
	logger *logx.Logger
}

// NewStore opens the database at path and starts its write worker.
func NewStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:     db,
		writes: make(chan *request, 256),
		logger: logx.NewLogger("persistence"),
	}
	go s.runWorker()
	return s, nil
}

func (s *Store) runWorker() {
	for req := range s.writes {
		if err := req.run(s.db); err != nil {
			s.logger.Error("persistence write failed: %v", err)
		}
	}
}

// Close stops accepting writes and closes the underlying database. Callers
// must ensure no further SaveSnapshot/AppendMessage calls are in flight.
func (s *Store) Close() error {
	close(s.writes)
	return s.db.Close()
}

// SaveSnapshot fire-and-forgets an upsert of the conversation's latest
// WorkflowState. It does not block on the write completing.
func (s *Store) SaveSnapshot(state *proto.WorkflowState) error {
	if state == nil {
		return fmt.Errorf("saving snapshot: state is nil")
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling workflow state: %w", err)
	}
	s.writes <- &request{run: func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO conversation_snapshots (conversation_id, seq, status, state_json)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(conversation_id) DO UPDATE SET
				seq = excluded.seq,
				status = excluded.status,
				state_json = excluded.state_json,
				updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		`, state.ConversationID, state.Seq, string(state.Status), string(blob))
		return err
	}}
	return nil
}

// AppendMessage fire-and-forgets a single append-only audit log row.
func (s *Store) AppendMessage(conversationID string, seq int, msg proto.ConversationMessage) error {
	if conversationID == "" {
		return fmt.Errorf("appending message: conversation id is empty")
	}
	s.writes <- &request{run: func(db *sql.DB) error {
		_, err := db.Exec(`
			INSERT INTO conversation_messages (conversation_id, seq, role, content, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, conversationID, seq, string(msg.Role), msg.Content, msg.Timestamp.UTC().Format(timestampLayout))
		return err
	}}
	return nil
}

// LoadSnapshot returns the latest persisted WorkflowState for a
// conversation, or (nil, nil) if none has been saved yet. Reads go
// directly against the database rather than through the write worker.
func (s *Store) LoadSnapshot(ctx context.Context, conversationID string) (*proto.WorkflowState, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM conversation_snapshots WHERE conversation_id = ?`, conversationID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s: %w", conversationID, err)
	}
	var state proto.WorkflowState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot for %s: %w", conversationID, err)
	}
	return &state, nil
}

// LoadMessages returns a conversation's full append-only message log in
// sequence order.
func (s *Store) LoadMessages(ctx context.Context, conversationID string) ([]proto.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM conversation_messages WHERE conversation_id = ? ORDER BY seq ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var messages []proto.ConversationMessage
	for rows.Next() {
		var role, content, createdAt string
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		ts, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing message timestamp: %w", err)
		}
		messages = append(messages, proto.ConversationMessage{
			Timestamp: ts,
			Role:      proto.Role(role),
			Content:   content,
		})
	}
	return messages, rows.Err()
}

package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/ssharma1011/ragforge/internal/proto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "ragforge.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveSnapshotAndLoadSnapshotRoundTrips(t *testing.T) {
	store := newTestStore(t)
	state := &proto.WorkflowState{ConversationID: "conv-1", Seq: 3, Status: proto.StatusRunning}

	if err := store.SaveSnapshot(state); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	drainWrites(t, store)

	loaded, err := store.LoadSnapshot(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded == nil || loaded.Seq != 3 || loaded.Status != proto.StatusRunning {
		t.Fatalf("got %+v, want seq=3 status=RUNNING", loaded)
	}
}

func TestLoadSnapshotReturnsNilForUnknownConversation(t *testing.T) {
	store := newTestStore(t)
	loaded, err := store.LoadSnapshot(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != nil {
		t.Fatalf("got %+v, want nil", loaded)
	}
}

func TestAppendMessageAccumulatesInSequenceOrder(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveSnapshot(&proto.WorkflowState{ConversationID: "conv-2", Seq: 1, Status: proto.StatusRunning}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	if err := store.AppendMessage("conv-2", 1, proto.ConversationMessage{Timestamp: now, Role: proto.RoleUser, Content: "first"}); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if err := store.AppendMessage("conv-2", 2, proto.ConversationMessage{Timestamp: now.Add(time.Second), Role: proto.RoleAssistant, Content: "second"}); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	drainWrites(t, store)

	messages, err := store.LoadMessages(context.Background(), "conv-2")
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if len(messages) != 2 || messages[0].Content != "first" || messages[1].Content != "second" {
		t.Fatalf("got %+v, want [first, second] in order", messages)
	}
}

// drainWrites blocks until every write enqueued so far has been processed
// by the worker goroutine, by enqueueing a no-op write behind them.
func drainWrites(t *testing.T, s *Store) {
	t.Helper()
	done := make(chan struct{})
	s.writes <- &request{run: func(_ *sql.DB) error { close(done); return nil }}
	<-done
}

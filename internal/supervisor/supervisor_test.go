package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ssharma1011/ragforge/internal/agentrt"
	"github.com/ssharma1011/ragforge/internal/knowledge"
	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/persistence"
	"github.com/ssharma1011/ragforge/internal/proto"
	"github.com/ssharma1011/ragforge/internal/stream"
)

type stubChat struct{ responses []string }

func (s *stubChat) ModelName() string { return "stub" }
func (s *stubChat) Complete(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return llm.CompletionResponse{Content: resp}, nil
}

type stubRetrieval struct{}

func (stubRetrieval) Retrieve(context.Context, string, proto.RequirementAnalysis, string) []proto.CodeContext {
	return []proto.CodeContext{{ID: "a", FilePath: "a.go", Content: "package a"}}
}

type stubWorkspace struct{}

func (stubWorkspace) ApplyPatch(context.Context, string, proto.Patch) error { return nil }
func (stubWorkspace) Open(string) knowledge.WorkingCopy                    { return stubWorkingCopy{} }

type stubWorkingCopy struct{}

func (stubWorkingCopy) HeadCommit(context.Context) (string, error) { return "deadbeef", nil }
func (stubWorkingCopy) ChangedFiles(context.Context, string, string) ([]proto.ChangedFile, error) {
	return nil, nil
}
func (stubWorkingCopy) ReadFile(context.Context, string) ([]byte, error) { return nil, nil }
func (stubWorkingCopy) Root() string                                     { return "" }

type stubBuilder struct{ results []proto.BuildResult }

func (b *stubBuilder) Verify(context.Context, string) (proto.BuildResult, error) {
	r := b.results[0]
	b.results = b.results[1:]
	return r, nil
}

type stubForge struct{}

func (stubForge) Publish(context.Context, string, proto.Patch) (string, error) {
	return "https://example.com/pr/1", nil
}

func newTestSupervisor(t *testing.T, svc *agentrt.Services) (*Supervisor, *persistence.Store) {
	t.Helper()
	store, err := persistence.NewStore(filepath.Join(t.TempDir(), "ragforge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hub := stream.NewHub(time.Minute)
	return NewSupervisor(agentrt.Registry(), svc, store, hub, nil, 2), store
}

func TestSubmitRunsConversationToCompletion(t *testing.T) {
	chat := &stubChat{responses: []string{
		`{"taskType":"feature","domain":"backend","summary":"add widget"}`,
		"```json\n" + `{"branchName":"feat/widget","explanation":"add widget","fileEdits":[{"path":"widget.go","op":"create","content":"package w"}]}` + "\n```",
	}}
	builder := &stubBuilder{results: []proto.BuildResult{{Success: true}}}
	svc := &agentrt.Services{Chat: chat, Retrieval: stubRetrieval{}, Workspace: stubWorkspace{}, Builder: builder, Forge: stubForge{}}

	sup, store := newTestSupervisor(t, svc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.Start(ctx, 2)

	state := &proto.WorkflowState{
		ConversationID: "conv-1",
		CurrentAgent:   agentrt.RequirementAnalyzer,
		Status:         proto.StatusRunning,
		Messages:       []proto.ConversationMessage{{Role: proto.RoleUser, Content: "add a widget"}},
		Scratch:        map[string]any{},
	}
	require.NoError(t, sup.Submit(ctx, state))

	require.Eventually(t, func() bool {
		got, err := store.LoadSnapshot(ctx, "conv-1")
		return err == nil && got != nil && got.Status == proto.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetReturnsErrorForUnknownConversation(t *testing.T) {
	svc := &agentrt.Services{Chat: &stubChat{}, Retrieval: stubRetrieval{}, Workspace: stubWorkspace{}, Builder: &stubBuilder{}, Forge: stubForge{}}
	sup, _ := newTestSupervisor(t, svc)

	_, err := sup.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestResumeRejectsConversationNotAwaitingUser(t *testing.T) {
	svc := &agentrt.Services{Chat: &stubChat{}, Retrieval: stubRetrieval{}, Workspace: stubWorkspace{}, Builder: &stubBuilder{}, Forge: stubForge{}}
	sup, store := newTestSupervisor(t, svc)

	require.NoError(t, store.SaveSnapshot(&proto.WorkflowState{ConversationID: "conv-2", Status: proto.StatusRunning}))
	require.Eventually(t, func() bool {
		got, err := store.LoadSnapshot(context.Background(), "conv-2")
		return err == nil && got != nil
	}, time.Second, 5*time.Millisecond)

	err := sup.Resume(context.Background(), "conv-2", "more input")
	require.Error(t, err)
}

func TestCancelStopsAConversationAtTheNextStep(t *testing.T) {
	chat := &stubChat{responses: []string{`{"taskType":"x","domain":"x","summary":"x"}`}}
	svc := &agentrt.Services{Chat: chat, Retrieval: stubRetrieval{}, Workspace: stubWorkspace{}, Builder: &stubBuilder{}, Forge: stubForge{}}

	sup, store := newTestSupervisor(t, svc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := &proto.WorkflowState{
		ConversationID: "conv-3",
		CurrentAgent:   agentrt.RequirementAnalyzer,
		Status:         proto.StatusRunning,
		Scratch:        map[string]any{},
	}
	require.NoError(t, sup.Submit(ctx, state))
	sup.Cancel("conv-3")
	sup.Start(ctx, 1)

	require.Eventually(t, func() bool {
		got, err := store.LoadSnapshot(ctx, "conv-3")
		return err == nil && got != nil && got.Status == proto.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)
}

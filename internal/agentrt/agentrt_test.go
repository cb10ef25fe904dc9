package agentrt

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssharma1011/ragforge/internal/knowledge"
	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/proto"
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

type stubWorkspace struct{ applied *proto.Patch }

func (w *stubWorkspace) ApplyPatch(_ context.Context, _ string, patch proto.Patch) error {
	w.applied = &patch
	return nil
}

func (w *stubWorkspace) Open(string) knowledge.WorkingCopy { return stubWorkingCopy{} }

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

func TestRunHappyPathReachesComplete(t *testing.T) {
	chat := &stubChat{responses: []string{
		`{"taskType":"feature","domain":"backend","summary":"add widget"}`,
		"```json\n" + `{"branchName":"feat/widget","explanation":"add widget","fileEdits":[{"path":"widget.go","op":"create","content":"package w"}]}` + "\n```",
	}}
	builder := &stubBuilder{results: []proto.BuildResult{{Success: true}}}
	svc := &Services{Chat: chat, Retrieval: stubRetrieval{}, Workspace: &stubWorkspace{}, Builder: builder, Forge: stubForge{}}

	state := &proto.WorkflowState{
		ConversationID: "c1",
		CurrentAgent:   RequirementAnalyzer,
		Status:         proto.StatusRunning,
		Messages:       []proto.ConversationMessage{{Role: proto.RoleUser, Content: "add a widget"}},
		Scratch:        map[string]any{},
	}

	final := Run(context.Background(), Registry(), state, svc, nil)
	require.Equal(t, proto.StatusCompleted, final.Status)
	require.Equal(t, proto.DecisionComplete, final.LastAgentDecision.Kind)
	require.Equal(t, "https://example.com/pr/1", final.LastAgentDecision.Message)
}

func TestRunFailsAfterMaxBuildAttempts(t *testing.T) {
	responses := []string{`{"taskType":"x","domain":"x","summary":"x"}`}
	for i := 0; i < MaxBuildAttempts+1; i++ {
		responses = append(responses, `{"branchName":"b","explanation":"e","fileEdits":[{"path":"a.go","op":"modify","content":"x"}]}`)
	}
	chat := &stubChat{responses: responses}

	results := make([]proto.BuildResult, 0, MaxBuildAttempts+1)
	for i := 0; i <= MaxBuildAttempts; i++ {
		results = append(results, proto.BuildResult{Success: false, StructuredErrors: []proto.BuildError{{Kind: proto.BuildErrorSyntax, File: "a.go", Message: fmt.Sprintf("bad %d", i)}}})
	}
	builder := &stubBuilder{results: results}
	svc := &Services{Chat: chat, Retrieval: stubRetrieval{}, Workspace: &stubWorkspace{}, Builder: builder, Forge: stubForge{}}

	state := &proto.WorkflowState{
		ConversationID: "c2",
		CurrentAgent:   RequirementAnalyzer,
		Status:         proto.StatusRunning,
		Messages:       []proto.ConversationMessage{{Role: proto.RoleUser, Content: "fix this"}},
		Scratch:        map[string]any{},
	}

	final := Run(context.Background(), Registry(), state, svc, nil)
	require.Equal(t, proto.StatusFailed, final.Status)
	require.Equal(t, proto.DecisionFail, final.LastAgentDecision.Kind)
}

func TestRunStopsOnCancellation(t *testing.T) {
	svc := &Services{Chat: &stubChat{responses: []string{`{}`}}}
	state := &proto.WorkflowState{CurrentAgent: RequirementAnalyzer, Scratch: map[string]any{}}
	final := Run(context.Background(), Registry(), state, svc, func() bool { return true })
	require.Equal(t, proto.StatusCancelled, final.Status)
}

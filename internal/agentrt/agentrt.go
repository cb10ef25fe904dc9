// Package agentrt implements the Agent Runtime: the closed set of seven
// agents (RequirementAnalyzer, RetrievalPlanner, CodeGenerator, PatchApplier,
// BuildVerifier, FixGenerator, Publisher), each a pure function from
// WorkflowState to a new WorkflowState plus an AgentDecision, dispatched by
// name through a plain map rather than reflection.
package agentrt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ssharma1011/ragforge/internal/agentrt/llmjson"
	"github.com/ssharma1011/ragforge/internal/buildrepair"
	"github.com/ssharma1011/ragforge/internal/knowledge"
	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/logx"
	"github.com/ssharma1011/ragforge/internal/proto"
)

// Names of the closed agent set, used as map keys and as WorkflowState.CurrentAgent/NextAgent values.
const (
	RequirementAnalyzer = "RequirementAnalyzer"
	RetrievalPlanner    = "RetrievalPlanner"
	CodeGenerator       = "CodeGenerator"
	PatchApplier        = "PatchApplier"
	BuildVerifier       = "BuildVerifier"
	FixGenerator        = "FixGenerator"
	Publisher           = "Publisher"
)

// MaxBuildAttempts bounds the Build/Repair loop (PatchApplier -> BuildVerifier
// -> FixGenerator -> PatchApplier); exceeding it is a terminal FAIL.
const MaxBuildAttempts = 3

// AgentFunc is one step of the state machine: given the current state and
// the capability surface, it returns the next state and the decision that
// produced it.
type AgentFunc func(ctx context.Context, state *proto.WorkflowState, svc *Services) (*proto.WorkflowState, *proto.AgentDecision)

// Retriever is the capability the RetrievalPlanner needs, satisfied by
// internal/retrieval.Engine.
type Retriever interface {
	Retrieve(ctx context.Context, question string, analysis proto.RequirementAnalysis, repo string) []proto.CodeContext
}

// Workspace is the capability PatchApplier and the Knowledge Indexer sync
// step need, satisfied by internal/workspace.Manager. Open returns a view
// onto an already-cloned conversation directory without performing a clone.
type Workspace interface {
	ApplyPatch(ctx context.Context, conversationID string, patch proto.Patch) error
	Open(conversationID string) knowledge.WorkingCopy
}

// Builder is the capability BuildVerifier needs, satisfied by internal/buildrepair.Loop.
type Builder interface {
	Verify(ctx context.Context, conversationID string) (proto.BuildResult, error)
}

// Forge is the capability Publisher needs, satisfied by internal/forge.Publisher.
type Forge interface {
	Publish(ctx context.Context, conversationID string, patch proto.Patch) (prURL string, err error)
}

// Indexer is the capability the RetrievalPlanner needs to bring the Vector
// Index and Code Graph Store current before planning retrieval, satisfied
// by internal/knowledge.Indexer.
type Indexer interface {
	Sync(ctx context.Context, wc knowledge.WorkingCopy, repoKey string) *knowledge.SyncResult
}

// Services bundles every external capability an agent may call, composed of
// narrow interfaces the same way the teacher's effect.Runtime composes
// Messaging/Logging/AgentInfo.
type Services struct {
	Chat      llm.Client
	Retrieval Retriever
	Workspace Workspace
	Builder   Builder
	Forge     Forge
	Indexer   Indexer
	Logger    *logx.Logger
}

// Registry is the map[string]AgentFunc dispatch table, built once at the
// composition root.
func Registry() map[string]AgentFunc {
	return map[string]AgentFunc{
		RequirementAnalyzer: runRequirementAnalyzer,
		RetrievalPlanner:    runRetrievalPlanner,
		CodeGenerator:       runCodeGenerator,
		PatchApplier:        runPatchApplier,
		BuildVerifier:       runBuildVerifier,
		FixGenerator:        runFixGenerator,
		Publisher:           runPublisher,
	}
}

// Step advances state by one agent invocation, looked up from registry by
// state.CurrentAgent. Returns the new state and its decision. If
// CurrentAgent is unknown, returns a terminal ERROR decision. Transition
// records the agent that just ran as next.CurrentAgent (the audit trail);
// the caller must consult the returned decision's NextAgent to know what to
// dispatch next — see Run.
func Step(ctx context.Context, registry map[string]AgentFunc, state *proto.WorkflowState, svc *Services) (*proto.WorkflowState, *proto.AgentDecision) {
	fn, ok := registry[state.CurrentAgent]
	if !ok {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: fmt.Sprintf("unknown agent %q", state.CurrentAgent)}
		next := state.Transition(state.CurrentAgent, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed })
		return next, decision
	}
	return fn(ctx, state, svc)
}

// Run drives the state machine to completion or suspension: repeatedly
// Steps, advancing CurrentAgent to decision.NextAgent on CONTINUE, stopping
// on any terminal decision (COMPLETE, FAIL, ERROR) or SUSPEND_FOR_INPUT.
// cancelled is polled between agents for cooperative cancellation (the
// Workflow Supervisor's contract).
func Run(ctx context.Context, registry map[string]AgentFunc, state *proto.WorkflowState, svc *Services, cancelled func() bool) *proto.WorkflowState {
	for {
		if cancelled != nil && cancelled() {
			return state.Transition(state.CurrentAgent, &proto.AgentDecision{Kind: proto.DecisionError, Message: "cancelled"}, func(n *proto.WorkflowState) {
				n.Status = proto.StatusCancelled
			})
		}

		next, decision := Step(ctx, registry, state, svc)
		state = next

		if decision.Kind != proto.DecisionContinue || decision.NextAgent == "" {
			return state
		}

		advanced := state.Clone()
		advanced.CurrentAgent = decision.NextAgent
		state = advanced
	}
}

func lastUserMessage(state *proto.WorkflowState) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == proto.RoleUser {
			return state.Messages[i].Content
		}
	}
	return ""
}

// askForJSON asks chat to complete prompt, defensively extracts the JSON
// object from the response, and decodes it into out. It also returns the
// extracted JSON text so callers that need an audit-log record of the
// model's raw structured output don't have to re-extract it.
func askForJSON(ctx context.Context, chat llm.Client, prompt string, out any) (string, error) {
	if chat == nil {
		return "", fmt.Errorf("no chat client configured")
	}
	resp, err := chat.Complete(ctx, llm.CompletionRequest{
		Messages:     []llm.CompletionMessage{llm.NewUserMessage(prompt)},
		JSONResponse: true,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	extracted, err := llmjson.ExtractObject(resp.Content)
	if err != nil {
		return "", fmt.Errorf("extracting JSON from response: %w", err)
	}
	if err := json.Unmarshal([]byte(extracted), out); err != nil {
		return "", fmt.Errorf("decoding JSON response: %w", err)
	}
	return extracted, nil
}

// appendAuditMessage records an agent's raw structured LLM output as an
// assistant message, re-serialized through llmjson.StableJSON so the
// persisted audit log carries a re-encoded copy of the model's payload that
// keeps the field order the model emitted. A failure to re-serialize is not
// fatal to the conversation: the raw extracted JSON is appended instead and
// the step's normal decision still applies.
func appendAuditMessage(state *proto.WorkflowState, rawJSON string, logger *logx.Logger) []proto.ConversationMessage {
	stable, err := llmjson.StableJSON(rawJSON)
	if err != nil {
		if logger != nil {
			logger.Warn("audit message: stabilizing JSON failed, logging raw extract: %v", err)
		}
		stable = rawJSON
	}
	return state.AppendMessage(proto.RoleAssistant, stable)
}

const analyzePrompt = `Classify the following code-change requirement. Respond with strict JSON
{"taskType": "...", "domain": "...", "summary": "..."}, no prose, no code fences.
Requirement: %s`

func runRequirementAnalyzer(ctx context.Context, state *proto.WorkflowState, svc *Services) (*proto.WorkflowState, *proto.AgentDecision) {
	requirement := lastUserMessage(state)
	var analysis proto.RequirementAnalysis
	raw, err := askForJSON(ctx, svc.Chat, fmt.Sprintf(analyzePrompt, requirement), &analysis)
	if err != nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: err.Error()}
		return state.Transition(RequirementAnalyzer, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	decision := &proto.AgentDecision{Kind: proto.DecisionContinue, NextAgent: RetrievalPlanner}
	next := state.Transition(RequirementAnalyzer, decision, func(n *proto.WorkflowState) {
		n.RequirementAnalysis = &analysis
		n.Messages = appendAuditMessage(n, raw, svc.Logger)
	})
	return next, decision
}

// syncBeforeRetrieve runs the Knowledge Indexer against the conversation's
// working copy before planning retrieval, so the Vector Index and Code
// Graph Store reflect the repository's current HEAD (spec: Indexer runs
// inline on the conversation's worker, ahead of the Retrieval Engine). A
// missing Indexer/Workspace or a sync failure is logged and does not block
// retrieval: results are simply served from whatever the index last held.
func syncBeforeRetrieve(ctx context.Context, state *proto.WorkflowState, svc *Services) {
	if svc.Indexer == nil || svc.Workspace == nil {
		return
	}
	wc := svc.Workspace.Open(state.ConversationID)
	result := svc.Indexer.Sync(ctx, wc, state.RepoURL)
	if svc.Logger == nil {
		return
	}
	if result.Outcome == knowledge.OutcomeError {
		svc.Logger.Warn("indexer sync for %s failed, retrieving against existing index: %v", state.RepoURL, result.Err)
		return
	}
	svc.Logger.Info("indexer sync for %s: %s (%d files changed)", state.RepoURL, result.Outcome, result.FilesChanged)
}

func runRetrievalPlanner(ctx context.Context, state *proto.WorkflowState, svc *Services) (*proto.WorkflowState, *proto.AgentDecision) {
	if svc.Retrieval == nil || state.RequirementAnalysis == nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: "retrieval planner missing analysis or retrieval engine"}
		return state.Transition(RetrievalPlanner, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	syncBeforeRetrieve(ctx, state, svc)
	bundle := svc.Retrieval.Retrieve(ctx, lastUserMessage(state), *state.RequirementAnalysis, state.RepoURL)
	decision := &proto.AgentDecision{Kind: proto.DecisionContinue, NextAgent: CodeGenerator}
	next := state.Transition(RetrievalPlanner, decision, func(n *proto.WorkflowState) {
		n.ContextBundle = bundle
	})
	return next, decision
}

const codeGenPrompt = `You are generating a code patch for mode=%s.
Requirement: %s
Relevant context (file_path: content excerpt):
%s
Respond with strict JSON {"branchName": "...", "explanation": "...", "fileEdits": [{"path":"...","op":"create"|"modify"|"delete","content":"..."}], "testsAdded": [{"path":"...","content":"..."}]}, no prose, no code fences.`

func runCodeGenerator(ctx context.Context, state *proto.WorkflowState, svc *Services) (*proto.WorkflowState, *proto.AgentDecision) {
	contextText := renderContextBundle(state.ContextBundle)
	var patch proto.Patch
	prompt := fmt.Sprintf(codeGenPrompt, state.Mode, lastUserMessage(state), contextText)
	raw, err := askForJSON(ctx, svc.Chat, prompt, &patch)
	if err != nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: err.Error()}
		return state.Transition(CodeGenerator, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	decision := &proto.AgentDecision{Kind: proto.DecisionContinue, NextAgent: PatchApplier}
	next := state.Transition(CodeGenerator, decision, func(n *proto.WorkflowState) {
		n.CandidatePatch = &patch
		n.Messages = appendAuditMessage(n, raw, svc.Logger)
	})
	return next, decision
}

func renderContextBundle(bundle []proto.CodeContext) string {
	out := ""
	for _, c := range bundle {
		out += fmt.Sprintf("- %s (%s %s.%s)\n%s\n", c.FilePath, c.ChunkType, c.ClassName, c.MethodName, c.Content)
	}
	return out
}

func runPatchApplier(ctx context.Context, state *proto.WorkflowState, svc *Services) (*proto.WorkflowState, *proto.AgentDecision) {
	if state.CandidatePatch == nil || svc.Workspace == nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: "patch applier missing patch or workspace"}
		return state.Transition(PatchApplier, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	if err := svc.Workspace.ApplyPatch(ctx, state.ConversationID, *state.CandidatePatch); err != nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: fmt.Sprintf("applying patch: %v", err)}
		return state.Transition(PatchApplier, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	decision := &proto.AgentDecision{Kind: proto.DecisionContinue, NextAgent: BuildVerifier}
	return state.Transition(PatchApplier, decision, func(*proto.WorkflowState) {}), decision
}

func buildAttempts(state *proto.WorkflowState) int {
	if n, ok := state.Scratch["build_attempts"].(int); ok {
		return n
	}
	return 0
}

func runBuildVerifier(ctx context.Context, state *proto.WorkflowState, svc *Services) (*proto.WorkflowState, *proto.AgentDecision) {
	if svc.Builder == nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: "build verifier missing builder"}
		return state.Transition(BuildVerifier, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	result, err := svc.Builder.Verify(ctx, state.ConversationID)
	if err != nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: fmt.Sprintf("build verification failed to run: %v", err)}
		return state.Transition(BuildVerifier, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}

	attempts := buildAttempts(state)
	if result.Success {
		decision := &proto.AgentDecision{Kind: proto.DecisionContinue, NextAgent: Publisher}
		next := state.Transition(BuildVerifier, decision, func(n *proto.WorkflowState) { n.BuildResult = &result })
		return next, decision
	}

	if state.BuildResult != nil && buildrepair.SignaturesEqual(state.BuildResult.StructuredErrors, result.StructuredErrors) {
		decision := &proto.AgentDecision{Kind: proto.DecisionFail, Message: "no progress across build attempts, same errors twice in a row"}
		next := state.Transition(BuildVerifier, decision, func(n *proto.WorkflowState) {
			n.BuildResult = &result
			n.Status = proto.StatusFailed
		})
		return next, decision
	}

	attempts++
	if attempts > MaxBuildAttempts {
		decision := &proto.AgentDecision{Kind: proto.DecisionFail, Message: "build repair attempts exhausted"}
		next := state.Transition(BuildVerifier, decision, func(n *proto.WorkflowState) {
			n.BuildResult = &result
			n.Status = proto.StatusFailed
			n.Scratch["build_attempts"] = attempts
		})
		return next, decision
	}

	decision := &proto.AgentDecision{Kind: proto.DecisionContinue, NextAgent: FixGenerator}
	next := state.Transition(BuildVerifier, decision, func(n *proto.WorkflowState) {
		n.BuildResult = &result
		n.Scratch["build_attempts"] = attempts
	})
	return next, decision
}

const fixGenPrompt = `The previous patch failed to build. Original requirement: %s
Build errors:
%s
Respond with a corrected strict JSON Patch, same schema as before, no prose, no code fences.`

func runFixGenerator(ctx context.Context, state *proto.WorkflowState, svc *Services) (*proto.WorkflowState, *proto.AgentDecision) {
	if state.BuildResult == nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: "fix generator missing build result"}
		return state.Transition(FixGenerator, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	errsText := ""
	for _, e := range state.BuildResult.StructuredErrors {
		errsText += fmt.Sprintf("- [%s] %s:%d: %s\n", e.Kind, e.File, e.Line, e.Message)
	}
	var patch proto.Patch
	prompt := fmt.Sprintf(fixGenPrompt, lastUserMessage(state), errsText)
	raw, err := askForJSON(ctx, svc.Chat, prompt, &patch)
	if err != nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: err.Error()}
		return state.Transition(FixGenerator, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	decision := &proto.AgentDecision{Kind: proto.DecisionContinue, NextAgent: PatchApplier}
	next := state.Transition(FixGenerator, decision, func(n *proto.WorkflowState) {
		n.CandidatePatch = &patch
		n.Messages = appendAuditMessage(n, raw, svc.Logger)
	})
	return next, decision
}

func runPublisher(ctx context.Context, state *proto.WorkflowState, svc *Services) (*proto.WorkflowState, *proto.AgentDecision) {
	if svc.Forge == nil || state.CandidatePatch == nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: "publisher missing forge or patch"}
		return state.Transition(Publisher, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	prURL, err := svc.Forge.Publish(ctx, state.ConversationID, *state.CandidatePatch)
	if err != nil {
		decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: fmt.Sprintf("publishing: %v", err)}
		return state.Transition(Publisher, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusFailed }), decision
	}
	decision := &proto.AgentDecision{Kind: proto.DecisionComplete, Message: prURL}
	next := state.Transition(Publisher, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusCompleted })
	return next, decision
}

// Package proto defines the wire/value types shared across the orchestrator:
// WorkflowState, AgentDecision, RetrievalPlan, Patch, BuildResult, and the
// conversation message log, mirroring the data model from the design.
package proto

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle status of a conversation's WorkflowState.
type Status string

const (
	StatusRunning       Status = "RUNNING"
	StatusAwaitingUser  Status = "AWAITING_USER"
	StatusCompleted     Status = "COMPLETED"
	StatusFailed        Status = "FAILED"
	StatusCancelled     Status = "CANCELLED"
)

// Mode selects whether CodeGenerator is scaffolding a new project or
// maintaining an existing one.
type Mode string

const (
	ModeScaffold Mode = "scaffold"
	ModeMaintain Mode = "maintain"
)

// Role identifies the speaker of a ConversationMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationMessage is one entry in a WorkflowState's ordered message log.
type ConversationMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
}

// RequirementAnalysis is RequirementAnalyzer's output.
type RequirementAnalysis struct {
	TaskType string `json:"taskType"`
	Domain   string `json:"domain"`
	Summary  string `json:"summary"`
}

// StrategyType enumerates the retrieval strategies a RetrievalPlan may name.
type StrategyType string

const (
	StrategySemantic StrategyType = "semantic"
	StrategyMetadata StrategyType = "metadata"
	StrategyGraph    StrategyType = "graph"
	StrategyFullText StrategyType = "fullText"
	StrategyFilePath StrategyType = "filePath"
)

// RetrievalStrategy is one ordered step of a RetrievalPlan.
type RetrievalStrategy struct {
	Parameters  map[string]any `json:"parameters"`
	Type        StrategyType   `json:"type"`
	Reasoning   string         `json:"reasoning"`
	TargetRepos []string       `json:"targetRepos"`
	Priority    int            `json:"priority"`
	MaxResults  int            `json:"maxResults"`
}

// RetrievalPlan is the LLM-emitted ordered list of strategies used to
// assemble a ContextBundle.
type RetrievalPlan struct {
	Strategies []RetrievalStrategy `json:"strategies"`
}

// CodeContext is one deduplicated, score-ordered entry of a ContextBundle.
type CodeContext struct {
	ID         string  `json:"id"`
	ChunkType  string  `json:"chunkType"`
	ClassName  string  `json:"className"`
	MethodName string  `json:"methodName"`
	FilePath   string  `json:"filePath"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// ChangeType classifies a ChangedFile. A RENAME is modeled as DELETE(old) + ADD(new).
type ChangeType string

const (
	ChangeAdd    ChangeType = "ADD"
	ChangeModify ChangeType = "MODIFY"
	ChangeDelete ChangeType = "DELETE"
)

// ChangedFile drives incremental sync and diffing between two commits.
type ChangedFile struct {
	RelativePath string     `json:"relativePath"`
	ChangeType   ChangeType `json:"changeType"`
}

// BuildErrorKind classifies one parsed compiler diagnostic.
type BuildErrorKind string

const (
	BuildErrorSymbolNotFound BuildErrorKind = "SYMBOL_NOT_FOUND"
	BuildErrorTypeMismatch   BuildErrorKind = "TYPE_MISMATCH"
	BuildErrorSyntax         BuildErrorKind = "SYNTAX_ERROR"
	BuildErrorImport         BuildErrorKind = "IMPORT_ERROR"
	BuildErrorUnknown        BuildErrorKind = "UNKNOWN"
)

// BuildError is one structured compiler diagnostic parsed from raw output.
type BuildError struct {
	File    string         `json:"file"`
	Message string         `json:"message"`
	Kind    BuildErrorKind `json:"kind"`
	Line    int            `json:"line"`
	Column  int            `json:"column"`
}

// Signature returns a stable string used to detect lack-of-progress across
// repeated build attempts (same set of signatures twice in a row => FAIL).
func (e BuildError) Signature() string {
	return string(e.Kind) + "|" + e.File + "|" + e.Message
}

// BuildResult is the structured outcome of one compile/test attempt.
type BuildResult struct {
	RawLog          string        `json:"rawLog"`
	StructuredErrors []BuildError `json:"structuredErrors"`
	DurationMs      int64         `json:"durationMs"`
	Success         bool          `json:"success"`
}

// FileOp classifies one FileEdit within a Patch.
type FileOp string

const (
	FileOpCreate FileOp = "create"
	FileOpModify FileOp = "modify"
	FileOpDelete FileOp = "delete"
)

// FileEdit is one file-level change within a Patch.
type FileEdit struct {
	Path    string `json:"path"`
	Op      FileOp `json:"op"`
	Content string `json:"content"`
}

// TestFile is one test file added alongside a Patch.
type TestFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Patch is the LLM-emitted set of file edits and test additions targeting a branch.
type Patch struct {
	BranchName  string     `json:"branchName"`
	Explanation string     `json:"explanation"`
	FileEdits   []FileEdit `json:"fileEdits"`
	TestsAdded  []TestFile `json:"testsAdded"`
}

// DecisionKind classifies an AgentDecision's transition semantics.
type DecisionKind string

const (
	DecisionContinue  DecisionKind = "CONTINUE"
	DecisionSuspend   DecisionKind = "SUSPEND_FOR_INPUT"
	DecisionComplete  DecisionKind = "COMPLETE"
	DecisionFail      DecisionKind = "FAIL"
	DecisionError     DecisionKind = "ERROR"
)

// AgentDecision names the next transition produced by an agent step.
type AgentDecision struct {
	Scratch   map[string]any `json:"scratch,omitempty"`
	NextAgent string         `json:"nextAgent,omitempty"` // empty => terminal
	Kind      DecisionKind   `json:"kind"`
	Message   string         `json:"message,omitempty"`
}

// WorkflowState is the immutable-snapshot value carried through the Agent
// Runtime. Transition produces a new value; the receiver is never mutated.
type WorkflowState struct {
	LastAgentDecision  *AgentDecision         `json:"lastAgentDecision,omitempty"`
	RequirementAnalysis *RequirementAnalysis  `json:"requirementAnalysis,omitempty"`
	RetrievalPlan      *RetrievalPlan         `json:"retrievalPlan,omitempty"`
	CandidatePatch     *Patch                 `json:"candidatePatch,omitempty"`
	BuildResult        *BuildResult           `json:"buildResult,omitempty"`
	Scratch            map[string]any         `json:"scratch,omitempty"`
	ConversationID     string                 `json:"conversationId"`
	UserID             string                 `json:"userId"`
	RepoURL            string                 `json:"repoUrl"`
	Mode               Mode                   `json:"mode"`
	CurrentAgent       string                 `json:"currentAgent"`
	Status             Status                 `json:"status"`
	Messages           []ConversationMessage  `json:"messages"`
	ContextBundle      []CodeContext          `json:"contextBundle,omitempty"`
	Seq                int                    `json:"seq"`
}

// Clone performs a deep-enough copy so callers can freely mutate slices and
// maps without aliasing the receiver. Used as the basis for Transition.
func (s *WorkflowState) Clone() *WorkflowState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]ConversationMessage(nil), s.Messages...)
	out.ContextBundle = append([]CodeContext(nil), s.ContextBundle...)
	out.Scratch = make(map[string]any, len(s.Scratch))
	for k, v := range s.Scratch {
		out.Scratch[k] = v
	}
	return &out
}

// Transition returns a new WorkflowState reflecting the given mutation,
// preserving the audit invariant that the prior value is never modified
// in place. The caller-supplied fn receives the clone to mutate freely.
func (s *WorkflowState) Transition(currentAgent string, decision *AgentDecision, fn func(next *WorkflowState)) *WorkflowState {
	next := s.Clone()
	next.Seq = s.Seq + 1
	next.CurrentAgent = currentAgent
	next.LastAgentDecision = decision
	if fn != nil {
		fn(next)
	}
	return next
}

// AppendMessage returns a copy of the conversation log with msg appended.
func (s *WorkflowState) AppendMessage(role Role, content string) []ConversationMessage {
	return append(append([]ConversationMessage(nil), s.Messages...), ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// ToJSON and FromJSON round-trip WorkflowState through encoding/json.

// ToJSON serializes the state for snapshot persistence.
func (s *WorkflowState) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// FromJSON reconstructs a WorkflowState from a persisted snapshot.
func FromJSON(data []byte) (*WorkflowState, error) {
	var s WorkflowState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

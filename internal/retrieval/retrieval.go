// Package retrieval implements the Retrieval Engine: turns a requirement
// plus its RequirementAnalysis into an LLM-planned, multi-strategy search
// across the Vector Index and Code Graph Store, merged into a deduplicated
// ContextBundle.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ssharma1011/ragforge/internal/agentrt/llmjson"
	"github.com/ssharma1011/ragforge/internal/graphstore"
	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/logx"
	"github.com/ssharma1011/ragforge/internal/proto"
	"github.com/ssharma1011/ragforge/internal/vectorindex"
)

// DefaultBundleCap is the global cap on merged CodeContext results.
const DefaultBundleCap = 50

// DefaultSemanticMaxResults is used when a strategy omits MaxResults.
const DefaultSemanticMaxResults = 20

const planPrompt = `You are the retrieval planner for a code-modification assistant.
Given the requirement analysis below, emit a strict JSON object of the form:
{"strategies": [{"type": "semantic"|"metadata"|"graph"|"fullText"|"filePath", "reasoning": "...", "targetRepos": ["..."], "priority": 1, "maxResults": 20, "parameters": {}}]}
Requirement analysis: taskType=%s domain=%s summary=%q
Question: %s
Respond with only the JSON object, no prose, no code fences.`

// Engine asks a chat model for a RetrievalPlan and executes it against the
// Vector Index and Code Graph Store.
type Engine struct {
	chat     llm.Client
	embedder llm.Embedder
	vectors  vectorindex.Index
	graph    graphstore.Store
	logger   *logx.Logger
}

// New constructs a Retrieval Engine.
func New(chat llm.Client, embedder llm.Embedder, vectors vectorindex.Index, graph graphstore.Store) *Engine {
	return &Engine{chat: chat, embedder: embedder, vectors: vectors, graph: graph, logger: logx.NewLogger("retrieval")}
}

// Retrieve plans and executes retrieval for question against repo, returning
// an ordered, deduplicated ContextBundle.
func (e *Engine) Retrieve(ctx context.Context, question string, analysis proto.RequirementAnalysis, repo string) []proto.CodeContext {
	plan := e.plan(ctx, question, analysis, repo)

	byID := make(map[string]proto.CodeContext)
	sort.SliceStable(plan.Strategies, func(i, j int) bool {
		return plan.Strategies[i].Priority < plan.Strategies[j].Priority
	})

	for _, strategy := range plan.Strategies {
		results, err := e.execute(ctx, strategy, repo)
		if err != nil {
			e.logger.Warn("retrieve: strategy %s failed: %v", strategy.Type, err)
			continue
		}
		for _, r := range results {
			if existing, ok := byID[r.ID]; !ok || r.Score > existing.Score {
				byID[r.ID] = r
			}
		}
	}

	merged := make([]proto.CodeContext, 0, len(byID))
	for _, v := range byID {
		merged = append(merged, v)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > DefaultBundleCap {
		merged = merged[:DefaultBundleCap]
	}
	return merged
}

// plan asks the chat model for a RetrievalPlan, parsing defensively and
// falling back to a single semantic strategy on any failure.
func (e *Engine) plan(ctx context.Context, question string, analysis proto.RequirementAnalysis, repo string) proto.RetrievalPlan {
	fallback := proto.RetrievalPlan{Strategies: []proto.RetrievalStrategy{{
		Type:        proto.StrategySemantic,
		TargetRepos: []string{repo},
		MaxResults:  DefaultSemanticMaxResults,
		Priority:    1,
		Reasoning:   "fallback: single semantic strategy over the literal question",
		Parameters:  map[string]any{"query": question},
	}}}

	if e.chat == nil {
		return fallback
	}

	req := llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewUserMessage(fmt.Sprintf(planPrompt, analysis.TaskType, analysis.Domain, analysis.Summary, question)),
		},
		JSONResponse: true,
	}
	resp, err := e.chat.Complete(ctx, req)
	if err != nil {
		e.logger.Warn("plan: chat completion failed, falling back to semantic: %v", err)
		return fallback
	}

	extracted, err := llmjson.ExtractObject(resp.Content)
	if err != nil {
		e.logger.Warn("plan: defensive JSON extraction failed, falling back to semantic: %v", err)
		return fallback
	}

	var plan proto.RetrievalPlan
	if err := json.Unmarshal([]byte(extracted), &plan); err != nil || len(plan.Strategies) == 0 {
		e.logger.Warn("plan: JSON did not decode to a non-empty RetrievalPlan, falling back to semantic: %v", err)
		return fallback
	}
	for i := range plan.Strategies {
		if plan.Strategies[i].MaxResults <= 0 {
			plan.Strategies[i].MaxResults = DefaultSemanticMaxResults
		}
		if len(plan.Strategies[i].TargetRepos) == 0 {
			plan.Strategies[i].TargetRepos = []string{repo}
		}
	}
	return plan
}

func (e *Engine) execute(ctx context.Context, strategy proto.RetrievalStrategy, defaultRepo string) ([]proto.CodeContext, error) {
	targetRepo := defaultRepo
	if len(strategy.TargetRepos) > 0 {
		targetRepo = strategy.TargetRepos[0]
	}

	switch strategy.Type {
	case proto.StrategySemantic:
		return e.executeSemantic(ctx, strategy, targetRepo)
	case proto.StrategyMetadata:
		return e.executeMetadata(ctx, strategy, targetRepo)
	case proto.StrategyGraph:
		return e.executeGraph(ctx, strategy, targetRepo)
	case proto.StrategyFullText:
		return e.executeFullText(ctx, strategy, targetRepo)
	case proto.StrategyFilePath:
		return e.executeFilePath(ctx, strategy, targetRepo)
	default:
		return nil, fmt.Errorf("unknown strategy type %q", strategy.Type)
	}
}

func (e *Engine) executeSemantic(ctx context.Context, strategy proto.RetrievalStrategy, repo string) ([]proto.CodeContext, error) {
	query, _ := strategy.Parameters["query"].(string)
	if e.embedder == nil {
		return nil, fmt.Errorf("no embedder configured for semantic strategy")
	}
	embeddings, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := e.vectors.Query(ctx, embeddings[0], vectorindex.Filter{"repo_name": repo}, strategy.MaxResults, true)
	if err != nil {
		return nil, err
	}
	return matchesToContext(matches), nil
}

func (e *Engine) executeMetadata(ctx context.Context, strategy proto.RetrievalStrategy, repo string) ([]proto.CodeContext, error) {
	filter := vectorindex.Filter{"repo_name": repo}
	if className, ok := strategy.Parameters["classNameContains"].(string); ok && className != "" {
		filter["class_name"] = className
	}
	matches, err := e.vectors.Query(ctx, nil, filter, strategy.MaxResults, true)
	if err != nil {
		return e.executeGraph(ctx, strategy, repo)
	}
	return matchesToContext(matches), nil
}

func (e *Engine) executeGraph(ctx context.Context, strategy proto.RetrievalStrategy, repo string) ([]proto.CodeContext, error) {
	if e.graph == nil {
		return nil, fmt.Errorf("no graph store configured for graph strategy")
	}
	query, _ := strategy.Parameters["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("graph strategy missing required \"query\" parameter")
	}
	if kind, ok := strategy.Parameters["relationKind"].(string); ok && kind != "" {
		safe, err := graphstore.SafeInterpolateKind(kind)
		if err != nil {
			return nil, err
		}
		query = strings.ReplaceAll(query, "$relationKind", safe)
	}
	params := map[string]any{"repoName": repo}
	rows, err := e.graph.Query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return rowsToContext(rows), nil
}

func (e *Engine) executeFullText(ctx context.Context, strategy proto.RetrievalStrategy, repo string) ([]proto.CodeContext, error) {
	if e.graph == nil {
		return nil, fmt.Errorf("no graph store configured for fullText strategy")
	}
	term, _ := strategy.Parameters["term"].(string)
	nodes, err := e.graph.FullTextSearch(ctx, repo, term, strategy.MaxResults)
	if err != nil {
		return nil, err
	}
	return nodesToContext(nodes), nil
}

func (e *Engine) executeFilePath(ctx context.Context, strategy proto.RetrievalStrategy, repo string) ([]proto.CodeContext, error) {
	pattern, _ := strategy.Parameters["pathPattern"].(string)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filePath pattern %q: %w", pattern, err)
	}
	matches, err := e.vectors.Query(ctx, nil, vectorindex.Filter{"repo_name": repo}, strategy.MaxResults*4, true)
	if err != nil {
		return nil, err
	}
	var out []proto.CodeContext
	for _, m := range matchesToContext(matches) {
		if re.MatchString(m.FilePath) {
			out = append(out, m)
		}
	}
	return out, nil
}

func matchesToContext(matches []vectorindex.Match) []proto.CodeContext {
	out := make([]proto.CodeContext, 0, len(matches))
	for _, m := range matches {
		out = append(out, proto.CodeContext{
			ID:         m.ID,
			ChunkType:  m.Metadata["chunk_type"],
			ClassName:  m.Metadata["class_name"],
			MethodName: m.Metadata["method_name"],
			FilePath:   m.Metadata["file_path"],
			Content:    m.Metadata["content"],
			Score:      m.Score,
		})
	}
	return out
}

func rowsToContext(rows []graphstore.Row) []proto.CodeContext {
	out := make([]proto.CodeContext, 0, len(rows))
	for _, row := range rows {
		out = append(out, proto.CodeContext{
			ID:         asString(row["id"]),
			ChunkType:  asString(row["kind"]),
			ClassName:  asString(row["name"]),
			MethodName: asString(row["method_name"]),
			FilePath:   asString(row["file_path"]),
			Content:    asString(row["source_text"]),
			Score:      1.0,
		})
	}
	return out
}

func nodesToContext(nodes []graphstore.Node) []proto.CodeContext {
	out := make([]proto.CodeContext, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, proto.CodeContext{
			ID:        n.ID,
			ChunkType: string(n.Kind),
			ClassName: n.Name,
			FilePath:  n.FilePath,
			Content:   n.SourceText,
			Score:     1.0,
		})
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/proto"
	"github.com/ssharma1011/ragforge/internal/vectorindex"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Dimensions() int { return 1 }
func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

type fakeIndex struct {
	matches []vectorindex.Match
}

func (f *fakeIndex) Upsert(context.Context, []vectorindex.Vector) error          { return nil }
func (f *fakeIndex) DeleteByFilter(context.Context, vectorindex.Filter) error     { return nil }
func (f *fakeIndex) FetchByIDs(context.Context, []string) ([]vectorindex.Vector, error) {
	return nil, nil
}
func (f *fakeIndex) Query(context.Context, []float32, vectorindex.Filter, int, bool) ([]vectorindex.Match, error) {
	return f.matches, nil
}

func TestRetrieveFallsBackToSemanticWithoutChatClient(t *testing.T) {
	idx := &fakeIndex{matches: []vectorindex.Match{
		{ID: "a", Score: 0.9, Metadata: map[string]string{"file_path": "a.go"}},
		{ID: "b", Score: 0.5, Metadata: map[string]string{"file_path": "b.go"}},
	}}
	engine := New(nil, fakeEmbedder{}, idx, nil)

	bundle := engine.Retrieve(context.Background(), "how does auth work", proto.RequirementAnalysis{}, "acme/widgets")
	require.Len(t, bundle, 2)
	require.Equal(t, "a", bundle[0].ID)
	require.Equal(t, "b", bundle[1].ID)
}

func TestRetrieveMergesByIDKeepingHighestScore(t *testing.T) {
	idx := &sequenceIndex{results: [][]vectorindex.Match{
		{{ID: "dup", Score: 0.3, Metadata: map[string]string{}}},
		{{ID: "dup", Score: 0.8, Metadata: map[string]string{}}},
	}}
	chat := &stubChatClient{content: `{"strategies":[{"type":"semantic","priority":1,"parameters":{"query":"q"}},{"type":"semantic","priority":2,"parameters":{"query":"q"}}]}`}
	engine := New(chat, fakeEmbedder{}, idx, nil)
	bundle := engine.Retrieve(context.Background(), "q", proto.RequirementAnalysis{}, "r")
	require.Len(t, bundle, 1)
	require.InDelta(t, 0.8, bundle[0].Score, 0.0001)
}

// sequenceIndex returns the next entry of results on each Query call.
type sequenceIndex struct {
	fakeIndex
	results [][]vectorindex.Match
}

func (s *sequenceIndex) Query(context.Context, []float32, vectorindex.Filter, int, bool) ([]vectorindex.Match, error) {
	out := s.results[0]
	s.results = s.results[1:]
	return out, nil
}

var _ llm.Client = (*stubChatClient)(nil)

type stubChatClient struct{ content string }

func (s *stubChatClient) ModelName() string { return "stub" }
func (s *stubChatClient) Complete(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
	return llm.CompletionResponse{Content: s.content}, nil
}

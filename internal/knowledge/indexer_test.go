package knowledge

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssharma1011/ragforge/internal/graphstore/sqlitegraph"
	"github.com/ssharma1011/ragforge/internal/parser/goast"
	"github.com/ssharma1011/ragforge/internal/proto"
	"github.com/ssharma1011/ragforge/internal/vectorindex"
)

// fakeVectorIndex is an in-memory vectorindex.Index for indexer tests.
type fakeVectorIndex struct {
	mu   sync.Mutex
	data map[string]vectorindex.Vector
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{data: make(map[string]vectorindex.Vector)}
}

func (f *fakeVectorIndex) Upsert(_ context.Context, vectors []vectorindex.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		f.data[v.ID] = v
	}
	return nil
}

func (f *fakeVectorIndex) DeleteByFilter(_ context.Context, filter vectorindex.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, v := range f.data {
		if matchesFilter(v.Metadata, filter) {
			delete(f.data, id)
		}
	}
	return nil
}

func matchesFilter(metadata map[string]string, filter vectorindex.Filter) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func (f *fakeVectorIndex) FetchByIDs(_ context.Context, ids []string) ([]vectorindex.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []vectorindex.Vector
	for _, id := range ids {
		if v, ok := f.data[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVectorIndex) Query(context.Context, []float32, vectorindex.Filter, int, bool) ([]vectorindex.Match, error) {
	return nil, nil
}

// fakeEmbedder returns a one-dimensional embedding per text, deterministic
// on input length, avoiding a real provider dependency in tests.
type fakeEmbedder struct{}

func (fakeEmbedder) Dimensions() int { return 1 }

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

// fakeWorkingCopy serves fixed file contents and a single-commit history.
type fakeWorkingCopy struct {
	head  string
	files map[string]string
}

func (w *fakeWorkingCopy) HeadCommit(context.Context) (string, error) { return w.head, nil }

func (w *fakeWorkingCopy) ChangedFiles(_ context.Context, from, to string) ([]proto.ChangedFile, error) {
	var out []proto.ChangedFile
	for path := range w.files {
		out = append(out, proto.ChangedFile{RelativePath: path, ChangeType: proto.ChangeAdd})
	}
	return out, nil
}

func (w *fakeWorkingCopy) ReadFile(_ context.Context, relativePath string) ([]byte, error) {
	return []byte(w.files[relativePath]), nil
}

func (w *fakeWorkingCopy) Root() string { return "/fake" }

const sampleSource = `package sample

type Widget struct{}

func (w *Widget) Greet() string { return "hi" }
`

func newTestIndexer(t *testing.T) (*Indexer, *fakeVectorIndex) {
	t.Helper()
	graph, err := sqlitegraph.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = graph.Close() })

	vectors := newFakeVectorIndex()
	ix := New(vectors, graph, fakeEmbedder{}, goast.New())
	return ix, vectors
}

func TestSyncInitialFullEmbedsAndMirrorsToGraph(t *testing.T) {
	ix, vectors := newTestIndexer(t)
	wc := &fakeWorkingCopy{head: "commit-1", files: map[string]string{"widget.go": sampleSource}}

	result := ix.Sync(context.Background(), wc, "acme/widgets")
	require.NoError(t, result.Err)
	require.Equal(t, OutcomeInitialFull, result.Outcome)
	require.Positive(t, result.ChunksCreated)

	state, err := vectors.FetchByIDs(context.Background(), []string{vectorindex.IndexStateVectorID("acme/widgets")})
	require.NoError(t, err)
	require.Len(t, state, 1)
	require.Equal(t, "commit-1", state[0].Metadata["last_indexed_commit"])
}

func TestSyncTwiceWithNoChangesReportsNoChanges(t *testing.T) {
	ix, _ := newTestIndexer(t)
	wc := &fakeWorkingCopy{head: "commit-1", files: map[string]string{"widget.go": sampleSource}}

	first := ix.Sync(context.Background(), wc, "acme/widgets")
	require.NoError(t, first.Err)

	second := ix.Sync(context.Background(), wc, "acme/widgets")
	require.NoError(t, second.Err)
	require.Equal(t, OutcomeNoChanges, second.Outcome)
	require.Zero(t, second.ChunksCreated)
}

func TestForceFullReindexPreservesIndexStateVector(t *testing.T) {
	ix, vectors := newTestIndexer(t)
	wc := &fakeWorkingCopy{head: "commit-1", files: map[string]string{"widget.go": sampleSource}}

	require.NoError(t, ix.Sync(context.Background(), wc, "acme/widgets").Err)

	result := ix.ForceFullReindex(context.Background(), wc, "acme/widgets")
	require.NoError(t, result.Err)
	require.Equal(t, OutcomeForcedFull, result.Outcome)

	state, err := vectors.FetchByIDs(context.Background(), []string{vectorindex.IndexStateVectorID("acme/widgets")})
	require.NoError(t, err)
	require.Len(t, state, 1)
}

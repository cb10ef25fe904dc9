// Package knowledge implements the Knowledge Indexer: incremental sync from
// a working copy into the Vector Index and Code Graph Store, tracking the
// last-indexed commit per repository and re-embedding changed files at file
// granularity.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ssharma1011/ragforge/internal/graphstore"
	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/llmerrors"
	"github.com/ssharma1011/ragforge/internal/logx"
	"github.com/ssharma1011/ragforge/internal/parser"
	"github.com/ssharma1011/ragforge/internal/proto"
	"github.com/ssharma1011/ragforge/internal/vectorindex"
)

const parseWorkers = 8

// SyncOutcome classifies what Sync actually did.
type SyncOutcome string

const (
	OutcomeInitialFull SyncOutcome = "InitialFull"
	OutcomeIncremental SyncOutcome = "Incremental"
	OutcomeNoChanges   SyncOutcome = "NoChanges"
	OutcomeForcedFull  SyncOutcome = "ForcedFull"
	OutcomeError       SyncOutcome = "Error"
)

// SyncResult reports what a Sync call accomplished.
type SyncResult struct {
	Outcome       SyncOutcome
	FilesAnalyzed int
	FilesChanged  int
	ChunksDeleted int
	ChunksCreated int
	EmbedElapsed  time.Duration
	TotalElapsed  time.Duration
	Err           error
}

// WorkingCopy is the subset of the Working-Copy Manager the Indexer needs:
// HEAD resolution and a changed-file diff between two commits.
type WorkingCopy interface {
	HeadCommit(ctx context.Context) (string, error)
	ChangedFiles(ctx context.Context, fromCommit, toCommit string) ([]proto.ChangedFile, error)
	ReadFile(ctx context.Context, relativePath string) ([]byte, error)
	Root() string
}

// isIndexable excludes test files, vendored paths and non-source paths from indexing.
// Adapted from the teacher's detectors/parsers split: only files a parser
// Adapter claims are worth the embed cost.
func isIndexable(adapters []parser.Adapter, relativePath string) bool {
	base := filepath.Base(relativePath)
	if strings.HasSuffix(base, "_test.go") {
		return false
	}
	if strings.Contains(relativePath, "/vendor/") || strings.Contains(relativePath, "/node_modules/") {
		return false
	}
	for _, a := range adapters {
		if a.CanParse(relativePath) {
			return true
		}
	}
	return false
}

// Indexer syncs a working copy's source tree into the Vector Index and Code
// Graph Store, keyed by repository.
type Indexer struct {
	vectors   vectorindex.Index
	graph     graphstore.Store
	adapters  []parser.Adapter
	embedder  llm.Embedder
	logger    *logx.Logger
}

// New constructs an Indexer. adapters are tried in order; the first one
// whose CanParse matches a file handles it.
func New(vectors vectorindex.Index, graph graphstore.Store, embedder llm.Embedder, adapters ...parser.Adapter) *Indexer {
	return &Indexer{
		vectors:  vectors,
		graph:    graph,
		adapters: adapters,
		embedder: embedder,
		logger:   logx.NewLogger("knowledge"),
	}
}

func (ix *Indexer) adapterFor(relativePath string) parser.Adapter {
	for _, a := range ix.adapters {
		if a.CanParse(relativePath) {
			return a
		}
	}
	return nil
}

// Sync runs the incremental-sync algorithm for repoKey against wc.
func (ix *Indexer) Sync(ctx context.Context, wc WorkingCopy, repoKey string) *SyncResult {
	start := time.Now()
	result := &SyncResult{}

	head, err := wc.HeadCommit(ctx)
	if err != nil {
		result.Outcome = OutcomeError
		result.Err = fmt.Errorf("resolving HEAD: %w", err)
		return result
	}

	lastIndexed, stateErr := ix.fetchIndexState(ctx, repoKey)
	if stateErr != nil {
		result.Outcome = OutcomeError
		result.Err = stateErr
		return result
	}

	if lastIndexed == head {
		result.Outcome = OutcomeNoChanges
		result.TotalElapsed = time.Since(start)
		return result
	}

	outcome := OutcomeIncremental
	if lastIndexed == "" {
		outcome = OutcomeInitialFull
	}

	changed, err := wc.ChangedFiles(ctx, lastIndexed, head)
	if err != nil {
		result.Outcome = OutcomeError
		result.Err = fmt.Errorf("computing changed files: %w", err)
		return result
	}

	var filtered []proto.ChangedFile
	for _, f := range changed {
		if isIndexable(ix.adapters, f.RelativePath) {
			filtered = append(filtered, f)
		}
	}
	result.FilesAnalyzed = len(changed)
	result.FilesChanged = len(filtered)

	if err := ix.syncFiles(ctx, wc, repoKey, filtered, result); err != nil {
		result.Outcome = OutcomeError
		result.Err = err
		return result
	}

	if err := ix.upsertIndexState(ctx, repoKey, head, result.ChunksCreated); err != nil {
		ix.logger.Warn("sync(%s): index state upsert failed: %v", repoKey, err)
	}
	ix.confirmIndexStateDurability(ctx, repoKey, head)

	result.Outcome = outcome
	result.TotalElapsed = time.Since(start)
	return result
}

// ForceFullReindex deletes every vector whose repo_name is repoKey, the
// IndexState vector included, clears the repository's graph, writes the
// IndexState vector back with an empty last commit, and then runs a full
// Sync, reported as ForcedFull. The previous last-indexed commit is not kept.
func (ix *Indexer) ForceFullReindex(ctx context.Context, wc WorkingCopy, repoKey string) *SyncResult {
	if err := ix.vectors.DeleteByFilter(ctx, vectorindex.Filter{"repo_name": repoKey}); err != nil {
		return &SyncResult{Outcome: OutcomeError, Err: fmt.Errorf("clearing code vectors: %w", err)}
	}
	if err := ix.graph.DeleteRepository(ctx, repoKey); err != nil {
		ix.logger.Warn("forceFullReindex(%s): graph clear failed: %v", repoKey, err)
	}
	if err := ix.upsertIndexState(ctx, repoKey, "", 0); err != nil {
		ix.logger.Warn("forceFullReindex(%s): index state reset failed: %v", repoKey, err)
	}
	result := ix.Sync(ctx, wc, repoKey)
	if result.Outcome == OutcomeInitialFull {
		result.Outcome = OutcomeForcedFull
	}
	return result
}

func (ix *Indexer) fetchIndexState(ctx context.Context, repoKey string) (string, error) {
	var commit string
	err := withFetchRetry(ctx, isRetryableFetch, func() error {
		matches, err := ix.vectors.FetchByIDs(ctx, []string{vectorindex.IndexStateVectorID(repoKey)})
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			commit = ""
			return nil
		}
		commit = matches[0].Metadata["last_indexed_commit"]
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetching index state: %w", err)
	}
	return commit, nil
}

func isRetryableFetch(err error) bool {
	if classified, ok := err.(*llmerrors.Error); ok { //nolint:errorlint // deliberate concrete-type check against the classified sentinel
		return classified.Retryable()
	}
	return false
}

func (ix *Indexer) upsertIndexState(ctx context.Context, repoKey, head string, chunkCount int) error {
	placeholder := make([]float32, ix.dimension())
	for i := range placeholder {
		placeholder[i] = 1e-6
	}
	return ix.vectors.Upsert(ctx, []vectorindex.Vector{{
		ID:     vectorindex.IndexStateVectorID(repoKey),
		Values: placeholder,
		Metadata: map[string]string{
			"repo_name":           repoKey,
			"chunk_type":          vectorindex.MetadataIndexType,
			"last_indexed_commit": head,
			"last_indexed_at":     time.Now().UTC().Format(time.RFC3339),
			"chunk_count":         fmt.Sprintf("%d", chunkCount),
		},
	}})
}

func (ix *Indexer) confirmIndexStateDurability(ctx context.Context, repoKey, head string) {
	matches, err := ix.vectors.FetchByIDs(ctx, []string{vectorindex.IndexStateVectorID(repoKey)})
	if err != nil || len(matches) == 0 || matches[0].Metadata["last_indexed_commit"] != head {
		ix.logger.Warn("sync(%s): index state not yet durable after upsert, next sync will correct drift", repoKey)
	}
}

func (ix *Indexer) dimension() int {
	if ix.embedder != nil && ix.embedder.Dimensions() > 0 {
		return ix.embedder.Dimensions()
	}
	return 1
}

// syncFiles applies delete-then-upsert to every changed file, mirroring into
// the graph store, and batches vector upserts to vectorindex.MaxUpsertBatch.
func (ix *Indexer) syncFiles(ctx context.Context, wc WorkingCopy, repoKey string, files []proto.ChangedFile, result *SyncResult) error {
	for _, f := range files {
		filter := vectorindex.Filter{"repo_name": repoKey, "file_path": f.RelativePath}
		if err := ix.vectors.DeleteByFilter(ctx, filter); err != nil {
			return fmt.Errorf("deleting stale chunks for %s: %w", f.RelativePath, err)
		}
	}

	var addOrModify []proto.ChangedFile
	for _, f := range files {
		if f.ChangeType != proto.ChangeDelete {
			addOrModify = append(addOrModify, f)
		}
	}
	if len(addOrModify) == 0 {
		return nil
	}

	chunks, parseErrors := ix.parseFiles(ctx, wc, addOrModify)
	for _, e := range parseErrors {
		ix.logger.Warn("sync(%s): %s", repoKey, e)
	}
	if len(chunks) == 0 {
		return nil
	}

	embedStart := time.Now()
	vectors, err := ix.embedChunks(ctx, repoKey, chunks)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	result.EmbedElapsed = time.Since(embedStart)

	for _, batch := range vectorindex.Chunks(vectors) {
		if err := ix.vectors.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("upserting vector batch: %w", err)
		}
	}
	result.ChunksCreated = len(vectors)

	ix.mirrorToGraph(ctx, repoKey, chunks)
	return nil
}

type parsedFile struct {
	path   string
	chunks []parser.Chunk
	err    error
}

// parseFiles fans parsing out across parseWorkers goroutines, bounded by
// errgroup.SetLimit, mirroring the pack's indexer pipeline.
func (ix *Indexer) parseFiles(ctx context.Context, wc WorkingCopy, files []proto.ChangedFile) ([]parser.Chunk, []string) {
	results := make([]parsedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseWorkers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			adapter := ix.adapterFor(f.RelativePath)
			if adapter == nil {
				results[i] = parsedFile{path: f.RelativePath, err: fmt.Errorf("no adapter for %s", f.RelativePath)}
				return nil
			}
			contents, err := wc.ReadFile(gctx, f.RelativePath)
			if err != nil {
				if os.IsNotExist(err) {
					results[i] = parsedFile{path: f.RelativePath, err: nil}
					return nil
				}
				results[i] = parsedFile{path: f.RelativePath, err: fmt.Errorf("%s: %w", f.RelativePath, err)}
				return nil
			}
			parsed, err := adapter.Parse(f.RelativePath, contents)
			if err != nil {
				results[i] = parsedFile{path: f.RelativePath, err: fmt.Errorf("%s: %w", f.RelativePath, err)}
				return nil
			}
			results[i] = parsedFile{path: f.RelativePath, chunks: parsed.Chunks}
			return nil
		})
	}
	_ = g.Wait()

	var allChunks []parser.Chunk
	var errs []string
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err.Error())
			continue
		}
		allChunks = append(allChunks, r.chunks...)
	}
	return allChunks, errs
}

func (ix *Indexer) embedChunks(ctx context.Context, repoKey string, chunks []parser.Chunk) ([]vectorindex.Vector, error) {
	if ix.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = semanticDescription(c)
	}
	embeddings, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	vectors := make([]vectorindex.Vector, len(chunks))
	for i, c := range chunks {
		vectors[i] = vectorindex.Vector{
			ID:     chunkID(repoKey, c),
			Values: embeddings[i],
			Metadata: map[string]string{
				"repo_name":   repoKey,
				"file_path":   c.FilePath,
				"chunk_type":  string(c.Kind),
				"class_name":  c.ClassName,
				"method_name": c.MethodName,
				"content":     c.SourceText,
			},
		}
	}
	return vectors, nil
}

func chunkID(repoKey string, c parser.Chunk) string {
	return fmt.Sprintf("%s:%s:%s:%s", repoKey, c.FilePath, c.ClassName, c.MethodName)
}

func semanticDescription(c parser.Chunk) string {
	if c.Summary != "" {
		return fmt.Sprintf("%s %s.%s: %s\n%s", c.Kind, c.ClassName, c.MethodName, c.Summary, c.SourceText)
	}
	return fmt.Sprintf("%s %s.%s\n%s", c.Kind, c.ClassName, c.MethodName, c.SourceText)
}

// mirrorToGraph writes each chunk into the Code Graph Store with MERGE
// semantics. Best-effort: failures are logged, never fatal to Sync.
func (ix *Indexer) mirrorToGraph(ctx context.Context, repoKey string, chunks []parser.Chunk) {
	if ix.graph == nil {
		return
	}
	for _, c := range chunks {
		node := graphstore.Node{
			ID:             chunkID(repoKey, c),
			RepositoryID:   repoKey,
			Kind:           graphKind(c.Kind),
			Name:           chunkName(c),
			FullyQualified: fmt.Sprintf("%s.%s", c.ClassName, c.MethodName),
			FilePath:       c.FilePath,
			LineStart:      c.LineStart,
			LineEnd:        c.LineEnd,
			SourceText:     c.SourceText,
			Summary:        c.Summary,
			Annotations:    c.Annotations,
		}
		if err := ix.graph.MergeNode(ctx, node); err != nil {
			ix.logger.Warn("mirrorToGraph(%s): merging node %s: %v", repoKey, node.ID, err)
			continue
		}
		if c.ClassName != "" && c.MethodName != "" {
			parentID := fmt.Sprintf("%s:%s:%s:", repoKey, c.FilePath, c.ClassName)
			if err := ix.graph.MergeEdge(ctx, graphstore.Edge{FromID: parentID, ToID: node.ID, Kind: graphstore.RelationDeclares}); err != nil {
				ix.logger.Warn("mirrorToGraph(%s): merging edge %s->%s: %v", repoKey, parentID, node.ID, err)
			}
		}
	}
}

func graphKind(k parser.ChunkKind) graphstore.Kind {
	switch k {
	case parser.ChunkMethod:
		return graphstore.KindMethod
	case parser.ChunkField:
		return graphstore.KindField
	default:
		return graphstore.KindType
	}
}

func chunkName(c parser.Chunk) string {
	if c.MethodName != "" {
		return c.MethodName
	}
	return c.ClassName
}

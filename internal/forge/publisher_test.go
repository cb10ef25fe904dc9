package forge

import (
	"context"
	"testing"

	"github.com/ssharma1011/ragforge/internal/proto"
	"github.com/ssharma1011/ragforge/internal/workspace"
)

type fakeGitRunner struct{ calls [][]string }

func (f *fakeGitRunner) Run(_ context.Context, dir string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{dir}, args...))
	return []byte(""), nil
}

type fakeForgeClient struct {
	prs []PullRequest
}

func (f *fakeForgeClient) Provider() Provider { return ProviderGitHub }
func (f *fakeForgeClient) RepoPath() string   { return "acme/widget" }
func (f *fakeForgeClient) ListPRsForBranch(context.Context, string) ([]PullRequest, error) {
	return f.prs, nil
}
func (f *fakeForgeClient) GetPR(context.Context, string) (*PullRequest, error) {
	if len(f.prs) == 0 {
		return nil, nil
	}
	return &f.prs[0], nil
}
func (f *fakeForgeClient) CreatePR(_ context.Context, opts PRCreateOptions) (*PullRequest, error) {
	pr := PullRequest{Number: 1, URL: "https://example.com/pr/1", Title: opts.Title, HeadBranch: opts.Head, BaseBranch: opts.Base}
	f.prs = append(f.prs, pr)
	return &pr, nil
}
func (f *fakeForgeClient) GetOrCreatePR(ctx context.Context, opts PRCreateOptions) (*PullRequest, error) {
	if len(f.prs) > 0 {
		return &f.prs[0], nil
	}
	return f.CreatePR(ctx, opts)
}

func TestPublisherPublishOpensPRAfterCommitAndPush(t *testing.T) {
	git := &fakeGitRunner{}
	ws := workspace.NewManager(git, t.TempDir())
	client := &fakeForgeClient{}
	pub := NewPublisher(client, ws, "main", workspace.Credentials{})

	patch := proto.Patch{BranchName: "feat/widget", Explanation: "add widget support"}
	url, err := pub.Publish(context.Background(), "conv-1", patch)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if url != "https://example.com/pr/1" {
		t.Errorf("got URL %q", url)
	}
	if len(client.prs) != 1 {
		t.Fatalf("expected one PR to be created, got %d", len(client.prs))
	}
}

func TestPublisherPublishRejectsMissingBranchName(t *testing.T) {
	git := &fakeGitRunner{}
	ws := workspace.NewManager(git, t.TempDir())
	pub := NewPublisher(&fakeForgeClient{}, ws, "main", workspace.Credentials{})

	_, err := pub.Publish(context.Background(), "conv-1", proto.Patch{})
	if err == nil {
		t.Fatalf("expected an error for a patch with no branch name")
	}
}

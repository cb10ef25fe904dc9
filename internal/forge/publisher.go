package forge

import (
	"context"
	"fmt"

	"github.com/ssharma1011/ragforge/internal/logx"
	"github.com/ssharma1011/ragforge/internal/proto"
	"github.com/ssharma1011/ragforge/internal/workspace"
)

// Publisher commits and pushes a patch's branch, then opens (or reuses) a
// pull request, satisfying agentrt.Forge.
type Publisher struct {
	client     Client
	workspace  *workspace.Manager
	baseBranch string
	creds      workspace.Credentials
	logger     *logx.Logger
}

func NewPublisher(client Client, ws *workspace.Manager, baseBranch string, creds workspace.Credentials) *Publisher {
	return &Publisher{client: client, workspace: ws, baseBranch: baseBranch, creds: creds, logger: logx.NewLogger("forge-publisher")}
}

// Publish creates the patch's branch off the base branch, commits the
// already-applied working-tree changes, pushes, and opens (or reuses) a PR.
func (p *Publisher) Publish(ctx context.Context, conversationID string, patch proto.Patch) (string, error) {
	branch := patch.BranchName
	if branch == "" {
		return "", fmt.Errorf("publishing patch: branch name is required")
	}

	if err := p.workspace.CreateBranch(ctx, conversationID, p.baseBranch, branch); err != nil {
		return "", fmt.Errorf("creating branch %s: %w", branch, err)
	}
	if err := p.workspace.CommitAll(ctx, conversationID, patch.Explanation); err != nil {
		return "", fmt.Errorf("committing patch: %w", err)
	}
	if err := p.workspace.Push(ctx, conversationID, branch, p.creds); err != nil {
		return "", fmt.Errorf("pushing branch %s: %w", branch, err)
	}

	pr, err := p.client.GetOrCreatePR(ctx, PRCreateOptions{
		Title: prTitle(patch),
		Body:  patch.Explanation,
		Head:  branch,
		Base:  p.baseBranch,
	})
	if err != nil {
		return "", fmt.Errorf("opening pull request: %w", err)
	}

	p.logger.Info("published conversation %s as PR %s", conversationID, pr.URL)
	return pr.URL, nil
}

func prTitle(patch proto.Patch) string {
	if patch.Explanation == "" {
		return patch.BranchName
	}
	if len(patch.Explanation) > 72 {
		return patch.Explanation[:72]
	}
	return patch.Explanation
}

// Package github adapts the "gh" CLI to forge.Client.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ssharma1011/ragforge/internal/forge"
	"github.com/ssharma1011/ragforge/internal/logx"
)

// Client drives GitHub pull request operations via the gh CLI, run on the
// host rather than inside any sandboxed build container since these are
// pure API calls.
type Client struct {
	owner   string
	repo    string
	logger  *logx.Logger
	timeout time.Duration
}

func NewClient(owner, repo string) *Client {
	return &Client{owner: owner, repo: repo, logger: logx.NewLogger("forge-github"), timeout: 30 * time.Second}
}

// NewClientFromRemote builds a Client from a git@github.com:owner/repo.git
// or https://github.com/owner/repo.git remote URL.
func NewClientFromRemote(remoteURL string) (*Client, error) {
	owner, repo, err := ParseGitHubURL(remoteURL)
	if err != nil {
		return nil, err
	}
	return NewClient(owner, repo), nil
}

func (c *Client) Provider() forge.Provider { return forge.ProviderGitHub }
func (c *Client) RepoPath() string         { return fmt.Sprintf("%s/%s", c.owner, c.repo) }

type ghPR struct {
	Number      int    `json:"number"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	State       string `json:"state"`
	HeadRefName string `json:"headRefName"`
	BaseRefName string `json:"baseRefName"`
	Mergeable   string `json:"mergeable"`
}

func convertPR(pr *ghPR) forge.PullRequest {
	return forge.PullRequest{
		Number:     pr.Number,
		URL:        pr.URL,
		Title:      pr.Title,
		Body:       pr.Body,
		State:      strings.ToLower(pr.State),
		HeadBranch: pr.HeadRefName,
		BaseBranch: pr.BaseRefName,
		Merged:     strings.EqualFold(pr.State, "MERGED"),
		Mergeable:  pr.Mergeable == "MERGEABLE",
	}
}

func (c *Client) ListPRsForBranch(ctx context.Context, branch string) ([]forge.PullRequest, error) {
	var prs []ghPR
	err := c.runJSON(ctx, &prs, "pr", "list", "--repo", c.RepoPath(), "--head", branch, "--state", "open",
		"--json", "number,url,title,body,state,headRefName,baseRefName,mergeable")
	if err != nil {
		return nil, err
	}
	result := make([]forge.PullRequest, len(prs))
	for i := range prs {
		result[i] = convertPR(&prs[i])
	}
	return result, nil
}

func (c *Client) GetPR(ctx context.Context, ref string) (*forge.PullRequest, error) {
	var pr ghPR
	err := c.runJSON(ctx, &pr, "pr", "view", ref, "--repo", c.RepoPath(),
		"--json", "number,url,title,body,state,headRefName,baseRefName,mergeable")
	if err != nil {
		return nil, err
	}
	result := convertPR(&pr)
	return &result, nil
}

func (c *Client) CreatePR(ctx context.Context, opts forge.PRCreateOptions) (*forge.PullRequest, error) {
	base := opts.Base
	if base == "" {
		base = "main"
	}
	args := []string{"pr", "create", "--repo", c.RepoPath(), "--title", opts.Title, "--body", opts.Body,
		"--head", opts.Head, "--base", base}

	out, err := c.run(ctx, args...)
	if err != nil {
		if strings.Contains(string(out), "already exists") {
			return c.GetPR(ctx, opts.Head)
		}
		return nil, err
	}
	return c.GetPR(ctx, opts.Head)
}

func (c *Client) GetOrCreatePR(ctx context.Context, opts forge.PRCreateOptions) (*forge.PullRequest, error) {
	prs, err := c.ListPRsForBranch(ctx, opts.Head)
	if err == nil && len(prs) > 0 {
		c.logger.Debug("found existing PR #%d for branch %s", prs[0].Number, opts.Head)
		return &prs[0], nil
	}
	return c.CreatePR(ctx, opts)
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("gh %s", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "gh", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("gh %s failed: %w\noutput: %s", strings.Join(args, " "), err, string(output))
	}
	return output, nil
}

func (c *Client) runJSON(ctx context.Context, result any, args ...string) error {
	output, err := c.run(ctx, args...)
	if err != nil {
		return err
	}
	if len(output) == 0 {
		return nil
	}
	if err := json.Unmarshal(output, result); err != nil {
		return fmt.Errorf("parsing gh output: %w\noutput: %s", err, string(output))
	}
	return nil
}

// ParseGitHubURL extracts owner/repo from an SSH or HTTPS GitHub remote URL.
func ParseGitHubURL(remote string) (owner, repo string, err error) {
	switch {
	case strings.HasPrefix(remote, "git@github.com:"):
		path := strings.TrimSuffix(strings.TrimPrefix(remote, "git@github.com:"), ".git")
		return splitOwnerRepo(path, remote)
	case strings.HasPrefix(remote, "https://github.com/"):
		path := strings.TrimSuffix(strings.TrimPrefix(remote, "https://github.com/"), ".git")
		return splitOwnerRepo(path, remote)
	default:
		return "", "", fmt.Errorf("unsupported GitHub remote URL: %s", remote)
	}
}

func splitOwnerRepo(path, original string) (owner, repo string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid GitHub remote URL: %s", original)
	}
	return parts[0], parts[1], nil
}

// Package forge provides a provider-agnostic abstraction over git hosting
// platforms (GitHub, Gitea) for opening pull requests.
package forge

import (
	"context"
	"time"
)

// Provider identifies a git hosting platform.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitea  Provider = "gitea"
)

// PullRequest is a hosting-provider-normalized view of a pull request.
type PullRequest struct {
	Number     int        `json:"number"`
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	State      string     `json:"state"`
	HeadBranch string     `json:"headBranch"`
	BaseBranch string     `json:"baseBranch"`
	Merged     bool       `json:"merged"`
	Mergeable  bool       `json:"mergeable"`
	MergedAt   *time.Time `json:"mergedAt,omitempty"`
}

// IsMerged reports whether the PR has been merged.
func (pr *PullRequest) IsMerged() bool {
	return pr.Merged || pr.MergedAt != nil
}

// PRCreateOptions describes a pull request to open.
type PRCreateOptions struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// Client is the interface both GitHub and Gitea adapters satisfy.
type Client interface {
	Provider() Provider
	RepoPath() string

	ListPRsForBranch(ctx context.Context, branch string) ([]PullRequest, error)
	GetPR(ctx context.Context, ref string) (*PullRequest, error)
	CreatePR(ctx context.Context, opts PRCreateOptions) (*PullRequest, error)
	GetOrCreatePR(ctx context.Context, opts PRCreateOptions) (*PullRequest, error)
}

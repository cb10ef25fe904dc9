// Package gitea adapts the Gitea REST API to forge.Client.
package gitea

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ssharma1011/ragforge/internal/forge"
	"github.com/ssharma1011/ragforge/internal/logx"
)

// Client implements forge.Client for a Gitea instance.
type Client struct {
	baseURL string
	token   string
	owner   string
	repo    string
	logger  *logx.Logger
	http    *http.Client
}

func NewClient(baseURL, token, owner, repo string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		owner:   owner,
		repo:    repo,
		logger:  logx.NewLogger("forge-gitea"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Provider() forge.Provider { return forge.ProviderGitea }
func (c *Client) RepoPath() string         { return fmt.Sprintf("%s/%s", c.owner, c.repo) }

func (c *Client) apiURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", c.baseURL, path)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("%s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

type giteaPR struct {
	Number    int      `json:"number"`
	HTMLURL   string   `json:"html_url"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	State     string   `json:"state"`
	Merged    bool     `json:"merged"`
	MergedAt  *string  `json:"merged_at"`
	Mergeable bool     `json:"mergeable"`
	Head      giteaRef `json:"head"`
	Base      giteaRef `json:"base"`
}

type giteaRef struct {
	Ref string `json:"ref"`
}

func convertPR(gpr *giteaPR) *forge.PullRequest {
	pr := &forge.PullRequest{
		Number:     gpr.Number,
		URL:        gpr.HTMLURL,
		Title:      gpr.Title,
		Body:       gpr.Body,
		State:      gpr.State,
		HeadBranch: gpr.Head.Ref,
		BaseBranch: gpr.Base.Ref,
		Merged:     gpr.Merged,
		Mergeable:  gpr.Mergeable,
	}
	if gpr.MergedAt != nil && *gpr.MergedAt != "" {
		if t, err := time.Parse(time.RFC3339, *gpr.MergedAt); err == nil {
			pr.MergedAt = &t
		}
	}
	return pr
}

func (c *Client) ListPRsForBranch(ctx context.Context, branch string) ([]forge.PullRequest, error) {
	head := fmt.Sprintf("%s:%s", c.owner, branch)
	path := fmt.Sprintf("/repos/%s/%s/pulls?state=open&head=%s", c.owner, c.repo, head)

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list PRs failed with status %d: %s", resp.StatusCode, string(body))
	}

	var prs []giteaPR
	if err := json.NewDecoder(resp.Body).Decode(&prs); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := make([]forge.PullRequest, 0, len(prs))
	for i := range prs {
		if prs[i].Head.Ref == branch {
			result = append(result, *convertPR(&prs[i]))
		}
	}
	return result, nil
}

func (c *Client) GetPR(ctx context.Context, ref string) (*forge.PullRequest, error) {
	if number, err := strconv.Atoi(ref); err == nil {
		return c.getPRByNumber(ctx, number)
	}
	prs, err := c.ListPRsForBranch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, fmt.Errorf("no PR found for branch %s", ref)
	}
	return &prs[0], nil
}

func (c *Client) getPRByNumber(ctx context.Context, number int) (*forge.PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", c.owner, c.repo, number)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get PR failed with status %d: %s", resp.StatusCode, string(body))
	}

	var gpr giteaPR
	if err := json.NewDecoder(resp.Body).Decode(&gpr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return convertPR(&gpr), nil
}

func (c *Client) CreatePR(ctx context.Context, opts forge.PRCreateOptions) (*forge.PullRequest, error) {
	if opts.Head == "" {
		return nil, fmt.Errorf("head branch is required")
	}
	base := opts.Base
	if base == "" {
		base = "main"
	}

	payload := map[string]any{"title": opts.Title, "head": opts.Head, "base": base}
	if opts.Body != "" {
		payload["body"] = opts.Body
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls", c.owner, c.repo)
	resp, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(string(body), "pull request already exists") {
		if prs, listErr := c.ListPRsForBranch(ctx, opts.Head); listErr == nil && len(prs) > 0 {
			return &prs[0], nil
		}
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create PR failed with status %d: %s", resp.StatusCode, string(body))
	}

	var gpr giteaPR
	if err := json.Unmarshal(body, &gpr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	c.logger.Info("created PR #%d: %s", gpr.Number, gpr.Title)
	return convertPR(&gpr), nil
}

func (c *Client) GetOrCreatePR(ctx context.Context, opts forge.PRCreateOptions) (*forge.PullRequest, error) {
	prs, err := c.ListPRsForBranch(ctx, opts.Head)
	if err == nil && len(prs) > 0 {
		c.logger.Debug("found existing PR #%d for branch %s", prs[0].Number, opts.Head)
		return &prs[0], nil
	}
	return c.CreatePR(ctx, opts)
}

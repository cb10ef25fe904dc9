package gitea

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ssharma1011/ragforge/internal/forge"
)

func TestNewClientSetsProviderAndRepoPath(t *testing.T) {
	client := NewClient("http://localhost:3000", "test-token", "acme", "widget")
	if client.Provider() != forge.ProviderGitea {
		t.Errorf("got provider %s, want gitea", client.Provider())
	}
	if client.RepoPath() != "acme/widget" {
		t.Errorf("got repo path %q, want acme/widget", client.RepoPath())
	}
}

func TestListPRsForBranchFiltersByHeadRef(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		prs := []giteaPR{
			{Number: 1, HTMLURL: "http://x/pulls/1", Title: "add widget", State: "open",
				Head: giteaRef{Ref: "feature"}, Base: giteaRef{Ref: "main"}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(prs)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", "acme", "widget")
	prs, err := client.ListPRsForBranch(context.Background(), "feature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prs) != 1 || prs[0].Number != 1 {
		t.Fatalf("got %+v, want a single PR #1", prs)
	}
}

func TestCreatePRReturnsExistingPROnDuplicateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"pull request already exists"}`))
		case r.Method == http.MethodGet:
			prs := []giteaPR{{Number: 7, HTMLURL: "http://x/pulls/7", Head: giteaRef{Ref: "feature"}, Base: giteaRef{Ref: "main"}}}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(prs)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", "acme", "widget")
	pr, err := client.CreatePR(context.Background(), forge.PRCreateOptions{Title: "t", Head: "feature", Base: "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.Number != 7 {
		t.Errorf("got PR #%d, want #7 (the existing PR)", pr.Number)
	}
}

package workspace

import "testing"

func TestResolveCloneURLGitHubTreeBranch(t *testing.T) {
	clean, branch, err := ResolveCloneURL("https://github.com/acme/widget/tree/feature/foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clean != "https://github.com/acme/widget.git" {
		t.Errorf("got clean URL %q", clean)
	}
	if branch != "feature" {
		t.Errorf("got branch %q, want feature", branch)
	}
}

func TestResolveCloneURLGitLabDashTreeBranch(t *testing.T) {
	clean, branch, err := ResolveCloneURL("https://gitlab.com/acme/widget/-/tree/release-1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clean != "https://gitlab.com/acme/widget.git" {
		t.Errorf("got clean URL %q", clean)
	}
	if branch != "release-1.0" {
		t.Errorf("got branch %q, want release-1.0", branch)
	}
}

func TestResolveCloneURLBitbucketCloudSrcBranch(t *testing.T) {
	clean, branch, err := ResolveCloneURL("https://bitbucket.org/acme/widget/src/main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clean != "https://bitbucket.org/acme/widget.git" {
		t.Errorf("got clean URL %q", clean)
	}
	if branch != "main" {
		t.Errorf("got branch %q, want main", branch)
	}
}

func TestResolveCloneURLBitbucketServerVersionQuery(t *testing.T) {
	clean, branch, err := ResolveCloneURL("https://bitbucket.example.com/scm/acme/widget.git?version=GBdevelop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if branch != "develop" {
		t.Errorf("got branch %q, want develop", branch)
	}
	if clean == "" {
		t.Errorf("expected non-empty clean URL")
	}
}

func TestResolveCloneURLPlainURLHasNoBranch(t *testing.T) {
	clean, branch, err := ResolveCloneURL("https://github.com/acme/widget.git")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if branch != "" {
		t.Errorf("expected no branch, got %q", branch)
	}
	if clean != "https://github.com/acme/widget.git" {
		t.Errorf("got clean URL %q", clean)
	}
}

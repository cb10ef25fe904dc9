package github

import "testing"

func TestParseGitHubURLHandlesSSHFormat(t *testing.T) {
	owner, repo, err := ParseGitHubURL("git@github.com:acme/widget.git")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != "acme" || repo != "widget" {
		t.Errorf("got owner=%q repo=%q", owner, repo)
	}
}

func TestParseGitHubURLHandlesHTTPSFormat(t *testing.T) {
	owner, repo, err := ParseGitHubURL("https://github.com/acme/widget.git")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != "acme" || repo != "widget" {
		t.Errorf("got owner=%q repo=%q", owner, repo)
	}
}

func TestParseGitHubURLRejectsUnsupportedFormat(t *testing.T) {
	if _, _, err := ParseGitHubURL("ftp://example.com/acme/widget"); err == nil {
		t.Fatalf("expected an error for an unsupported remote URL")
	}
}

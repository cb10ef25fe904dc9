package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ssharma1011/ragforge/internal/proto"
)

type fakeGitRunner struct {
	calls [][]string
	diff  string
	head  string
}

func (f *fakeGitRunner) Run(_ context.Context, dir string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{dir}, args...))
	switch {
	case len(args) > 0 && args[0] == "rev-parse":
		return []byte(f.head + "\n"), nil
	case len(args) > 0 && args[0] == "diff":
		return []byte(f.diff), nil
	case len(args) > 0 && args[0] == "clone":
		// Simulate a real clone's progress output; no files are created.
		return []byte("Cloning into '" + args[len(args)-1] + "'..."), nil
	default:
		return []byte(""), nil
	}
}

func TestCheckoutHeadCommitTrimsWhitespace(t *testing.T) {
	git := &fakeGitRunner{head: "abc123"}
	c := &Checkout{dir: t.TempDir(), git: git}

	head, err := c.HeadCommit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if head != "abc123" {
		t.Errorf("got head %q, want abc123", head)
	}
}

func TestCheckoutChangedFilesMapsRenameToDeleteAndAdd(t *testing.T) {
	git := &fakeGitRunner{diff: "R100\told/path.go\tnew/path.go\nM\tmain.go\nA\tnew.go\nD\tgone.go\n"}
	c := &Checkout{dir: t.TempDir(), git: git}

	changes, err := c.ChangedFiles(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]proto.ChangeType{
		"old/path.go": proto.ChangeDelete,
		"new/path.go": proto.ChangeAdd,
		"main.go":     proto.ChangeModify,
		"new.go":      proto.ChangeAdd,
		"gone.go":     proto.ChangeDelete,
	}
	if len(changes) != len(want) {
		t.Fatalf("got %d changes, want %d: %+v", len(changes), len(want), changes)
	}
	for _, ch := range changes {
		if want[ch.RelativePath] != ch.ChangeType {
			t.Errorf("file %s: got %s, want %s", ch.RelativePath, ch.ChangeType, want[ch.RelativePath])
		}
	}
}

func TestManagerApplyPatchWritesAndDeletesFiles(t *testing.T) {
	root := t.TempDir()
	git := &fakeGitRunner{}
	m := NewManager(git, root)

	conversationID := "conv-1"
	dir := m.dirFor(conversationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(dir, "to_delete.go")
	if err := os.WriteFile(existing, []byte("package x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	patch := proto.Patch{
		BranchName: "fix-1",
		FileEdits: []proto.FileEdit{
			{Path: "new/file.go", Op: proto.FileOpCreate, Content: "package x\n\nfunc F() {}\n"},
			{Path: "to_delete.go", Op: proto.FileOpDelete},
		},
		TestsAdded: []proto.TestFile{
			{Path: "new/file_test.go", Content: "package x\n"},
		},
	}

	if err := m.ApplyPatch(context.Background(), conversationID, patch); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	if _, err := os.Stat(existing); !os.IsNotExist(err) {
		t.Errorf("expected to_delete.go to be removed")
	}
	created, err := os.ReadFile(filepath.Join(dir, "new/file.go"))
	if err != nil {
		t.Fatalf("expected new/file.go to exist: %v", err)
	}
	if !strings.Contains(string(created), "func F()") {
		t.Errorf("unexpected file content: %s", created)
	}
	if _, err := os.Stat(filepath.Join(dir, "new/file_test.go")); err != nil {
		t.Errorf("expected test file to exist: %v", err)
	}
}

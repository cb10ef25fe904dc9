package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// NullBackend is a no-op fallback for empty repositories.
type NullBackend struct{}

func NewNullBackend() *NullBackend { return &NullBackend{} }

func (n *NullBackend) Name() string { return "null" }

func (n *NullBackend) Detect(root string) bool { return n.isEmptyRepo(root) }

func (n *NullBackend) Build(_ context.Context, _ string, stream io.Writer) error {
	fmt.Fprintf(stream, "build successful (no build configured for empty repository)\n")
	return nil
}

func (n *NullBackend) Test(_ context.Context, _ string, stream io.Writer) error {
	fmt.Fprintf(stream, "tests passed (no tests configured for empty repository)\n")
	return nil
}

func (n *NullBackend) Lint(_ context.Context, _ string, stream io.Writer) error {
	fmt.Fprintf(stream, "linting passed (no linting configured for empty repository)\n")
	return nil
}

func (n *NullBackend) isEmptyRepo(root string) bool {
	projectFiles := []string{"go.mod", "go.sum", "package.json", "Makefile", "makefile"}
	for _, f := range projectFiles {
		if _, err := os.Stat(filepath.Join(root, f)); err == nil {
			return false
		}
	}
	srcDirs := []string{"src", "lib", "cmd", "internal", "pkg"}
	for _, d := range srcDirs {
		if info, err := os.Stat(filepath.Join(root, d)); err == nil && info.IsDir() {
			return false
		}
	}
	return true
}

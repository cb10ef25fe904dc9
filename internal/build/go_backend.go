package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GoBackend builds/tests/lints Go projects (detected by go.mod), the
// reference deployment's primary backend.
type GoBackend struct{}

func NewGoBackend() *GoBackend { return &GoBackend{} }

func (g *GoBackend) Name() string { return "go" }

func (g *GoBackend) Detect(root string) bool {
	_, err := os.Stat(filepath.Join(root, "go.mod"))
	return err == nil
}

func (g *GoBackend) Build(ctx context.Context, root string, stream io.Writer) error {
	return g.runGoCommand(ctx, root, stream, "build", "./...")
}

func (g *GoBackend) Test(ctx context.Context, root string, stream io.Writer) error {
	return g.runGoCommand(ctx, root, stream, "test", "./...")
}

func (g *GoBackend) Lint(ctx context.Context, root string, stream io.Writer) error {
	if _, err := exec.LookPath("golangci-lint"); err == nil {
		cmd := exec.CommandContext(ctx, "golangci-lint", "run", "./...")
		cmd.Dir = root
		cmd.Stdout = stream
		cmd.Stderr = stream
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("golangci-lint failed: %w", err)
		}
		return nil
	}
	return g.runGoCommand(ctx, root, stream, "vet", "./...")
}

// runGoCommand runs `go <args>` in root, writing combined output to stream
// for the Stream Multiplexer. It returns only an error carrying the exit
// code; the output itself goes to stream alone.
func (g *GoBackend) runGoCommand(ctx context.Context, root string, stream io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = root
	cmd.Stdout = stream
	cmd.Stderr = stream

	fmt.Fprintf(stream, "$ go %s\n", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok { //nolint:errorlint // exec.ExitError is returned directly by Run, not wrapped
			return fmt.Errorf("go %s failed with exit code %d", strings.Join(args, " "), exitErr.ExitCode())
		}
		return fmt.Errorf("go %s failed: %w", strings.Join(args, " "), err)
	}
	return nil
}

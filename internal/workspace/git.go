package workspace

import (
	"context"
	"os/exec"
	"strings"

	"github.com/ssharma1011/ragforge/internal/logx"
)

// GitRunner executes git commands, swappable for tests.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// DefaultGitRunner shells out to the system git binary.
type DefaultGitRunner struct {
	logger *logx.Logger
}

func NewDefaultGitRunner() *DefaultGitRunner {
	return &DefaultGitRunner{logger: logx.NewLogger("workspace-git")}
}

func (g *DefaultGitRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	g.logger.Debug("git %s (dir=%s)", strings.Join(args, " "), dir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, logx.Wrap(err, "git "+strings.Join(args, " ")+" failed: "+string(output))
	}
	return output, nil
}

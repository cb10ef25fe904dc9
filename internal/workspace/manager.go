// Package workspace owns clone/checkout/branch/commit/push against a local
// working copy, keyed one-per-conversation, and answers diff/read queries
// for the Knowledge Indexer and Agent Runtime.
package workspace

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ssharma1011/ragforge/internal/knowledge"
	"github.com/ssharma1011/ragforge/internal/logx"
	"github.com/ssharma1011/ragforge/internal/parser"
	"github.com/ssharma1011/ragforge/internal/proto"
)

// Credentials carries push authentication, sourced from a configuration record.
type Credentials struct {
	Username string
	Token    string
}

// Manager owns the per-conversation working-copy directories under rootDir.
type Manager struct {
	git      GitRunner
	rootDir  string
	adapters []parser.Adapter
	logger   *logx.Logger
}

func NewManager(git GitRunner, rootDir string, adapters ...parser.Adapter) *Manager {
	return &Manager{
		git:      git,
		rootDir:  rootDir,
		adapters: adapters,
		logger:   logx.NewLogger("workspace"),
	}
}

func (m *Manager) dirFor(conversationID string) string {
	return filepath.Join(m.rootDir, conversationID)
}

// Clone resolves the clean URL and optional branch from rawURL, clones into
// this conversation's directory, and checks out the resolved (or base)
// branch. On failure the directory is removed synchronously.
func (m *Manager) Clone(ctx context.Context, conversationID, rawURL, baseBranch string) (*Checkout, error) {
	cleanURL, branch, err := ResolveCloneURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("resolving clone URL: %w", err)
	}
	if branch == "" {
		branch = baseBranch
	}

	dir := m.dirFor(conversationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating working copy directory: %w", err)
	}

	if _, err := m.git.Run(ctx, "", "clone", cleanURL, dir); err != nil {
		m.cleanup(dir)
		return nil, fmt.Errorf("cloning %s: %w", cleanURL, err)
	}

	if branch != "" {
		if _, err := m.git.Run(ctx, dir, "checkout", branch); err != nil {
			m.cleanup(dir)
			return nil, fmt.Errorf("checking out branch %s: %w", branch, err)
		}
	}

	m.logger.Info("cloned %s (branch=%s) for conversation %s", cleanURL, branch, conversationID)
	return &Checkout{dir: dir, git: m.git, adapters: m.adapters}, nil
}

// Open returns a Checkout bound to an already-cloned conversation directory,
// without performing any clone, satisfying agentrt.Workspace's view onto
// the Knowledge Indexer's WorkingCopy.
func (m *Manager) Open(conversationID string) knowledge.WorkingCopy {
	return &Checkout{dir: m.dirFor(conversationID), git: m.git, adapters: m.adapters}
}

func (m *Manager) cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("failed to clean up working copy directory %s: %v", dir, err)
	}
}

// CreateBranch creates and checks out newBranch off baseBranch.
func (m *Manager) CreateBranch(ctx context.Context, conversationID, baseBranch, newBranch string) error {
	dir := m.dirFor(conversationID)
	if _, err := m.git.Run(ctx, dir, "checkout", baseBranch); err != nil {
		return fmt.Errorf("checking out base branch %s: %w", baseBranch, err)
	}
	if _, err := m.git.Run(ctx, dir, "switch", "-c", newBranch); err != nil {
		return fmt.Errorf("creating branch %s: %w", newBranch, err)
	}
	return nil
}

// CommitAll stages and commits every working-tree change with message.
func (m *Manager) CommitAll(ctx context.Context, conversationID, message string) error {
	dir := m.dirFor(conversationID)
	if _, err := m.git.Run(ctx, dir, "add", "-A"); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}
	if _, err := m.git.Run(ctx, dir, "commit", "-m", message); err != nil {
		return fmt.Errorf("committing changes: %w", err)
	}
	return nil
}

// Push pushes branch to origin with upstream tracking, using creds if the
// remote requires authentication beyond what's already configured.
func (m *Manager) Push(ctx context.Context, conversationID, branch string, creds Credentials) error {
	dir := m.dirFor(conversationID)
	if creds.Token != "" {
		if _, err := m.git.Run(ctx, dir, "config", "http.extraHeader",
			"Authorization: Basic "+basicAuthHeader(creds.Username, creds.Token)); err != nil {
			return fmt.Errorf("configuring push credentials: %w", err)
		}
	}
	if _, err := m.git.Run(ctx, dir, "push", "--set-upstream", "origin", branch); err != nil {
		return fmt.Errorf("pushing branch %s: %w", branch, err)
	}
	return nil
}

// ApplyPatch writes, modifies, or deletes files per the patch's FileEdits
// and writes any TestsAdded content, satisfying agentrt.Workspace.
func (m *Manager) ApplyPatch(_ context.Context, conversationID string, patch proto.Patch) error {
	dir := m.dirFor(conversationID)

	for _, edit := range patch.FileEdits {
		target := filepath.Join(dir, edit.Path)
		switch edit.Op {
		case proto.FileOpDelete:
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("deleting %s: %w", edit.Path, err)
			}
		case proto.FileOpCreate, proto.FileOpModify:
			if err := writeFile(target, edit.Content); err != nil {
				return fmt.Errorf("writing %s: %w", edit.Path, err)
			}
		default:
			return fmt.Errorf("applying patch: unknown file op %q for %s", edit.Op, edit.Path)
		}
	}

	for _, tf := range patch.TestsAdded {
		if err := writeFile(filepath.Join(dir, tf.Path), tf.Content); err != nil {
			return fmt.Errorf("writing test file %s: %w", tf.Path, err)
		}
	}

	return nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func basicAuthHeader(username, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + token))
}

// Checkout is a WorkingCopy view bound to a single conversation's directory,
// satisfying internal/knowledge.WorkingCopy.
type Checkout struct {
	dir      string
	git      GitRunner
	adapters []parser.Adapter
}

func (c *Checkout) Root() string { return c.dir }

func (c *Checkout) HeadCommit(ctx context.Context) (string, error) {
	out, err := c.git.Run(ctx, c.dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Checkout) ReadFile(_ context.Context, relativePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(c.dir, relativePath))
}

// ChangedFiles returns the diff between two commits using git's native
// name-status diff, mapping RENAME to DELETE(old)+ADD(new) and filtering to
// files an indexing adapter can parse.
func (c *Checkout) ChangedFiles(ctx context.Context, fromCommit, toCommit string) ([]proto.ChangedFile, error) {
	out, err := c.git.Run(ctx, c.dir, "diff", "--name-status", "-M", fromCommit, toCommit)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s: %w", fromCommit, toCommit, err)
	}

	var changes []proto.ChangedFile
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		status := fields[0]

		switch {
		case strings.HasPrefix(status, "R"):
			if len(fields) < 3 {
				continue
			}
			changes = append(changes,
				proto.ChangedFile{RelativePath: fields[1], ChangeType: proto.ChangeDelete},
				proto.ChangedFile{RelativePath: fields[2], ChangeType: proto.ChangeAdd},
			)
		case strings.HasPrefix(status, "A"):
			changes = append(changes, proto.ChangedFile{RelativePath: fields[1], ChangeType: proto.ChangeAdd})
		case strings.HasPrefix(status, "D"):
			changes = append(changes, proto.ChangedFile{RelativePath: fields[1], ChangeType: proto.ChangeDelete})
		default:
			changes = append(changes, proto.ChangedFile{RelativePath: fields[1], ChangeType: proto.ChangeModify})
		}
	}

	return c.filterIndexable(changes), nil
}

func (c *Checkout) filterIndexable(changes []proto.ChangedFile) []proto.ChangedFile {
	if len(c.adapters) == 0 {
		return changes
	}
	var filtered []proto.ChangedFile
	for _, ch := range changes {
		for _, a := range c.adapters {
			if a.CanParse(ch.RelativePath) {
				filtered = append(filtered, ch)
				break
			}
		}
	}
	return filtered
}

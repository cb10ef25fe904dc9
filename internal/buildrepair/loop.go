// Package buildrepair wires internal/build's backend registry into the
// Agent Runtime's Builder capability and provides the idempotence guard
// that short-circuits the BuildVerifier/FixGenerator/PatchApplier loop
// when repeated attempts make no progress.
package buildrepair

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ssharma1011/ragforge/internal/build"
	"github.com/ssharma1011/ragforge/internal/logx"
	"github.com/ssharma1011/ragforge/internal/proto"
)

// RootResolver maps a conversationId to its working-copy directory.
type RootResolver func(conversationID string) string

// Loop runs build+test against a conversation's working copy and parses
// the combined output into structured errors, satisfying agentrt.Builder.
type Loop struct {
	registry *build.Registry
	rootFor  RootResolver
	logger   *logx.Logger
}

func NewLoop(registry *build.Registry, rootFor RootResolver) *Loop {
	return &Loop{registry: registry, rootFor: rootFor, logger: logx.NewLogger("buildrepair")}
}

// Verify runs Build then Test (skipping Test if Build fails) against the
// conversation's working copy, returning a structured BuildResult.
// BuildResult.Success is true iff both exit code 0.
func (l *Loop) Verify(ctx context.Context, conversationID string) (proto.BuildResult, error) {
	root := l.rootFor(conversationID)
	backend, err := l.registry.Detect(root)
	if err != nil {
		return proto.BuildResult{}, fmt.Errorf("detecting build backend: %w", err)
	}

	start := time.Now()
	var out bytes.Buffer

	buildErr := backend.Build(ctx, root, &out)
	var testErr error
	if buildErr == nil {
		testErr = backend.Test(ctx, root, &out)
	}

	elapsed := time.Since(start)
	rawLog := out.String()
	result := proto.BuildResult{
		RawLog:           rawLog,
		StructuredErrors: build.ParseGoOutput(rawLog),
		DurationMs:       elapsed.Milliseconds(),
		Success:          buildErr == nil && testErr == nil,
	}

	if !result.Success {
		l.logger.Info("build verification failed for conversation %s (backend=%s): build=%v test=%v",
			conversationID, backend.Name(), buildErr, testErr)
	}

	return result, nil
}

// SignaturesEqual reports whether two structured-error sets are identical
// as an unordered set of signatures — the idempotence guard spec §4.6
// requires: the same set of structured-error signatures two attempts in a
// row short-circuits the repair loop to FAIL.
func SignaturesEqual(a, b []proto.BuildError) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return false // no structured errors to compare means nothing to declare "stuck"
	}

	seen := make(map[string]int, len(a))
	for _, e := range a {
		seen[e.Signature()]++
	}
	for _, e := range b {
		sig := e.Signature()
		if seen[sig] == 0 {
			return false
		}
		seen[sig]--
	}
	for _, count := range seen {
		if count != 0 {
			return false
		}
	}
	return true
}

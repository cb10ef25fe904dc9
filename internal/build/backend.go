// Package build executes and parses compiler/test output for a working
// copy, used by the Build/Repair Loop's BuildVerifier step.
package build

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// Backend runs the build/test/lint lifecycle for one project type.
type Backend interface {
	Name() string
	Detect(root string) bool
	Build(ctx context.Context, root string, stream io.Writer) error
	Test(ctx context.Context, root string, stream io.Writer) error
	Lint(ctx context.Context, root string, stream io.Writer) error
}

// Priority orders backend detection; higher runs first.
type Priority int

const (
	PriorityHigh   Priority = 100
	PriorityMedium Priority = 50
	PriorityLow    Priority = 10
)

type registration struct {
	backend  Backend
	priority Priority
}

// Registry holds the detectable backends, tried in priority order.
type Registry struct {
	backends []registration
}

// NewRegistry builds a Registry with the reference deployment's backend
// (Go) plus a no-op fallback for empty repositories.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(NewGoBackend(), PriorityHigh)
	r.Register(NewNullBackend(), PriorityLow)
	return r
}

// Register adds a backend at the given priority, keeping backends sorted
// highest-priority-first.
func (r *Registry) Register(backend Backend, priority Priority) {
	r.backends = append(r.backends, registration{backend: backend, priority: priority})
	sort.SliceStable(r.backends, func(i, j int) bool { return r.backends[i].priority > r.backends[j].priority })
}

// Detect returns the first backend (by priority) that claims root.
func (r *Registry) Detect(root string) (Backend, error) {
	for _, reg := range r.backends {
		if reg.backend.Detect(root) {
			return reg.backend, nil
		}
	}
	return nil, fmt.Errorf("build: no suitable backend found for project at %s", root)
}

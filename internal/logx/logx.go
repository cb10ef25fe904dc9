// Package logx provides structured logging with component-scoped debug filtering.
package logx

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes timestamped, component-tagged log lines to stderr and
// mirrors them into an in-memory buffer of the latest 2000 entries, read back
// through RecentEntries.
type Logger struct {
	component string
	logger    *log.Logger
}

// Level identifies a log line's severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// DebugConfig controls which components emit debug-level lines.
type DebugConfig struct {
	Enabled    bool
	Components map[string]bool // nil = all components
}

// Entry is a structured log line, as surfaced to API consumers.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Component string `json:"component"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

type ringBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

func (b *ringBuffer) add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if len(b.entries) > b.max {
		b.entries = b.entries[len(b.entries)-b.max:]
	}
}

func (b *ringBuffer) snapshot(component string, since time.Time) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if component != "" && !strings.EqualFold(e.Component, component) {
			continue
		}
		if !since.IsZero() {
			if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil && t.Before(since) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

var (
	debugMu     sync.RWMutex
	debugConfig = DebugConfig{Enabled: false}
	buffer      = &ringBuffer{max: 2000}
)

func init() { //nolint:gochecknoinits // env-driven debug config mirrors the teacher's logx init
	initDebugFromEnv()
}

func initDebugFromEnv() {
	debugMu.Lock()
	defer debugMu.Unlock()

	if v := os.Getenv("RAGFORGE_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		debugConfig.Enabled = true
	}
	if comps := os.Getenv("RAGFORGE_DEBUG_COMPONENTS"); comps != "" {
		debugConfig.Components = make(map[string]bool)
		for _, c := range strings.Split(comps, ",") {
			debugConfig.Components[strings.TrimSpace(c)] = true
		}
	}
}

// SetDebug configures debug logging programmatically (tests, CLI flags).
func SetDebug(enabled bool, components []string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugConfig.Enabled = enabled
	if len(components) == 0 {
		debugConfig.Components = nil
		return
	}
	debugConfig.Components = make(map[string]bool, len(components))
	for _, c := range components {
		debugConfig.Components[c] = true
	}
}

// IsDebugEnabledFor reports whether debug logging is active for component.
func IsDebugEnabledFor(component string) bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Components == nil {
		return true
	}
	return debugConfig.Components[component]
}

// NewLogger returns a Logger tagged with the given component name.
func NewLogger(component string) *Logger {
	return &Logger{component: component, logger: log.New(os.Stderr, "", 0)}
}

func (l *Logger) emit(level Level, format string, args ...any) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", ts, l.component, level, msg)
	buffer.add(Entry{Timestamp: ts, Component: l.component, Level: string(level), Message: msg})
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabledFor(l.component) {
		return
	}
	l.emit(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any)  { l.emit(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.emit(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.emit(LevelError, format, args...) }

// WithComponent returns a copy of the logger retagged with a new component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component, logger: l.logger}
}

func (l *Logger) Component() string { return l.component }

// RecentEntries returns buffered log entries, optionally filtered by component and time.
func RecentEntries(component string, since time.Time) []Entry {
	return buffer.snapshot(component, since)
}

type ctxKey string

const conversationIDKey ctxKey = "conversation_id"

// WithConversationID attaches a conversationId to ctx for downstream debug calls.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDKey, id)
}

// ConversationIDFromContext extracts a conversationId previously attached via WithConversationID.
func ConversationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(conversationIDKey).(string); ok {
		return v
	}
	return ""
}

var defaultLogger = NewLogger("system")

// Wrap logs an error with context and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}

// Package llmerrors classifies errors from external collaborators (LLM, vector
// index, graph store, compiler, forge) into the taxonomy from the error
// handling design: Transient, Input, StoreConsistency, UserRecoverable, Fatal.
package llmerrors

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for retry and propagation purposes.
type Kind int8

const (
	// KindTransient covers network timeouts, server 5xx, and rate limits (429).
	KindTransient Kind = iota
	// KindInput covers malformed LLM JSON, invalid patch paths, unknown agent names.
	KindInput
	// KindStoreConsistency covers missing edge endpoints and empty IndexState fetches.
	KindStoreConsistency
	// KindUserRecoverable covers compile failures still within the attempt budget.
	KindUserRecoverable
	// KindFatal covers exhausted attempt budgets, cancellation, and auth failures.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindInput:
		return "input"
	case KindStoreConsistency:
		return "store_consistency"
	case KindUserRecoverable:
		return "user_recoverable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// RetryPolicy is the exponential-backoff schedule applied to a Kind.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

// DefaultRetryPolicies mirrors spec §5/§7: transient errors retry up to 3x
// with 2s/4s/8s exponential backoff; other kinds are not retried here (their
// handling is corrective re-prompt or immediate surface, per §7).
var DefaultRetryPolicies = map[Kind]RetryPolicy{ //nolint:gochecknoglobals // package-level default config
	KindTransient: {MaxAttempts: 4, InitialDelay: 2 * time.Second, MaxDelay: 8 * time.Second, Factor: 2.0},
}

// Error is a classified error carrying enough context to decide retry/propagation.
type Error struct {
	Err     error
	Message string
	Kind    Kind
	Status  int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Kind, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the error's kind is retried within the external
// client layer, invisible to agents (spec §7 "Propagation").
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

// RetryPolicy returns the backoff schedule for this error's kind.
func (e *Error) RetryPolicy() RetryPolicy {
	if p, ok := DefaultRetryPolicies[e.Kind]; ok {
		return p
	}
	return RetryPolicy{MaxAttempts: 1}
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithStatus creates a classified error carrying an HTTP-ish status code.
func WithStatus(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Wrap creates a classified error wrapping a cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Err: cause, Message: message}
}

// Is reports whether err is a classified Error of the given kind.
func Is(err error, kind Kind) bool {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind == kind
	}
	return false
}

// KindOf returns the classified kind of err, defaulting to KindFatal for
// unclassified errors (fail closed rather than silently retrying forever).
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindFatal
}

// ClassifyHTTPStatus maps an HTTP status code to a Kind, per spec §7.
func ClassifyHTTPStatus(status int) Kind {
	switch {
	case status == 429:
		return KindTransient
	case status >= 500:
		return KindTransient
	case status == 401 || status == 403:
		return KindFatal
	case status >= 400:
		return KindInput
	default:
		return KindUserRecoverable
	}
}

// SanitizeForLog truncates long prompt/response bodies for structured logging,
// retaining a content hash so truncated occurrences of the same text can be
// correlated without persisting the full text.
func SanitizeForLog(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	half := maxChars / 2
	if half < 64 {
		half = 64
	}
	if half*2 >= len(text) {
		return text
	}
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s...[%d chars, hash:%x]...%s", text[:half], len(text), hash[:8], text[len(text)-half:])
}

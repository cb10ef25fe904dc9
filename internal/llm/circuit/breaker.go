// Package circuit provides a circuit breaker for LLM clients, preventing
// cascading retries against a collaborator that is already failing.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config tunes the breaker's failure/success thresholds and open-state cooldown.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// DefaultConfig opens after 5 consecutive failures, half-opens after 30s, and
// requires 3 consecutive successes to fully close.
var DefaultConfig = Config{
	FailureThreshold: 5,
	SuccessThreshold: 3,
	Timeout:          30 * time.Second,
}

// Error is returned by Breaker.Allow callers when the circuit is open.
type Error struct{ State State }

func (e *Error) Error() string { return fmt.Sprintf("circuit breaker is %s", e.State) }

// Breaker tracks consecutive successes/failures and gates request admission.
type Breaker struct {
	mu              sync.Mutex
	config          Config
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

// New constructs a Breaker starting in the Closed state.
func New(config Config) *Breaker {
	return &Breaker{config: config, state: Closed}
}

// Allow reports whether a request may proceed, transitioning Open->HalfOpen
// once the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.lastFailureTime) >= b.config.Timeout {
			b.state = HalfOpen
			b.successCount = 0
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		return false
	}
}

// Record reports the outcome of a request admitted via Allow.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
		}
	}
}

func (b *Breaker) onFailure() {
	b.failureCount++
	b.lastFailureTime = time.Now()
	switch b.state {
	case Closed:
		if b.failureCount >= b.config.FailureThreshold {
			b.state = Open
		}
	case HalfOpen:
		b.state = Open
		b.successCount = 0
	}
}

// GetState returns the breaker's current state.
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

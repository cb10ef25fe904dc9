package stream

import (
	"sync"
	"time"

	"github.com/ssharma1011/ragforge/internal/logx"
)

// DefaultIdleTimeout closes a subscriber's stream after this long without
// any published event, per the spec's "default 15 minutes" idle rule.
const DefaultIdleTimeout = 15 * time.Minute

// subscriber is one live SSE (or websocket-fallback) connection for a
// conversation.
type subscriber struct {
	events chan Event
	done   chan struct{}
	closed bool
}

// conversationState is the per-conversation piece of Hub state: its
// replay buffer and, if attached, its single live subscriber.
type conversationState struct {
	buffer *ringBuffer
	sub    *subscriber
}

// Hub is the Stream Multiplexer: a per-conversation event bus with
// late-join replay from a bounded buffer. One hub-wide mutex guards the
// bookkeeping of every conversation; there is no separate lock per
// conversation. The mutex covers only in-memory map/channel operations,
// never an external I/O call.
type Hub struct {
	mu            sync.Mutex
	conversations map[string]*conversationState
	idleTimeout   time.Duration
	logger        *logx.Logger
}

// NewHub constructs a Hub with the given idle timeout (DefaultIdleTimeout
// if zero).
func NewHub(idleTimeout time.Duration) *Hub {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Hub{
		conversations: make(map[string]*conversationState),
		idleTimeout:   idleTimeout,
		logger:        logx.NewLogger("stream-hub"),
	}
}

func (h *Hub) stateFor(conversationID string) *conversationState {
	cs, ok := h.conversations[conversationID]
	if !ok {
		cs = &conversationState{buffer: newRingBuffer(DefaultBufferCapacity)}
		h.conversations[conversationID] = cs
	}
	return cs
}

// Subscribe attaches a new subscriber to conversationID, closing any
// prior subscriber first (spec: "a second subscribe closes the prior
// stream before registering"), then replays the buffered backlog in
// order before returning. The returned channel delivers subsequent live
// events; the returned func unsubscribes and must be called exactly
// once by the caller when it stops reading.
func (h *Hub) Subscribe(conversationID string) (events <-chan Event, backlog []Event, unsubscribe func()) {
	h.mu.Lock()
	cs := h.stateFor(conversationID)
	if cs.sub != nil {
		h.closeSubscriberLocked(cs)
	}
	sub := &subscriber{events: make(chan Event, DefaultBufferCapacity), done: make(chan struct{})}
	cs.sub = sub
	backlog = cs.buffer.drain()
	h.mu.Unlock()

	unsubscribe = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cs.sub == sub {
			h.closeSubscriberLocked(cs)
		}
	}
	return sub.events, backlog, unsubscribe
}

// closeSubscriberLocked closes a conversation's live subscriber channel.
// Callers must hold h.mu.
func (h *Hub) closeSubscriberLocked(cs *conversationState) {
	if cs.sub == nil || cs.sub.closed {
		return
	}
	cs.sub.closed = true
	close(cs.sub.done)
	close(cs.sub.events)
	cs.sub = nil
}

// Publish delivers an event to the live subscriber if one is attached;
// otherwise it is appended to the conversation's replay buffer. Per the
// spec, buffer overflow drops the newest event and logs a warning.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cs := h.stateFor(e.ConversationID)
	if cs.sub != nil {
		select {
		case cs.sub.events <- e:
			return
		default:
			// Live subscriber's channel is saturated; fall through to
			// buffering so a slow reader doesn't lose the event outright.
		}
	}
	if !cs.buffer.push(e) {
		h.logger.Warn("stream buffer full for conversation %s, dropping event %s", e.ConversationID, e.ID)
	}
}

// Complete publishes a COMPLETE terminal event and tears down the
// conversation's stream state, clearing its buffer (spec: cleared on
// normal completion).
func (h *Hub) Complete(conversationID, message string) {
	h.terminal(conversationID, NewEvent(conversationID, StatusComplete, message), true)
}

// Fail publishes an ERROR terminal event. The buffer is retained rather
// than cleared, so a reconnecting client can still replay it (spec:
// "retained if the failure is classified as a client-side abort").
func (h *Hub) Fail(conversationID, message string) {
	h.terminal(conversationID, NewEvent(conversationID, StatusError, message), false)
}

func (h *Hub) terminal(conversationID string, e Event, clearBuffer bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cs := h.stateFor(conversationID)
	if cs.sub != nil {
		select {
		case cs.sub.events <- e:
		default:
		}
		h.closeSubscriberLocked(cs)
	}
	if clearBuffer {
		cs.buffer.clear()
	} else {
		cs.buffer.push(e)
	}
}

// IdleTimeout returns the configured idle timeout, for callers (the SSE
// writer) that must close a connection after this long without traffic.
func (h *Hub) IdleTimeout() time.Duration {
	return h.idleTimeout
}

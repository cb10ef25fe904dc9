// Package stream implements the Stream Multiplexer: a per-conversation
// event bus that feeds server-sent events to subscribers, with
// late-join replay from a bounded per-conversation buffer.
package stream

import "github.com/google/uuid"

// Status is the lifecycle status reported in an Event, distinct from
// proto.Status: it describes what the current agent step is doing, not
// the conversation's terminal outcome.
type Status string

const (
	StatusConnected Status = "CONNECTED"
	StatusRunning   Status = "RUNNING"
	StatusThinking  Status = "THINKING"
	StatusTool      Status = "TOOL"
	StatusPartial   Status = "PARTIAL"
	StatusComplete  Status = "COMPLETE"
	StatusError     Status = "ERROR"
)

// Event is one `workflow-update` SSE payload.
type Event struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversationId"`
	Status         Status   `json:"status"`
	Agent          string   `json:"agent,omitempty"`
	Message        string   `json:"message"`
	Tool           string   `json:"tool,omitempty"`
	Content        string   `json:"content,omitempty"`
	Progress       *float64 `json:"progress,omitempty"`
}

// NewEvent builds an Event for conversationID with a fresh UUID, matching
// the spec's "event IDs are UUIDs" requirement.
func NewEvent(conversationID string, status Status, message string) Event {
	return Event{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Status:         status,
		Message:        message,
	}
}

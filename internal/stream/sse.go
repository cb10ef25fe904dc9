package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ssharma1011/ragforge/internal/logx"
)

// ServeHTTP implements GET /conversations/{id}/stream: it subscribes to
// the conversation's event stream, replays the buffered backlog, then
// forwards live events as `workflow-update` SSE frames until a terminal
// event, idle timeout, or client disconnect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, conversationID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, backlog, unsubscribe := h.Subscribe(conversationID)
	defer unsubscribe()

	logger := logx.NewLogger("stream-sse")

	for _, e := range backlog {
		if !writeEvent(w, e) {
			return
		}
	}
	flusher.Flush()

	idleTimer := time.NewTimer(h.idleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-idleTimer.C:
			logger.Info("stream for conversation %s closed after %s idle", conversationID, h.idleTimeout)
			return
		case e, open := <-events:
			if !open {
				return
			}
			if !idleTimer.Stop() {
				<-idleTimer.C
			}
			idleTimer.Reset(h.idleTimeout)

			if !writeEvent(w, e) {
				return
			}
			flusher.Flush()
			if e.Status == StatusComplete || e.Status == StatusError {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, e Event) bool {
	body, err := json.Marshal(e)
	if err != nil {
		return false
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: workflow-update\ndata: %s\n\n", e.ID, body)
	return err == nil
}

package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ssharma1011/ragforge/internal/logx"
)

// upgrader accepts any origin since ragforge is typically deployed behind
// a reverse proxy that already enforces access control; CORS is not a
// concern for a same-origin API server.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWebSocket offers the same conversation event stream as ServeHTTP
// over a websocket connection, for clients/proxies that don't support
// server-sent events.
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request, conversationID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger := logx.NewLogger("stream-ws")
	events, backlog, unsubscribe := h.Subscribe(conversationID)
	defer unsubscribe()

	for _, e := range backlog {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}

	idleTimer := time.NewTimer(h.idleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case <-idleTimer.C:
			logger.Info("websocket stream for conversation %s closed after %s idle", conversationID, h.idleTimeout)
			return
		case e, open := <-events:
			if !open {
				return
			}
			if !idleTimer.Stop() {
				<-idleTimer.C
			}
			idleTimer.Reset(h.idleTimeout)

			if err := conn.WriteJSON(e); err != nil {
				return
			}
			if e.Status == StatusComplete || e.Status == StatusError {
				return
			}
		}
	}
}

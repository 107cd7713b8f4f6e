package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/assetdesk/rights-api/internal/auth"
	"github.com/assetdesk/rights-api/internal/logging"
	"github.com/assetdesk/rights-api/internal/notify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const wsPingInterval = 30 * time.Second

// MessageFeed streams newly stored notifications for the authenticated
// caller over a WebSocket until the client disconnects.
func (h *MessageHandlers) MessageFeed(hub *notify.Hub, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.GetSessionFromContext(r.Context())
		if !ok {
			WriteError(w, http.StatusUnauthorized, fmt.Errorf("not authenticated"), nil)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("Failed to upgrade WebSocket connection", err, nil)
			return
		}
		defer conn.Close()

		feed, cancel := hub.Subscribe(session.Email)
		defer cancel()

		// Drain client frames so close is noticed.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case n := <-feed:
				if err := conn.WriteJSON(n); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}

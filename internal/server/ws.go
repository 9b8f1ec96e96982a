package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"dmchat/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS policy lives at the proxy; the token already gates the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

// serveWS handles HTTP requests on "GET /ws". The upgrade request has already
// passed requireAuth; the resulting connection becomes the user's current
// realtime handle until disconnect or supersession by a newer connection.
func (h *handler) serveWS(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.logger.Debugf("websocket upgrade for user %d: %v", identity.ID, err)
		return
	}

	client := realtime.NewClient(h.logger, conn, identity.ID)
	if prev := h.registry.Register(client); prev != nil {
		prev.Close()
	}

	h.logger.Infof("user %d connected over websocket", identity.ID)

	go client.WritePump()
	client.ReadPump()

	// Identity-guarded: a no-op if a newer connection superseded this one.
	h.registry.Unregister(client)

	h.logger.Infof("user %d disconnected", identity.ID)
}

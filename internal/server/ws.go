package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/atelier-dev/atelier/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API has no browser origin policy of its own; deployments front it
	// with a proxy that enforces one.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the request and hands the socket to the hub.
// The connection starts unsubscribed; clients send a join_workspace control
// message to begin receiving events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		log.Printf("[Server] WebSocket upgrade failed: %v", err)
		return
	}

	hub.NewConn(s.hub, ws)
}

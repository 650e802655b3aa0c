// Package hub maintains live WebSocket connections and their workspace
// subscriptions, fanning out lifecycle, chat and document events to every
// connection subscribed to a workspace. Delivery is best-effort: there is no
// persistence, no replay, and no backpressure toward publishers. Clients that
// miss events resynchronize through the HTTP read paths.
package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub is the fan-out point between event producers (the scheduler, the API
// surface, peer connections) and live subscriber connections. All methods are
// safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]string // connection -> subscribed workspace ID ("" = none)
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		conns: make(map[*Conn]string),
	}
}

// register adds a newly accepted connection with no subscription.
func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	h.conns[c] = ""
	h.mu.Unlock()

	log.Printf("[Hub] Client connected: %s", c.id)
}

// unregister removes a connection entirely. Called when the connection closes.
func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()

	log.Printf("[Hub] Client disconnected: %s", c.id)
}

// Subscribe binds a connection to a workspace. Idempotent; a connection is
// subscribed to at most one workspace, so subscribing to a new workspace
// implicitly replaces the previous subscription.
func (h *Hub) Subscribe(c *Conn, workspaceID string) {
	h.mu.Lock()
	if _, known := h.conns[c]; known {
		h.conns[c] = workspaceID
	}
	h.mu.Unlock()

	log.Printf("[Hub] Client %s joined workspace %s", c.id, workspaceID)
}

// Unsubscribe removes a connection's workspace subscription without dropping
// the connection. Called for leave_workspace control messages; closing the
// connection unregisters it completely.
func (h *Hub) Unsubscribe(c *Conn) {
	h.mu.Lock()
	if _, known := h.conns[c]; known {
		h.conns[c] = ""
	}
	h.mu.Unlock()

	log.Printf("[Hub] Client %s left workspace", c.id)
}

// Publish delivers an event to every connection currently subscribed to the
// workspace. The payload is marshaled once; a connection whose send buffer is
// full drops the event rather than blocking the publisher. Publishing to a
// workspace with no subscribers is a silent no-op.
func (h *Hub) Publish(workspaceID string, event interface{}) {
	if workspaceID == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Hub] Failed to marshal event for workspace %s: %v", workspaceID, err)
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for c, ws := range h.conns {
		if ws == workspaceID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.trySend(payload)
	}
}

// relay re-broadcasts a non-control inbound message to the sender's workspace
// peers (everyone subscribed to the same workspace except the sender). Used
// for ad-hoc collaboration signaling the scheduler does not own. Messages
// from unsubscribed connections are dropped.
func (h *Hub) relay(from *Conn, payload []byte) {
	h.mu.RLock()
	workspaceID := h.conns[from]
	targets := make([]*Conn, 0, len(h.conns))
	if workspaceID != "" {
		for c, ws := range h.conns {
			if c != from && ws == workspaceID {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.trySend(payload)
	}
}

// workspaceOf returns the workspace a connection is subscribed to.
func (h *Hub) workspaceOf(c *Conn) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[c]
}

// SubscriberCount returns the number of live subscriptions for a workspace.
func (h *Hub) SubscriberCount(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, ws := range h.conns {
		if ws == workspaceID {
			n++
		}
	}
	return n
}

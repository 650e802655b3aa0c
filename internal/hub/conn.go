package hub

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single WebSocket write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound messages.
	maxMessageSize = 64 * 1024

	// sendBufferSize is the per-connection outbound buffer. A subscriber
	// that cannot drain this many events starts losing them; the publisher
	// is never blocked on a slow socket.
	sendBufferSize = 32
)

// controlMessage is the subscription-control envelope clients send.
// Anything that does not parse as a known control type is relayed to
// workspace peers verbatim.
type controlMessage struct {
	Type        string `json:"type"`
	WorkspaceID string `json:"workspaceId"`
}

// Conn is one live client connection. It owns two goroutines: a read pump
// that handles control messages and peer relay, and a write pump that drains
// the buffered send channel onto the socket.
type Conn struct {
	id   string
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte
	done chan struct{} // closed when the connection is torn down

	dropped atomic.Int64 // events discarded because the send buffer was full
}

// NewConn wraps an upgraded WebSocket connection, registers it with the hub,
// and starts its pumps. The connection unregisters itself when the read pump
// exits.
func NewConn(h *Hub, ws *websocket.Conn) *Conn {
	c := &Conn{
		id:   uuid.New().String()[:8],
		hub:  h,
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	h.register(c)

	go c.writePump()
	go c.readPump()

	return c
}

// trySend queues a payload for delivery without blocking. Returns false when
// the payload was dropped because the connection is gone or its buffer is
// full. The send channel is never closed, so a publisher racing teardown at
// worst buffers a payload nobody will read.
func (c *Conn) trySend(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// readPump reads inbound messages until the connection dies. join/leave
// control messages adjust the hub subscription; everything else is stamped
// with the sender's client ID and relayed to workspace peers.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		close(c.done)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Hub] Read error for client %s: %v", c.id, err)
			}
			return
		}

		var control controlMessage
		if err := json.Unmarshal(raw, &control); err != nil {
			log.Printf("[Hub] Malformed message from client %s: %v", c.id, err)
			continue
		}

		switch control.Type {
		case "join_workspace":
			c.hub.Subscribe(c, control.WorkspaceID)
		case "leave_workspace":
			c.hub.Unsubscribe(c)
		default:
			c.relayInbound(raw)
		}
	}
}

// relayInbound forwards a non-control message to workspace peers, stamped
// with the sender's client ID and a timestamp when the sender supplied none.
func (c *Conn) relayInbound(raw []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	msg["clientId"] = c.id
	if _, ok := msg["timestamp"]; !ok {
		msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	stamped, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.relay(c, stamped)
}

// writePump drains the send channel onto the socket and keeps the connection
// alive with pings. Exits when the connection is torn down or a write fails.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return

		case payload := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

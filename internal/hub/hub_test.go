package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-dev/atelier/pkg/workspace"
)

// newTestConn builds a connection without a real socket. The pumps are not
// started, so payloads accumulate in the send channel for inspection.
func newTestConn(h *Hub, id string) *Conn {
	c := &Conn{
		id:   id,
		hub:  h,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	h.register(c)
	return c
}

// drain returns every payload currently buffered on the connection.
func drain(c *Conn) [][]byte {
	var out [][]byte
	for {
		select {
		case payload := <-c.send:
			out = append(out, payload)
		default:
			return out
		}
	}
}

func TestSubscribe(t *testing.T) {
	h := New()
	c := newTestConn(h, "c1")

	t.Run("binds connection to workspace", func(t *testing.T) {
		h.Subscribe(c, "ws-1")
		assert.Equal(t, "ws-1", h.workspaceOf(c))
		assert.Equal(t, 1, h.SubscriberCount("ws-1"))
	})

	t.Run("is idempotent", func(t *testing.T) {
		h.Subscribe(c, "ws-1")
		assert.Equal(t, 1, h.SubscriberCount("ws-1"))
	})

	t.Run("rebinding replaces the previous subscription", func(t *testing.T) {
		h.Subscribe(c, "ws-2")
		assert.Equal(t, 0, h.SubscriberCount("ws-1"))
		assert.Equal(t, 1, h.SubscriberCount("ws-2"))
	})

	t.Run("unsubscribe keeps the connection registered", func(t *testing.T) {
		h.Unsubscribe(c)
		assert.Equal(t, "", h.workspaceOf(c))
		assert.Equal(t, 0, h.SubscriberCount("ws-2"))

		// Still registered: a later subscribe works
		h.Subscribe(c, "ws-3")
		assert.Equal(t, 1, h.SubscriberCount("ws-3"))
	})

	t.Run("ignores unregistered connections", func(t *testing.T) {
		stray := &Conn{id: "stray", hub: h, send: make(chan []byte, 1), done: make(chan struct{})}
		h.Subscribe(stray, "ws-3")
		assert.Equal(t, 1, h.SubscriberCount("ws-3"))
	})
}

func TestPublish(t *testing.T) {
	h := New()

	subscriberA := newTestConn(h, "a")
	subscriberB := newTestConn(h, "b")
	outsider := newTestConn(h, "c")
	unbound := newTestConn(h, "d")

	h.Subscribe(subscriberA, "ws-1")
	h.Subscribe(subscriberB, "ws-1")
	h.Subscribe(outsider, "ws-2")

	event := workspace.Event{Type: workspace.EventTaskQueued, Timestamp: "now"}
	h.Publish("ws-1", event)

	for _, c := range []*Conn{subscriberA, subscriberB} {
		payloads := drain(c)
		require.Len(t, payloads, 1, "subscriber %s", c.id)

		var got workspace.Event
		require.NoError(t, json.Unmarshal(payloads[0], &got))
		assert.Equal(t, workspace.EventTaskQueued, got.Type)
	}

	assert.Empty(t, drain(outsider))
	assert.Empty(t, drain(unbound))
}

func TestPublishToEmptyWorkspace(t *testing.T) {
	h := New()

	// No subscribers and no workspace ID are both silent no-ops
	h.Publish("ws-none", workspace.Event{Type: workspace.EventTaskQueued})
	h.Publish("", workspace.Event{Type: workspace.EventTaskQueued})
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	h := New()
	slow := newTestConn(h, "slow")
	h.Subscribe(slow, "ws-1")

	for i := 0; i < sendBufferSize+5; i++ {
		h.Publish("ws-1", workspace.Event{Type: workspace.EventTaskQueued})
	}

	assert.Len(t, drain(slow), sendBufferSize)
	assert.Equal(t, int64(5), slow.dropped.Load())
}

func TestPublishSkipsClosedConnections(t *testing.T) {
	h := New()
	gone := newTestConn(h, "gone")
	h.Subscribe(gone, "ws-1")
	close(gone.done)

	h.Publish("ws-1", workspace.Event{Type: workspace.EventTaskQueued})
	assert.Empty(t, drain(gone))
}

func TestRelay(t *testing.T) {
	h := New()

	sender := newTestConn(h, "sender")
	peer := newTestConn(h, "peer")
	outsider := newTestConn(h, "outsider")

	h.Subscribe(sender, "ws-1")
	h.Subscribe(peer, "ws-1")
	h.Subscribe(outsider, "ws-2")

	t.Run("reaches workspace peers but not the sender", func(t *testing.T) {
		h.relay(sender, []byte(`{"type":"cursor_moved"}`))

		assert.Len(t, drain(peer), 1)
		assert.Empty(t, drain(sender))
		assert.Empty(t, drain(outsider))
	})

	t.Run("drops messages from unsubscribed senders", func(t *testing.T) {
		h.Unsubscribe(sender)
		h.relay(sender, []byte(`{"type":"cursor_moved"}`))
		assert.Empty(t, drain(peer))
	})
}

func TestUnregisterRemovesSubscription(t *testing.T) {
	h := New()
	c := newTestConn(h, "c1")
	h.Subscribe(c, "ws-1")

	h.unregister(c)
	assert.Equal(t, 0, h.SubscriberCount("ws-1"))

	// Publishing after unregister delivers nothing
	h.Publish("ws-1", workspace.Event{Type: workspace.EventTaskQueued})
	assert.Empty(t, drain(c))
}

func TestConcurrentPublish(t *testing.T) {
	h := New()

	subscribers := make([]*Conn, 8)
	for i := range subscribers {
		subscribers[i] = newTestConn(h, fmt.Sprintf("c%d", i))
		h.Subscribe(subscribers[i], "ws-1")
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Publish("ws-1", workspace.Event{Type: workspace.EventTaskStarted})
		}()
	}
	wg.Wait()

	for _, c := range subscribers {
		assert.Len(t, drain(c), 16)
	}
}

// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/Ahlecss/Gobeluno-server/internal/game"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// outboxSize bounds how far a client may lag before it is dropped.
const outboxSize = 64

// Connection is one websocket client. Frames are queued on OutChan and written
// by the connection's write pump, so senders never block on the network.
type Connection struct {
	ID      uuid.UUID
	OutChan chan []byte
	Cancel  context.CancelFunc

	slow atomic.Bool
}

func NewConnection(id uuid.UUID, cancel context.CancelFunc) *Connection {
	return &Connection{
		ID:      id,
		OutChan: make(chan []byte, outboxSize),
		Cancel:  cancel,
	}
}

// Hub tracks live connections, seated or not, and fans session events out to them.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection
	log   *logrus.Entry
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		conns: make(map[uuid.UUID]*Connection),
		log:   logger.WithField("component", "hub"),
	}
}

func (h *Hub) Add(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
}

func (h *Hub) Remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends ev to every connection. Suitable for Session.BroadcastFn.
func (h *Hub) Broadcast(ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Errorf("failed to marshal broadcast event %s", ev.Type)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		h.enqueue(c, data)
	}
}

// SendTo sends ev to one connection. Suitable for Session.BroadcastToPlayerFn.
func (h *Hub) SendTo(id uuid.UUID, ev game.Event) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		h.log.WithField("conn", id).Debugf("dropping %s for unknown connection", ev.Type)
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Errorf("failed to marshal private event %s", ev.Type)
		return
	}
	h.enqueue(c, data)
}

// enqueue never blocks: a client whose outbox is full is cut off.
func (h *Hub) enqueue(c *Connection, data []byte) {
	select {
	case c.OutChan <- data:
	default:
		if c.slow.CompareAndSwap(false, true) {
			h.log.WithField("conn", c.ID).Warn("outbox full, closing slow connection")
		}
		c.Cancel()
	}
}

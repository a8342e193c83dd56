package stream

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// EventType represents the kind of inventory event being broadcast
type EventType string

const (
	EventLotAdded      EventType = "lot_added"
	EventLotRemoved    EventType = "lot_removed"
	EventCookCommitted EventType = "cook_committed"
	EventLotsSwept     EventType = "lots_swept"
)

// Event is one inventory change pushed to connected clients.
type Event struct {
	Type    EventType   `json:"type"`
	UserID  string      `json:"user_id"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Hub fans inventory events out to every connected websocket client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*connection]bool
	onCount func(delta int)
}

// NewHub creates an event hub. onCount, when set, observes client
// connect/disconnect for the metrics gauge.
func NewHub(onCount func(delta int)) *Hub {
	return &Hub{
		clients: make(map[*connection]bool),
		onCount: onCount,
	}
}

// Publish broadcasts an event to all clients. Slow clients drop messages
// instead of blocking the publisher.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("stream: failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		select {
		case conn.send <- data:
		default:
			log.Println("stream: client buffer full, dropping message")
		}
	}
}

func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	if h.onCount != nil {
		h.onCount(1)
	}
}

func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	removed := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if removed && h.onCount != nil {
		h.onCount(-1)
	}
}

package services

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SubmissionEvent is broadcast to connected admin dashboards whenever a
// tenant submits a reading.
type SubmissionEvent struct {
	ApartmentID int64     `json:"apartment_id"`
	MeterType   string    `json:"meter_type"`
	Value       int       `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}

// EventHub fans submission events out to websocket clients. Delivery is
// fire-and-forget: a client that cannot keep up is dropped.
type EventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]bool)}
}

// Register adds a client; the hub owns the connection from here on.
func (h *EventHub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[EVENTS] Dashboard client connected (%d active)", count)
}

func (h *EventHub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// Broadcast sends the event to every connected client.
func (h *EventHub) Broadcast(event SubmissionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("[EVENTS] Dropping slow client: %v", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// ClientCount reports active dashboard connections.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

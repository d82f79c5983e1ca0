package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/omegahouses/invoice-api/services"
)

// EventsHandler upgrades admin dashboard connections and parks them on the
// hub until they disconnect. Traffic is one-way, server to client.
type EventsHandler struct {
	hub      *services.EventHub
	upgrader websocket.Upgrader
}

func NewEventsHandler(hub *services.EventHub) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth already happened on the JWT middleware; any origin that
			// got this far is allowed.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[EVENTS] Upgrade failed: %v", err)
		return
	}

	h.hub.Register(conn)

	// Drain client frames so pings are answered; any read error means the
	// client went away.
	go func() {
		defer h.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

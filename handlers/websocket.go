package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/CrowderSoup/microjobs/services"
)

// WebSocketHandler attaches browser tabs to the notification hub
type WebSocketHandler struct {
	hub      *services.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *services.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Tabs are keyed by the browser cookie, not the session, so a notice queued
// while logging out still reaches the login page.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := services.ClientIDFromContext(r.Context())
	if clientID == "" {
		http.Error(w, "Missing client", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := &services.Client{
		Hub:      h.hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		ClientID: clientID,
	}
	h.hub.Register(client)

	// Start goroutines for reading and writing
	go client.WritePump()
	go client.ReadPump()
}

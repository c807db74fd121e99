package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxPendingNotices caps the flash queue of one browser.
const maxPendingNotices = 20

// Notice is one toast message.
type Notice struct {
	ID      string    `json:"id"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifications queues notices per browser until the next page render and
// pushes them live over the hub.
type Notifications struct {
	mu      sync.Mutex
	pending map[string][]Notice
	hub     *Hub
}

func NewNotifications(hub *Hub) *Notifications {
	return &Notifications{
		pending: make(map[string][]Notice),
		hub:     hub,
	}
}

func (n *Notifications) NotifySuccess(ctx context.Context, message string) {
	n.push(ctx, "success", message)
}

func (n *Notifications) NotifyError(ctx context.Context, message string) {
	n.push(ctx, "error", message)
}

func (n *Notifications) push(ctx context.Context, level, message string) {
	clientID := ClientIDFromContext(ctx)
	if clientID == "" {
		log.Printf("Dropping %s notification without a client: %s", level, message)
		return
	}

	notice := Notice{ID: uuid.NewString(), Level: level, Message: message, At: time.Now()}

	n.mu.Lock()
	queue := append(n.pending[clientID], notice)
	if len(queue) > maxPendingNotices {
		queue = queue[len(queue)-maxPendingNotices:]
	}
	n.pending[clientID] = queue
	n.mu.Unlock()

	if n.hub != nil {
		n.hub.SendTo(clientID, WebSocketMessage{Type: "notification", Data: notice})
	}
}

// Drain returns and forgets the pending notices of a browser.
func (n *Notifications) Drain(clientID string) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	notices := n.pending[clientID]
	delete(n.pending, clientID)
	return notices
}

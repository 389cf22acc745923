package realtime

import (
	"encoding/json"
	"sync"

	"campusnet/backend/internal/graph"
	"campusnet/backend/pkg/logger"

	"go.uber.org/zap"
)

// Hub is the connection registry: one logical room per user id. A user may
// hold several simultaneous connections (multiple devices); every event
// routed to a room fans out to all of them.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	closed bool
	logger *zap.Logger
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger.Get(),
	}
}

// Register adds a client to its user's room
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(client.send)
		return
	}

	room, ok := h.rooms[client.userID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[client.userID] = room
	}
	room[client] = struct{}{}

	h.logger.Info("Client joined room",
		zap.String("user_id", client.userID),
		zap.Int("connections", len(room)),
	)
}

// Unregister removes a client and stops delivery to it. No events leak to a
// view opened on a later connection.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.userID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}

	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.userID)
	}

	h.logger.Info("Client left room", zap.String("user_id", client.userID))
}

// RouteMessage pushes a receive-message event into the recipient's room.
// Implements the messaging service's Pusher. A client whose outbound queue
// is full is skipped rather than blocking the send path.
func (h *Hub) RouteMessage(toID string, msg graph.MessageRecord) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message event", zap.Error(err))
		return
	}
	data, err := json.Marshal(Event{Type: EventReceiveMessage, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to marshal event envelope", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[toID] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Dropping event for slow client", zap.String("user_id", toID))
		}
	}
}

// ConnectionCount returns how many connections the user's room holds
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Shutdown closes every client channel and rejects further registrations
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for userID, room := range h.rooms {
		for client := range room {
			close(client.send)
		}
		delete(h.rooms, userID)
	}
}

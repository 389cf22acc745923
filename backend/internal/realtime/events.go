package realtime

import "encoding/json"

// EventType identifies a realtime frame
type EventType string

const (
	// EventJoin is sent by a client to enter its own room
	EventJoin EventType = "join"
	// EventSendMessage is sent by a client to deliver a chat message
	EventSendMessage EventType = "send-message"
	// EventReceiveMessage is pushed to the recipient's room only
	EventReceiveMessage EventType = "receive-message"
)

// Event is the wire envelope for all realtime frames
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload carries the room key for a join event
type JoinPayload struct {
	UserID string `json:"user_id"`
}

// SendMessagePayload carries an outbound chat message from a client
type SendMessagePayload struct {
	ToID    string `json:"to_id"`
	Content string `json:"content"`
}

package realtime

import (
	"context"
	"encoding/json"
	"time"

	"campusnet/backend/internal/graph"
	"campusnet/backend/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameSize   = 4096
	sendBufferSize = 256
)

// MessageSender is the durable send path. Inbound send-message frames go
// through it so persistence always precedes the push to the recipient.
type MessageSender interface {
	Send(ctx context.Context, fromID, toID, content string) (*graph.MessageRecord, error)
}

// Client is one websocket connection bound to one user's room
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	sender MessageSender
	userID string
	send   chan []byte
	logger *zap.Logger
}

// NewClient wraps an upgraded connection for the given user. The caller is
// expected to Register the client and start both pumps.
func NewClient(hub *Hub, conn *websocket.Conn, sender MessageSender, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		sender: sender,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
		logger: logger.Get(),
	}
}

// ReadPump consumes inbound frames until the connection drops, then
// unregisters the client so no further events are delivered to it.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			break
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.Warn("Failed to parse realtime frame", zap.Error(err))
			continue
		}

		c.handleEvent(event)
	}
}

// WritePump flushes the outbound queue and keeps the connection alive with
// pings. Exits when the hub closes the send channel.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleEvent(event Event) {
	switch event.Type {
	case EventJoin:
		c.handleJoin(event.Payload)
	case EventSendMessage:
		c.handleSendMessage(event.Payload)
	default:
		c.logger.Warn("Unknown realtime event", zap.String("type", string(event.Type)))
	}
}

// handleJoin acknowledges a join frame. The room is already keyed by the
// connection's own user id, so a join naming anyone else is ignored.
func (c *Client) handleJoin(payload json.RawMessage) {
	var req JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.logger.Warn("Malformed join payload", zap.Error(err))
		return
	}
	if req.UserID != "" && req.UserID != c.userID {
		c.logger.Warn("Join frame for another user ignored",
			zap.String("connection_user_id", c.userID),
			zap.String("requested_user_id", req.UserID),
		)
	}
}

func (c *Client) handleSendMessage(payload json.RawMessage) {
	var req SendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.logger.Warn("Malformed send-message payload", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.sender.Send(ctx, c.userID, req.ToID, req.Content); err != nil {
		c.logger.Warn("Failed to send message from realtime channel",
			zap.String("from_id", c.userID),
			zap.String("to_id", req.ToID),
			zap.Error(err),
		)
	}
}

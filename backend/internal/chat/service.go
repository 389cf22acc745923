package chat

import (
	"context"
	"strings"
	"time"

	"campusnet/backend/internal/graph"
	apperrors "campusnet/backend/pkg/errors"
	"campusnet/backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageStore is the graph surface the messaging service persists through.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg graph.MessageRecord) error
	MessagesBetween(ctx context.Context, userAID, userBID string) ([]graph.MessageRecord, error)
	ConversationsFor(ctx context.Context, userID string) ([]graph.ConversationRecord, error)
	MarkRead(ctx context.Context, userID, peerID string, epochMillis int64) error
}

// Pusher delivers a freshly persisted message to the recipient's room.
// Delivery is best effort: the durable write has already happened, so an
// undelivered push only means the recipient picks the message up on the
// next history fetch.
type Pusher interface {
	RouteMessage(toID string, msg graph.MessageRecord)
}

// Service persists messages and serves ordered history. The epoch-millisecond
// sort key is assigned here, at the single write path, so clock skew between
// readers can never reorder a conversation.
type Service struct {
	store  MessageStore
	pusher Pusher
	logger *zap.Logger
}

// NewService creates a messaging service. pusher may be nil when no realtime
// transport is attached (e.g. in the seed tool).
func NewService(store MessageStore, pusher Pusher) *Service {
	return &Service{
		store:  store,
		pusher: pusher,
		logger: logger.Get(),
	}
}

// Send validates, persists, and pushes one message. The returned record
// carries the assigned id and timestamps so the caller can reconcile its
// local echo against the durable copy.
func (s *Service) Send(ctx context.Context, fromID, toID, content string) (*graph.MessageRecord, error) {
	if strings.TrimSpace(fromID) == "" || strings.TrimSpace(toID) == "" {
		return nil, apperrors.NewValidation("sender and recipient ids must not be empty")
	}
	if fromID == toID {
		return nil, apperrors.NewValidation("sender and recipient must differ")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidation("message content must not be empty")
	}

	now := time.Now()
	msg := graph.MessageRecord{
		ID:          uuid.New().String(),
		SenderID:    fromID,
		RecipientID: toID,
		Content:     content,
		CreatedAt:   now,
		EpochMillis: now.UnixMilli(),
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		if apperrors.IsNotFound(err) {
			// Unknown sender/recipient surfaces as a validation failure on
			// the send path.
			return nil, apperrors.NewValidation("unknown sender or recipient")
		}
		return nil, err
	}

	// Push to the recipient's room only; the sender already holds its
	// local echo.
	if s.pusher != nil {
		s.pusher.RouteMessage(toID, msg)
	}

	s.logger.Debug("Message sent",
		zap.String("message_id", msg.ID),
		zap.String("from_id", fromID),
		zap.String("to_id", toID),
	)
	return &msg, nil
}

// History returns every message between the two users, ascending by the
// epoch sort key.
func (s *Service) History(ctx context.Context, userAID, userBID string) ([]graph.MessageRecord, error) {
	if strings.TrimSpace(userAID) == "" || strings.TrimSpace(userBID) == "" {
		return nil, apperrors.NewValidation("user ids must not be empty")
	}
	return s.store.MessagesBetween(ctx, userAID, userBID)
}

// Conversations returns the user's distinct peers with their latest message
// and unread count.
func (s *Service) Conversations(ctx context.Context, userID string) ([]graph.ConversationRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewValidation("user id must not be empty")
	}
	return s.store.ConversationsFor(ctx, userID)
}

// MarkRead advances the persisted read marker for the (user, peer) pair to
// the current time.
func (s *Service) MarkRead(ctx context.Context, userID, peerID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(peerID) == "" {
		return apperrors.NewValidation("user and peer ids must not be empty")
	}
	return s.store.MarkRead(ctx, userID, peerID, time.Now().UnixMilli())
}

package graph

import (
	"context"
	"fmt"

	apperrors "campusnet/backend/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Message Operations
//
// Messages are nodes linked (:User)-[:SENT]->(:Message)-[:TO]->(:User).
// epoch_millis is the authoritative sort key; created_at is display only.
// ============================================================================

// CreateMessage persists one message between two existing users. The sender
// and recipient match is part of the create statement, so a message can never
// dangle from an unknown user.
func (r *Repository) CreateMessage(ctx context.Context, msg MessageRecord) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (s:User {id: $senderID}), (t:User {id: $recipientID})
		CREATE (m:Message {
			id: $id,
			content: $content,
			created_at: datetime($createdAt),
			epoch_millis: $epochMillis
		})
		CREATE (s)-[:SENT]->(m)-[:TO]->(t)
		RETURN m.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"senderID":    msg.SenderID,
		"recipientID": msg.RecipientID,
		"id":          msg.ID,
		"content":     msg.Content,
		"createdAt":   msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"epochMillis": msg.EpochMillis,
	})
	if err != nil {
		return apperrors.NewTransient("failed to create message", err)
	}

	if _, err = result.Single(ctx); err != nil {
		return apperrors.NewNotFound(fmt.Sprintf("sender %s or recipient %s not found", msg.SenderID, msg.RecipientID))
	}

	r.logger.Debug("Message persisted",
		zap.String("message_id", msg.ID),
		zap.String("sender_id", msg.SenderID),
		zap.String("recipient_id", msg.RecipientID),
	)
	return nil
}

// MessagesBetween returns every message exchanged between the two users in
// either direction, ascending by the epoch sort key.
func (r *Repository) MessagesBetween(ctx context.Context, userAID, userBID string) ([]MessageRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (s:User)-[:SENT]->(m:Message)-[:TO]->(t:User)
		WHERE (s.id = $userAID AND t.id = $userBID)
		   OR (s.id = $userBID AND t.id = $userAID)
		RETURN m.id as id, s.id as sender_id, t.id as recipient_id,
		       m.content as content, m.created_at as created_at,
		       m.epoch_millis as epoch_millis
		ORDER BY m.epoch_millis ASC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userAID": userAID,
		"userBID": userBID,
	})
	if err != nil {
		return nil, apperrors.NewTransient("failed to fetch message history", err)
	}

	var messages []MessageRecord
	for result.Next(ctx) {
		record := result.Record()
		messages = append(messages, MessageRecord{
			ID:          getStringFromRecord(record, "id"),
			SenderID:    getStringFromRecord(record, "sender_id"),
			RecipientID: getStringFromRecord(record, "recipient_id"),
			Content:     getStringFromRecord(record, "content"),
			CreatedAt:   getTimeFromRecord(record, "created_at"),
			EpochMillis: getInt64FromRecord(record, "epoch_millis"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewTransient("failed to read message records", err)
	}

	return messages, nil
}

// ConversationsFor returns each distinct peer userID has exchanged messages
// with, annotated with the latest message and the count of the peer's
// messages past the persisted read marker.
func (r *Repository) ConversationsFor(ctx context.Context, userID string) ([]ConversationRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})
		MATCH (s:User)-[:SENT]->(m:Message)-[:TO]->(t:User)
		WHERE s = u OR t = u
		WITH u, CASE WHEN s = u THEN t ELSE s END AS peer, m, s
		OPTIONAL MATCH (u)-[lr:LAST_READ]->(peer)
		WITH u, peer, m, s, coalesce(lr.epoch_millis, 0) AS last_read
		ORDER BY m.epoch_millis DESC
		WITH peer, last_read,
		     collect({
			id: m.id,
			sender_id: s.id,
			content: m.content,
			created_at: m.created_at,
			epoch_millis: m.epoch_millis
		     }) AS msgs,
		     sum(CASE WHEN s = peer AND m.epoch_millis > last_read THEN 1 ELSE 0 END) AS unread
		RETURN peer.id as peer_id, peer.name as peer_name, peer.username as peer_username,
		       peer.avatar as peer_avatar, peer.status as peer_status,
		       msgs[0] as last_message, unread
		ORDER BY msgs[0].epoch_millis DESC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"userID": userID})
	if err != nil {
		return nil, apperrors.NewTransient("failed to fetch conversations", err)
	}

	var conversations []ConversationRecord
	for result.Next(ctx) {
		record := result.Record()

		conv := ConversationRecord{
			Peer: FriendRecord{
				ID:       getStringFromRecord(record, "peer_id"),
				Name:     getStringFromRecord(record, "peer_name"),
				Username: getStringFromRecord(record, "peer_username"),
				Avatar:   getStringFromRecord(record, "peer_avatar"),
				Status:   getStringFromRecord(record, "peer_status"),
			},
			UnreadCount: getInt64FromRecord(record, "unread"),
		}

		if raw, ok := record.Get("last_message"); ok {
			if msgMap, ok := raw.(map[string]interface{}); ok {
				senderID := getStringFromMap(msgMap, "sender_id")
				recipientID := userID
				if senderID == userID {
					recipientID = conv.Peer.ID
				}
				conv.LastMessage = MessageRecord{
					ID:          getStringFromMap(msgMap, "id"),
					SenderID:    senderID,
					RecipientID: recipientID,
					Content:     getStringFromMap(msgMap, "content"),
					CreatedAt:   getTimeFromMap(msgMap, "created_at"),
					EpochMillis: getInt64FromMap(msgMap, "epoch_millis"),
				}
			}
		}

		conversations = append(conversations, conv)
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewTransient("failed to read conversation records", err)
	}

	return conversations, nil
}

// MarkRead advances the persisted read marker for the (user, peer) pair.
// The marker only moves forward, so a stale client cannot resurrect unread
// counts.
func (r *Repository) MarkRead(ctx context.Context, userID, peerID string, epochMillis int64) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID}), (p:User {id: $peerID})
		MERGE (u)-[lr:LAST_READ]->(p)
		SET lr.epoch_millis = CASE
			WHEN lr.epoch_millis IS NULL OR lr.epoch_millis < $epochMillis
			THEN $epochMillis
			ELSE lr.epoch_millis
		END
		RETURN u.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID":      userID,
		"peerID":      peerID,
		"epochMillis": epochMillis,
	})
	if err != nil {
		return apperrors.NewTransient("failed to mark conversation read", err)
	}

	if _, err = result.Single(ctx); err != nil {
		return apperrors.NewNotFound(fmt.Sprintf("user %s or peer %s not found", userID, peerID))
	}

	return nil
}

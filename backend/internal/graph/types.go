package graph

import "time"

// ============================================================================
// Typed Query Result Records
// ============================================================================

// FriendRecord is the typed row returned by user, friend, and pending-request
// listings. Status is a coarse presence hint, not authoritative.
type FriendRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Status   string `json:"status,omitempty"`
}

// MessageRecord is a single persisted chat message. EpochMillis is the
// authoritative sort key; CreatedAt is wall clock and advisory only.
type MessageRecord struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	EpochMillis int64     `json:"epoch_millis"`
}

// ConversationRecord summarizes one peer relationship: the most recent
// message exchanged and how many of the peer's messages are past the
// persisted read marker.
type ConversationRecord struct {
	Peer        FriendRecord  `json:"peer"`
	LastMessage MessageRecord `json:"last_message"`
	UnreadCount int64         `json:"unread_count"`
}

// SuggestionRecord is a ranked friend-suggestion candidate.
type SuggestionRecord struct {
	User          FriendRecord `json:"user"`
	MutualFriends int64        `json:"mutual_friends"`
}

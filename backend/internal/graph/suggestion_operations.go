package graph

import (
	"context"

	apperrors "campusnet/backend/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Suggestion Traversals
// ============================================================================

// FriendsOfFriends returns candidates at graph distance exactly 2 via
// friendship edges, with their mutual-friend counts. Excludes the user, the
// user's friends, and anyone with a pending request to or from the user.
func (r *Repository) FriendsOfFriends(ctx context.Context, userID string) ([]SuggestionRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})-[:FRIENDS_WITH]->(f:User)-[:FRIENDS_WITH]->(c:User)
		WHERE c.id <> $userID
		  AND NOT (u)-[:FRIENDS_WITH]->(c)
		  AND NOT (u)-[:REQUESTED]-(c)
		RETURN c.id as id, c.name as name, c.username as username,
		       c.avatar as avatar, c.status as status,
		       count(DISTINCT f) as mutual_friends
		ORDER BY mutual_friends DESC, id ASC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"userID": userID})
	if err != nil {
		return nil, apperrors.NewTransient("failed to traverse friends of friends", err)
	}

	var candidates []SuggestionRecord
	for result.Next(ctx) {
		record := result.Record()
		candidates = append(candidates, SuggestionRecord{
			User:          friendFromRecord(record),
			MutualFriends: getInt64FromRecord(record, "mutual_friends"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewTransient("failed to read candidate records", err)
	}

	return candidates, nil
}

// MutualFriendCount counts the users friendship-adjacent to both userID and
// candidateID.
func (r *Repository) MutualFriendCount(ctx context.Context, userID, candidateID string) (int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})-[:FRIENDS_WITH]->(m:User)-[:FRIENDS_WITH]->(c:User {id: $candidateID})
		RETURN count(DISTINCT m) as mutual_friends
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID":      userID,
		"candidateID": candidateID,
	})
	if err != nil {
		return 0, apperrors.NewTransient("failed to count mutual friends", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return 0, apperrors.NewTransient("failed to read mutual friend count", err)
	}

	return getInt64FromRecord(record, "mutual_friends"), nil
}

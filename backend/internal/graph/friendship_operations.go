package graph

import (
	"context"
	"fmt"
	"time"

	apperrors "campusnet/backend/pkg/errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Friendship Operations
//
// Two edge kinds: REQUESTED (directed, pending, deleted on resolution) and
// FRIENDS_WITH (symmetric, stored as two directed edges). The two kinds are
// mutually exclusive for any unordered pair. Each mutation below is a single
// Cypher statement, so it commits atomically. Atomicity alone does not
// serialize: Neo4j takes no read locks, so a conditional CREATE must lock
// the user nodes before its existence check or two transactions can both
// observe the absent edge and both create one.
// ============================================================================

// CreatePendingRequest creates one directed pending request edge from fromID
// to toID. Fails with a conflict error if a friendship or a pending request
// already exists between the pair in either direction, so a retry after an
// ambiguous failure can never produce a second pending edge.
//
// The statement writes a lock marker on both user nodes before checking edge
// existence. Concurrent requests for the same pair, in either direction,
// block on those node locks and re-run their check against the committed
// state, so the loser always lands on the conflict branch instead of
// creating a duplicate. Nodes are locked in id order to keep opposing
// requests from deadlocking.
func (r *Repository) CreatePendingRequest(ctx context.Context, fromID, toID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		MATCH (a:User {id: $fromID}), (b:User {id: $toID})
		WITH a, b, CASE WHEN a.id < b.id THEN [a, b] ELSE [b, a] END AS pair
		FOREACH (n IN pair | SET n._lock = true)
		WITH a, b
		OPTIONAL MATCH (a)-[e:FRIENDS_WITH|REQUESTED]-(b)
		WITH a, b, count(e) AS existing
		FOREACH (_ IN CASE WHEN existing = 0 THEN [1] ELSE [] END |
			CREATE (a)-[:REQUESTED {created_at: datetime($now)}]->(b)
		)
		REMOVE a._lock, b._lock
		RETURN existing
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"fromID": fromID,
		"toID":   toID,
		"now":    now,
	})
	if err != nil {
		return apperrors.NewTransient("failed to create friend request", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return apperrors.NewNotFound(fmt.Sprintf("user not found: %s or %s", fromID, toID))
	}

	if getInt64FromRecord(record, "existing") > 0 {
		return apperrors.NewConflict(fmt.Sprintf("request or friendship already exists between %s and %s", fromID, toID))
	}

	r.logger.Info("Friend request created",
		zap.String("from_id", fromID),
		zap.String("to_id", toID),
	)
	return nil
}

// AcceptRequest resolves the pending request fromID->toID: every pending edge
// between the pair is deleted and both directions of the friendship are
// created in the same statement. MERGE keeps redundant pending edges from
// producing redundant friendship edges. Returns a not-found error when no
// pending request fromID->toID exists; callers treat that as already applied.
func (r *Repository) AcceptRequest(ctx context.Context, fromID, toID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		MATCH (a:User {id: $fromID})-[req:REQUESTED]->(b:User {id: $toID})
		WITH a, b, collect(req) AS pending
		OPTIONAL MATCH (b)-[rev:REQUESTED]->(a)
		WITH a, b, pending + collect(rev) AS edges
		FOREACH (e IN edges | DELETE e)
		MERGE (a)-[fab:FRIENDS_WITH]->(b)
		ON CREATE SET fab.since = datetime($now)
		MERGE (b)-[fba:FRIENDS_WITH]->(a)
		ON CREATE SET fba.since = datetime($now)
		RETURN a.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"fromID": fromID,
		"toID":   toID,
		"now":    now,
	})
	if err != nil {
		return apperrors.NewTransient("failed to accept friend request", err)
	}

	if _, err = result.Single(ctx); err != nil {
		return apperrors.NewNotFound(fmt.Sprintf("no pending request from %s to %s", fromID, toID))
	}

	r.logger.Info("Friend request accepted",
		zap.String("from_id", fromID),
		zap.String("to_id", toID),
	)
	return nil
}

// DeletePendingRequest removes the pending request fromID->toID if present.
// Absent edges are a no-op, which makes rejection idempotent.
func (r *Repository) DeletePendingRequest(ctx context.Context, fromID, toID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (a:User {id: $fromID})-[req:REQUESTED]->(b:User {id: $toID})
		DELETE req
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"fromID": fromID,
		"toID":   toID,
	})
	if err != nil {
		return apperrors.NewTransient("failed to delete friend request", err)
	}

	return nil
}

// DeleteFriendship removes both directions of the friendship between the
// pair. The undirected match catches every stored edge; no-op if absent.
func (r *Repository) DeleteFriendship(ctx context.Context, userID, friendID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (a:User {id: $userID})-[f:FRIENDS_WITH]-(b:User {id: $friendID})
		DELETE f
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"userID":   userID,
		"friendID": friendID,
	})
	if err != nil {
		return apperrors.NewTransient("failed to delete friendship", err)
	}

	r.logger.Info("Friendship removed",
		zap.String("user_id", userID),
		zap.String("friend_id", friendID),
	)
	return nil
}

// ListFriends returns all users one friendship hop away, deduplicated by id.
// Edge count is not friend count: legacy data may hold redundant edges.
func (r *Repository) ListFriends(ctx context.Context, userID string) ([]FriendRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})-[:FRIENDS_WITH]->(f:User)
		RETURN DISTINCT f.id as id, f.name as name, f.username as username,
		       f.avatar as avatar, f.status as status
		ORDER BY f.username
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"userID": userID})
	if err != nil {
		return nil, apperrors.NewTransient("failed to list friends", err)
	}

	var friends []FriendRecord
	for result.Next(ctx) {
		friends = append(friends, friendFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewTransient("failed to read friend records", err)
	}

	return friends, nil
}

// ListPendingRequesters returns all users with a pending request directed at
// userID.
func (r *Repository) ListPendingRequesters(ctx context.Context, userID string) ([]FriendRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (p:User)-[:REQUESTED]->(u:User {id: $userID})
		RETURN DISTINCT p.id as id, p.name as name, p.username as username,
		       p.avatar as avatar, p.status as status
		ORDER BY p.username
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"userID": userID})
	if err != nil {
		return nil, apperrors.NewTransient("failed to list pending requests", err)
	}

	var requesters []FriendRecord
	for result.Next(ctx) {
		requesters = append(requesters, friendFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewTransient("failed to read request records", err)
	}

	return requesters, nil
}

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
// User Operations
// ============================================================================

// CreateUser creates a user node. Registration lives outside this core, but
// the seed tool and integration tests need a way to materialize users.
func (r *Repository) CreateUser(ctx context.Context, id, name, username, avatar string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		MERGE (u:User {id: $id})
		ON CREATE SET
			u.name = $name,
			u.username = $username,
			u.avatar = $avatar,
			u.status = 'offline',
			u.created_at = datetime($now)
		RETURN u.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"id":       id,
		"name":     name,
		"username": username,
		"avatar":   avatar,
		"now":      now,
	})
	if err != nil {
		return apperrors.NewTransient("failed to create user", err)
	}

	if _, err = result.Single(ctx); err != nil {
		return fmt.Errorf("failed to verify user creation: %w", err)
	}

	r.logger.Info("User created",
		zap.String("user_id", id),
		zap.String("username", username),
	)
	return nil
}

// GetUser returns a single user by id
func (r *Repository) GetUser(ctx context.Context, id string) (*FriendRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $id})
		RETURN u.id as id, u.name as name, u.username as username,
		       u.avatar as avatar, u.status as status
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return nil, apperrors.NewTransient("failed to fetch user", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, apperrors.NewTransient("failed to read user record", err)
		}
		return nil, apperrors.NewNotFound(fmt.Sprintf("user not found: %s", id))
	}

	record := friendFromRecord(result.Record())
	return &record, nil
}

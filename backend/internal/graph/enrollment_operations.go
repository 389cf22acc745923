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
// Enrollment Operations
//
// The course catalog itself is an external collaborator; this core only
// consumes the shared-enrollment lookup and the auto-enroll side channel.
// ============================================================================

// CreateCourse creates a course node. Used by the seed tool and tests.
func (r *Repository) CreateCourse(ctx context.Context, id, name string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (c:Course {id: $id})
		ON CREATE SET c.name = $name, c.created_at = datetime($now)
		RETURN c.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"id":   id,
		"name": name,
		"now":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return apperrors.NewTransient("failed to create course", err)
	}

	if _, err = result.Single(ctx); err != nil {
		return fmt.Errorf("failed to verify course creation: %w", err)
	}

	return nil
}

// UsersSharingEnrollment returns users who share at least one course
// enrollment with userID, excluding existing friends and pending requests
// so the suggestion engine only sees viable candidates.
func (r *Repository) UsersSharingEnrollment(ctx context.Context, userID string) ([]FriendRecord, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})-[:ENROLLED_IN]->(c:Course)<-[:ENROLLED_IN]-(peer:User)
		WHERE peer.id <> $userID
		  AND NOT (u)-[:FRIENDS_WITH]->(peer)
		  AND NOT (u)-[:REQUESTED]-(peer)
		RETURN DISTINCT peer.id as id, peer.name as name, peer.username as username,
		       peer.avatar as avatar, peer.status as status
		ORDER BY id ASC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"userID": userID})
	if err != nil {
		return nil, apperrors.NewTransient("failed to find shared enrollments", err)
	}

	var peers []FriendRecord
	for result.Next(ctx) {
		peers = append(peers, friendFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewTransient("failed to read enrollment records", err)
	}

	return peers, nil
}

// IsEnrolled reports whether userID has an enrollment edge to courseID.
func (r *Repository) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})-[:ENROLLED_IN]->(c:Course {id: $courseID})
		RETURN count(*) > 0 as enrolled
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID":   userID,
		"courseID": courseID,
	})
	if err != nil {
		return false, apperrors.NewTransient("failed to check enrollment", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return false, apperrors.NewTransient("failed to read enrollment check", err)
	}

	enrolled, _ := record.Get("enrolled")
	b, _ := enrolled.(bool)
	return b, nil
}

// EnrollUser creates the enrollment edge if it does not already exist.
// Backs the auto-enroll side channel triggered by a user's first interaction
// with a course.
func (r *Repository) EnrollUser(ctx context.Context, userID, courseID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID}), (c:Course {id: $courseID})
		MERGE (u)-[e:ENROLLED_IN]->(c)
		ON CREATE SET e.enrolled_at = datetime($now)
		RETURN u.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID":   userID,
		"courseID": courseID,
		"now":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return apperrors.NewTransient("failed to enroll user", err)
	}

	if _, err = result.Single(ctx); err != nil {
		return apperrors.NewNotFound(fmt.Sprintf("user %s or course %s not found", userID, courseID))
	}

	r.logger.Info("User enrolled",
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
	)
	return nil
}

package social

import (
	"context"
	"strings"

	"campusnet/backend/internal/graph"
	apperrors "campusnet/backend/pkg/errors"
	"campusnet/backend/pkg/logger"

	"go.uber.org/zap"
)

// FriendshipStore is the subset of graph operations the friendship state
// machine needs.
type FriendshipStore interface {
	CreatePendingRequest(ctx context.Context, fromID, toID string) error
	AcceptRequest(ctx context.Context, fromID, toID string) error
	DeletePendingRequest(ctx context.Context, fromID, toID string) error
	DeleteFriendship(ctx context.Context, userID, friendID string) error
	ListFriends(ctx context.Context, userID string) ([]graph.FriendRecord, error)
	ListPendingRequesters(ctx context.Context, userID string) ([]graph.FriendRecord, error)
}

// FriendshipService owns the request/accept/reject/unfriend state machine.
// All mutations are delegated to the store as single atomic statements; the
// service adds input validation and logging.
type FriendshipService struct {
	store  FriendshipStore
	logger *zap.Logger
}

// NewFriendshipService creates a friendship service backed by the given store
func NewFriendshipService(store FriendshipStore) *FriendshipService {
	return &FriendshipService{
		store:  store,
		logger: logger.Get(),
	}
}

// SendRequest creates a pending friend request from fromID to toID. Returns
// a conflict error if a friendship or pending request already exists between
// the pair in either direction; callers may present conflict as success since
// the desired state is already in place.
func (s *FriendshipService) SendRequest(ctx context.Context, fromID, toID string) error {
	if err := validatePair(fromID, toID); err != nil {
		return err
	}

	if err := s.store.CreatePendingRequest(ctx, fromID, toID); err != nil {
		return err
	}

	s.logger.Info("Friend request sent",
		zap.String("from_id", fromID),
		zap.String("to_id", toID),
	)
	return nil
}

// AcceptRequest resolves the pending request fromID->toID into a symmetric
// friendship. A second accept returns not-found; callers treat that as
// already applied.
func (s *FriendshipService) AcceptRequest(ctx context.Context, fromID, toID string) error {
	if err := validatePair(fromID, toID); err != nil {
		return err
	}
	return s.store.AcceptRequest(ctx, fromID, toID)
}

// RejectRequest deletes the pending request fromID->toID. A missing request
// is a no-op, not an error.
func (s *FriendshipService) RejectRequest(ctx context.Context, fromID, toID string) error {
	if err := validatePair(fromID, toID); err != nil {
		return err
	}
	return s.store.DeletePendingRequest(ctx, fromID, toID)
}

// RemoveFriend deletes both directions of the friendship; no-op if absent.
func (s *FriendshipService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if err := validatePair(userID, friendID); err != nil {
		return err
	}
	return s.store.DeleteFriendship(ctx, userID, friendID)
}

// ListFriends returns the user's friends, deduplicated by id
func (s *FriendshipService) ListFriends(ctx context.Context, userID string) ([]graph.FriendRecord, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	return s.store.ListFriends(ctx, userID)
}

// ListPendingRequests returns the users with a pending request directed at
// userID
func (s *FriendshipService) ListPendingRequests(ctx context.Context, userID string) ([]graph.FriendRecord, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	return s.store.ListPendingRequesters(ctx, userID)
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidation("user id must not be empty")
	}
	return nil
}

func validatePair(a, b string) error {
	if err := validateID(a); err != nil {
		return err
	}
	if err := validateID(b); err != nil {
		return err
	}
	if a == b {
		return apperrors.NewValidation("user ids must differ")
	}
	return nil
}

package social

import (
	"context"
	"sort"

	"campusnet/backend/internal/graph"
	"campusnet/backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SuggestionStore is the read-only traversal surface the engine ranks over.
type SuggestionStore interface {
	FriendsOfFriends(ctx context.Context, userID string) ([]graph.SuggestionRecord, error)
	UsersSharingEnrollment(ctx context.Context, userID string) ([]graph.FriendRecord, error)
	MutualFriendCount(ctx context.Context, userID, candidateID string) (int64, error)
}

// SuggestionEngine computes ranked friend suggestions from two candidate
// sources: friends-of-friends and shared course enrollments. The store
// traversals already exclude the user, existing friends, and pending
// requests in either direction.
type SuggestionEngine struct {
	store  SuggestionStore
	logger *zap.Logger
}

// NewSuggestionEngine creates a suggestion engine backed by the given store
func NewSuggestionEngine(store SuggestionStore) *SuggestionEngine {
	return &SuggestionEngine{
		store:  store,
		logger: logger.Get(),
	}
}

// Suggest returns up to limit candidates ranked by mutual-friend count
// descending, ties broken by candidate id. Both traversals run concurrently;
// a user with zero friends still gets enrollment-only candidates, and a user
// with neither gets an empty result.
func (e *SuggestionEngine) Suggest(ctx context.Context, userID string, limit int) ([]graph.SuggestionRecord, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	if limit < 1 {
		return []graph.SuggestionRecord{}, nil
	}

	var (
		fofCandidates   []graph.SuggestionRecord
		enrollmentPeers []graph.FriendRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fofCandidates, err = e.store.FriendsOfFriends(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		enrollmentPeers, err = e.store.UsersSharingEnrollment(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]graph.SuggestionRecord, len(fofCandidates)+len(enrollmentPeers))
	for _, c := range fofCandidates {
		merged[c.User.ID] = c
	}
	for _, peer := range enrollmentPeers {
		if _, ok := merged[peer.ID]; ok {
			continue
		}
		// Enrollment-only candidates sit outside the 2-hop traversal, so
		// their mutual counts are fetched individually.
		mutuals, err := e.store.MutualFriendCount(ctx, userID, peer.ID)
		if err != nil {
			return nil, err
		}
		merged[peer.ID] = graph.SuggestionRecord{User: peer, MutualFriends: mutuals}
	}

	suggestions := make([]graph.SuggestionRecord, 0, len(merged))
	for id, c := range merged {
		if id == userID {
			continue
		}
		suggestions = append(suggestions, c)
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].MutualFriends != suggestions[j].MutualFriends {
			return suggestions[i].MutualFriends > suggestions[j].MutualFriends
		}
		return suggestions[i].User.ID < suggestions[j].User.ID
	})

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	e.logger.Debug("Suggestions computed",
		zap.String("user_id", userID),
		zap.Int("candidates", len(merged)),
		zap.Int("returned", len(suggestions)),
	)
	return suggestions, nil
}

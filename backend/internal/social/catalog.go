package social

import (
	"context"

	"campusnet/backend/pkg/logger"

	"go.uber.org/zap"
)

// EnrollmentStore is the enrollment surface consumed from the course
// catalog collaborator.
type EnrollmentStore interface {
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	EnrollUser(ctx context.Context, userID, courseID string) error
}

// CatalogAdapter fronts the course-catalog collaborator for the one side
// channel this core owns: enrolling a user the first time they interact
// with a course.
type CatalogAdapter struct {
	store  EnrollmentStore
	logger *zap.Logger
}

// NewCatalogAdapter creates a catalog adapter backed by the given store
func NewCatalogAdapter(store EnrollmentStore) *CatalogAdapter {
	return &CatalogAdapter{
		store:  store,
		logger: logger.Get(),
	}
}

// EnsureEnrolled enrolls userID in courseID if not already enrolled.
// Returns true when a new enrollment was created.
func (a *CatalogAdapter) EnsureEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	if err := validateID(userID); err != nil {
		return false, err
	}
	if err := validateID(courseID); err != nil {
		return false, err
	}

	enrolled, err := a.store.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return false, err
	}
	if enrolled {
		return false, nil
	}

	if err := a.store.EnrollUser(ctx, userID, courseID); err != nil {
		return false, err
	}

	a.logger.Info("User auto-enrolled on first interaction",
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
	)
	return true, nil
}

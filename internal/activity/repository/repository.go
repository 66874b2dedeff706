package repository

import (
	"context"
	"time"

	"crono-backend/internal/activity/domain"
)

// ActivityRepository is the single access path to activities in either
// storage shape. The ref's Shape routes each call; embedded operations are
// atomic per owner document.
type ActivityRepository interface {
	// FindDue returns open activities of the given shape whose due date is
	// at or before now-grace, oldest due first
	FindDue(ctx context.Context, shape domain.Shape, now time.Time, grace time.Duration) ([]*domain.Activity, error)

	// FindByID returns nil, nil when the activity does not exist
	FindByID(ctx context.Context, ref domain.ActivityRef) (*domain.Activity, error)

	// Create stores a new activity in a.Shape
	Create(ctx context.Context, a *domain.Activity) error

	// Update applies patch; domain.ErrNotFound when nothing matched
	Update(ctx context.Context, ref domain.ActivityRef, patch domain.ActivityPatch) error

	// Delete removes the activity; domain.ErrNotFound when nothing matched
	Delete(ctx context.Context, ref domain.ActivityRef) error
}

// OwnerRepository reads account data needed for notifications
type OwnerRepository interface {
	// FindOwner returns nil, nil when the owner does not exist
	FindOwner(ctx context.Context, id string) (*domain.Owner, error)
}

// SnapshotRepository is the per-owner completed-activity archive
type SnapshotRepository interface {
	// AppendSnapshot inserts at the head and evicts beyond domain.SnapshotCap
	AppendSnapshot(ctx context.Context, ownerID string, s domain.CompletedSnapshot) error

	// RemoveSnapshotsByActivityID drops every snapshot of that activity
	RemoveSnapshotsByActivityID(ctx context.Context, ownerID, activityID string) error

	// ListSnapshots returns most recent first; limit <= 0 means all
	ListSnapshots(ctx context.Context, ownerID string, limit int) ([]domain.CompletedSnapshot, error)
}

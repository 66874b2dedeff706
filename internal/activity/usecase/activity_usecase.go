package usecase

import (
	"context"
	"fmt"
	"time"

	"crono-backend/internal/activity/domain"
	"crono-backend/internal/activity/repository"
	"crono-backend/pkg/clock"
	"crono-backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// activityUsecase implements ActivityUsecase
type activityUsecase struct {
	activities repository.ActivityRepository
	snapshots  repository.SnapshotRepository
	cards      *repository.CardResolver
	clock      clock.Clock
	loc        *time.Location
	logger     *zap.Logger
}

// NewActivityUsecase creates a new instance of activityUsecase. loc is the
// zone recurrence is computed in.
func NewActivityUsecase(
	activities repository.ActivityRepository,
	snapshots repository.SnapshotRepository,
	clk clock.Clock,
	loc *time.Location,
	l *zap.Logger,
) ActivityUsecase {
	if clk == nil {
		clk = clock.System{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &activityUsecase{
		activities: activities,
		snapshots:  snapshots,
		cards:      repository.NewCardResolver(activities),
		clock:      clk,
		loc:        loc,
		logger:     logger.OrNop(l).Named("activity"),
	}
}

func (u *activityUsecase) SetCompleted(ctx context.Context, ownerID string, ref domain.ActivityRef, completed bool) (*CompletionResult, error) {
	if ref.Shape == domain.ShapeEmbedded {
		ref.OwnerID = ownerID
	}

	a, err := u.activities.FindByID(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	if a.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	if a.Completed == completed {
		return &CompletionResult{Activity: a}, nil
	}

	if err := u.activities.Update(ctx, a.Ref(), domain.ActivityPatch{Completed: &completed}); err != nil {
		return nil, fmt.Errorf("update completed flag: %w", err)
	}
	a.Completed = completed
	result := &CompletionResult{Activity: a, Changed: true}
	now := u.clock.Now()

	switch {
	case !completed:
		if err := u.snapshots.RemoveSnapshotsByActivityID(ctx, ownerID, a.ID); err != nil {
			return nil, fmt.Errorf("remove snapshots: %w", err)
		}

	case a.Recurring:
		next := u.successor(a, now)
		if err := u.activities.Create(ctx, next); err != nil {
			return nil, fmt.Errorf("create next occurrence: %w", err)
		}
		result.Successor = next
		u.logger.Info("recurring activity completed, next occurrence created",
			zap.String("activity_id", a.ID),
			zap.String("successor_id", next.ID),
			zap.Time("due_date", *next.DueDate))

	default:
		card, err := u.cards.Resolve(ctx, a)
		if err != nil {
			u.logger.Warn("card lookup failed, using legacy card", zap.String("activity_id", a.ID), zap.Error(err))
		}
		snap := domain.NewSnapshot(a, card, now, true)
		if err := u.snapshots.AppendSnapshot(ctx, ownerID, snap); err != nil {
			return nil, fmt.Errorf("append snapshot: %w", err)
		}
		result.Snapshot = &snap
	}
	return result, nil
}

// successor is the next open occurrence of a completed recurring activity
func (u *activityUsecase) successor(a *domain.Activity, now time.Time) *domain.Activity {
	base := now
	if a.DueDate != nil {
		base = *a.DueDate
	}
	due := domain.NextDue(base, a.Weekdays, u.loc)

	next := a.Clone()
	next.ID = uuid.New().String()
	next.Completed = false
	next.Recurring = true
	next.Reminder = false
	next.DueDate = &due
	next.OverdueEmailCount = 0
	next.LastOverdueEmailAt = nil
	next.MissedOccurrences = 0
	next.CreatedAt = now
	return next
}

func (u *activityUsecase) ListCompleted(ctx context.Context, ownerID string, limit int) ([]domain.CompletedSnapshot, error) {
	if limit <= 0 || limit > domain.SnapshotCap {
		limit = domain.SnapshotCap
	}
	return u.snapshots.ListSnapshots(ctx, ownerID, limit)
}

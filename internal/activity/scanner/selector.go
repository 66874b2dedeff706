package scanner

import (
	"context"
	"fmt"
	"time"

	"crono-backend/internal/activity/domain"
	"crono-backend/internal/activity/repository"

	"go.uber.org/zap"
)

// Selector gathers the due activities of one cycle from both shapes
type Selector struct {
	activities repository.ActivityRepository
	grace      time.Duration
	opTimeout  time.Duration
	logger     *zap.Logger
}

// Select returns standalone candidates first, then embedded ones, each
// ordered by due date. An embedded activity is dropped when its parent is a
// live standalone activity, when a standalone candidate has the same id, or
// when the parent lookup fails.
func (s *Selector) Select(ctx context.Context, now time.Time) ([]*domain.Activity, error) {
	standalone, err := s.findDue(ctx, domain.ShapeStandalone, now)
	if err != nil {
		return nil, fmt.Errorf("query due standalone activities: %w", err)
	}
	embedded, err := s.findDue(ctx, domain.ShapeEmbedded, now)
	if err != nil {
		return nil, fmt.Errorf("query due embedded activities: %w", err)
	}

	seen := make(map[string]struct{}, len(standalone))
	out := make([]*domain.Activity, 0, len(standalone)+len(embedded))
	for _, a := range standalone {
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}

	for _, a := range embedded {
		if _, dup := seen[a.ID]; dup {
			s.logger.Debug("embedded copy of standalone candidate dropped",
				zap.String("activity_id", a.ID), zap.String("owner_id", a.OwnerID))
			continue
		}
		shadowed, err := s.parentIsStandalone(ctx, a)
		if err != nil {
			s.logger.Warn("parent lookup failed, skipping embedded activity this cycle",
				zap.String("activity_id", a.ID), zap.String("owner_id", a.OwnerID), zap.Error(err))
			continue
		}
		if shadowed {
			s.logger.Debug("embedded activity shadowed by standalone parent",
				zap.String("activity_id", a.ID), zap.String("parent_id", *a.ParentID))
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Selector) findDue(ctx context.Context, shape domain.Shape, now time.Time) ([]*domain.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.activities.FindDue(ctx, shape, now, s.grace)
}

func (s *Selector) parentIsStandalone(ctx context.Context, a *domain.Activity) (bool, error) {
	if a.ParentID == nil || *a.ParentID == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	parent, err := s.activities.FindByID(ctx, domain.ActivityRef{ID: *a.ParentID, Shape: domain.ShapeStandalone})
	if err != nil {
		return false, err
	}
	return parent != nil, nil
}

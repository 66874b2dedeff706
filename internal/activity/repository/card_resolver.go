package repository

import (
	"context"
	"strings"

	"crono-backend/internal/activity/domain"
)

// CardResolver reads the live card an activity belongs to. The scanner and
// the completion flow share it so snapshots freeze the same card data.
type CardResolver struct {
	activities ActivityRepository
}

func NewCardResolver(activities ActivityRepository) *CardResolver {
	return &CardResolver{activities: activities}
}

// Resolve returns the parent standalone activity as a card. Without a live
// parent, a non-blank legacy name becomes a title-only card. Returns nil
// when neither exists.
func (r *CardResolver) Resolve(ctx context.Context, a *domain.Activity) (*domain.Card, error) {
	if a.ParentID != nil && *a.ParentID != "" {
		parent, err := r.activities.FindByID(ctx, domain.ActivityRef{ID: *a.ParentID, Shape: domain.ShapeStandalone})
		if err != nil {
			return LegacyCard(a), err
		}
		if parent != nil {
			title := parent.Title
			if title == "" {
				title = parent.Name
			}
			if title != "" {
				return &domain.Card{ID: parent.ID, Title: title, Color: parent.Color}, nil
			}
		}
	}
	return LegacyCard(a), nil
}

// LegacyCard is the card implied by an activity's legacy name field
func LegacyCard(a *domain.Activity) *domain.Card {
	if strings.TrimSpace(a.Name) == "" {
		return nil
	}
	return &domain.Card{Title: a.Name}
}

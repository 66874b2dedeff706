package usecase

import (
	"context"

	"crono-backend/internal/activity/domain"
)

// ActivityUsecase is the CRUD-boundary logic that shares the scanner's invariants
type ActivityUsecase interface {
	// SetCompleted flips the completed flag of an owner's activity and
	// keeps the archive and recurrence series consistent with it
	SetCompleted(ctx context.Context, ownerID string, ref domain.ActivityRef, completed bool) (*CompletionResult, error)

	// ListCompleted returns the owner's archive, most recent first
	ListCompleted(ctx context.Context, ownerID string, limit int) ([]domain.CompletedSnapshot, error)
}

// CompletionResult describes what SetCompleted changed
type CompletionResult struct {
	Activity  *domain.Activity          `json:"activity"`
	Changed   bool                      `json:"changed"`
	Successor *domain.Activity          `json:"successor,omitempty"`
	Snapshot  *domain.CompletedSnapshot `json:"snapshot,omitempty"`
}

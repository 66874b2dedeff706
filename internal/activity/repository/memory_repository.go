package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"crono-backend/internal/activity/domain"

	"github.com/google/uuid"
)

// ownerDoc mirrors the document-store owner record: the account, its
// embedded activities and its completed archive live together.
type ownerDoc struct {
	owner      domain.Owner
	activities []*domain.Activity
	completed  []domain.CompletedSnapshot
}

// MemoryStore is an in-process document store implementing every
// repository interface. One lock guards everything, which makes each
// owner-document operation atomic.
type MemoryStore struct {
	mu         sync.RWMutex
	standalone map[string]*domain.Activity
	owners     map[string]*ownerDoc
	ownerOrder []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		standalone: make(map[string]*domain.Activity),
		owners:     make(map[string]*ownerDoc),
	}
}

// PutOwner creates or replaces the account part of an owner document
func (s *MemoryStore) PutOwner(o domain.Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.owners[o.ID]; ok {
		doc.owner = o
		return
	}
	s.owners[o.ID] = &ownerDoc{owner: o}
	s.ownerOrder = append(s.ownerOrder, o.ID)
}

func (s *MemoryStore) FindOwner(ctx context.Context, id string) (*domain.Owner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.owners[id]
	if !ok {
		return nil, nil
	}
	o := doc.owner
	return &o, nil
}

func (s *MemoryStore) FindDue(ctx context.Context, shape domain.Shape, now time.Time, grace time.Duration) ([]*domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cutoff := now.Add(-grace)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Activity
	switch shape {
	case domain.ShapeStandalone:
		for _, a := range s.standalone {
			if a.IsDue(cutoff) {
				out = append(out, a.Clone())
			}
		}
	case domain.ShapeEmbedded:
		for _, id := range s.ownerOrder {
			for _, a := range s.owners[id].activities {
				if a.IsDue(cutoff) {
					out = append(out, a.Clone())
				}
			}
		}
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(*out[j].DueDate)
	})
	return out, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, ref domain.ActivityRef) (*domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, _ := s.locate(ref)
	if a == nil {
		return nil, nil
	}
	return a.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, a *domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch a.Shape {
	case domain.ShapeStandalone:
		s.standalone[a.ID] = a.Clone()
	case domain.ShapeEmbedded:
		doc, ok := s.owners[a.OwnerID]
		if !ok {
			return fmt.Errorf("create embedded activity: %w", domain.ErrOwnerNotFound)
		}
		doc.activities = append(doc.activities, a.Clone())
	default:
		return fmt.Errorf("unknown shape %q", a.Shape)
	}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, ref domain.ActivityRef, patch domain.ActivityPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, _ := s.locate(ref)
	if a == nil {
		return domain.ErrNotFound
	}
	patch.Apply(a)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref domain.ActivityRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, idx := s.locate(ref)
	if a == nil {
		return domain.ErrNotFound
	}
	if ref.Shape == domain.ShapeStandalone {
		delete(s.standalone, ref.ID)
		return nil
	}
	doc := s.owners[ref.OwnerID]
	doc.activities = append(doc.activities[:idx], doc.activities[idx+1:]...)
	return nil
}

func (s *MemoryStore) AppendSnapshot(ctx context.Context, ownerID string, snap domain.CompletedSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.owners[ownerID]
	if !ok {
		return domain.ErrOwnerNotFound
	}
	doc.completed = domain.PrependSnapshot(doc.completed, snap, domain.SnapshotCap)
	return nil
}

func (s *MemoryStore) RemoveSnapshotsByActivityID(ctx context.Context, ownerID, activityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.owners[ownerID]
	if !ok {
		return domain.ErrOwnerNotFound
	}
	doc.completed = domain.RemoveSnapshots(doc.completed, activityID)
	return nil
}

func (s *MemoryStore) ListSnapshots(ctx context.Context, ownerID string, limit int) ([]domain.CompletedSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.owners[ownerID]
	if !ok {
		return nil, domain.ErrOwnerNotFound
	}
	n := len(doc.completed)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.CompletedSnapshot, n)
	copy(out, doc.completed[:n])
	return out, nil
}

// locate must be called with the lock held. idx is the position inside the
// owner's embedded list.
func (s *MemoryStore) locate(ref domain.ActivityRef) (*domain.Activity, int) {
	switch ref.Shape {
	case domain.ShapeStandalone:
		return s.standalone[ref.ID], -1
	case domain.ShapeEmbedded:
		doc, ok := s.owners[ref.OwnerID]
		if !ok {
			return nil, -1
		}
		for i, a := range doc.activities {
			if a.ID == ref.ID {
				return a, i
			}
		}
	}
	return nil, -1
}

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crono-backend/internal/activity/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	s.PutOwner(domain.Owner{ID: "u1", Name: "Ana", Email: "ana@example.com"})
	s.PutOwner(domain.Owner{ID: "u2", Name: "Bia", Email: "bia@example.com"})
	return s
}

func TestMemoryStore_FindDue(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, &domain.Activity{ID: "late", OwnerID: "u1", Shape: domain.ShapeStandalone, DueDate: ptr(now.Add(-time.Hour))}))
	require.NoError(t, s.Create(ctx, &domain.Activity{ID: "later", OwnerID: "u1", Shape: domain.ShapeStandalone, DueDate: ptr(now.Add(-2 * time.Hour))}))
	require.NoError(t, s.Create(ctx, &domain.Activity{ID: "in-grace", OwnerID: "u1", Shape: domain.ShapeStandalone, DueDate: ptr(now.Add(-30 * time.Second))}))
	require.NoError(t, s.Create(ctx, &domain.Activity{ID: "done", OwnerID: "u1", Shape: domain.ShapeStandalone, Completed: true, DueDate: ptr(now.Add(-time.Hour))}))
	require.NoError(t, s.Create(ctx, &domain.Activity{ID: "no-date", OwnerID: "u1", Shape: domain.ShapeStandalone}))
	require.NoError(t, s.Create(ctx, &domain.Activity{ID: "emb1", OwnerID: "u2", Shape: domain.ShapeEmbedded, DueDate: ptr(now.Add(-time.Minute))}))
	require.NoError(t, s.Create(ctx, &domain.Activity{ID: "emb2", OwnerID: "u1", Shape: domain.ShapeEmbedded, DueDate: ptr(now.Add(-3 * time.Minute))}))

	standalone, err := s.FindDue(ctx, domain.ShapeStandalone, now, domain.DueGrace)
	require.NoError(t, err)
	require.Len(t, standalone, 2)
	assert.Equal(t, "later", standalone[0].ID)
	assert.Equal(t, "late", standalone[1].ID)

	embedded, err := s.FindDue(ctx, domain.ShapeEmbedded, now, domain.DueGrace)
	require.NoError(t, err)
	require.Len(t, embedded, 2)
	assert.Equal(t, "emb2", embedded[0].ID)
	assert.Equal(t, "emb1", embedded[1].ID, "due exactly at now-grace is due")

	_, err = s.FindDue(ctx, domain.Shape("other"), now, domain.DueGrace)
	assert.Error(t, err)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	require.NoError(t, s.Create(ctx, &domain.Activity{ID: "a", OwnerID: "u1", Shape: domain.ShapeStandalone, Title: "orig"}))

	a, err := s.FindByID(ctx, domain.ActivityRef{ID: "a", Shape: domain.ShapeStandalone})
	require.NoError(t, err)
	a.Title = "changed"

	again, err := s.FindByID(ctx, domain.ActivityRef{ID: "a", Shape: domain.ShapeStandalone})
	require.NoError(t, err)
	assert.Equal(t, "orig", again.Title)
}

func TestMemoryStore_EmbeddedUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	ref := domain.ActivityRef{ID: "e", OwnerID: "u1", Shape: domain.ShapeEmbedded}
	require.NoError(t, s.Create(ctx, &domain.Activity{ID: "e", OwnerID: "u1", Shape: domain.ShapeEmbedded}))

	wrongOwner := domain.ActivityRef{ID: "e", OwnerID: "u2", Shape: domain.ShapeEmbedded}
	assert.ErrorIs(t, s.Update(ctx, wrongOwner, domain.ActivityPatch{IncrementOverdue: true}), domain.ErrNotFound)

	require.NoError(t, s.Update(ctx, ref, domain.ActivityPatch{IncrementOverdue: true}))
	got, err := s.FindByID(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OverdueEmailCount)

	require.NoError(t, s.Delete(ctx, ref))
	got, err = s.FindByID(ctx, ref)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, s.Delete(ctx, ref), domain.ErrNotFound)
}

func TestMemoryStore_CreateEmbeddedRequiresOwner(t *testing.T) {
	s := NewMemoryStore()
	err := s.Create(context.Background(), &domain.Activity{OwnerID: "ghost", Shape: domain.ShapeEmbedded})
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
}

func TestMemoryStore_SnapshotCap(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	for i := 0; i <= domain.SnapshotCap; i++ {
		require.NoError(t, s.AppendSnapshot(ctx, "u1", domain.CompletedSnapshot{OriginalID: fmt.Sprintf("a%d", i)}))
	}

	all, err := s.ListSnapshots(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, domain.SnapshotCap)
	assert.Equal(t, "a200", all[0].OriginalID)
	assert.Equal(t, "a1", all[len(all)-1].OriginalID)

	top, err := s.ListSnapshots(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Len(t, top, 3)
}

func TestMemoryStore_RemoveSnapshots(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	require.NoError(t, s.AppendSnapshot(ctx, "u1", domain.CompletedSnapshot{OriginalID: "a"}))
	require.NoError(t, s.AppendSnapshot(ctx, "u1", domain.CompletedSnapshot{OriginalID: "b"}))

	require.NoError(t, s.RemoveSnapshotsByActivityID(ctx, "u1", "a"))

	all, err := s.ListSnapshots(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].OriginalID)

	assert.ErrorIs(t, s.AppendSnapshot(ctx, "ghost", domain.CompletedSnapshot{}), domain.ErrOwnerNotFound)
}

func TestMemoryStore_HonoursCancelledContext(t *testing.T) {
	s := seededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindDue(ctx, domain.ShapeStandalone, time.Now(), domain.DueGrace)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.FindOwner(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}

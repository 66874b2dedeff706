package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crono-backend/internal/activity/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormActivityRepository implements ActivityRepository over two tables:
// activities (standalone) and owner_activities (embedded).
type gormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository creates a new GORM-based ActivityRepository
func NewGormActivityRepository(db *gorm.DB) ActivityRepository {
	return &gormActivityRepository{db: db}
}

func (r *gormActivityRepository) FindDue(ctx context.Context, shape domain.Shape, now time.Time, grace time.Duration) ([]*domain.Activity, error) {
	cutoff := now.Add(-grace)
	query := r.db.WithContext(ctx).
		Where("completed = ? AND due_date IS NOT NULL AND due_date <= ?", false, cutoff).
		Order("due_date ASC")

	switch shape {
	case domain.ShapeStandalone:
		var rows []ActivityModel
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]*domain.Activity, 0, len(rows))
		for _, m := range rows {
			out = append(out, m.ActivityColumns.toDomain(m.ID, m.OwnerID, shape))
		}
		return out, nil
	case domain.ShapeEmbedded:
		var rows []OwnerActivityModel
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]*domain.Activity, 0, len(rows))
		for _, m := range rows {
			out = append(out, m.ActivityColumns.toDomain(m.ID, m.OwnerID, shape))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown shape %q", shape)
}

func (r *gormActivityRepository) FindByID(ctx context.Context, ref domain.ActivityRef) (*domain.Activity, error) {
	db := r.db.WithContext(ctx)

	switch ref.Shape {
	case domain.ShapeStandalone:
		var m ActivityModel
		err := db.Where("id = ?", ref.ID).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return m.ActivityColumns.toDomain(m.ID, m.OwnerID, ref.Shape), nil
	case domain.ShapeEmbedded:
		var m OwnerActivityModel
		err := db.Where("id = ? AND owner_id = ?", ref.ID, ref.OwnerID).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return m.ActivityColumns.toDomain(m.ID, m.OwnerID, ref.Shape), nil
	}
	return nil, fmt.Errorf("unknown shape %q", ref.Shape)
}

func (r *gormActivityRepository) Create(ctx context.Context, a *domain.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	cols := columnsFromDomain(a)

	switch a.Shape {
	case domain.ShapeStandalone:
		return r.db.WithContext(ctx).Create(&ActivityModel{ID: a.ID, OwnerID: a.OwnerID, ActivityColumns: cols}).Error
	case domain.ShapeEmbedded:
		return r.withOwnerLock(ctx, a.OwnerID, func(tx *gorm.DB) error {
			return tx.Create(&OwnerActivityModel{ID: a.ID, OwnerID: a.OwnerID, ActivityColumns: cols}).Error
		})
	}
	return fmt.Errorf("unknown shape %q", a.Shape)
}

func (r *gormActivityRepository) Update(ctx context.Context, ref domain.ActivityRef, patch domain.ActivityPatch) error {
	updates := patchColumns(patch)

	switch ref.Shape {
	case domain.ShapeStandalone:
		res := r.db.WithContext(ctx).Model(&ActivityModel{}).Where("id = ?", ref.ID).Updates(updates)
		return rowsOrNotFound(res)
	case domain.ShapeEmbedded:
		return r.withOwnerLock(ctx, ref.OwnerID, func(tx *gorm.DB) error {
			res := tx.Model(&OwnerActivityModel{}).
				Where("id = ? AND owner_id = ?", ref.ID, ref.OwnerID).
				Updates(updates)
			return rowsOrNotFound(res)
		})
	}
	return fmt.Errorf("unknown shape %q", ref.Shape)
}

func (r *gormActivityRepository) Delete(ctx context.Context, ref domain.ActivityRef) error {
	switch ref.Shape {
	case domain.ShapeStandalone:
		return rowsOrNotFound(r.db.WithContext(ctx).Delete(&ActivityModel{}, "id = ?", ref.ID))
	case domain.ShapeEmbedded:
		return r.withOwnerLock(ctx, ref.OwnerID, func(tx *gorm.DB) error {
			return rowsOrNotFound(tx.Delete(&OwnerActivityModel{}, "id = ? AND owner_id = ?", ref.ID, ref.OwnerID))
		})
	}
	return fmt.Errorf("unknown shape %q", ref.Shape)
}

// withOwnerLock runs fn in a transaction holding the owner row lock, so
// writes to one owner document serialize
func (r *gormActivityRepository) withOwnerLock(ctx context.Context, ownerID string, fn func(tx *gorm.DB) error) error {
	return lockOwner(r.db.WithContext(ctx), ownerID, fn)
}

func lockOwner(db *gorm.DB, ownerID string, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var owner OwnerModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", ownerID).
			First(&owner).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrOwnerNotFound
		}
		if err != nil {
			return err
		}
		return fn(tx)
	})
}

func patchColumns(p domain.ActivityPatch) map[string]interface{} {
	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if p.DueDate != nil {
		updates["due_date"] = *p.DueDate
	}
	if p.ResetOverdue {
		updates["overdue_email_count"] = 0
		updates["last_overdue_email_at"] = nil
	}
	if p.IncrementOverdue {
		updates["overdue_email_count"] = gorm.Expr("overdue_email_count + ?", 1)
	}
	if p.IncrementMissed {
		updates["missed_occurrences"] = gorm.Expr("missed_occurrences + ?", 1)
	}
	if p.LastOverdueEmailAt != nil {
		updates["last_overdue_email_at"] = *p.LastOverdueEmailAt
	}
	if p.Completed != nil {
		updates["completed"] = *p.Completed
	}
	return updates
}

func rowsOrNotFound(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// gormOwnerRepository implements OwnerRepository
type gormOwnerRepository struct {
	db *gorm.DB
}

func NewGormOwnerRepository(db *gorm.DB) OwnerRepository {
	return &gormOwnerRepository{db: db}
}

func (r *gormOwnerRepository) FindOwner(ctx context.Context, id string) (*domain.Owner, error) {
	var m OwnerModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Owner{ID: m.ID, Name: m.Name, Email: m.Email, CreatedAt: m.CreatedAt}, nil
}

// gormSnapshotRepository implements SnapshotRepository on completed_snapshots
type gormSnapshotRepository struct {
	db *gorm.DB
}

func NewGormSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &gormSnapshotRepository{db: db}
}

const trimSnapshotsSQL = `DELETE FROM completed_snapshots
WHERE owner_id = ? AND id NOT IN (
	SELECT id FROM completed_snapshots WHERE owner_id = ? ORDER BY id DESC LIMIT ?
)`

func (r *gormSnapshotRepository) AppendSnapshot(ctx context.Context, ownerID string, s domain.CompletedSnapshot) error {
	return lockOwner(r.db.WithContext(ctx), ownerID, func(tx *gorm.DB) error {
		m := CompletedSnapshotModel{
			OwnerID:     ownerID,
			OriginalID:  s.OriginalID,
			Title:       s.Title,
			Description: s.Description,
			CompletedAt: s.CompletedAt,
			CardID:      s.CardID,
			CardTitle:   s.CardTitle,
			CardColor:   s.CardColor,
			Recurring:   s.Recurring,
			Recoverable: s.Recoverable,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return tx.Exec(trimSnapshotsSQL, ownerID, ownerID, domain.SnapshotCap).Error
	})
}

func (r *gormSnapshotRepository) RemoveSnapshotsByActivityID(ctx context.Context, ownerID, activityID string) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND original_id = ?", ownerID, activityID).
		Delete(&CompletedSnapshotModel{}).Error
}

func (r *gormSnapshotRepository) ListSnapshots(ctx context.Context, ownerID string, limit int) ([]domain.CompletedSnapshot, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []CompletedSnapshotModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CompletedSnapshot, 0, len(rows))
	for _, m := range rows {
		out = append(out, snapshotFromModel(m))
	}
	return out, nil
}

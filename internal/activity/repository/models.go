package repository

import (
	"time"

	"crono-backend/internal/activity/domain"

	"gorm.io/gorm"
)

// OwnerModel is the owners row
type OwnerModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Email     string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (OwnerModel) TableName() string { return "owners" }

// ActivityColumns are shared by both activity tables. Must stay exported:
// gorm skips unexported embedded structs.
type ActivityColumns struct {
	ParentID           *string `gorm:"index"`
	Title              string  `gorm:"not null"`
	Name               string
	Description        string
	Color              string     `gorm:"default:#000000"`
	Completed          bool       `gorm:"not null;default:false"`
	Recurring          bool       `gorm:"not null;default:false"`
	Reminder           bool       `gorm:"not null;default:false"`
	Weekdays           []string   `gorm:"serializer:json"`
	DueDate            *time.Time `gorm:"index"`
	OverdueEmailCount  int        `gorm:"not null;default:0"`
	LastOverdueEmailAt *time.Time
	MissedOccurrences  int `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ActivityModel is a standalone activity row
type ActivityModel struct {
	ID              string `gorm:"primaryKey"`
	OwnerID         string `gorm:"index;not null"`
	ActivityColumns `gorm:"embedded"`
}

func (ActivityModel) TableName() string { return "activities" }

// OwnerActivityModel is an activity embedded in an owner document
type OwnerActivityModel struct {
	ID              string `gorm:"primaryKey"`
	OwnerID         string `gorm:"index;not null"`
	ActivityColumns `gorm:"embedded"`
}

func (OwnerActivityModel) TableName() string { return "owner_activities" }

// CompletedSnapshotModel is one archive entry; ID order is insertion order
type CompletedSnapshotModel struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	OwnerID     string `gorm:"index;not null"`
	OriginalID  string `gorm:"index;not null"`
	Title       string
	Description string
	CompletedAt time.Time
	CardID      *string
	CardTitle   *string
	CardColor   *string
	Recurring   bool
	Recoverable bool
}

func (CompletedSnapshotModel) TableName() string { return "completed_snapshots" }

// Migrate creates or updates every table the activity repositories use
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&OwnerModel{}, &ActivityModel{}, &OwnerActivityModel{}, &CompletedSnapshotModel{})
}

func columnsFromDomain(a *domain.Activity) ActivityColumns {
	weekdays := make([]string, 0, len(a.Weekdays))
	for _, w := range a.Weekdays {
		weekdays = append(weekdays, string(w))
	}
	return ActivityColumns{
		ParentID:           a.ParentID,
		Title:              a.Title,
		Name:               a.Name,
		Description:        a.Description,
		Color:              a.Color,
		Completed:          a.Completed,
		Recurring:          a.Recurring,
		Reminder:           a.Reminder,
		Weekdays:           weekdays,
		DueDate:            a.DueDate,
		OverdueEmailCount:  a.OverdueEmailCount,
		LastOverdueEmailAt: a.LastOverdueEmailAt,
		MissedOccurrences:  a.MissedOccurrences,
		CreatedAt:          a.CreatedAt,
	}
}

func (c ActivityColumns) toDomain(id, ownerID string, shape domain.Shape) *domain.Activity {
	weekdays := make([]domain.WeekdayCode, 0, len(c.Weekdays))
	for _, w := range c.Weekdays {
		weekdays = append(weekdays, domain.WeekdayCode(w))
	}
	return &domain.Activity{
		ID:                 id,
		OwnerID:            ownerID,
		ParentID:           c.ParentID,
		Shape:              shape,
		Title:              c.Title,
		Name:               c.Name,
		Description:        c.Description,
		Color:              c.Color,
		Completed:          c.Completed,
		Recurring:          c.Recurring,
		Reminder:           c.Reminder,
		Weekdays:           weekdays,
		DueDate:            c.DueDate,
		OverdueEmailCount:  c.OverdueEmailCount,
		LastOverdueEmailAt: c.LastOverdueEmailAt,
		MissedOccurrences:  c.MissedOccurrences,
		CreatedAt:          c.CreatedAt,
	}
}

func snapshotFromModel(m CompletedSnapshotModel) domain.CompletedSnapshot {
	return domain.CompletedSnapshot{
		OriginalID:  m.OriginalID,
		Title:       m.Title,
		Description: m.Description,
		CompletedAt: m.CompletedAt,
		CardID:      m.CardID,
		CardTitle:   m.CardTitle,
		CardColor:   m.CardColor,
		Recurring:   m.Recurring,
		Recoverable: m.Recoverable,
	}
}

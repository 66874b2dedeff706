package domain

import (
	"errors"
	"time"
)

// Scanner contract constants
const (
	ScanInterval      = time.Minute
	DueGrace          = time.Minute
	NotifyCooldown    = 24 * time.Hour
	MaxNotifySends    = 2
	SnapshotCap       = 200
	RecurrenceHorizon = 14 // days
)

var (
	ErrNotFound  = errors.New("activity not found")
	ErrForbidden = errors.New("activity belongs to another owner")

	ErrOwnerNotFound = errors.New("owner not found")
)

// Shape is the physical storage form of an activity
type Shape string

const (
	ShapeStandalone Shape = "standalone"
	ShapeEmbedded   Shape = "embedded"
)

// ActivityRef addresses one stored activity. OwnerID scopes embedded
// activities; for standalone ones it is informational.
type ActivityRef struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Shape   Shape  `json:"shape"`
}

// Activity is a task with a deadline
type Activity struct {
	ID       string  `json:"id"`
	OwnerID  string  `json:"owner_id"`
	ParentID *string `json:"parent_id,omitempty"` // card reference
	Shape    Shape   `json:"shape"`

	Title       string `json:"title"`
	Name        string `json:"name,omitempty"` // legacy card label
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`

	Completed bool          `json:"completed"`
	Recurring bool          `json:"recurring"`
	Reminder  bool          `json:"reminder"`
	Weekdays  []WeekdayCode `json:"weekdays,omitempty"`
	DueDate   *time.Time    `json:"due_date,omitempty"`

	OverdueEmailCount  int        `json:"overdue_email_count"`
	LastOverdueEmailAt *time.Time `json:"last_overdue_email_at,omitempty"`

	// MissedOccurrences counts consecutive recurring occurrences rolled
	// over by the scanner without being completed
	MissedOccurrences int `json:"missed_occurrences"`

	CreatedAt time.Time `json:"created_at"`
}

func (a *Activity) Ref() ActivityRef {
	return ActivityRef{ID: a.ID, OwnerID: a.OwnerID, Shape: a.Shape}
}

// DisplayTitle falls back to the legacy name, then to a generic label
func (a *Activity) DisplayTitle() string {
	switch {
	case a.Title != "":
		return a.Title
	case a.Name != "":
		return a.Name
	default:
		return "Atividade"
	}
}

// IsDue reports whether the activity is open and its due time is at or
// before cutoff
func (a *Activity) IsDue(cutoff time.Time) bool {
	return !a.Completed && a.DueDate != nil && !a.DueDate.After(cutoff)
}

// Clone returns a deep copy
func (a *Activity) Clone() *Activity {
	c := *a
	if a.ParentID != nil {
		p := *a.ParentID
		c.ParentID = &p
	}
	if a.DueDate != nil {
		d := *a.DueDate
		c.DueDate = &d
	}
	if a.LastOverdueEmailAt != nil {
		l := *a.LastOverdueEmailAt
		c.LastOverdueEmailAt = &l
	}
	if a.Weekdays != nil {
		c.Weekdays = append([]WeekdayCode(nil), a.Weekdays...)
	}
	return &c
}

// ActivityPatch is the set of field writes the scanner and the completion
// flow perform. Zero value changes nothing.
type ActivityPatch struct {
	DueDate            *time.Time
	ResetOverdue       bool // overdueEmailCount=0, lastOverdueEmailAt=null
	IncrementOverdue   bool
	IncrementMissed    bool
	LastOverdueEmailAt *time.Time
	Completed          *bool
}

// Apply mutates a in place. Used by the in-memory store.
func (p ActivityPatch) Apply(a *Activity) {
	if p.DueDate != nil {
		d := *p.DueDate
		a.DueDate = &d
	}
	if p.ResetOverdue {
		a.OverdueEmailCount = 0
		a.LastOverdueEmailAt = nil
	}
	if p.IncrementOverdue {
		a.OverdueEmailCount++
	}
	if p.IncrementMissed {
		a.MissedOccurrences++
	}
	if p.LastOverdueEmailAt != nil {
		l := *p.LastOverdueEmailAt
		a.LastOverdueEmailAt = &l
	}
	if p.Completed != nil {
		a.Completed = *p.Completed
	}
}

// Owner is the account that aggregates activities and history
type Owner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Card is the display data of a parent activity
type Card struct {
	ID    string
	Title string
	Color string
}

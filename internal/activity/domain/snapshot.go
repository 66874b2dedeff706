package domain

import "time"

// CompletedSnapshot is the frozen record of a completed or expired activity.
// Card title and color are copied from the live card when the snapshot is
// taken and never refreshed afterwards.
type CompletedSnapshot struct {
	OriginalID  string    `json:"original_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CompletedAt time.Time `json:"completed_at"`
	CardID      *string   `json:"card_id"`
	CardTitle   *string   `json:"card_title"`
	CardColor   *string   `json:"card_color"`
	Recurring   bool      `json:"recurring"`
	Recoverable bool      `json:"recoverable"`
}

// NewSnapshot freezes a at the given time. card may be nil when the
// activity has no parent or the parent is gone.
func NewSnapshot(a *Activity, card *Card, at time.Time, recoverable bool) CompletedSnapshot {
	s := CompletedSnapshot{
		OriginalID:  a.ID,
		Title:       a.Title,
		Description: a.Description,
		CompletedAt: at,
		Recurring:   a.Recurring,
		Recoverable: recoverable,
	}
	if s.Title == "" {
		s.Title = a.Name
	}
	if a.ParentID != nil {
		id := *a.ParentID
		s.CardID = &id
	}
	if card != nil {
		if card.Title != "" {
			t := card.Title
			s.CardTitle = &t
		}
		if card.Color != "" {
			c := card.Color
			s.CardColor = &c
		}
	}
	return s
}

// PrependSnapshot puts s at the head of a most-recent-first archive and
// evicts from the tail beyond limit.
func PrependSnapshot(archive []CompletedSnapshot, s CompletedSnapshot, limit int) []CompletedSnapshot {
	out := make([]CompletedSnapshot, 0, min(len(archive)+1, limit))
	out = append(out, s)
	for _, old := range archive {
		if len(out) >= limit {
			break
		}
		out = append(out, old)
	}
	return out
}

// RemoveSnapshots drops every entry recorded for activityID
func RemoveSnapshots(archive []CompletedSnapshot, activityID string) []CompletedSnapshot {
	out := archive[:0:0]
	for _, s := range archive {
		if s.OriginalID != activityID {
			out = append(out, s)
		}
	}
	return out
}

package scanner

import (
	"fmt"
	"time"

	"crono-backend/internal/activity/domain"
)

// TransitionKind is one of the four state changes of an eligible activity
type TransitionKind string

const (
	TransitionArchive  TransitionKind = "archive"  // reminder fired: snapshot then delete
	TransitionAbandon  TransitionKind = "abandon"  // recurring series missed too often: delete
	TransitionRollover TransitionKind = "rollover" // recurring: move to the next occurrence
	TransitionNotify   TransitionKind = "notify"   // one-off: count the send
)

// Transition is the full set of writes for one activity, computed before
// anything is sent
type Transition struct {
	Kind     TransitionKind
	Patch    domain.ActivityPatch
	Snapshot *domain.CompletedSnapshot
}

func (t Transition) String() string {
	return string(t.Kind)
}

// Planner decides transitions. It performs no I/O.
type Planner struct {
	MaxSends int
	Location *time.Location
}

// Plan picks the transition for an eligible activity. Reminder wins over
// recurring.
func (p Planner) Plan(a *domain.Activity, card *domain.Card, now time.Time) Transition {
	switch {
	case a.Reminder:
		snap := domain.NewSnapshot(a, card, now, false)
		return Transition{Kind: TransitionArchive, Snapshot: &snap}

	case a.Recurring:
		if a.MissedOccurrences+1 > p.MaxSends {
			return Transition{Kind: TransitionAbandon}
		}
		base := now
		if a.DueDate != nil {
			base = *a.DueDate
		}
		next := domain.NextDue(base, a.Weekdays, p.Location)
		return Transition{
			Kind: TransitionRollover,
			Patch: domain.ActivityPatch{
				DueDate:         &next,
				ResetOverdue:    true,
				IncrementMissed: true,
			},
		}

	default:
		sentAt := now
		return Transition{
			Kind: TransitionNotify,
			Patch: domain.ActivityPatch{
				IncrementOverdue:   true,
				LastOverdueEmailAt: &sentAt,
			},
		}
	}
}

// DispatchPolicy decides whether writes are committed after a failed send.
// Archive never commits on a failed send.
type DispatchPolicy string

const (
	DispatchCommit DispatchPolicy = "commit"
	DispatchRetry  DispatchPolicy = "retry"
)

func ParseDispatchPolicy(s string) (DispatchPolicy, error) {
	switch DispatchPolicy(s) {
	case "", DispatchCommit:
		return DispatchCommit, nil
	case DispatchRetry:
		return DispatchRetry, nil
	}
	return "", fmt.Errorf("unknown dispatch failure policy %q", s)
}

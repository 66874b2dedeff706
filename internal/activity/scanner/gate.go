package scanner

import (
	"time"

	"crono-backend/internal/activity/domain"
)

// Policy bounds how often one activity may be notified
type Policy struct {
	MaxSends int
	Cooldown time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxSends: domain.MaxNotifySends, Cooldown: domain.NotifyCooldown}
}

// Eligible reports whether a may be notified at now
func (p Policy) Eligible(a *domain.Activity, now time.Time) bool {
	if a.OverdueEmailCount >= p.MaxSends {
		return false
	}
	if a.LastOverdueEmailAt == nil {
		return true
	}
	return now.Sub(*a.LastOverdueEmailAt) >= p.Cooldown
}

package domain

import "time"

// NextDue computes the following occurrence of a recurring activity.
//
// Without usable weekdays the result is base plus one calendar day. With
// weekdays, the first allowed day within RecurrenceHorizon days after base
// is chosen, keeping base's wall-clock hour, minute and second. Day
// arithmetic and weekday checks happen in loc, so DST transitions keep the
// wall-clock time and zone boundaries cannot shift the weekday.
func NextDue(base time.Time, weekdays []WeekdayCode, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := base.In(loc)
	fallback := local.AddDate(0, 0, 1)

	allowed := ParseWeekdays(weekdays)
	if len(allowed) == 0 {
		return fallback
	}

	for i := 1; i <= RecurrenceHorizon; i++ {
		cand := local.AddDate(0, 0, i)
		if allowed.Contains(cand.Weekday()) {
			return time.Date(cand.Year(), cand.Month(), cand.Day(),
				local.Hour(), local.Minute(), local.Second(), 0, loc)
		}
	}
	return fallback
}

package domain

import (
	"strings"
	"time"
)

// WeekdayCode is a three-letter day code as stored on activities.
// Both the Portuguese codes the UI writes (dom, seg, ...) and English
// codes (sun, mon, ...) are understood.
type WeekdayCode string

var weekdayCodes = map[string]time.Weekday{
	"dom": time.Sunday,
	"seg": time.Monday,
	"ter": time.Tuesday,
	"qua": time.Wednesday,
	"qui": time.Thursday,
	"sex": time.Friday,
	"sab": time.Saturday,
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Weekday resolves the code, case-insensitively
func (c WeekdayCode) Weekday() (time.Weekday, bool) {
	d, ok := weekdayCodes[strings.ToLower(strings.TrimSpace(string(c)))]
	return d, ok
}

// WeekdaySet is the set of days a recurring activity may fall on
type WeekdaySet map[time.Weekday]struct{}

// ParseWeekdays drops codes it does not recognise
func ParseWeekdays(codes []WeekdayCode) WeekdaySet {
	set := make(WeekdaySet, len(codes))
	for _, c := range codes {
		if d, ok := c.Weekday(); ok {
			set[d] = struct{}{}
		}
	}
	return set
}

func (s WeekdaySet) Contains(d time.Weekday) bool {
	_, ok := s[d]
	return ok
}

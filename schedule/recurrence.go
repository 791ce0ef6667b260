package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/kliewerdaniel/News02/errors"
)

// ParseTimeOfDay parses a wall-clock "HH:MM" (24h) string
func ParseTimeOfDay(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || !isDigits(parts[0]) || len(parts[1]) != 2 || !isDigits(parts[1]) {
		return 0, 0, errors.Newf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h > 23 {
		return 0, 0, errors.Newf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m > 59 {
		return 0, 0, errors.Newf("invalid minute in %q", s)
	}
	return h, m, nil
}

func isDigits(s string) bool {
	if s == "" || len(s) > 2 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NextRun returns the next instant strictly after now at which a job with
// the given time of day and recurrence should run, or nil when it never
// should. Malformed input also yields nil; callers log it.
//
// The candidate is today's date (in now's location) at timeOfDay, rolled to
// tomorrow when it is not after now. weekdays/weekends then advance day by
// day until the weekday matches. once rolls forward like daily; its nil
// branch only fires when the candidate still is not after now.
func NextRun(timeOfDay string, recurrence Recurrence, now time.Time) *time.Time {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil || !recurrence.Valid() {
		return nil
	}

	year, month, day := now.Date()
	next := time.Date(year, month, day, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	switch recurrence {
	case RecurrenceWeekdays:
		for isWeekend(next.Weekday()) {
			next = next.AddDate(0, 0, 1)
		}
	case RecurrenceWeekends:
		for !isWeekend(next.Weekday()) {
			next = next.AddDate(0, 0, 1)
		}
	case RecurrenceOnce:
		if !next.After(now) {
			return nil
		}
	}

	return &next
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

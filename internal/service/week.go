package service

import (
	"math"
	"time"

	jnow "github.com/jinzhu/now"
)

// WeekStartsOn fixes the first day of the week for every weekly window in
// statistics, motivation cards and reminders. It does not follow the locale.
const WeekStartsOn = time.Monday

const day = 24 * time.Hour

var weekConfig = &jnow.Config{WeekStartDay: WeekStartsOn}

// StartOfWeek returns midnight of the first day of the week containing t,
// in t's location.
func StartOfWeek(t time.Time) time.Time {
	return weekConfig.With(t).BeginningOfWeek()
}

// EndOfWeek returns the last representable instant of the week containing t.
func EndOfWeek(t time.Time) time.Time {
	return weekConfig.With(t).EndOfWeek()
}

// within reports whether t lies in [start, end], bounds included.
func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// NextWeeklyAnchor returns the next occurrence of weekday at hour:minute
// strictly after now, in now's location.
func NextWeeklyAnchor(now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	daysAhead := (int(weekday) - int(now.Weekday()) + 7) % 7
	y, m, d := now.Date()
	next := time.Date(y, m, d+daysAhead, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+daysAhead+7, hour, minute, 0, 0, now.Location())
	}
	return next
}

// wholeDays floors the elapsed time between from and to to whole days.
func wholeDays(from, to time.Time) int {
	return int(math.Floor(float64(to.Sub(from)) / float64(day)))
}

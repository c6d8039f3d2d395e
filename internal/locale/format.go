// Package locale formats dates for display. Nothing formatted here is ever
// persisted.
package locale

import (
	"time"

	"github.com/goodsign/monday"
)

const (
	Turkish = monday.LocaleTrTR
	English = monday.LocaleEnUS
)

// Format renders t with a Go reference layout ("02 Jan", "2 January 2006
// 15:04") and translates month and weekday names into loc.
func Format(t time.Time, layout string, loc monday.Locale) string {
	return monday.Format(t, layout, loc)
}

// WeekdayName returns the full weekday name.
func WeekdayName(day time.Weekday, loc monday.Locale) string {
	// 4 January 2026 is a Sunday.
	ref := time.Date(2026, time.January, 4+int(day), 12, 0, 0, 0, time.UTC)
	return monday.Format(ref, "Monday", loc)
}

// MonthName returns the full month name.
func MonthName(month time.Month, loc monday.Locale) string {
	ref := time.Date(2026, month, 1, 12, 0, 0, 0, time.UTC)
	return monday.Format(ref, "January", loc)
}

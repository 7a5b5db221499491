package activity

import (
	"time"

	"github.com/koodecode/progression/internal/models"
)

// DateKey formats a time as the calendar-day key used by the activity
// ledger.
func DateKey(t time.Time) string {
	return t.UTC().Format(models.DateLayout)
}

// ParseDateKey parses a calendar-day key. The error wraps ErrValidation
// via the caller; here it is the raw parse error.
func ParseDateKey(s string) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, s, time.UTC)
}

// MissedDaysInCurrentMonth lists the days from the 1st of now's month up
// to (but excluding) today that have no activity entry, in order.
func MissedDaysInCurrentMonth(entries []models.Activity, now time.Time) []string {
	today := DateOnly(now)
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	filled := make(map[string]bool, len(entries))
	for i := range entries {
		filled[entries[i].Date] = true
	}

	var missed []string
	for d := first; d.Before(today); d = d.AddDate(0, 0, 1) {
		key := DateKey(d)
		if !filled[key] {
			missed = append(missed, key)
		}
	}
	return missed
}

// CalendarForYear maps each active day of a year to its activity count.
func CalendarForYear(entries []models.Activity, year int) map[string]int {
	calendar := make(map[string]int)
	for i := range entries {
		d, err := ParseDateKey(entries[i].Date)
		if err != nil || d.Year() != year {
			continue
		}
		calendar[entries[i].Date] = entries[i].Count
	}
	return calendar
}

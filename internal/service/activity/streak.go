// Package activity implements the activity calendar and the streak state
// machine. All day-boundary math runs in a single reference timezone
// (UTC), not user-local time; a known limitation kept for compatibility
// with existing clients.
package activity

import (
	"time"

	"github.com/koodecode/progression/internal/models"
)

// UpdateStreak applies one streak transition and returns the new state.
// Pure function of current state, one activity flag and one date.
//
// Active day rules: first ever activity starts at 1, a repeat of the
// last active day changes nothing, the day after it extends the streak,
// any larger gap restarts at 1 (not 0). An inactive check breaks the
// streak to 0 when more than one day has passed since the last activity.
func UpdateStreak(s models.Streak, isActive bool, asOf time.Time) models.Streak {
	today := DateOnly(asOf)

	if !isActive {
		if s.LastActiveDate != nil && daysBetween(DateOnly(*s.LastActiveDate), today) > 1 {
			s.CurrentCount = 0
		}
		return s
	}

	switch {
	case s.LastActiveDate == nil:
		s.CurrentCount = 1
	case sameDay(*s.LastActiveDate, today):
		return s // already counted today
	case daysBetween(DateOnly(*s.LastActiveDate), today) == 1:
		s.CurrentCount++
	default:
		s.CurrentCount = 1
	}

	if s.CurrentCount > s.MaxCount {
		s.MaxCount = s.CurrentCount
	}
	s.LastActiveDate = &today

	return s
}

// DateOnly strips time-of-day, keeping the UTC calendar date.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

// daysBetween returns whole calendar days from a to b. Both arguments
// must already be date-only values.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

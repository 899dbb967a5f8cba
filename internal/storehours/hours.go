// Package storehours decides whether a store is open at a given instant.
// Evaluation is pure: same config and clock always give the same answer.
package storehours

import (
	"time"

	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
)

const dateLayout = "2006-01-02"

// IsOpen evaluates the store schedule against now. Precedence, first match
// wins: explicit closed date, explicit opened date, recurring closing
// weekday, weekday variation, default window.
func IsOpen(h domain.StoreHours, now time.Time) bool {
	today := now.Format(dateLayout)

	if h.ClosedDate == today {
		return false
	}
	if h.OpenedDate == today {
		return true
	}
	for _, d := range h.ClosingDays {
		if d == now.Weekday() {
			return false
		}
	}
	for _, v := range h.Variations {
		if v.Day == now.Weekday() {
			return withinWindow(v.OpenAt, v.CloseAt, now)
		}
	}
	return withinWindow(h.OpenAt, h.CloseAt, now)
}

// withinWindow applies the hour-range rule for a same-day window. Windows
// crossing midnight (close hour before open hour) are not modeled.
func withinWindow(openAt, closeAt domain.ClockTime, now time.Time) bool {
	hour, minute := now.Hour(), now.Minute()

	switch {
	case hour > openAt.Hour && hour < closeAt.Hour:
		return true
	case hour > closeAt.Hour || hour < openAt.Hour:
		return false
	case hour == openAt.Hour && hour == closeAt.Hour:
		return minute >= openAt.Minute && minute <= closeAt.Minute
	case hour == openAt.Hour:
		return minute >= openAt.Minute
	default: // hour == closeAt.Hour
		return minute < closeAt.Minute
	}
}

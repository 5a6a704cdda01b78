// Package renewal computes the next renewal date for a subscription's
// billing cycle. Month arithmetic preserves the day-of-month where the
// target month has that day and clamps to the month's last day otherwise,
// so a subscription billed on the 31st renews on Feb 28 (29 in leap years)
// rather than rolling into March.
package renewal

import (
	"fmt"
	"time"

	"github.com/subtrackd/subtrackd/internal/consts"
)

// Next returns the renewal date following from for the given billing cycle.
// The result keeps from's location; only the calendar date is meaningful.
func Next(cycle string, from time.Time) (time.Time, error) {
	switch cycle {
	case consts.CycleWeekly:
		return from.AddDate(0, 0, 7), nil
	case consts.CycleMonthly:
		return addMonthsClamped(from, 1), nil
	case consts.CycleQuarterly:
		return addMonthsClamped(from, 3), nil
	case consts.CycleYearly:
		return addMonthsClamped(from, 12), nil
	default:
		return time.Time{}, fmt.Errorf("unknown billing cycle: %q", cycle)
	}
}

// addMonthsClamped advances by whole months without the normalization
// time.AddDate performs (Jan 31 + 1 month must not become Mar 3).
func addMonthsClamped(from time.Time, months int) time.Time {
	year, month, day := from.Date()

	m := int(month) + months
	year += (m - 1) / 12
	month = time.Month((m-1)%12 + 1)

	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day, 0, 0, 0, 0, from.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day zero of the following month normalizes to this month's last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

package billing

import (
	"time"

	"github.com/autoseo/backend/internal/domain/shared"
)

// BillingCycle represents how often a tenant's usage window resets
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// ValidateBillingCycle checks that the cycle is a known value
func ValidateBillingCycle(cycle BillingCycle) error {
	switch cycle {
	case BillingCycleMonthly, BillingCycleYearly:
		return nil
	default:
		return shared.NewDomainError("INVALID_BILLING_CYCLE", "Billing cycle must be monthly or yearly")
	}
}

// NextCycleEnd advances a cycle start by one billing interval.
// The anchor day of month is preserved where the target month allows it
// and clamped to the last day of the target month otherwise, so a window
// anchored on Jan 31 ends on Feb 28 (Feb 29 in leap years).
func NextCycleEnd(start time.Time, cycle BillingCycle) time.Time {
	start = start.UTC()
	var year int
	var month time.Month
	switch cycle {
	case BillingCycleYearly:
		year, month = start.Year()+1, start.Month()
	default:
		year, month = start.Year(), start.Month()+1
		if month > time.December {
			year++
			month = time.January
		}
	}

	day := start.Day()
	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day,
		start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), time.UTC)
}

// InitialWindow returns the half-open billing window that begins at now
func InitialWindow(now time.Time, cycle BillingCycle) (start, end time.Time) {
	start = now.UTC()
	return start, NextCycleEnd(start, cycle)
}

// PeriodKey derives the ledger bucket for a window that starts at cycleStart.
// The key is the window's full start instant, so no two windows of a tenant
// ever share a bucket and a manual mid-cycle reset cannot re-count events
// already archived with the truncated window.
func PeriodKey(cycleStart time.Time) string {
	return cycleStart.UTC().Format(time.RFC3339)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

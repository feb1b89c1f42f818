package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextCycleEnd_Monthly(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		want  time.Time
	}{
		{"mid month", date(2026, time.March, 15), date(2026, time.April, 15)},
		{"jan 31 clamps to feb 28", date(2026, time.January, 31), date(2026, time.February, 28)},
		{"jan 31 leap year clamps to feb 29", date(2028, time.January, 31), date(2028, time.February, 29)},
		{"mar 31 clamps to apr 30", date(2026, time.March, 31), date(2026, time.April, 30)},
		{"december wraps year", date(2026, time.December, 10), date(2027, time.January, 10)},
		{"clamped anchor stays clamped", date(2026, time.February, 28), date(2026, time.March, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextCycleEnd(tt.start, BillingCycleMonthly))
		})
	}
}

func TestNextCycleEnd_Yearly(t *testing.T) {
	t.Run("plain year", func(t *testing.T) {
		got := NextCycleEnd(date(2026, time.June, 1), BillingCycleYearly)
		assert.Equal(t, date(2027, time.June, 1), got)
	})

	t.Run("feb 29 clamps to feb 28", func(t *testing.T) {
		got := NextCycleEnd(date(2028, time.February, 29), BillingCycleYearly)
		assert.Equal(t, date(2029, time.February, 28), got)
	})
}

func TestNextCycleEnd_PreservesTimeOfDay(t *testing.T) {
	start := time.Date(2026, time.May, 7, 13, 45, 30, 0, time.UTC)
	got := NextCycleEnd(start, BillingCycleMonthly)
	assert.Equal(t, time.Date(2026, time.June, 7, 13, 45, 30, 0, time.UTC), got)
}

func TestInitialWindow(t *testing.T) {
	now := time.Date(2026, time.August, 28, 9, 0, 0, 0, time.UTC)

	start, end := InitialWindow(now, BillingCycleMonthly)
	assert.Equal(t, now, start)
	assert.Equal(t, date(2026, time.September, 28).Add(9*time.Hour), end)
	assert.True(t, end.After(start))
}

func TestPeriodKey(t *testing.T) {
	assert.Equal(t, "2026-08-28T00:00:00Z", PeriodKey(date(2026, time.August, 28)))
	assert.Equal(t, "2026-01-03T12:30:00Z", PeriodKey(date(2026, time.January, 3).Add(12*time.Hour+30*time.Minute)))

	// non-UTC starts normalize to the same bucket
	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, PeriodKey(date(2026, time.March, 1)),
		PeriodKey(time.Date(2026, time.February, 28, 19, 0, 0, 0, est)))

	// a window opened mid-cycle by a manual reset must not share the
	// bucket of the window it truncated
	opened := date(2026, time.August, 1)
	reset := opened.Add(12*24*time.Hour + 9*time.Hour)
	assert.NotEqual(t, PeriodKey(opened), PeriodKey(reset))
}

func TestValidateBillingCycle(t *testing.T) {
	assert.NoError(t, ValidateBillingCycle(BillingCycleMonthly))
	assert.NoError(t, ValidateBillingCycle(BillingCycleYearly))
	assert.Error(t, ValidateBillingCycle(BillingCycle("weekly")))
}

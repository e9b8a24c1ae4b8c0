package streaks

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBoundary_HoursUntilNextDay(t *testing.T) {
	days := NewDayBoundary(time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"late evening", time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC), 0},
		{"just after midnight", time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC), 23},
		{"exactly midnight", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 24},
		{"first warning", time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC), 6},
		{"second warning", time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, days.HoursUntilNextDay(tt.now))
		})
	}
}

func TestDayBoundary_StartOfNextDayIsStrictlyAfter(t *testing.T) {
	days := NewDayBoundary(time.UTC)
	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	next := days.StartOfNextDay(midnight)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), next)
	assert.True(t, next.After(midnight))
}

func TestDayBoundary_UsesReferenceTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	days := NewDayBoundary(loc)

	// 20:30 UTC is already 01:30 the next day in UTC+5.
	utc := time.Date(2026, 3, 10, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, Date{2026, time.March, 11}, days.DateOf(utc))
	assert.Equal(t, 22, days.HoursUntilNextDay(utc))
}

func TestDayBoundary_SameDay(t *testing.T) {
	days := NewDayBoundary(time.UTC)
	morning := time.Date(2026, 3, 10, 0, 0, 1, 0, time.UTC)
	night := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)

	assert.True(t, days.SameDay(morning, night))
	assert.False(t, days.SameDay(night, night.Add(2*time.Second)))
}

func TestDate_DaysSinceAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	days := NewDayBoundary(ny)

	// 2026-03-08 is 23 hours long in New York.
	before := days.DateOf(time.Date(2026, 3, 7, 12, 0, 0, 0, ny))
	after := days.DateOf(time.Date(2026, 3, 9, 0, 30, 0, 0, ny))
	assert.Equal(t, 2, after.DaysSince(before))
	assert.Equal(t, 1, days.DaysBetween(before.AddDays(1), time.Date(2026, 3, 9, 0, 30, 0, 0, ny)))
}

func TestDate_AddDaysAndParse(t *testing.T) {
	d := Date{2026, time.February, 28}
	assert.Equal(t, Date{2026, time.March, 1}, d.AddDays(1))
	assert.Equal(t, "2026-02-28", d.String())

	parsed, err := ParseDate("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = ParseDate("28/02/2026")
	assert.Error(t, err)
}

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"9:05", 9, 5, false},
		{"23:59", 23, 59, false},
		{"00:00", 0, 0, false},
		{" 07:30 ", 7, 30, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"12:5", 0, 0, true},
		{"1200", 0, 0, true},
		{"ab:cd", 0, 0, true},
		{"", 0, 0, true},
		{"12:00:00", 0, 0, true},
		{"-1:00", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

func TestNextRun(t *testing.T) {
	wed := baseTime // Wednesday 08:00 UTC
	fri := time.Date(2025, 6, 6, 20, 0, 0, 0, time.UTC)
	mon := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	sat := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		timeOfDay  string
		recurrence Recurrence
		now        time.Time
		want       time.Time
	}{
		{"daily later today", "09:00", RecurrenceDaily, wed, time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)},
		{"daily earlier today rolls to tomorrow", "07:00", RecurrenceDaily, wed, time.Date(2025, 6, 5, 7, 0, 0, 0, time.UTC)},
		{"daily exactly now rolls to tomorrow", "08:00", RecurrenceDaily, wed, time.Date(2025, 6, 5, 8, 0, 0, 0, time.UTC)},
		{"weekdays friday evening goes to monday", "09:00", RecurrenceWeekdays, fri, time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)},
		{"weekdays saturday goes to monday", "09:00", RecurrenceWeekdays, sat, time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)},
		{"weekdays midweek stays", "09:00", RecurrenceWeekdays, wed, time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)},
		{"weekends monday goes to saturday", "09:00", RecurrenceWeekends, mon, time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)},
		{"weekends saturday later today", "11:00", RecurrenceWeekends, sat, time.Date(2025, 6, 7, 11, 0, 0, 0, time.UTC)},
		{"weekends saturday passed goes to sunday", "09:00", RecurrenceWeekends, sat, time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)},
		{"once later today", "18:30", RecurrenceOnce, wed, time.Date(2025, 6, 4, 18, 30, 0, 0, time.UTC)},
		{"once passed rolls to tomorrow", "06:00", RecurrenceOnce, wed, time.Date(2025, 6, 5, 6, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRun(tt.timeOfDay, tt.recurrence, tt.now)
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestNextRun_InvalidInput(t *testing.T) {
	assert.Nil(t, NextRun("25:00", RecurrenceDaily, baseTime))
	assert.Nil(t, NextRun("nine", RecurrenceDaily, baseTime))
	assert.Nil(t, NextRun("09:00", Recurrence("hourly"), baseTime))
}

func TestNextRun_UsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2025, 6, 4, 8, 0, 0, 0, loc)

	got := NextRun("09:00", RecurrenceDaily, now)
	require.NotNil(t, got)
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, loc, got.Location())
}

// Every result is strictly after now and lands on an allowed weekday,
// across two weeks of hourly starting points.
func TestNextRun_Properties(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 14*24; h++ {
		now := start.Add(time.Duration(h)*time.Hour + 17*time.Minute)
		for _, r := range Recurrences {
			got := NextRun("10:15", r, now)
			require.NotNil(t, got, "recurrence %s at %s", r, now)
			assert.True(t, got.After(now))
			assert.True(t, got.Sub(now) <= 7*24*time.Hour, "too far out: %s from %s", got, now)
			assert.Equal(t, 10, got.Hour())
			assert.Equal(t, 15, got.Minute())

			switch r {
			case RecurrenceWeekdays:
				assert.False(t, isWeekend(got.Weekday()))
			case RecurrenceWeekends:
				assert.True(t, isWeekend(got.Weekday()))
			}
		}
	}
}

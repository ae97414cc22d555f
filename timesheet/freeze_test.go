package timesheet_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/timesheet"
)

func window(state timesheet.FreezeState, at time.Time) *timesheet.FreezeWindow {
	return &timesheet.FreezeWindow{ID: "w1", State: state, SetBy: "ADMIN", At: at}
}

func TestCheckWritable(t *testing.T) {
	now := time.Date(2024, time.January, 20, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		target  timesheet.Month
		window  *timesheet.FreezeWindow
		allowed bool
	}{
		{"current month, no window", jan2024, nil, true},
		{"current month, unfrozen", jan2024, window(timesheet.Unfrozen, now.Add(-time.Hour)), true},
		{"current month, frozen", jan2024, window(timesheet.Frozen, now.Add(-time.Hour)), false},
		{"current month, frozen last month", jan2024, window(timesheet.Frozen, time.Date(2023, 12, 31, 18, 0, 0, 0, time.UTC)), true},
		{"previous month, unfrozen", timesheet.Month{Year: 2023, Month: time.December}, nil, false},
		{"next month", timesheet.Month{Year: 2024, Month: time.February}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := timesheet.CheckWritable(tt.target, now, tt.window)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, timesheet.ErrPermissionDenied)
			var perr *timesheet.PermissionError
			assert.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.target, perr.Month)
		})
	}
}

func TestEffectiveState(t *testing.T) {
	now := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, timesheet.Unfrozen, timesheet.EffectiveState(nil, now))
	assert.Equal(t, timesheet.Frozen, timesheet.EffectiveState(window(timesheet.Frozen, now.Add(-time.Minute)), now))
	assert.Equal(t, timesheet.Unfrozen, timesheet.EffectiveState(window(timesheet.Frozen, time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)), now),
		"a month starts open")
}

func TestEffectiveState_ComparesMonthsInClockLocation(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
	}{
		{"east of UTC on the 1st", time.Date(2024, time.February, 1, 3, 0, 0, 0, time.FixedZone("IST", 5*3600+30*60))},
		{"west of UTC on the last day", time.Date(2024, time.January, 31, 20, 0, 0, 0, time.FixedZone("EST", -5*3600))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Windows are stored in UTC, which falls in a different month here
			w := window(timesheet.Frozen, tt.now.UTC())
			require.NotEqual(t, timesheet.MonthOf(tt.now), timesheet.MonthOf(w.At))

			assert.Equal(t, timesheet.Frozen, timesheet.EffectiveState(w, tt.now))
			assert.True(t, timesheet.IsPermissionDenied(timesheet.CheckWritable(timesheet.MonthOf(tt.now), tt.now, w)))
		})
	}
}

package timesheet_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/timesheet"
)

var jan2024 = timesheet.Month{Year: 2024, Month: time.January}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func statuses(days []timesheet.Day) map[int]timesheet.Status {
	out := make(map[int]timesheet.Status, len(days))
	for _, d := range days {
		out[d.DayOfMonth] = d.Status
	}
	return out
}

// =============================================================================
// CALENDAR TAGGING
// =============================================================================

func TestGenerateTemplate_January2024_Weekends(t *testing.T) {
	// GIVEN: January 2024 with no holidays or leave
	// WHEN: Generating the template
	// THEN: Only the calendar weekend days are tagged

	days := timesheet.GenerateTemplate(jan2024, nil, nil)
	require.Len(t, days, 31)

	want := map[int]timesheet.Status{}
	for _, d := range []int{6, 13, 20, 27} {
		want[d] = timesheet.StatusSaturday
	}
	for _, d := range []int{7, 14, 21, 28} {
		want[d] = timesheet.StatusSunday
	}

	for i, d := range days {
		assert.Equal(t, i+1, d.DayOfMonth, "days ascend from 1")
		assert.Empty(t, d.Description)
		assert.Equal(t, want[d.DayOfMonth], d.Status, "day %d", d.DayOfMonth)
	}
}

func TestGenerateTemplate_Idempotent(t *testing.T) {
	holidays := []timesheet.Holiday{{Date: date(2024, 1, 15), Name: "Pongal"}}
	leaves := []timesheet.LeaveEntry{
		{EmployeeID: "E1", Status: "Casual Leave", Date: date(2024, 1, 10), TransactionState: timesheet.StateAvailed},
	}

	first := timesheet.GenerateTemplate(jan2024, holidays, leaves)
	second := timesheet.GenerateTemplate(jan2024, holidays, leaves)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("template not idempotent (-first +second):\n%s", diff)
	}
}

func TestGenerateTemplate_StatusesAreKnown(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		month := timesheet.Month{Year: 2024, Month: m}
		for _, d := range timesheet.GenerateTemplate(month, nil, nil) {
			assert.True(t, d.Status.Valid(), "%s day %d: %q", month, d.DayOfMonth, d.Status)
			weekend := timesheet.IsWeekend(month.Date(d.DayOfMonth))
			assert.Equal(t, weekend, d.Status.IsWeekend(), "%s day %d", month, d.DayOfMonth)
		}
	}
}

// =============================================================================
// RULE PRIORITY
// =============================================================================

func TestGenerateTemplate_WeekendBeatsHolidayBeatsLeave(t *testing.T) {
	// GIVEN: A holiday on a Saturday, and leave on both a holiday and a weekday
	holidays := []timesheet.Holiday{
		{Date: date(2024, 1, 6), Name: "Saturday holiday"},
		{Date: date(2024, 1, 15), Name: "Pongal"},
	}
	leaves := []timesheet.LeaveEntry{
		{EmployeeID: "E1", Status: "Casual Leave", Date: date(2024, 1, 15), TransactionState: "AVAILED"},
		{EmployeeID: "E1", Status: "Casual Leave", Date: date(2024, 1, 16), TransactionState: "SETTLED"},
	}

	// WHEN: Generating the template
	got := statuses(timesheet.GenerateTemplate(jan2024, holidays, leaves))

	// THEN: First rule wins
	assert.Equal(t, timesheet.StatusSaturday, got[6])
	assert.Equal(t, timesheet.StatusHoliday, got[15])
	assert.Equal(t, timesheet.StatusLeave, got[16])
}

func TestGenerateTemplate_AppliedLeaveNotTagged(t *testing.T) {
	leaves := []timesheet.LeaveEntry{
		{EmployeeID: "E1", Status: "Casual Leave", Date: date(2024, 1, 10), TransactionState: timesheet.StateApplied},
	}
	got := statuses(timesheet.GenerateTemplate(jan2024, nil, leaves))
	assert.Equal(t, timesheet.StatusBlank, got[10])
}

func TestApplyRules_CustomRuleOrder(t *testing.T) {
	// Leave first means leave wins over the holiday on the same date.
	holidays := []timesheet.Holiday{{Date: date(2024, 1, 15), Name: "Pongal"}}
	leaves := []timesheet.LeaveEntry{{EmployeeID: "E1", Status: "Sick", Date: date(2024, 1, 15), TransactionState: "availed"}}

	got := statuses(timesheet.ApplyRules(jan2024, timesheet.LeaveRule(leaves), timesheet.HolidayRule(holidays)))
	assert.Equal(t, timesheet.StatusLeave, got[15])
	assert.Equal(t, timesheet.StatusBlank, got[6], "no weekend rule given")
}

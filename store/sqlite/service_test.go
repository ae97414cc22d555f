package sqlite_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/timesheet"
)

// These run the reconciliation paths end to end against SQLite, where
// WithTx is a real transaction.

func newTestService(t *testing.T) (*timesheet.Service, context.Context) {
	t.Helper()
	store := newTestStore(t)
	seedEmployees(t, store, "E1", "E2", "ADMIN")

	log := logrus.New()
	log.SetOutput(io.Discard)
	now := time.Date(2024, time.January, 20, 11, 0, 0, 0, time.UTC)
	return timesheet.NewService(store, timesheet.WithLogger(log), timesheet.WithClock(func() time.Time { return now })), context.Background()
}

func TestService_LeaveUploadAndInverse(t *testing.T) {
	// GIVEN: A generated month with a description on day 10
	svc, ctx := newTestService(t)
	_, err := svc.SaveDays(ctx, "E1", jan2024, []timesheet.DayUpdate{{DayOfMonth: 10, Description: "standup"}})
	require.NoError(t, err)

	// WHEN: Settled leave lands on day 10
	entries := []timesheet.LeaveEntry{{EmployeeID: "E1", Status: "Casual Leave", Date: date(2024, 1, 10), TransactionState: "AVAILED"}}
	report, err := svc.ReconcileLeaves(ctx, jan2024, entries)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DaysUpdated)

	// THEN: Day 10 is Leave with no description
	days, err := svc.Month(ctx, "E1", jan2024)
	require.NoError(t, err)
	assert.Equal(t, timesheet.Day{DayOfMonth: 10, Status: timesheet.StatusLeave}, days[9])

	// WHEN: The next sheet no longer has it
	_, err = svc.ReconcileLeaves(ctx, jan2024, nil)
	require.NoError(t, err)

	// THEN: The status is restored
	days, err = svc.Month(ctx, "E1", jan2024)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusBlank, days[9].Status)
}

func TestService_FailedUploadRollsBack(t *testing.T) {
	svc, ctx := newTestService(t)
	_, err := svc.Month(ctx, "E1", jan2024)
	require.NoError(t, err)

	_, err = svc.ReconcileLeaves(ctx, jan2024, []timesheet.LeaveEntry{
		{EmployeeID: "E1", Status: "Sick", Date: date(2024, 1, 10), TransactionState: "AVAILED"},
		{EmployeeID: "ghost", Status: "Sick", Date: date(2024, 1, 11), TransactionState: "AVAILED"},
	})
	require.True(t, timesheet.IsNotFound(err))

	days, err := svc.Month(ctx, "E1", jan2024)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusBlank, days[9].Status)
}

func TestService_FreezeWindowOnSQLite(t *testing.T) {
	svc, ctx := newTestService(t)

	w, err := svc.SetFreeze(ctx, timesheet.Frozen, "ADMIN")
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)

	st, err := svc.FreezeStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, timesheet.Frozen, st.State)
	assert.Equal(t, "ADMIN", st.Window.SetBy)

	_, err = svc.SaveDays(ctx, "E2", jan2024, []timesheet.DayUpdate{{DayOfMonth: 2, Description: "x"}})
	assert.True(t, timesheet.IsPermissionDenied(err))
}

func TestService_HolidayRoundTripOnSQLite(t *testing.T) {
	svc, ctx := newTestService(t)
	_, err := svc.SaveDays(ctx, "E1", jan2024, []timesheet.DayUpdate{{DayOfMonth: 15, Description: "migration"}})
	require.NoError(t, err)

	_, err = svc.ReconcileHolidays(ctx, []timesheet.Holiday{{Date: date(2024, 1, 15), Name: "Pongal"}})
	require.NoError(t, err)
	days, err := svc.Month(ctx, "E1", jan2024)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusHoliday, days[14].Status)

	_, err = svc.ReconcileHolidays(ctx, nil)
	require.NoError(t, err)
	days, err = svc.Month(ctx, "E1", jan2024)
	require.NoError(t, err)
	assert.Equal(t, timesheet.Day{DayOfMonth: 15, Description: "migration", Status: timesheet.StatusBlank}, days[14])
}

func TestService_FreezeHoldsOnLocalClockAtMonthStart(t *testing.T) {
	// GIVEN: A server clock east of UTC, early on the 1st, when it is still
	// the previous month in UTC
	store := newTestStore(t)
	seedEmployees(t, store, "E1", "ADMIN")
	ist := time.FixedZone("IST", 5*3600+30*60)
	now := time.Date(2024, time.February, 1, 3, 0, 0, 0, ist)
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := timesheet.NewService(store, timesheet.WithLogger(log), timesheet.WithClock(func() time.Time { return now }))
	ctx := context.Background()
	feb := timesheet.Month{Year: 2024, Month: time.February}

	// WHEN: The month is frozen
	_, err := svc.SetFreeze(ctx, timesheet.Frozen, "ADMIN")
	require.NoError(t, err)

	// THEN: The stored window reads as frozen and writes are denied
	st, err := svc.FreezeStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, timesheet.Frozen, st.State)

	_, err = svc.SaveDays(ctx, "E1", feb, []timesheet.DayUpdate{{DayOfMonth: 1, Description: "x"}})
	assert.True(t, timesheet.IsPermissionDenied(err), "got %v", err)
}

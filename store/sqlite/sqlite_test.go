package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/store/sqlite"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var jan2024 = timesheet.Month{Year: 2024, Month: time.January}

func employee(id, code, project string) timesheet.Employee {
	return timesheet.Employee{
		ID:            id,
		HRCode:        "HR-" + id,
		FirstName:     "First",
		LastName:      id,
		StartDate:     date(2022, 4, 1),
		Level:         "L2",
		Team:          "Data",
		Department:    "Engineering",
		Manager:       "M. Rao",
		ProjectNumber: "PN-" + code,
		ProjectCode:   code,
		ProjectName:   project,
	}
}

func seedEmployees(t *testing.T, s *sqlite.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.SaveEmployee(context.Background(), employee(id, "P100", "Indexing")))
	}
}

// =============================================================================
// MIGRATIONS
// =============================================================================

func TestMigrations_VersionAndRollback(t *testing.T) {
	store := newTestStore(t)

	version, dirty, ok, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	// Re-running is a no-op
	require.NoError(t, store.MigrateUp())

	require.NoError(t, store.MigrateDown(1))
	_, _, ok, err = store.MigrationVersion()
	require.NoError(t, err)
	assert.False(t, ok, "no migration applied after rolling back the only one")

	require.NoError(t, store.MigrateUp())
	seedEmployees(t, store, "E1")
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees_RoundTripWithReferences(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	want := employee("E1", "P100", "Indexing")

	require.NoError(t, store.SaveEmployee(ctx, want))
	got, err := store.GetEmployee(ctx, "E1")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestEmployees_MissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetEmployee(context.Background(), "nobody")

	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestEmployees_UpsertMovesProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("E1", "P100", "Indexing")))

	moved := employee("E1", "P200", "Benchmarks")
	moved.Team = ""
	require.NoError(t, store.SaveEmployee(ctx, moved))

	got, err := store.GetEmployee(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, "P200", got.ProjectCode)
	assert.Equal(t, "", got.Team)

	codes, err := store.ProjectCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P200"}, codes, "codes no one holds are not listed")
}

func TestEmployees_DuplicateHRCode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("E1", "P100", "Indexing")))

	clash := employee("E2", "P100", "Indexing")
	clash.HRCode = "HR-E1"
	err := store.SaveEmployee(ctx, clash)

	var verr *timesheet.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "hr_code", verr.Field)
}

func TestEmployees_FilterAndProjects(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("E1", "P100", "Indexing")))
	require.NoError(t, store.SaveEmployee(ctx, employee("E2", "P200", "Benchmarks")))
	require.NoError(t, store.SaveEmployee(ctx, employee("E3", "P100", "Indexing")))

	all, err := store.ListEmployees(ctx, timesheet.EmployeeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	p100, err := store.ListEmployees(ctx, timesheet.EmployeeFilter{ProjectCodes: []string{"P100"}})
	require.NoError(t, err)
	require.Len(t, p100, 2)
	assert.Equal(t, "E1", p100[0].ID)
	assert.Equal(t, "E3", p100[1].ID)

	bench, err := store.ListEmployees(ctx, timesheet.EmployeeFilter{ProjectNames: []string{"Benchmarks"}})
	require.NoError(t, err)
	require.Len(t, bench, 1)
	assert.Equal(t, "E2", bench[0].ID)

	names, err := store.ProjectNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Benchmarks", "Indexing"}, names)
}

// =============================================================================
// DAYS
// =============================================================================

func TestDays_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployees(t, store, "E1", "E2")

	for _, id := range []string{"E1", "E2"} {
		rows := timesheet.Records(id, jan2024, timesheet.GenerateTemplate(jan2024, nil, nil))
		require.NoError(t, store.SaveDays(ctx, rows))
	}

	// Upsert one day
	require.NoError(t, store.SaveDays(ctx, []timesheet.DayRecord{{
		EmployeeID: "E1", Month: jan2024,
		Day: timesheet.Day{DayOfMonth: 10, Description: "review", Status: timesheet.StatusLeave},
	}}))

	rows, err := store.LoadDays(ctx, "E1", jan2024)
	require.NoError(t, err)
	require.Len(t, rows, 31)
	assert.Equal(t, timesheet.StatusSaturday, rows[5].Status)
	assert.Equal(t, timesheet.StatusLeave, rows[9].Status)
	assert.Equal(t, "review", rows[9].Description)

	on, err := store.LoadDaysOn(ctx, []time.Time{date(2024, 1, 10), date(2024, 1, 11)})
	require.NoError(t, err)
	require.Len(t, on, 4)
	assert.Equal(t, "E1", on[0].EmployeeID)
	assert.Equal(t, 10, on[0].DayOfMonth)
	assert.Equal(t, "E2", on[3].EmployeeID)
	assert.Equal(t, 11, on[3].DayOfMonth)

	none, err := store.LoadDaysOn(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDays_UnknownEmployee(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveDays(context.Background(), []timesheet.DayRecord{{EmployeeID: "ghost", Month: jan2024, Day: timesheet.Day{DayOfMonth: 1}}})

	assert.True(t, timesheet.IsNotFound(err))
}

// =============================================================================
// LEAVES
// =============================================================================

func TestLeaves_AddDeleteUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployees(t, store, "E1", "E2")

	casual := timesheet.LeaveEntry{EmployeeID: "E1", Status: "Casual Leave", Date: date(2024, 1, 10), TransactionState: "AVAILED"}
	comp := timesheet.LeaveEntry{EmployeeID: "E1", Status: timesheet.LeaveCompOff, Date: date(2024, 1, 22), TransactionState: "APPLIED"}
	other := timesheet.LeaveEntry{EmployeeID: "E2", Status: "Sick", Date: date(2024, 2, 1), TransactionState: "AVAILED"}

	// Duplicates are ignored
	require.NoError(t, store.AddLeaves(ctx, []timesheet.LeaveEntry{casual, casual, comp, other}))

	all, err := store.LoadLeaves(ctx, timesheet.LeaveFilter{})
	require.NoError(t, err)
	assert.Equal(t, []timesheet.LeaveEntry{casual, comp, other}, all)

	regular, err := store.LoadLeaves(ctx, timesheet.MonthLeaves(jan2024, timesheet.LeaveRegular))
	require.NoError(t, err)
	assert.Equal(t, []timesheet.LeaveEntry{casual}, regular)

	// State update matches on employee, type and date
	comp.TransactionState = "AVAILED"
	require.NoError(t, store.UpdateLeaveState(ctx, []timesheet.LeaveEntry{comp}))
	comps, err := store.LoadLeaves(ctx, timesheet.LeaveFilter{EmployeeID: "E1", Kind: timesheet.LeaveCompOffOnly})
	require.NoError(t, err)
	assert.Equal(t, []timesheet.LeaveEntry{comp}, comps)

	require.NoError(t, store.DeleteLeaves(ctx, []timesheet.LeaveEntry{casual}))
	regular, err = store.LoadLeaves(ctx, timesheet.MonthLeaves(jan2024, timesheet.LeaveRegular))
	require.NoError(t, err)
	assert.Empty(t, regular)
}

func TestLeaves_UnknownEmployee(t *testing.T) {
	store := newTestStore(t)

	err := store.AddLeaves(context.Background(), []timesheet.LeaveEntry{
		{EmployeeID: "ghost", Status: "Sick", Date: date(2024, 1, 10), TransactionState: "AVAILED"},
	})

	assert.True(t, timesheet.IsNotFound(err))
}

// =============================================================================
// HOLIDAYS + FREEZE WINDOWS
// =============================================================================

func TestHolidays_SaveListDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHolidays(ctx, []timesheet.Holiday{
		{Date: date(2024, 1, 26), Name: "Republic"},
		{Date: date(2024, 1, 15), Name: "Pongal"},
		{Date: date(2024, 3, 8), Name: "Shivaratri"},
	}))
	require.NoError(t, store.SaveHolidays(ctx, []timesheet.Holiday{{Date: date(2024, 1, 26), Name: "Republic Day"}}))

	jan, err := store.ListHolidays(ctx, jan2024.Start(), jan2024.End())
	require.NoError(t, err)
	assert.Equal(t, []timesheet.Holiday{
		{Date: date(2024, 1, 15), Name: "Pongal"},
		{Date: date(2024, 1, 26), Name: "Republic Day"},
	}, jan)

	require.NoError(t, store.DeleteHolidays(ctx, []time.Time{date(2024, 1, 15)}))
	all, err := store.ListHolidays(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFreezeWindows_Latest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployees(t, store, "ADMIN")

	latest, err := store.LatestFreezeWindow(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	at := time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveFreezeWindow(ctx, timesheet.FreezeWindow{ID: "w1", State: timesheet.Frozen, SetBy: "ADMIN", At: at}))
	require.NoError(t, store.SaveFreezeWindow(ctx, timesheet.FreezeWindow{ID: "w2", State: timesheet.Unfrozen, SetBy: "ADMIN", At: at}))
	require.NoError(t, store.SaveFreezeWindow(ctx, timesheet.FreezeWindow{ID: "w0", State: timesheet.Frozen, SetBy: "ADMIN", At: at.Add(-time.Hour)}))

	latest, err = store.LatestFreezeWindow(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "w2", latest.ID, "ties go to the later insert")
	assert.Equal(t, timesheet.Unfrozen, latest.State)
	assert.True(t, at.Equal(latest.At))

	err = store.SaveFreezeWindow(ctx, timesheet.FreezeWindow{ID: "w3", State: timesheet.Frozen, SetBy: "ghost", At: at})
	assert.True(t, timesheet.IsNotFound(err))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEmployees(t, store, "E1")
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx timesheet.Store) error {
		require.NoError(t, tx.SaveHolidays(ctx, []timesheet.Holiday{{Date: date(2024, 1, 15), Name: "Pongal"}}))
		// Nested WithTx joins the open transaction
		require.NoError(t, tx.WithTx(ctx, func(inner timesheet.Store) error {
			return inner.AddLeaves(ctx, []timesheet.LeaveEntry{{EmployeeID: "E1", Status: "Sick", Date: date(2024, 1, 10), TransactionState: "AVAILED"}})
		}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	holidays, err := store.ListHolidays(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, holidays)
	leaves, err := store.LoadLeaves(ctx, timesheet.LeaveFilter{})
	require.NoError(t, err)
	assert.Empty(t, leaves)
}

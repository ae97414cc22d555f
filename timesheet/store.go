/*
store.go - Persistence interfaces for the timesheet engine

PURPOSE:
  The Service talks to storage only through these interfaces so the
  SQLite store and the in-memory store are interchangeable.

CONVENTIONS:
  - GetX returns (nil, nil) when the record does not exist.
  - Dates are calendar dates; implementations truncate to UTC midnight.
  - Slices come back in a stable order (employee, then date).

TRANSACTIONS:
  WithTx runs fn against a Store bound to one transaction. Returning an
  error from fn rolls everything back. Reconciliation relies on this to
  stay all-or-nothing.

SEE ALSO:
  - store/sqlite: SQLite implementation with versioned migrations
  - store/memory: in-memory implementation for tests and dry runs
*/
package timesheet

import (
	"context"
	"time"
)

type EmployeeStore interface {
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error)
	// SaveEmployee inserts or updates by ID. Reference values (level, team,
	// department, manager, project) are created on first use.
	SaveEmployee(ctx context.Context, e Employee) error
	ProjectCodes(ctx context.Context) ([]string, error)
	ProjectNames(ctx context.Context) ([]string, error)
}

type DayStore interface {
	// LoadDays returns an employee's rows for a month ordered by day.
	LoadDays(ctx context.Context, employeeID string, month Month) ([]DayRecord, error)
	// LoadDaysOn returns every employee's rows on the given dates.
	LoadDaysOn(ctx context.Context, dates []time.Time) ([]DayRecord, error)
	// SaveDays upserts rows by (employee, month, day).
	SaveDays(ctx context.Context, rows []DayRecord) error
}

type LeaveStore interface {
	LoadLeaves(ctx context.Context, filter LeaveFilter) ([]LeaveEntry, error)
	AddLeaves(ctx context.Context, entries []LeaveEntry) error
	// DeleteLeaves removes entries matching on all four fields.
	DeleteLeaves(ctx context.Context, entries []LeaveEntry) error
	// UpdateLeaveState sets the transaction state of entries matched on
	// employee, leave type and date.
	UpdateLeaveState(ctx context.Context, entries []LeaveEntry) error
}

type HolidayStore interface {
	// ListHolidays returns holidays in [from, to]. Zero bounds are open.
	ListHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error)
	// SaveHolidays upserts by date.
	SaveHolidays(ctx context.Context, holidays []Holiday) error
	DeleteHolidays(ctx context.Context, dates []time.Time) error
}

type WindowStore interface {
	// LatestFreezeWindow returns the most recent window, or nil if none.
	LatestFreezeWindow(ctx context.Context) (*FreezeWindow, error)
	SaveFreezeWindow(ctx context.Context, w FreezeWindow) error
}

// Store is everything the Service needs.
type Store interface {
	EmployeeStore
	DayStore
	LeaveStore
	HolidayStore
	WindowStore

	WithTx(ctx context.Context, fn func(Store) error) error
}

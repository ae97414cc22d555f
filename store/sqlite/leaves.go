package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// LEAVE STORE
// =============================================================================

func (o ops) LoadLeaves(ctx context.Context, f timesheet.LeaveFilter) ([]timesheet.LeaveEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "e.indxx_id = ?")
		args = append(args, f.EmployeeID)
	}
	if !f.From.IsZero() {
		where = append(where, "l.leave_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "l.leave_date <= ?")
		args = append(args, formatDate(f.To))
	}
	switch f.Kind {
	case timesheet.LeaveRegular:
		where = append(where, "l.leave_status <> ?")
		args = append(args, timesheet.LeaveCompOff)
	case timesheet.LeaveCompOffOnly:
		where = append(where, "l.leave_status = ?")
		args = append(args, timesheet.LeaveCompOff)
	}

	query := `
		SELECT e.indxx_id, l.leave_status, l.leave_date, l.transaction_status
		FROM leaves l
		JOIN employees e ON e.id = l.employee_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.indxx_id, l.leave_date, l.leave_status, l.transaction_status"

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaves: %w", err)
	}
	defer rows.Close()

	var out []timesheet.LeaveEntry
	for rows.Next() {
		var (
			l    timesheet.LeaveEntry
			date string
		)
		if err := rows.Scan(&l.EmployeeID, &l.Status, &date, &l.TransactionState); err != nil {
			return nil, fmt.Errorf("failed to scan leave: %w", err)
		}
		if l.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AddLeaves inserts entries. Exact duplicates are ignored.
func (o ops) AddLeaves(ctx context.Context, entries []timesheet.LeaveEntry) error {
	keys := o.keys()
	ts := now()
	for _, l := range entries {
		key, err := keys.get(ctx, l.EmployeeID)
		if err != nil {
			return err
		}
		_, err = o.q.ExecContext(ctx, `
			INSERT INTO leaves (employee_id, leave_status, leave_date, transaction_status, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(employee_id, leave_status, leave_date, transaction_status) DO NOTHING`,
			key, l.Status, formatDate(l.Date), l.TransactionState, ts)
		if err != nil {
			return fmt.Errorf("failed to add leave: %w", err)
		}
	}
	return nil
}

func (o ops) DeleteLeaves(ctx context.Context, entries []timesheet.LeaveEntry) error {
	for _, l := range entries {
		_, err := o.q.ExecContext(ctx, `
			DELETE FROM leaves
			WHERE employee_id = (SELECT id FROM employees WHERE indxx_id = ?)
			  AND leave_status = ? AND leave_date = ? AND transaction_status = ?`,
			l.EmployeeID, l.Status, formatDate(l.Date), l.TransactionState)
		if err != nil {
			return fmt.Errorf("failed to delete leave: %w", err)
		}
	}
	return nil
}

func (o ops) UpdateLeaveState(ctx context.Context, entries []timesheet.LeaveEntry) error {
	for _, l := range entries {
		_, err := o.q.ExecContext(ctx, `
			UPDATE leaves SET transaction_status = ?
			WHERE employee_id = (SELECT id FROM employees WHERE indxx_id = ?)
			  AND leave_status = ? AND leave_date = ?`,
			l.TransactionState, l.EmployeeID, l.Status, formatDate(l.Date))
		if err != nil {
			return fmt.Errorf("failed to update leave state: %w", err)
		}
	}
	return nil
}

// =============================================================================
// HOLIDAY STORE
// =============================================================================

func (o ops) ListHolidays(ctx context.Context, from, to time.Time) ([]timesheet.Holiday, error) {
	var (
		where []string
		args  []any
	)
	if !from.IsZero() {
		where = append(where, "holiday_date >= ?")
		args = append(args, formatDate(from))
	}
	if !to.IsZero() {
		where = append(where, "holiday_date <= ?")
		args = append(args, formatDate(to))
	}
	query := "SELECT holiday_date, name FROM holidays"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY holiday_date"

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var out []timesheet.Holiday
	for rows.Next() {
		var (
			h    timesheet.Holiday
			date string
		)
		if err := rows.Scan(&date, &h.Name); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		if h.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (o ops) SaveHolidays(ctx context.Context, holidays []timesheet.Holiday) error {
	ts := now()
	for _, h := range holidays {
		_, err := o.q.ExecContext(ctx, `
			INSERT INTO holidays (holiday_date, name, created_at) VALUES (?, ?, ?)
			ON CONFLICT(holiday_date) DO UPDATE SET name = excluded.name`,
			formatDate(h.Date), h.Name, ts)
		if err != nil {
			return fmt.Errorf("failed to save holiday: %w", err)
		}
	}
	return nil
}

func (o ops) DeleteHolidays(ctx context.Context, dates []time.Time) error {
	for _, d := range dates {
		if _, err := o.q.ExecContext(ctx, "DELETE FROM holidays WHERE holiday_date = ?", formatDate(d)); err != nil {
			return fmt.Errorf("failed to delete holiday: %w", err)
		}
	}
	return nil
}

// =============================================================================
// WINDOW STORE
// =============================================================================

func (o ops) LatestFreezeWindow(ctx context.Context) (*timesheet.FreezeWindow, error) {
	var (
		w     timesheet.FreezeWindow
		state string
		at    string
	)
	err := o.q.QueryRowContext(ctx, `
		SELECT w.id, w.status, e.indxx_id, w.time_stamp
		FROM time_windows w
		JOIN employees e ON e.id = w.set_by
		ORDER BY w.time_stamp DESC, w.rowid DESC
		LIMIT 1`).Scan(&w.ID, &state, &w.SetBy, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load freeze window: %w", err)
	}
	w.State = timesheet.FreezeState(state)
	if w.At, err = time.Parse(timestampLayout, at); err != nil {
		return nil, fmt.Errorf("bad stored timestamp %q: %w", at, err)
	}
	return &w, nil
}

func (o ops) SaveFreezeWindow(ctx context.Context, w timesheet.FreezeWindow) error {
	key, err := o.employeeKey(ctx, w.SetBy)
	if err != nil {
		return err
	}
	_, err = o.q.ExecContext(ctx,
		"INSERT INTO time_windows (id, status, set_by, time_stamp) VALUES (?, ?, ?, ?)",
		w.ID, string(w.State), key, w.At.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("failed to save freeze window: %w", err)
	}
	return nil
}

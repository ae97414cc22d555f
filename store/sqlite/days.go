package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// DAY STORE
// =============================================================================

const daySelect = `
	SELECT e.indxx_id, d.year, d.month, d.day_of_month, d.work_description, d.status
	FROM timesheet_days d
	JOIN employees e ON e.id = d.employee_id`

func (o ops) LoadDays(ctx context.Context, employeeID string, month timesheet.Month) ([]timesheet.DayRecord, error) {
	return o.queryDays(ctx, daySelect+`
		WHERE e.indxx_id = ? AND d.year = ? AND d.month = ?
		ORDER BY d.day_of_month`,
		employeeID, month.Year, int(month.Month))
}

func (o ops) LoadDaysOn(ctx context.Context, dates []time.Time) ([]timesheet.DayRecord, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	args := make([]any, len(dates))
	for i, d := range dates {
		args[i] = formatDate(d)
	}
	return o.queryDays(ctx, daySelect+`
		WHERE d.day_date IN (`+placeholders(len(dates))+`)
		ORDER BY e.indxx_id, d.day_date`, args...)
}

func (o ops) queryDays(ctx context.Context, query string, args ...any) ([]timesheet.DayRecord, error) {
	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query days: %w", err)
	}
	defer rows.Close()

	var out []timesheet.DayRecord
	for rows.Next() {
		var (
			r      timesheet.DayRecord
			month  int
			status string
		)
		if err := rows.Scan(&r.EmployeeID, &r.Month.Year, &month, &r.DayOfMonth, &r.Description, &status); err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		r.Month.Month = time.Month(month)
		r.Status = timesheet.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveDays upserts rows. Unknown employees fail the call.
func (o ops) SaveDays(ctx context.Context, rows []timesheet.DayRecord) error {
	keys := o.keys()
	ts := now()
	for _, r := range rows {
		key, err := keys.get(ctx, r.EmployeeID)
		if err != nil {
			return err
		}
		_, err = o.q.ExecContext(ctx, `
			INSERT INTO timesheet_days
			(employee_id, year, month, day_of_month, day_date, work_description, status, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(employee_id, year, month, day_of_month) DO UPDATE SET
				work_description = excluded.work_description,
				status = excluded.status,
				updated_at = excluded.updated_at`,
			key, r.Month.Year, int(r.Month.Month), r.DayOfMonth, formatDate(r.Date()),
			r.Description, string(r.Status), ts,
		)
		if err != nil {
			return fmt.Errorf("failed to save day %s for %s: %w", formatDate(r.Date()), r.EmployeeID, err)
		}
	}
	return nil
}

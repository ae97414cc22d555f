package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

const employeeSelect = `
	SELECT e.indxx_id, COALESCE(e.hr_code, ''), e.first_name, e.last_name, COALESCE(e.start_date, ''),
	       COALESCE(lv.name, ''), COALESCE(tm.name, ''), COALESCE(dp.name, ''), COALESCE(mg.name, ''),
	       COALESCE(pnum.name, ''), COALESCE(pcode.name, ''), COALESCE(pname.name, '')
	FROM employees e
	LEFT JOIN levels lv ON lv.id = e.level_id
	LEFT JOIN teams tm ON tm.id = e.team_id
	LEFT JOIN departments dp ON dp.id = e.department_id
	LEFT JOIN managers mg ON mg.id = e.manager_id
	LEFT JOIN project_numbers pnum ON pnum.id = e.project_number_id
	LEFT JOIN project_codes pcode ON pcode.id = e.project_code_id
	LEFT JOIN project_names pname ON pname.id = e.project_name_id`

func (o ops) GetEmployee(ctx context.Context, id string) (*timesheet.Employee, error) {
	row := o.q.QueryRowContext(ctx, employeeSelect+" WHERE e.indxx_id = ?", id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (o ops) ListEmployees(ctx context.Context, f timesheet.EmployeeFilter) ([]timesheet.Employee, error) {
	var (
		where []string
		args  []any
	)
	if len(f.ProjectCodes) > 0 {
		where = append(where, "pcode.name IN ("+placeholders(len(f.ProjectCodes))+")")
		for _, c := range f.ProjectCodes {
			args = append(args, c)
		}
	}
	if len(f.ProjectNames) > 0 {
		where = append(where, "pname.name IN ("+placeholders(len(f.ProjectNames))+")")
		for _, n := range f.ProjectNames {
			args = append(args, n)
		}
	}
	query := employeeSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.indxx_id"

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []timesheet.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (timesheet.Employee, error) {
	var (
		e         timesheet.Employee
		startDate string
	)
	err := row.Scan(&e.ID, &e.HRCode, &e.FirstName, &e.LastName, &startDate,
		&e.Level, &e.Team, &e.Department, &e.Manager,
		&e.ProjectNumber, &e.ProjectCode, &e.ProjectName)
	if errors.Is(err, sql.ErrNoRows) {
		return e, err
	}
	if err != nil {
		return e, fmt.Errorf("failed to scan employee: %w", err)
	}
	if e.StartDate, err = parseDate(startDate); err != nil {
		return e, err
	}
	return e, nil
}

// SaveEmployee upserts by indxx_id, creating reference rows as needed.
// A hr_code already held by another employee is a validation error.
func (o ops) SaveEmployee(ctx context.Context, e timesheet.Employee) error {
	refs := []struct{ table, value string }{
		{"levels", e.Level},
		{"teams", e.Team},
		{"departments", e.Department},
		{"managers", e.Manager},
		{"project_numbers", e.ProjectNumber},
		{"project_codes", e.ProjectCode},
		{"project_names", e.ProjectName},
	}
	ids := make([]any, len(refs))
	for i, r := range refs {
		id, err := o.referenceID(ctx, r.table, r.value)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	var startDate sql.NullString
	if !e.StartDate.IsZero() {
		startDate = nullString(formatDate(e.StartDate))
	}
	ts := now()

	query := `
		INSERT INTO employees
		(indxx_id, hr_code, first_name, last_name, start_date,
		 level_id, team_id, department_id, manager_id,
		 project_number_id, project_code_id, project_name_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(indxx_id) DO UPDATE SET
			hr_code = excluded.hr_code,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			start_date = excluded.start_date,
			level_id = excluded.level_id,
			team_id = excluded.team_id,
			department_id = excluded.department_id,
			manager_id = excluded.manager_id,
			project_number_id = excluded.project_number_id,
			project_code_id = excluded.project_code_id,
			project_name_id = excluded.project_name_id,
			updated_at = excluded.updated_at
	`
	args := []any{e.ID, nullString(e.HRCode), e.FirstName, e.LastName, startDate}
	args = append(args, ids...)
	args = append(args, ts, ts)

	if _, err := o.q.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintError(err) {
			return &timesheet.ValidationError{Field: "hr_code", Message: fmt.Sprintf("hr code %q already belongs to another employee", e.HRCode)}
		}
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// referenceID returns the id of name in table, inserting it first if new.
// Empty names map to NULL.
func (o ops) referenceID(ctx context.Context, table, name string) (any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if _, err := o.q.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (name) VALUES (?) ON CONFLICT(name) DO NOTHING", table), name); err != nil {
		return nil, fmt.Errorf("failed to create %s %q: %w", table, name, err)
	}
	var id int64
	if err := o.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE name = ?", table), name).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to look up %s %q: %w", table, name, err)
	}
	return id, nil
}

func (o ops) ProjectCodes(ctx context.Context) ([]string, error) {
	return o.queryStrings(ctx, `
		SELECT DISTINCT pc.name FROM employees e
		JOIN project_codes pc ON pc.id = e.project_code_id
		ORDER BY pc.name`)
}

func (o ops) ProjectNames(ctx context.Context) ([]string, error) {
	return o.queryStrings(ctx, `
		SELECT DISTINCT pn.name FROM employees e
		JOIN project_names pn ON pn.id = e.project_name_id
		ORDER BY pn.name`)
}

func (o ops) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

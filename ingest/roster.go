package ingest

import (
	"github.com/warp/timesheet-engine/timesheet"
)

var rosterColumns = []string{
	"indxx_id", "hr_code", "first_name", "last_name", "start_date", "level",
	"team", "department", "manager", "project_number", "project_code", "project_name",
}

var rosterDateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006", "2-Jan-06", "02-Jan-2006"}

// ParseRoster reads an employee roster. A missing column fails the whole
// file; a bad line is returned with Err set so the import can skip it.
func ParseRoster(rows [][]string) ([]timesheet.RosterRow, error) {
	if len(rows) == 0 {
		return nil, &timesheet.ValidationError{Message: "roster is empty"}
	}
	h := newHeader(rows[0])
	if err := h.require("indxx_id", "first_name"); err != nil {
		return nil, &timesheet.ValidationError{Row: 1, Message: err.Error()}
	}

	var out []timesheet.RosterRow
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := i + 2
		e := timesheet.Employee{
			ID:            h.get(row, "indxx_id"),
			HRCode:        h.get(row, "hr_code"),
			FirstName:     h.get(row, "first_name"),
			LastName:      h.get(row, "last_name"),
			Level:         h.get(row, "level"),
			Team:          h.get(row, "team"),
			Department:    h.get(row, "department"),
			Manager:       h.get(row, "manager"),
			ProjectNumber: h.get(row, "project_number"),
			ProjectCode:   h.get(row, "project_code"),
			ProjectName:   h.get(row, "project_name"),
		}
		r := timesheet.RosterRow{Line: line, Employee: e}
		if raw := h.get(row, "start_date"); raw != "" {
			t, err := parseDate(raw, rosterDateLayouts...)
			if err != nil {
				r.Err = &timesheet.ValidationError{Row: line, Field: "start_date", Message: err.Error()}
			}
			r.Employee.StartDate = t
		}
		out = append(out, r)
	}
	return out, nil
}

// RosterColumns is the header a roster file is expected to carry.
func RosterColumns() []string {
	return append([]string(nil), rosterColumns...)
}

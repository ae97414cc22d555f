package ingest

import (
	"fmt"

	"github.com/warp/timesheet-engine/timesheet"
)

var holidayDateLayouts = []string{"02-01-2006", "2-1-2006", "2006-01-02"}

// ParseHolidays reads a holiday sheet. Any malformed row fails the sheet.
func ParseHolidays(rows [][]string) ([]timesheet.Holiday, error) {
	if len(rows) == 0 {
		return nil, &timesheet.ValidationError{Message: "holiday sheet is empty"}
	}
	h := newHeader(rows[0])
	if err := h.require("holiday_date", "holiday"); err != nil {
		return nil, &timesheet.ValidationError{Row: 1, Message: err.Error()}
	}

	var out []timesheet.Holiday
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := i + 2
		date, err := parseDate(h.get(row, "holiday_date"), holidayDateLayouts...)
		if err != nil {
			return nil, &timesheet.ValidationError{Row: line, Field: "holiday_date", Message: err.Error()}
		}
		name := h.get(row, "holiday")
		if name == "" {
			return nil, &timesheet.ValidationError{Row: line, Field: "holiday", Message: fmt.Sprintf("no name for %s", date.Format(timesheet.DateLayout))}
		}
		out = append(out, timesheet.Holiday{Date: date, Name: name})
	}
	return out, nil
}

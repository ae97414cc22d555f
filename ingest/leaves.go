package ingest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/timesheet-engine/timesheet"
)

const (
	colEmployeeNo  = "Employee No"
	colLeaveType   = "Leave/Holiday"
	colFromDate    = "From Date"
	colToDate      = "To Date"
	colDays        = "Number of Days"
	colTransaction = "Transaction Status"

	workFromHome = "Work from Home"
)

var (
	leaveDateLayouts = []string{"02-Jan-06", "2-Jan-06", "02-Jan-2006", "2006-01-02"}
	halfDay          = decimal.RequireFromString("0.5")
)

// LeaveSheet is a parsed HR leave export.
type LeaveSheet struct {
	// Entries holds one entry per leave day inside the target month.
	Entries []timesheet.LeaveEntry
	// Dropped counts work-from-home and half-day rows.
	Dropped int
}

// ParseLeaves reads a leave export and explodes each row's date range into
// days of month. Any malformed row fails the whole sheet.
func ParseLeaves(rows [][]string, month timesheet.Month) (*LeaveSheet, error) {
	start := headerIndex(rows, colEmployeeNo)
	if start < 0 {
		return nil, &timesheet.ValidationError{Message: fmt.Sprintf("no header row with %q", colEmployeeNo)}
	}
	h := newHeader(rows[start])
	if err := h.require(colEmployeeNo, colLeaveType, colFromDate, colToDate, colTransaction); err != nil {
		return nil, &timesheet.ValidationError{Row: start + 1, Message: err.Error()}
	}

	sheet := &LeaveSheet{}
	for i, row := range rows[start+1:] {
		if blank(row) {
			continue
		}
		line := start + i + 2

		leaveType := h.get(row, colLeaveType)
		if strings.EqualFold(leaveType, workFromHome) {
			sheet.Dropped++
			continue
		}
		if raw := h.get(row, colDays); raw != "" {
			days, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, &timesheet.ValidationError{Row: line, Field: colDays, Message: fmt.Sprintf("not a number: %q", raw)}
			}
			if days.Equal(halfDay) {
				sheet.Dropped++
				continue
			}
		}

		employeeID := h.get(row, colEmployeeNo)
		if employeeID == "" {
			return nil, &timesheet.ValidationError{Row: line, Field: colEmployeeNo, Message: "employee number is required"}
		}
		if leaveType == "" {
			return nil, &timesheet.ValidationError{Row: line, Field: colLeaveType, Message: "leave type is required"}
		}
		from, err := parseDate(h.get(row, colFromDate), leaveDateLayouts...)
		if err != nil {
			return nil, &timesheet.ValidationError{Row: line, Field: colFromDate, Message: err.Error()}
		}
		to, err := parseDate(h.get(row, colToDate), leaveDateLayouts...)
		if err != nil {
			return nil, &timesheet.ValidationError{Row: line, Field: colToDate, Message: err.Error()}
		}
		if to.Before(from) {
			return nil, &timesheet.ValidationError{Row: line, Field: colToDate, Message: "to date before from date"}
		}

		state := strings.ToUpper(h.get(row, colTransaction))
		for _, d := range timesheet.DatesBetween(from, to) {
			if !month.Contains(d) {
				continue
			}
			sheet.Entries = append(sheet.Entries, timesheet.LeaveEntry{
				EmployeeID:       employeeID,
				Status:           leaveType,
				Date:             d,
				TransactionState: state,
			})
		}
	}
	return sheet, nil
}

// headerIndex returns the first row with a cell equal to name.
func headerIndex(rows [][]string, name string) int {
	want := normalize(name)
	for i, row := range rows {
		for _, cell := range row {
			if normalize(cell) == want {
				return i
			}
		}
	}
	return -1
}

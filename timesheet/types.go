/*
types.go - Core value types of the timesheet engine

PURPOSE:
  Defines the day row, employee, leave entry, holiday and freeze window
  records that every other package passes around. The store packages
  persist exactly these shapes.

DAY STATUS:
  A day carries one of five tags:
    ""          working day (blank)
    "Saturday"  calendar weekend
    "Sunday"    calendar weekend
    "Holiday"   company holiday
    "Leave"     employee on leave

  Weekend tags are fixed by the calendar. Holiday and Leave are written
  only by template generation and the reconciliation diffs.

LEAVE ENTRIES:
  Leave entries come from the HR leave sheet and the comp-off endpoint.
  "Comp Off" entries are tracked separately from regular leave and are
  never touched by a leave sheet upload.

SEE ALSO:
  - template.go: builds a fresh month from holidays and leave
  - reconcile.go: applies leave and holiday diffs to stored rows
  - freeze.go: the edit window gate
*/
package timesheet

import (
	"strings"
	"time"
)

// =============================================================================
// DAY STATUS
// =============================================================================

type Status string

const (
	StatusBlank    Status = ""
	StatusSaturday Status = "Saturday"
	StatusSunday   Status = "Sunday"
	StatusHoliday  Status = "Holiday"
	StatusLeave    Status = "Leave"
)

// Valid reports whether s is one of the five known tags.
func (s Status) Valid() bool {
	switch s {
	case StatusBlank, StatusSaturday, StatusSunday, StatusHoliday, StatusLeave:
		return true
	}
	return false
}

func (s Status) IsWeekend() bool { return s == StatusSaturday || s == StatusSunday }

// =============================================================================
// DAY ROWS
// =============================================================================

// Day is one day of a month as shown to the employee.
type Day struct {
	DayOfMonth  int    `json:"day_of_month"`
	Description string `json:"work_description"`
	Status      Status `json:"status"`
}

// DayRecord is a stored day row. (EmployeeID, Month, DayOfMonth) is unique.
type DayRecord struct {
	EmployeeID string
	Month      Month
	Day
}

func (r DayRecord) Date() time.Time { return r.Month.Date(r.DayOfMonth) }

// Days strips the owner and month from a set of records.
func Days(records []DayRecord) []Day {
	days := make([]Day, len(records))
	for i, r := range records {
		days[i] = r.Day
	}
	return days
}

// Records binds days to an employee and month.
func Records(employeeID string, month Month, days []Day) []DayRecord {
	records := make([]DayRecord, len(days))
	for i, d := range days {
		records[i] = DayRecord{EmployeeID: employeeID, Month: month, Day: d}
	}
	return records
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// Employee is a roster entry. ID is the external employee identifier
// that leave sheets and the UI refer to.
type Employee struct {
	ID            string    `json:"id"`
	HRCode        string    `json:"hr_code,omitempty"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	StartDate     time.Time `json:"start_date"`
	Level         string    `json:"level,omitempty"`
	Team          string    `json:"team,omitempty"`
	Department    string    `json:"department,omitempty"`
	Manager       string    `json:"manager,omitempty"`
	ProjectNumber string    `json:"project_number,omitempty"`
	ProjectCode   string    `json:"project_code,omitempty"`
	ProjectName   string    `json:"project_name,omitempty"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Validate checks the fields a roster row must carry.
func (e Employee) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return &ValidationError{Field: "indxx_id", Message: "employee id is required"}
	}
	if strings.TrimSpace(e.FirstName) == "" {
		return &ValidationError{Field: "first_name", Message: "first name is required"}
	}
	return nil
}

// RosterRow is one line of a roster file. Line is the 1-based source line;
// Err is set when the line could not be parsed.
type RosterRow struct {
	Line     int
	Employee Employee
	Err      *ValidationError
}

// EmployeeFilter narrows ListEmployees. Empty slices match everything.
type EmployeeFilter struct {
	ProjectCodes []string
	ProjectNames []string
}

func (f EmployeeFilter) Matches(e Employee) bool {
	return matchAny(f.ProjectCodes, e.ProjectCode) && matchAny(f.ProjectNames, e.ProjectName)
}

func matchAny(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// =============================================================================
// LEAVE ENTRIES
// =============================================================================

// LeaveCompOff is the leave type of compensatory days off.
const LeaveCompOff = "Comp Off"

// Transaction states seen on leave entries.
const (
	StateApplied = "APPLIED"
	StateAvailed = "AVAILED"
	StateSettled = "SETTLED"
)

// IsSettled reports whether a transaction state means the leave was taken.
func IsSettled(state string) bool {
	s := strings.ToUpper(strings.TrimSpace(state))
	return s == StateAvailed || s == StateSettled
}

// LeaveEntry is one day of leave for one employee.
type LeaveEntry struct {
	EmployeeID       string    `json:"employee_id"`
	Status           string    `json:"leave_status"`
	Date             time.Time `json:"leave_date"`
	TransactionState string    `json:"transaction_status"`
}

func (l LeaveEntry) IsCompOff() bool { return l.Status == LeaveCompOff }
func (l LeaveEntry) Settled() bool   { return IsSettled(l.TransactionState) }

// LeaveKind selects regular leave, comp-off, or both.
type LeaveKind int

const (
	LeaveAll LeaveKind = iota
	LeaveRegular
	LeaveCompOffOnly
)

// LeaveFilter narrows LoadLeaves. Zero From/To are unbounded.
type LeaveFilter struct {
	EmployeeID string
	From       time.Time
	To         time.Time
	Kind       LeaveKind
}

// MonthLeaves is the filter for every entry of a kind in a month.
func MonthLeaves(month Month, kind LeaveKind) LeaveFilter {
	return LeaveFilter{From: month.Start(), To: month.End(), Kind: kind}
}

func (f LeaveFilter) Matches(l LeaveEntry) bool {
	if f.EmployeeID != "" && l.EmployeeID != f.EmployeeID {
		return false
	}
	d := DateOf(l.Date)
	if !f.From.IsZero() && d.Before(DateOf(f.From)) {
		return false
	}
	if !f.To.IsZero() && d.After(DateOf(f.To)) {
		return false
	}
	switch f.Kind {
	case LeaveRegular:
		return !l.IsCompOff()
	case LeaveCompOffOnly:
		return l.IsCompOff()
	}
	return true
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is a company holiday. Dates are unique.
type Holiday struct {
	Date time.Time `json:"holiday_date"`
	Name string    `json:"holiday"`
}

// =============================================================================
// FREEZE WINDOW
// =============================================================================

type FreezeState string

const (
	Frozen   FreezeState = "frozen"
	Unfrozen FreezeState = "unfrozen"
)

func (s FreezeState) Valid() bool { return s == Frozen || s == Unfrozen }

// FreezeWindow is one administrator action on the edit window. The latest
// one by At is authoritative.
type FreezeWindow struct {
	ID    string      `json:"id"`
	State FreezeState `json:"status"`
	SetBy string      `json:"set_by"`
	At    time.Time   `json:"time_stamp"`
}

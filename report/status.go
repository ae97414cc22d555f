// Package report builds read-only views over stored timesheets: the fill
// status dashboard and the per-project spreadsheet export.
package report

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/timesheet-engine/timesheet"
)

// Source is the read side of timesheet.Store that reports need.
type Source interface {
	ListEmployees(ctx context.Context, filter timesheet.EmployeeFilter) ([]timesheet.Employee, error)
	LoadDays(ctx context.Context, employeeID string, month timesheet.Month) ([]timesheet.DayRecord, error)
}

// =============================================================================
// FILL STATUS
// =============================================================================

type Progress string

const (
	NotStarted Progress = "not_started"
	InProgress Progress = "in_progress"
	Complete   Progress = "complete"
)

// ProgressOf classifies a month: no rows is not started, a working day with
// no description is in progress, anything else is complete.
func ProgressOf(rows []timesheet.DayRecord) Progress {
	if len(rows) == 0 {
		return NotStarted
	}
	for _, r := range rows {
		if r.Status == timesheet.StatusBlank && r.Description == "" {
			return InProgress
		}
	}
	return Complete
}

type EmployeeStatus struct {
	EmployeeID  string   `json:"employee_id"`
	Name        string   `json:"name"`
	ProjectName string   `json:"project_name"`
	Progress    Progress `json:"progress"`
}

// StatusReport groups employees by how far their month is filled in.
type StatusReport struct {
	Month      timesheet.Month  `json:"month"`
	Complete   []EmployeeStatus `json:"complete"`
	InProgress []EmployeeStatus `json:"in_progress"`
	NotStarted []EmployeeStatus `json:"not_started"`
}

// Status reports every employee on the given projects. No project names
// means all employees.
func Status(ctx context.Context, src Source, month timesheet.Month, projectNames []string) (*StatusReport, error) {
	employees, err := src.ListEmployees(ctx, timesheet.EmployeeFilter{ProjectNames: projectNames})
	if err != nil {
		return nil, err
	}
	report := &StatusReport{Month: month}
	for _, e := range employees {
		rows, err := src.LoadDays(ctx, e.ID, month)
		if err != nil {
			return nil, err
		}
		st := EmployeeStatus{EmployeeID: e.ID, Name: e.FullName(), ProjectName: e.ProjectName, Progress: ProgressOf(rows)}
		switch st.Progress {
		case Complete:
			report.Complete = append(report.Complete, st)
		case InProgress:
			report.InProgress = append(report.InProgress, st)
		default:
			report.NotStarted = append(report.NotStarted, st)
		}
	}
	return report, nil
}

// =============================================================================
// MONTH FIGURES
// =============================================================================

// HoursPerDay is the booked time of one working day.
var HoursPerDay = decimal.NewFromInt(8)

// Figures are the billing numbers of one employee's month.
type Figures struct {
	WorkingDays int
	LeaveDays   []int
	Hours       decimal.Decimal
	// Utilisation is working / (working + leave), zero for an empty month.
	Utilisation decimal.Decimal
}

func (f Figures) BillableDays() int { return f.WorkingDays + len(f.LeaveDays) }

// Summarize counts blank days as working days and collects leave days.
func Summarize(days []timesheet.Day) Figures {
	var f Figures
	for _, d := range days {
		switch d.Status {
		case timesheet.StatusBlank:
			f.WorkingDays++
		case timesheet.StatusLeave:
			f.LeaveDays = append(f.LeaveDays, d.DayOfMonth)
		}
	}
	f.Hours = HoursPerDay.Mul(decimal.NewFromInt(int64(f.WorkingDays)))
	f.Utilisation = decimal.Zero
	if total := f.BillableDays(); total > 0 {
		f.Utilisation = decimal.NewFromInt(int64(f.WorkingDays)).DivRound(decimal.NewFromInt(int64(total)), 4)
	}
	return f
}

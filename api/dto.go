/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Day rows, reports
  and freeze windows already carry JSON tags in package timesheet and are
  returned as they are; this file holds the shapes that differ from the
  domain types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID            string `json:"indxx_id"`
	HRCode        string `json:"hr_code"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Name          string `json:"name"`
	StartDate     string `json:"start_date,omitempty"`
	Level         string `json:"level"`
	Team          string `json:"team"`
	Department    string `json:"department"`
	Manager       string `json:"manager"`
	ProjectNumber string `json:"project_number"`
	ProjectCode   string `json:"project_code"`
	ProjectName   string `json:"project_name"`
}

// TimesheetDTO is one employee's month.
type TimesheetDTO struct {
	EmployeeID string          `json:"employee_id"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Editable   bool            `json:"editable"`
	Days       []timesheet.Day `json:"days"`
}

// SaveTimesheetRequest edits days of a month. Month and year default to
// the current month.
type SaveTimesheetRequest struct {
	Year  int                   `json:"year,omitempty"`
	Month int                   `json:"month,omitempty"`
	Days  []timesheet.DayUpdate `json:"days"`
}

// CompOffRequest records comp-off days for one employee.
type CompOffRequest struct {
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	TransactionStatus string `json:"transaction_status"`
}

// FreezeRequest sets the edit window. By is the acting employee's id.
type FreezeRequest struct {
	Freeze bool   `json:"freeze"`
	By     string `json:"by"`
}

// StatusReportRequest selects the month and projects of a status report.
type StatusReportRequest struct {
	Year         int      `json:"year"`
	Month        int      `json:"month"`
	ProjectNames []string `json:"project_names"`
}

// ExportRequest selects the month and project codes of an export.
type ExportRequest struct {
	Year         int      `json:"year"`
	Month        int      `json:"month"`
	ProjectCodes []string `json:"project_codes"`
}

// LeaveUploadDTO is the reconciliation report plus the sheet rows that were
// not leave at all.
type LeaveUploadDTO struct {
	*timesheet.LeaveReport
	DroppedRows int `json:"dropped_rows"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e timesheet.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:            e.ID,
		HRCode:        e.HRCode,
		FirstName:     e.FirstName,
		LastName:      e.LastName,
		Name:          e.FullName(),
		Level:         e.Level,
		Team:          e.Team,
		Department:    e.Department,
		Manager:       e.Manager,
		ProjectNumber: e.ProjectNumber,
		ProjectCode:   e.ProjectCode,
		ProjectName:   e.ProjectName,
	}
	if !e.StartDate.IsZero() {
		dto.StartDate = e.StartDate.Format(timesheet.DateLayout)
	}
	return dto
}

/*
handlers.go - HTTP request handlers for the timesheet API

PURPOSE:
  Translates HTTP requests into timesheet.Service calls and formats the
  results as JSON. Handlers hold no business logic: parsing of uploads
  lives in package ingest, reconciliation in package timesheet and the
  export workbooks in package report.

ERROR MAPPING:
  timesheet.ValidationError  -> 400
  timesheet.PermissionError  -> 403
  timesheet.NotFoundError    -> 404
  timesheet.ConflictError    -> 409
  anything else              -> 500

UPLOADS:
  Roster, leave and holiday sheets arrive as multipart form files under
  the "file" field. The extension (.csv or .xlsx) picks the reader.

SEE ALSO:
  - server.go: Route definitions
  - dto.go: Request/response types
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/ingest"
	"github.com/warp/timesheet-engine/report"
	"github.com/warp/timesheet-engine/timesheet"
)

// defaultMaxUpload caps multipart bodies when the handler is not configured.
const defaultMaxUpload = 10 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	service  *timesheet.Service
	reports  report.Source
	exporter *report.Exporter
	log      logrus.FieldLogger

	// MaxUploadBytes caps multipart uploads.
	MaxUploadBytes int64
}

// NewHandler creates a new Handler. reports is usually the same store the
// service writes to.
func NewHandler(service *timesheet.Service, reports report.Source, exporter *report.Exporter, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		service:        service,
		reports:        reports,
		exporter:       exporter,
		log:            log,
		MaxUploadBytes: defaultMaxUpload,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns employees, optionally narrowed by project.
// GET /api/employees?project_code=X&project_name=Y
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := timesheet.EmployeeFilter{
		ProjectCodes: q["project_code"],
		ProjectNames: q["project_name"],
	}
	employees, err := h.service.Employees(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list employees")
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns one employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Employee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get employee")
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

// UploadEmployees imports a roster sheet. Bad rows are skipped and reported.
// POST /api/employees/upload
func (h *Handler) UploadEmployees(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	roster, err := ingest.ParseRoster(rows)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to parse roster")
		return
	}
	result, err := h.service.ImportEmployees(r.Context(), roster)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to import employees")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// GetTimesheet returns an employee's month, generating the current month on
// first access.
// GET /api/employees/{id}/timesheet?year=2024&month=1
func (h *Handler) GetTimesheet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	month, err := h.monthFromQuery(r)
	if err != nil {
		h.writeServiceError(w, r, err, "Invalid month")
		return
	}

	days, err := h.service.Month(r.Context(), id, month)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load timesheet")
		return
	}
	editable, err := h.service.Editable(r.Context(), month)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load freeze state")
		return
	}
	writeJSON(w, http.StatusOK, TimesheetDTO{
		EmployeeID: id,
		Year:       month.Year,
		Month:      int(month.Month),
		Editable:   editable,
		Days:       days,
	})
}

// SaveTimesheet writes day descriptions for the open month.
// PUT /api/employees/{id}/timesheet
func (h *Handler) SaveTimesheet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SaveTimesheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month := h.service.CurrentMonth()
	if req.Year != 0 || req.Month != 0 {
		m, err := timesheet.NewMonth(req.Year, time.Month(req.Month))
		if err != nil {
			h.writeServiceError(w, r, err, "Invalid month")
			return
		}
		month = m
	}

	days, err := h.service.SaveDays(r.Context(), id, month, req.Days)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to save timesheet")
		return
	}
	writeJSON(w, http.StatusOK, TimesheetDTO{
		EmployeeID: id,
		Year:       month.Year,
		Month:      int(month.Month),
		Editable:   true,
		Days:       days,
	})
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// UploadLeaves reconciles a leave sheet against the month's stored leave.
// POST /api/leaves/upload?year=2024&month=1
func (h *Handler) UploadLeaves(w http.ResponseWriter, r *http.Request) {
	month, err := h.monthFromQuery(r)
	if err != nil {
		h.writeServiceError(w, r, err, "Invalid month")
		return
	}
	rows, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	sheet, err := ingest.ParseLeaves(rows, month)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to parse leave sheet")
		return
	}

	result, err := h.service.ReconcileLeaves(r.Context(), month, sheet.Entries)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to reconcile leave")
		return
	}
	writeJSON(w, http.StatusOK, LeaveUploadDTO{LeaveReport: result, DroppedRows: sheet.Dropped})
}

// UpdateCompOff records comp-off days for one employee.
// POST /api/employees/{id}/comp-off
func (h *Handler) UpdateCompOff(w http.ResponseWriter, r *http.Request) {
	var req CompOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := timesheet.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	to, err := timesheet.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.service.UpdateCompOff(r.Context(), chi.URLParam(r, "id"), from, to, req.TransactionStatus)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to update comp-off")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListCompOffs returns every comp-off entry in a month.
// GET /api/comp-off/{year}/{month}
func (h *Handler) ListCompOffs(w http.ResponseWriter, r *http.Request) {
	month, err := monthFromParams(chi.URLParam(r, "year"), chi.URLParam(r, "month"))
	if err != nil {
		h.writeServiceError(w, r, err, "Invalid month")
		return
	}
	records, err := h.service.CompOffs(r.Context(), month)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list comp-off")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns holidays of a year, the current one by default.
// GET /api/holidays?year=2024
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.service.CurrentMonth().Year
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	holidays, err := h.service.Holidays(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list holidays")
		return
	}
	writeJSON(w, http.StatusOK, holidays)
}

// UploadHolidays replaces the holiday calendar from the current month on.
// POST /api/holidays/upload
func (h *Handler) UploadHolidays(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	holidays, err := ingest.ParseHolidays(rows)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to parse holiday sheet")
		return
	}
	result, err := h.service.ReconcileHolidays(r.Context(), holidays)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to reconcile holidays")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// FREEZE HANDLERS
// =============================================================================

// GetFreeze returns the freeze state in force.
// GET /api/freeze
func (h *Handler) GetFreeze(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.FreezeStatus(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load freeze state")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// SetFreeze freezes or unfreezes the current month.
// POST /api/freeze
func (h *Handler) SetFreeze(w http.ResponseWriter, r *http.Request) {
	var req FreezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	state := timesheet.Unfrozen
	if req.Freeze {
		state = timesheet.Frozen
	}
	window, err := h.service.SetFreeze(r.Context(), state, req.By)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to set freeze state")
		return
	}
	writeJSON(w, http.StatusCreated, window)
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjectCodes returns the distinct project codes on the roster.
// GET /api/projects/codes
func (h *Handler) ListProjectCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.ProjectCodes(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list project codes")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(codes))
}

// ListProjectNames returns the distinct project names on the roster.
// GET /api/projects/names
func (h *Handler) ListProjectNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ProjectNames(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list project names")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(names))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// StatusReport groups employees by fill progress for a month.
// POST /api/reports/status
func (h *Handler) StatusReport(w http.ResponseWriter, r *http.Request) {
	var req StatusReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := timesheet.NewMonth(req.Year, time.Month(req.Month))
	if err != nil {
		h.writeServiceError(w, r, err, "Invalid month")
		return
	}
	result, err := report.Status(r.Context(), h.reports, month, req.ProjectNames)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to build status report")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Export streams a zip of per-project workbooks. The X-Status-List header
// carries a JSON array naming employees who had no timesheet.
// POST /api/reports/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	month, err := timesheet.NewMonth(req.Year, time.Month(req.Month))
	if err != nil {
		h.writeServiceError(w, r, err, "Invalid month")
		return
	}

	export, err := h.exporter.Export(r.Context(), month, req.ProjectCodes)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to export timesheets")
		return
	}
	statusList, err := json.Marshal(export.StatusList())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode status list", err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "timesheets_"+month.String()+".zip"))
	w.Header().Set("X-Status-List", string(statusList))
	w.Header().Set("Access-Control-Expose-Headers", "X-Status-List")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Archive)
}

// =============================================================================
// HELPERS
// =============================================================================

// readUpload reads the "file" form field into rows. It writes the error
// response itself and reports whether the caller should go on.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([][]string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return nil, false
	}
	defer file.Close()

	format, err := ingest.FormatOf(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unsupported file type", err)
		return nil, false
	}
	rows, err := ingest.ReadRows(file, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file", err)
		return nil, false
	}
	return rows, true
}

// monthFromQuery reads ?year=&month=, defaulting to the current month when
// both are absent.
func (h *Handler) monthFromQuery(r *http.Request) (timesheet.Month, error) {
	q := r.URL.Query()
	if q.Get("year") == "" && q.Get("month") == "" {
		return h.service.CurrentMonth(), nil
	}
	return monthFromParams(q.Get("year"), q.Get("month"))
}

func monthFromParams(year, month string) (timesheet.Month, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return timesheet.Month{}, &timesheet.ValidationError{Field: "year", Message: fmt.Sprintf("invalid year %q", year)}
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return timesheet.Month{}, &timesheet.ValidationError{Field: "month", Message: fmt.Sprintf("invalid month %q", month)}
	}
	return timesheet.NewMonth(y, time.Month(m))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeServiceError maps domain errors to status codes. Unexpected errors
// are logged; the client gets the message only.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var conflict *timesheet.ConflictError
	switch {
	case timesheet.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case timesheet.IsPermissionDenied(err):
		writeError(w, http.StatusForbidden, message, err)
	case timesheet.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error(message)
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response. Validation errors are returned as
// structured details so clients can point at the bad row.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	var verr *timesheet.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Details = verr
	case err != nil:
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

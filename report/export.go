package report

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/timesheet"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// EXPORTER - Per-project timesheet workbooks, zipped
// =============================================================================

// Exporter builds the monthly export. Each project code yields a timesheet
// workbook (summary plus one sheet per employee) and a roster workbook.
type Exporter struct {
	src     Source
	workers int
	log     logrus.FieldLogger
}

type ExportOption func(*Exporter)

// WithWorkers bounds how many projects are built at once.
func WithWorkers(n int) ExportOption {
	return func(x *Exporter) {
		if n > 0 {
			x.workers = n
		}
	}
}

func WithExportLogger(l logrus.FieldLogger) ExportOption {
	return func(x *Exporter) { x.log = l }
}

func NewExporter(src Source, opts ...ExportOption) *Exporter {
	x := &Exporter{src: src, workers: 4, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Export is a finished archive and the employees who had no timesheet.
type Export struct {
	Archive []byte
	// Missing maps project code to names of employees with no rows.
	Missing map[string][]string
}

// StatusList renders Missing the way the download page shows it.
func (e *Export) StatusList() []string {
	if len(e.Missing) == 0 {
		return []string{"Generated successfully"}
	}
	codes := make([]string, 0, len(e.Missing))
	for code := range e.Missing {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]string, len(codes))
	for i, code := range codes {
		out[i] = fmt.Sprintf("%s: %s have not filled the timesheet", code, strings.Join(e.Missing[code], ", "))
	}
	return out
}

type projectFiles struct {
	code      string
	timesheet []byte
	roster    []byte
	missing   []string
}

// Export builds workbooks for every project code concurrently and zips them
// under one directory per code.
func (x *Exporter) Export(ctx context.Context, month timesheet.Month, projectCodes []string) (*Export, error) {
	if len(projectCodes) == 0 {
		return nil, &timesheet.ValidationError{Field: "project_code", Message: "at least one project code is required"}
	}

	projectCodes = distinct(projectCodes)
	results := make([]projectFiles, len(projectCodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)
	for i, code := range projectCodes {
		g.Go(func() error {
			files, err := x.buildProject(gctx, month, code)
			if err != nil {
				return fmt.Errorf("project %s: %w", code, err)
			}
			results[i] = *files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	out := &Export{Missing: make(map[string][]string)}
	for _, r := range results {
		if err := addFile(zw, r.code+"/Timesheet_"+r.code+".xlsx", r.timesheet); err != nil {
			return nil, err
		}
		if err := addFile(zw, r.code+"/Roster_"+r.code+".xlsx", r.roster); err != nil {
			return nil, err
		}
		if len(r.missing) > 0 {
			out.Missing[r.code] = r.missing
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	out.Archive = buf.Bytes()

	x.log.WithFields(logrus.Fields{
		"month":    month.String(),
		"projects": len(projectCodes),
		"bytes":    len(out.Archive),
	}).Info("timesheet export built")
	return out, nil
}

func addFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

// distinct drops repeated codes, keeping first-seen order.
func distinct(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (x *Exporter) buildProject(ctx context.Context, month timesheet.Month, code string) (*projectFiles, error) {
	employees, err := x.src.ListEmployees(ctx, timesheet.EmployeeFilter{ProjectCodes: []string{code}})
	if err != nil {
		return nil, err
	}

	sheets := make([]employeeSheet, 0, len(employees))
	var missing []string
	for _, e := range employees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := x.src.LoadDays(ctx, e.ID, month)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			missing = append(missing, e.FullName())
		}
		days := timesheet.Days(rows)
		sheets = append(sheets, employeeSheet{employee: e, days: days, figures: Summarize(days)})
	}

	ts, err := timesheetWorkbook(month, code, sheets)
	if err != nil {
		return nil, err
	}
	roster, err := rosterWorkbook(code, sheets)
	if err != nil {
		return nil, err
	}
	return &projectFiles{code: code, timesheet: ts, roster: roster, missing: missing}, nil
}

// =============================================================================
// WORKBOOK LAYOUT
// =============================================================================

type employeeSheet struct {
	employee timesheet.Employee
	days     []timesheet.Day
	figures  Figures
}

const (
	summaryHeaderRow = 8
	dayHeaderRow     = 9
	workIn           = "10:00"
	workOut          = "19:00"
	workBreak        = "0:30"
)

// sheetWriter records the first error so cell writes can be chained.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(w.sheet, cell, v)
}

func (w *sheetWriter) row(row int, values ...any) {
	for i, v := range values {
		w.set(i+1, row, v)
	}
}

func (w *sheetWriter) style(col1, row1, col2, row2, styleID int) {
	if w.err != nil {
		return
	}
	from, err := excelize.CoordinatesToCellName(col1, row1)
	if err != nil {
		w.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(col2, row2)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, from, to, styleID)
}

type styles struct {
	header  int
	percent int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return s, err
	}
	s.percent, err = f.NewStyle(&excelize.Style{NumFmt: 10})
	return s, err
}

func monthTitle(m timesheet.Month) string {
	return fmt.Sprintf("%s, %d", m.Month, m.Year)
}

// timesheetWorkbook lays out the Summary sheet and one sheet per employee.
func timesheetWorkbook(month timesheet.Month, code string, sheets []employeeSheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return nil, err
	}

	sum := &sheetWriter{f: f, sheet: "Summary"}
	sum.set(1, 1, "Timesheet Summary")
	sum.set(1, 3, "Month")
	sum.set(2, 3, monthTitle(month))
	sum.set(1, 4, "Project Code")
	sum.set(2, 4, code)
	if len(sheets) > 0 {
		sum.set(1, 5, "Project")
		sum.set(2, 5, sheets[0].employee.ProjectName)
	}
	sum.row(summaryHeaderRow, "No", "HR Code", "Name", "Hours", "Billable Days", "Working Days", "Utilisation", "Leave Days", "Remarks")
	sum.style(1, summaryHeaderRow, 9, summaryHeaderRow, st.header)

	used := map[string]bool{"Summary": true}
	for i, s := range sheets {
		r := summaryHeaderRow + 1 + i
		e := s.employee
		name := sheetName(e, used)
		fig := s.figures
		if len(s.days) == 0 {
			sum.row(r, i+1, e.HRCode, e.FullName(), "-", "-", "-", "-", "-", "timesheet not filled")
			continue
		}
		sum.row(r, i+1, e.HRCode, e.FullName(),
			fig.Hours.InexactFloat64(), fig.BillableDays(), fig.WorkingDays,
			fig.Utilisation.InexactFloat64(), len(fig.LeaveDays), s.days[0].Description)
		sum.style(7, r, 7, r, st.percent)

		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
		ws := &sheetWriter{f: f, sheet: name}
		writeEmployeeSheet(ws, month, s, st)
		if ws.err != nil {
			return nil, ws.err
		}
	}
	if sum.err != nil {
		return nil, sum.err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEmployeeSheet(ws *sheetWriter, month timesheet.Month, s employeeSheet, st styles) {
	e := s.employee
	ws.set(1, 1, "Timesheet")
	ws.row(2, "Month", monthTitle(month))
	ws.row(3, "Name", e.FullName())
	ws.row(4, "Project Number", e.ProjectNumber)
	ws.row(5, "Manager", e.Manager)
	ws.row(6, "Department", e.Department)
	ws.row(7, "Project", e.ProjectName)

	ws.row(dayHeaderRow, "Day", "Date", "IN", "OUT", "Break", "Hours", "Working Day", "Status", "Description")
	ws.style(1, dayHeaderRow, 9, dayHeaderRow, st.header)

	for i, d := range s.days {
		r := dayHeaderRow + 1 + i
		date := month.Date(d.DayOfMonth)
		status := string(d.Status)
		if d.Status.IsWeekend() {
			status = ""
		}
		if d.Status == timesheet.StatusBlank {
			ws.row(r, d.DayOfMonth, date.Format("Mon 02-Jan"), workIn, workOut, workBreak,
				HoursPerDay.InexactFloat64(), 1, status, d.Description)
			continue
		}
		ws.row(r, d.DayOfMonth, date.Format("Mon 02-Jan"), "", "", "", "", 0, status, d.Description)
	}

	total := dayHeaderRow + 1 + len(s.days) + 1
	ws.set(1, total, "Total")
	ws.set(6, total, s.figures.Hours.InexactFloat64())
	ws.set(7, total, s.figures.WorkingDays)
	ws.set(1, total+1, "Leave Days")
	ws.set(7, total+1, len(s.figures.LeaveDays))
}

// sheetName picks a unique, valid worksheet name for an employee.
func sheetName(e timesheet.Employee, used map[string]bool) string {
	base := e.HRCode
	if base == "" {
		base = e.ID
	}
	base = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, base)
	if len(base) > 28 {
		base = base[:28]
	}
	name := base
	for n := 2; used[name]; n++ {
		name = base + "_" + strconv.Itoa(n)
	}
	used[name] = true
	return name
}

// LeaveLabel renders leave days as "-", "1 Day (3)" or "2 Days (3, 4)".
func LeaveLabel(days []int) string {
	switch len(days) {
	case 0:
		return "-"
	case 1:
		return fmt.Sprintf("1 Day (%d)", days[0])
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("%d Days (%s)", len(days), strings.Join(parts, ", "))
}

// rosterWorkbook lists the project's employees with their leave days.
func rosterWorkbook(code string, sheets []employeeSheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	name := sheetName(timesheet.Employee{ID: code}, map[string]bool{})
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return nil, err
	}

	ws := &sheetWriter{f: f, sheet: name}
	if len(sheets) > 0 {
		ws.set(1, 2, sheets[0].employee.Team)
	}
	ws.row(4, "No", "First Name", "Last Name", "Name", "HR Code", "Team", "Start Date", "Level", "Project Code", "Leave")
	ws.style(1, 4, 10, 4, st.header)
	for i, s := range sheets {
		e := s.employee
		start := ""
		if !e.StartDate.IsZero() {
			start = e.StartDate.Format(timesheet.DateLayout)
		}
		ws.row(5+i, i+1, e.FirstName, e.LastName, e.FullName(), e.HRCode, e.Team, start, e.Level, e.ProjectCode, LeaveLabel(s.figures.LeaveDays))
	}
	if ws.err != nil {
		return nil, ws.err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

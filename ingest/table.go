/*
Package ingest turns uploaded master-data files into timesheet records.

PURPOSE:
  Reads the three fixed layouts HR hands over (employee roster, leave
  sheet, holiday sheet) from CSV or from the first sheet of an XLSX
  workbook. Parsing stops at records; reconciliation is the Service's job.

LAYOUTS:
  Roster:    indxx_id, hr_code, first_name, last_name, start_date, level,
             team, department, manager, project_number, project_code,
             project_name
  Leaves:    preamble rows, then a header row containing "Employee No";
             Leave/Holiday, From Date, To Date, Number of Days,
             Transaction Status
  Holidays:  holiday_date (DD-MM-YYYY), holiday

  Header names are matched case-insensitively; column order is free.

SEE ALSO:
  - timesheet/service.go: ImportEmployees, ReconcileLeaves, ReconcileHolidays
*/
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Format is the container of an uploaded table.
type Format int

const (
	CSV Format = iota
	XLSX
)

// FormatOf picks the format from a file name's extension.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return CSV, nil
	case ".xlsx", ".xlsm":
		return XLSX, nil
	}
	return 0, fmt.Errorf("unsupported file type %q: want .csv or .xlsx", filepath.Ext(filename))
}

// ReadRows reads every row of a table. XLSX cells are read raw so dates
// arrive as Excel serial numbers rather than locale-formatted text.
func ReadRows(r io.Reader, format Format) ([][]string, error) {
	switch format {
	case XLSX:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
		}
		return rows, nil
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		return rows, nil
	}
}

// =============================================================================
// HEADER LOOKUP
// =============================================================================

type header map[string]int

func newHeader(row []string) header {
	h := make(header, len(row))
	for i, name := range row {
		key := normalize(name)
		if _, dup := h[key]; !dup && key != "" {
			h[key] = i
		}
	}
	return h
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// require reports the first missing column.
func (h header) require(names ...string) error {
	for _, n := range names {
		if _, ok := h[normalize(n)]; !ok {
			return fmt.Errorf("missing column %q", n)
		}
	}
	return nil
}

// get returns the trimmed cell under name, or "" when the row is short.
func (h header) get(row []string, name string) string {
	i, ok := h[normalize(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// DATES
// =============================================================================

// parseDate accepts the given text layouts and Excel serial numbers.
func parseDate(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

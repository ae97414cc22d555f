package ingest_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/ingest"
	"github.com/warp/timesheet-engine/timesheet"
	"github.com/xuri/excelize/v2"
)

var jan2024 = timesheet.Month{Year: 2024, Month: time.January}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func csvRows(t *testing.T, text string) [][]string {
	t.Helper()
	rows, err := ingest.ReadRows(strings.NewReader(text), ingest.CSV)
	require.NoError(t, err)
	return rows
}

// =============================================================================
// TABLE READING
// =============================================================================

func TestFormatOf(t *testing.T) {
	f, err := ingest.FormatOf("roster.CSV")
	require.NoError(t, err)
	assert.Equal(t, ingest.CSV, f)

	f, err = ingest.FormatOf("/tmp/leave report.xlsx")
	require.NoError(t, err)
	assert.Equal(t, ingest.XLSX, f)

	_, err = ingest.FormatOf("holidays.pdf")
	assert.Error(t, err)
}

func TestReadRows_CSVStripsBOM(t *testing.T) {
	rows := csvRows(t, "\xef\xbb\xbfholiday_date,holiday\n26-01-2024, Republic Day\n")

	require.Len(t, rows, 2)
	assert.Equal(t, "holiday_date", rows[0][0])
	assert.Equal(t, "Republic Day", rows[1][1])
}

// =============================================================================
// ROSTER
// =============================================================================

func TestParseRoster(t *testing.T) {
	rows := csvRows(t, strings.Join([]string{
		"Indxx_ID,HR_Code,First_Name,Last_Name,Start_Date,Project_Code,Project_Name",
		"E1,HR1,Asha,Iyer,2022-04-01,P100,Indexing",
		",,,,,,",
		"E2,HR2,Ravi,Kumar,sometime,P200,Benchmarks",
		"E3,HR3,,Das,,P100,Indexing",
	}, "\n"))

	roster, err := ingest.ParseRoster(rows)

	require.NoError(t, err)
	require.Len(t, roster, 3, "blank lines are skipped")

	assert.Equal(t, 2, roster[0].Line)
	assert.Nil(t, roster[0].Err)
	assert.Equal(t, "Asha Iyer", roster[0].Employee.FullName())
	assert.Equal(t, date(2022, 4, 1), roster[0].Employee.StartDate)
	assert.Equal(t, "P100", roster[0].Employee.ProjectCode)

	assert.Equal(t, 4, roster[1].Line)
	require.NotNil(t, roster[1].Err)
	assert.Equal(t, "start_date", roster[1].Err.Field)

	// Missing first name is caught by validation, not parsing
	assert.Nil(t, roster[2].Err)
	assert.Error(t, roster[2].Employee.Validate())
}

func TestParseRoster_MissingColumn(t *testing.T) {
	_, err := ingest.ParseRoster(csvRows(t, "hr_code,last_name\nHR1,Iyer\n"))
	assert.True(t, timesheet.IsValidation(err))
}

// =============================================================================
// LEAVE SHEET
// =============================================================================

const leaveCSV = `Leave Transaction Report
Period: Jan 2024

Employee No,Employee Name,Leave/Holiday,From Date,To Date,Number of Days,Transaction Status
E1,Asha,Casual Leave,10-Jan-24,11-Jan-24,2,Availed
E1,Asha,Work from Home,12-Jan-24,12-Jan-24,1,Availed
E2,Ravi,Sick Leave,16-Jan-24,16-Jan-24,0.5,Availed
E2,Ravi,Privilege Leave,30-Jan-24,02-Feb-24,4,applied
`

func TestParseLeaves(t *testing.T) {
	// GIVEN: An HR export with a preamble, WFH and a half day
	rows := csvRows(t, leaveCSV)

	// WHEN: Parsing for January
	sheet, err := ingest.ParseLeaves(rows, jan2024)

	// THEN: Ranges explode to in-month days and the rest is dropped
	require.NoError(t, err)
	assert.Equal(t, 2, sheet.Dropped)
	assert.Equal(t, []timesheet.LeaveEntry{
		{EmployeeID: "E1", Status: "Casual Leave", Date: date(2024, 1, 10), TransactionState: "AVAILED"},
		{EmployeeID: "E1", Status: "Casual Leave", Date: date(2024, 1, 11), TransactionState: "AVAILED"},
		{EmployeeID: "E2", Status: "Privilege Leave", Date: date(2024, 1, 30), TransactionState: "APPLIED"},
		{EmployeeID: "E2", Status: "Privilege Leave", Date: date(2024, 1, 31), TransactionState: "APPLIED"},
	}, sheet.Entries)
}

func TestParseLeaves_Errors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field string
	}{
		{"no header", "a,b\n1,2\n", ""},
		{"bad date", "Employee No,Leave/Holiday,From Date,To Date,Transaction Status\nE1,Sick,tomorrow,10-Jan-24,Availed\n", "From Date"},
		{"reversed", "Employee No,Leave/Holiday,From Date,To Date,Transaction Status\nE1,Sick,12-Jan-24,10-Jan-24,Availed\n", "To Date"},
		{"no employee", "Employee No,Leave/Holiday,From Date,To Date,Transaction Status\n,Sick,10-Jan-24,10-Jan-24,Availed\n", "Employee No"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingest.ParseLeaves(csvRows(t, tt.text), jan2024)
			var verr *timesheet.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParseLeaves_XLSXSerialDates(t *testing.T) {
	// GIVEN: A workbook whose date cells hold real dates
	f := excelize.NewFile()
	t.Cleanup(func() { f.Close() })
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Employee No", "Leave/Holiday", "From Date", "To Date", "Transaction Status"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"E1", "Casual Leave", date(2024, 1, 10), date(2024, 1, 10), "Settled"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	// WHEN: Reading and parsing it
	rows, err := ingest.ReadRows(bytes.NewReader(buf.Bytes()), ingest.XLSX)
	require.NoError(t, err)
	sheet, err := ingest.ParseLeaves(rows, jan2024)

	// THEN: The serial numbers decode to the same date
	require.NoError(t, err)
	require.Len(t, sheet.Entries, 1)
	assert.Equal(t, date(2024, 1, 10), sheet.Entries[0].Date)
	assert.Equal(t, "SETTLED", sheet.Entries[0].TransactionState)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestParseHolidays(t *testing.T) {
	holidays, err := ingest.ParseHolidays(csvRows(t, "holiday_date,holiday\n15-01-2024,Pongal\n2024-01-26,Republic Day\n\n8-3-2024,Shivaratri\n"))

	require.NoError(t, err)
	assert.Equal(t, []timesheet.Holiday{
		{Date: date(2024, 1, 15), Name: "Pongal"},
		{Date: date(2024, 1, 26), Name: "Republic Day"},
		{Date: date(2024, 3, 8), Name: "Shivaratri"},
	}, holidays)
}

func TestParseHolidays_MissingName(t *testing.T) {
	_, err := ingest.ParseHolidays(csvRows(t, "holiday_date,holiday\n15-01-2024,\n"))

	var verr *timesheet.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Row)
	assert.Equal(t, "holiday", verr.Field)
}

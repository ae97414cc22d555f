package timesheet

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// =============================================================================
// MONTH - The unit a timesheet is kept in
// =============================================================================

// Month identifies one calendar month. The zero value is not a valid month.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// NewMonth validates year and month and returns the Month.
func NewMonth(year int, month time.Month) (Month, error) {
	if month < time.January || month > time.December {
		return Month{}, &ValidationError{Field: "month", Message: fmt.Sprintf("month %d out of range 1-12", int(month))}
	}
	if year < 1 || year > 9999 {
		return Month{}, &ValidationError{Field: "year", Message: fmt.Sprintf("year %d out of range", year)}
	}
	return Month{Year: year, Month: month}, nil
}

// MonthOf returns the month t falls in.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "2006-01".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, &ValidationError{Field: "month", Message: fmt.Sprintf("invalid month %q", s)}
	}
	return MonthOf(t), nil
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Date returns the given day of the month at midnight UTC.
func (m Month) Date(day int) time.Time {
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC)
}

func (m Month) Start() time.Time { return m.Date(1) }
func (m Month) End() time.Time   { return m.Date(m.Days()) }

// Dates returns every date of the month in order.
func (m Month) Dates() []time.Time {
	dates := make([]time.Time, 0, m.Days())
	for d := 1; d <= m.Days(); d++ {
		dates = append(dates, m.Date(d))
	}
	return dates
}

// Contains reports whether t falls within the month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a DateLayout date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q", s)}
	}
	return t, nil
}

// WeekendStatus returns the weekend tag for t, or StatusBlank on weekdays.
func WeekendStatus(t time.Time) Status {
	switch t.Weekday() {
	case time.Saturday:
		return StatusSaturday
	case time.Sunday:
		return StatusSunday
	default:
		return StatusBlank
	}
}

func IsWeekend(t time.Time) bool { return WeekendStatus(t) != StatusBlank }

// DatesBetween returns every date from..to inclusive. It returns nil when to is before from.
func DatesBetween(from, to time.Time) []time.Time {
	from, to = DateOf(from), DateOf(to)
	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

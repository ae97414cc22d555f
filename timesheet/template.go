package timesheet

import "time"

// =============================================================================
// TAGGING RULES
// =============================================================================

// TagRule returns the status a rule assigns to a date, or StatusBlank when
// the rule does not apply.
type TagRule func(date time.Time) Status

// WeekendRule tags Saturdays and Sundays by weekday.
func WeekendRule() TagRule {
	return WeekendStatus
}

// HolidayRule tags every date that has a holiday.
func HolidayRule(holidays []Holiday) TagRule {
	dates := make(map[time.Time]struct{}, len(holidays))
	for _, h := range holidays {
		dates[DateOf(h.Date)] = struct{}{}
	}
	return func(date time.Time) Status {
		if _, ok := dates[DateOf(date)]; ok {
			return StatusHoliday
		}
		return StatusBlank
	}
}

// LeaveRule tags every date with a settled leave entry. Entries still in
// the applied state are ignored.
func LeaveRule(leaves []LeaveEntry) TagRule {
	dates := make(map[time.Time]struct{}, len(leaves))
	for _, l := range leaves {
		if l.Settled() {
			dates[DateOf(l.Date)] = struct{}{}
		}
	}
	return func(date time.Time) Status {
		if _, ok := dates[DateOf(date)]; ok {
			return StatusLeave
		}
		return StatusBlank
	}
}

// DefaultRules is weekend, then holiday, then leave.
func DefaultRules(holidays []Holiday, leaves []LeaveEntry) []TagRule {
	return []TagRule{WeekendRule(), HolidayRule(holidays), LeaveRule(leaves)}
}

// =============================================================================
// TEMPLATE GENERATION
// =============================================================================

// ApplyRules produces one row per day of month. Each day takes the status of
// the first rule that tags it; days no rule tags stay blank.
func ApplyRules(month Month, rules ...TagRule) []Day {
	days := make([]Day, 0, month.Days())
	for _, date := range month.Dates() {
		day := Day{DayOfMonth: date.Day()}
		for _, rule := range rules {
			if day.Status != StatusBlank {
				break
			}
			day.Status = rule(date)
		}
		days = append(days, day)
	}
	return days
}

// GenerateTemplate builds a fresh month for one employee. leaves should be
// that employee's entries; holidays outside the month are ignored.
func GenerateTemplate(month Month, holidays []Holiday, leaves []LeaveEntry) []Day {
	return ApplyRules(month, DefaultRules(holidays, leaves)...)
}

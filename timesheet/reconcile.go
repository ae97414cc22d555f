/*
reconcile.go - Patching stored day rows when source data changes

PURPOSE:
  Leave and holiday sheets are re-uploaded whole. Rather than regenerate
  months (which would discard what employees typed), each upload is
  diffed against what is stored and only the affected days are patched.

DIFFS:
  Leave diff:    keyed by (employee, leave type, date, transaction state)
  Holiday diff:  keyed by date, current and future months only
  Comp-off plan: keyed by (employee, date); a changed state flips the day

TRANSITIONS:
  Every transition names the status it expects to find:

    mark leave      ""      -> "Leave"    (description cleared)
    clear leave     "Leave" -> ""
    mark holiday    ""      -> "Holiday"  (description kept)
    clear holiday   "Holiday" -> ""       (description kept)

  A day already at the target is left alone, so re-running a diff is a
  no-op. Weekend days are never touched. Any other status is a conflict:
  it is recorded on the Patch and the day is skipped.

SEE ALSO:
  - service.go: loads rows, runs a diff, saves Patch.Changed()
  - template.go: the first-read path these diffs keep in step with
*/
package timesheet

import (
	"sort"
	"strings"
	"time"
)

// =============================================================================
// PATCH - Working copy of the rows a diff may touch
// =============================================================================

type dayKey struct {
	employeeID string
	date       time.Time
}

// Patch holds day rows being reconciled and tracks which ones changed.
type Patch struct {
	rows      map[dayKey]DayRecord
	changed   map[dayKey]struct{}
	conflicts []ConflictError
}

func NewPatch(rows []DayRecord) *Patch {
	p := &Patch{
		rows:    make(map[dayKey]DayRecord, len(rows)),
		changed: make(map[dayKey]struct{}),
	}
	for _, r := range rows {
		p.rows[dayKey{r.EmployeeID, r.Date()}] = r
	}
	return p
}

// Get returns the current row for an employee and date.
func (p *Patch) Get(employeeID string, date time.Time) (DayRecord, bool) {
	r, ok := p.rows[dayKey{employeeID, DateOf(date)}]
	return r, ok
}

// Changed returns the rows whose status or description changed, ordered by
// employee then date.
func (p *Patch) Changed() []DayRecord {
	out := make([]DayRecord, 0, len(p.changed))
	for k := range p.changed {
		out = append(out, p.rows[k])
	}
	sortRecords(out)
	return out
}

// Conflicts returns the days that were skipped.
func (p *Patch) Conflicts() []ConflictError {
	return p.conflicts
}

func (p *Patch) put(r DayRecord) {
	k := dayKey{r.EmployeeID, r.Date()}
	p.rows[k] = r
	p.changed[k] = struct{}{}
}

func (p *Patch) conflict(r DayRecord, want Status) {
	p.conflicts = append(p.conflicts, ConflictError{
		EmployeeID: r.EmployeeID,
		Date:       r.Date(),
		Found:      r.Status,
		Want:       want,
	})
}

// transition moves a row from `from` to `to`. Rows that do not exist yet are
// skipped; the month template picks up the source data when it is generated.
func (p *Patch) transition(employeeID string, date time.Time, from, to Status, clearDescription bool) {
	r, ok := p.Get(employeeID, date)
	if !ok {
		return
	}
	switch {
	case r.Status == to:
		return
	case r.Status.IsWeekend():
		return
	case r.Status != from:
		p.conflict(r, to)
		return
	}
	r.Status = to
	if clearDescription {
		r.Description = ""
	}
	p.put(r)
}

func (p *Patch) markLeave(employeeID string, date time.Time) {
	p.transition(employeeID, date, StatusBlank, StatusLeave, true)
}

func (p *Patch) clearLeave(employeeID string, date time.Time) {
	p.transition(employeeID, date, StatusLeave, StatusBlank, false)
}

// markHoliday and clearHoliday apply to every loaded row on the date.
func (p *Patch) markHoliday(date time.Time) {
	for _, id := range p.employeesOn(date) {
		p.transition(id, date, StatusBlank, StatusHoliday, false)
	}
}

func (p *Patch) clearHoliday(date time.Time) {
	for _, id := range p.employeesOn(date) {
		p.transition(id, date, StatusHoliday, StatusBlank, false)
	}
}

func (p *Patch) employeesOn(date time.Time) []string {
	date = DateOf(date)
	var ids []string
	for k := range p.rows {
		if k.date.Equal(date) {
			ids = append(ids, k.employeeID)
		}
	}
	sort.Strings(ids)
	return ids
}

func sortRecords(rows []DayRecord) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EmployeeID != rows[j].EmployeeID {
			return rows[i].EmployeeID < rows[j].EmployeeID
		}
		return rows[i].Date().Before(rows[j].Date())
	})
}

// =============================================================================
// LEAVE DIFF
// =============================================================================

type leaveKey struct {
	employeeID string
	status     string
	date       time.Time
	state      string
}

func keyOf(l LeaveEntry) leaveKey {
	return leaveKey{
		employeeID: l.EmployeeID,
		status:     l.Status,
		date:       DateOf(l.Date),
		state:      strings.ToUpper(strings.TrimSpace(l.TransactionState)),
	}
}

// LeaveDiff splits two leave sets into entries only in the old set, only in
// the new set, and in both.
type LeaveDiff struct {
	Removed   []LeaveEntry
	Added     []LeaveEntry
	Unchanged []LeaveEntry
}

// DiffLeaves compares prev against next. Duplicate entries collapse to one.
func DiffLeaves(prev, next []LeaveEntry) LeaveDiff {
	oldSet := indexLeaves(prev)
	newSet := indexLeaves(next)

	var d LeaveDiff
	for k, l := range oldSet {
		if _, ok := newSet[k]; ok {
			d.Unchanged = append(d.Unchanged, l)
		} else {
			d.Removed = append(d.Removed, l)
		}
	}
	for k, l := range newSet {
		if _, ok := oldSet[k]; !ok {
			d.Added = append(d.Added, l)
		}
	}
	SortLeaves(d.Removed)
	SortLeaves(d.Added)
	SortLeaves(d.Unchanged)
	return d
}

func indexLeaves(entries []LeaveEntry) map[leaveKey]LeaveEntry {
	m := make(map[leaveKey]LeaveEntry, len(entries))
	for _, l := range entries {
		l.Date = DateOf(l.Date)
		m[keyOf(l)] = l
	}
	return m
}

// Inverse undoes d.
func (d LeaveDiff) Inverse() LeaveDiff {
	return LeaveDiff{Removed: d.Added, Added: d.Removed, Unchanged: d.Unchanged}
}

func (d LeaveDiff) Empty() bool { return len(d.Removed) == 0 && len(d.Added) == 0 }

// Employees returns the distinct employees with added or removed entries.
func (d LeaveDiff) Employees() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, set := range [][]LeaveEntry{d.Removed, d.Added} {
		for _, l := range set {
			if _, ok := seen[l.EmployeeID]; !ok {
				seen[l.EmployeeID] = struct{}{}
				ids = append(ids, l.EmployeeID)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// ApplyLeaveDiff clears leave on removed dates, then marks leave on added
// dates. A date in both sets (a state change) ends up as Leave. A removed
// entry leaves the day alone while another unchanged entry still covers it.
func ApplyLeaveDiff(p *Patch, d LeaveDiff) {
	covered := make(map[dayKey]struct{}, len(d.Unchanged))
	for _, l := range d.Unchanged {
		covered[dayKey{l.EmployeeID, DateOf(l.Date)}] = struct{}{}
	}
	for _, l := range d.Removed {
		if _, ok := covered[dayKey{l.EmployeeID, DateOf(l.Date)}]; ok {
			continue
		}
		p.clearLeave(l.EmployeeID, l.Date)
	}
	for _, l := range d.Added {
		p.markLeave(l.EmployeeID, l.Date)
	}
}

// SortLeaves orders entries by employee, date, leave type and state.
func SortLeaves(entries []LeaveEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Status != b.Status {
			return a.Status < b.Status
		}
		return a.TransactionState < b.TransactionState
	})
}

// =============================================================================
// COMP-OFF PLAN
// =============================================================================

// CompOffPlan is the outcome of matching incoming comp-off days against the
// stored ones for the same employee.
type CompOffPlan struct {
	// Insert holds days with no stored entry.
	Insert []LeaveEntry
	// Update holds days whose stored state differs; entries carry the new state.
	Update []LeaveEntry
	// Unchanged holds days whose state already matches.
	Unchanged []LeaveEntry
}

// PlanCompOff matches on (employee, date). Only the transaction state is
// compared; a day's status flips only when that state changes.
func PlanCompOff(existing, incoming []LeaveEntry) CompOffPlan {
	stored := make(map[dayKey]LeaveEntry, len(existing))
	for _, l := range existing {
		if l.IsCompOff() {
			stored[dayKey{l.EmployeeID, DateOf(l.Date)}] = l
		}
	}

	var plan CompOffPlan
	seen := make(map[dayKey]struct{}, len(incoming))
	for _, l := range incoming {
		l.Status = LeaveCompOff
		l.Date = DateOf(l.Date)
		k := dayKey{l.EmployeeID, l.Date}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		prev, ok := stored[k]
		switch {
		case !ok:
			plan.Insert = append(plan.Insert, l)
		case !strings.EqualFold(strings.TrimSpace(prev.TransactionState), strings.TrimSpace(l.TransactionState)):
			plan.Update = append(plan.Update, l)
		default:
			plan.Unchanged = append(plan.Unchanged, l)
		}
	}
	return plan
}

// ApplyCompOff flips days for changed comp-off entries: settled marks Leave,
// anything else clears it. New entries mark Leave only when already settled,
// matching GenerateTemplate, which tags settled leave only.
func ApplyCompOff(p *Patch, plan CompOffPlan) {
	for _, l := range plan.Update {
		if l.Settled() {
			p.markLeave(l.EmployeeID, l.Date)
		} else {
			p.clearLeave(l.EmployeeID, l.Date)
		}
	}
	for _, l := range plan.Insert {
		if l.Settled() {
			p.markLeave(l.EmployeeID, l.Date)
		}
	}
}

// =============================================================================
// HOLIDAY DIFF
// =============================================================================

// HolidayDiff compares two holiday calendars by date.
type HolidayDiff struct {
	Added   []Holiday
	Removed []Holiday
	// Renamed holds dates present in both with a new name. Day rows are not
	// affected; only the stored name changes.
	Renamed []Holiday
}

// DiffHolidays compares prev against next, ignoring every holiday before the
// start of today's month. A holiday moved to another date shows up as one
// removal and one addition.
func DiffHolidays(prev, next []Holiday, today time.Time) HolidayDiff {
	cutoff := MonthOf(today).Start()
	oldSet := indexHolidays(prev, cutoff)
	newSet := indexHolidays(next, cutoff)

	var d HolidayDiff
	for date, h := range oldSet {
		if _, ok := newSet[date]; !ok {
			d.Removed = append(d.Removed, h)
		}
	}
	for date, h := range newSet {
		old, ok := oldSet[date]
		switch {
		case !ok:
			d.Added = append(d.Added, h)
		case old.Name != h.Name:
			d.Renamed = append(d.Renamed, h)
		}
	}
	sortHolidays(d.Added)
	sortHolidays(d.Removed)
	sortHolidays(d.Renamed)
	return d
}

func indexHolidays(holidays []Holiday, cutoff time.Time) map[time.Time]Holiday {
	m := make(map[time.Time]Holiday, len(holidays))
	for _, h := range holidays {
		h.Date = DateOf(h.Date)
		if h.Date.Before(cutoff) {
			continue
		}
		m[h.Date] = h
	}
	return m
}

func (d HolidayDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Renamed) == 0
}

// Dates returns the added and removed dates, the ones whose rows may change.
func (d HolidayDiff) Dates() []time.Time {
	dates := make([]time.Time, 0, len(d.Added)+len(d.Removed))
	for _, h := range d.Removed {
		dates = append(dates, h.Date)
	}
	for _, h := range d.Added {
		dates = append(dates, h.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// ApplyHolidayDiff reverts removed holidays to blank, then tags added ones.
// Descriptions are kept on both paths.
func ApplyHolidayDiff(p *Patch, d HolidayDiff) {
	for _, h := range d.Removed {
		p.clearHoliday(h.Date)
	}
	for _, h := range d.Added {
		p.markHoliday(h.Date)
	}
}

func sortHolidays(hs []Holiday) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
}

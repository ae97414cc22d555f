/*
service.go - Timesheet operations invoked by the API and the CLI

PURPOSE:
  The Service is the only entry point that mutates day rows. Every
  multi-row write runs inside Store.WithTx so a failed upload leaves
  nothing half-applied.

OPERATIONS:
  Employees:  Employee, Employees, ImportEmployees
  Days:       Month (lazy template), SaveDays (freeze gated)
  Leave:      ReconcileLeaves, UpdateCompOff, CompOffs
  Holidays:   Holidays, ReconcileHolidays
  Freeze:     FreezeStatus, SetFreeze

FAILURE SEMANTICS:
  - Roster imports skip invalid rows and report them.
  - Leave, comp-off, holiday and day writes are all-or-nothing.
  - Status conflicts found by a diff are logged, counted and skipped.

SEE ALSO:
  - reconcile.go: the diffs
  - template.go: month generation
  - freeze.go: the edit gate
*/
package timesheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service implements the timesheet operations over a Store.
type Service struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
}

type Option func(*Service)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the time source used for the current month and
// freeze checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentMonth is the month open for edits.
func (s *Service) CurrentMonth() Month { return MonthOf(s.now()) }

// =============================================================================
// EMPLOYEES
// =============================================================================

// ImportResult reports a roster import. Skipped rows are not fatal.
type ImportResult struct {
	BatchID  string            `json:"batch_id"`
	Imported int               `json:"imported"`
	Skipped  []ValidationError `json:"skipped,omitempty"`
}

func (s *Service) Employee(ctx context.Context, id string) (*Employee, error) {
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &NotFoundError{Kind: "employee", ID: id}
	}
	return e, nil
}

func (s *Service) Employees(ctx context.Context, filter EmployeeFilter) ([]Employee, error) {
	return s.store.ListEmployees(ctx, filter)
}

func (s *Service) ProjectCodes(ctx context.Context) ([]string, error) {
	return s.store.ProjectCodes(ctx)
}

func (s *Service) ProjectNames(ctx context.Context) ([]string, error) {
	return s.store.ProjectNames(ctx)
}

// ImportEmployees upserts each valid row. Rows that failed to parse or fail
// validation are skipped and reported by line.
func (s *Service) ImportEmployees(ctx context.Context, rows []RosterRow) (*ImportResult, error) {
	result := &ImportResult{BatchID: uuid.NewString()}
	log := s.log.WithField("batch_id", result.BatchID)

	for i, row := range rows {
		line := row.Line
		if line == 0 {
			line = i + 1
		}
		var err error
		if row.Err != nil {
			err = row.Err
		} else if err = row.Employee.Validate(); err == nil {
			err = s.store.SaveEmployee(ctx, row.Employee)
		}
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			skipped := *verr
			skipped.Row = line
			result.Skipped = append(result.Skipped, skipped)
			log.WithField("row", line).Warnf("skipping employee: %s", skipped.Message)
			continue
		case err != nil:
			return nil, fmt.Errorf("save employee %s: %w", row.Employee.ID, err)
		}
		result.Imported++
	}

	log.WithFields(logrus.Fields{
		"imported": result.Imported,
		"skipped":  len(result.Skipped),
	}).Info("employee roster imported")
	return result, nil
}

func requireEmployee(ctx context.Context, st EmployeeStore, id string) error {
	e, err := st.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return &NotFoundError{Kind: "employee", ID: id}
	}
	return nil
}

// =============================================================================
// DAY ROWS
// =============================================================================

// Month returns an employee's days ordered by day of month. The current
// month is generated from the template on first read; any other month with
// no stored rows is not found.
func (s *Service) Month(ctx context.Context, employeeID string, month Month) ([]Day, error) {
	if err := requireEmployee(ctx, s.store, employeeID); err != nil {
		return nil, err
	}
	rows, err := s.store.LoadDays(ctx, employeeID, month)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return Days(rows), nil
	}
	if month != s.CurrentMonth() {
		return nil, &NotFoundError{Kind: "timesheet", ID: employeeID + "/" + month.String()}
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		rows, err = s.materialize(ctx, tx, employeeID, month)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Days(rows), nil
}

// materialize returns the stored rows, generating and saving the template
// when there are none.
func (s *Service) materialize(ctx context.Context, tx Store, employeeID string, month Month) ([]DayRecord, error) {
	rows, err := tx.LoadDays(ctx, employeeID, month)
	if err != nil || len(rows) > 0 {
		return rows, err
	}
	holidays, err := tx.ListHolidays(ctx, month.Start(), month.End())
	if err != nil {
		return nil, err
	}
	leaves, err := tx.LoadLeaves(ctx, LeaveFilter{EmployeeID: employeeID, From: month.Start(), To: month.End()})
	if err != nil {
		return nil, err
	}
	rows = Records(employeeID, month, GenerateTemplate(month, holidays, leaves))
	if err := tx.SaveDays(ctx, rows); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"month":       month.String(),
	}).Info("generated month template")
	return rows, nil
}

// DayUpdate is an employee's edit of one day. Status, when set, must match
// the stored status: tags are derived from the calendar, holidays and leave.
type DayUpdate struct {
	DayOfMonth  int     `json:"day_of_month"`
	Description string  `json:"work_description"`
	Status      *Status `json:"status,omitempty"`
}

// SaveDays writes employee edits to one month. The whole batch is rejected
// if any day is invalid or the month is not open.
func (s *Service) SaveDays(ctx context.Context, employeeID string, month Month, updates []DayUpdate) ([]Day, error) {
	if len(updates) == 0 {
		return nil, &ValidationError{Field: "days", Message: "no days to save"}
	}
	seen := make(map[int]struct{}, len(updates))
	for _, u := range updates {
		if u.DayOfMonth < 1 || u.DayOfMonth > month.Days() {
			return nil, &ValidationError{Field: "day_of_month", Message: fmt.Sprintf("day %d not in %s", u.DayOfMonth, month)}
		}
		if _, dup := seen[u.DayOfMonth]; dup {
			return nil, &ValidationError{Field: "day_of_month", Message: fmt.Sprintf("day %d given twice", u.DayOfMonth)}
		}
		seen[u.DayOfMonth] = struct{}{}
		if u.Status != nil && !u.Status.Valid() {
			return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *u.Status)}
		}
	}

	var saved []DayRecord
	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := requireEmployee(ctx, tx, employeeID); err != nil {
			return err
		}
		window, err := tx.LatestFreezeWindow(ctx)
		if err != nil {
			return err
		}
		if err := CheckWritable(month, s.now(), window); err != nil {
			return err
		}

		rows, err := s.materialize(ctx, tx, employeeID, month)
		if err != nil {
			return err
		}
		byDay := make(map[int]int, len(rows))
		for i, r := range rows {
			byDay[r.DayOfMonth] = i
		}

		changed := make([]DayRecord, 0, len(updates))
		for _, u := range updates {
			r := rows[byDay[u.DayOfMonth]]
			if u.Status != nil && *u.Status != r.Status {
				return &ValidationError{
					Field:   "status",
					Message: fmt.Sprintf("day %d is %q and cannot be set to %q", u.DayOfMonth, r.Status, *u.Status),
				}
			}
			r.Description = u.Description
			rows[byDay[u.DayOfMonth]] = r
			changed = append(changed, r)
		}
		if err := tx.SaveDays(ctx, changed); err != nil {
			return err
		}
		saved = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"month":       month.String(),
		"days":        len(updates),
	}).Info("saved timesheet days")
	return Days(saved), nil
}

// =============================================================================
// LEAVE
// =============================================================================

// LeaveReport summarizes a leave sheet reconciliation.
type LeaveReport struct {
	BatchID        string          `json:"batch_id"`
	Month          Month           `json:"month"`
	Added          int             `json:"added"`
	Removed        int             `json:"removed"`
	Unchanged      int             `json:"unchanged"`
	IgnoredCompOff int             `json:"ignored_comp_off"`
	DaysUpdated    int             `json:"days_updated"`
	Conflicts      []ConflictError `json:"conflicts,omitempty"`
}

// ReconcileLeaves replaces the month's regular leave with entries and patches
// the affected day rows. Comp-off entries are ignored; they have their own
// path. Any invalid entry or unknown employee aborts the whole upload.
func (s *Service) ReconcileLeaves(ctx context.Context, month Month, entries []LeaveEntry) (*LeaveReport, error) {
	report := &LeaveReport{BatchID: uuid.NewString(), Month: month}

	regular := make([]LeaveEntry, 0, len(entries))
	for i, l := range entries {
		if err := validateLeave(l, i+1); err != nil {
			return nil, err
		}
		if !month.Contains(l.Date) {
			return nil, &ValidationError{Row: i + 1, Field: "leave_date", Message: fmt.Sprintf("%s is outside %s", l.Date.Format(DateLayout), month)}
		}
		if l.IsCompOff() {
			report.IgnoredCompOff++
			continue
		}
		regular = append(regular, l)
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		for _, id := range distinctEmployees(regular) {
			if err := requireEmployee(ctx, tx, id); err != nil {
				return err
			}
		}
		prev, err := tx.LoadLeaves(ctx, MonthLeaves(month, LeaveRegular))
		if err != nil {
			return err
		}
		diff := DiffLeaves(prev, regular)
		report.Added, report.Removed, report.Unchanged = len(diff.Added), len(diff.Removed), len(diff.Unchanged)
		if diff.Empty() {
			return nil
		}

		var rows []DayRecord
		for _, id := range diff.Employees() {
			r, err := tx.LoadDays(ctx, id, month)
			if err != nil {
				return err
			}
			rows = append(rows, r...)
		}
		patch := NewPatch(rows)
		ApplyLeaveDiff(patch, diff)

		changed := patch.Changed()
		if err := tx.SaveDays(ctx, changed); err != nil {
			return err
		}
		if err := tx.DeleteLeaves(ctx, diff.Removed); err != nil {
			return err
		}
		if err := tx.AddLeaves(ctx, diff.Added); err != nil {
			return err
		}
		report.DaysUpdated = len(changed)
		report.Conflicts = patch.Conflicts()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.log.WithField("batch_id", report.BatchID)
	s.logConflicts(log, report.Conflicts)
	log.WithFields(logrus.Fields{
		"month":        month.String(),
		"added":        report.Added,
		"removed":      report.Removed,
		"unchanged":    report.Unchanged,
		"days_updated": report.DaysUpdated,
		"conflicts":    len(report.Conflicts),
	}).Info("leave sheet reconciled")
	return report, nil
}

func validateLeave(l LeaveEntry, row int) error {
	switch {
	case strings.TrimSpace(l.EmployeeID) == "":
		return &ValidationError{Row: row, Field: "employee_id", Message: "employee id is required"}
	case strings.TrimSpace(l.Status) == "":
		return &ValidationError{Row: row, Field: "leave_status", Message: "leave type is required"}
	case l.Date.IsZero():
		return &ValidationError{Row: row, Field: "leave_date", Message: "date is required"}
	}
	return nil
}

func distinctEmployees(entries []LeaveEntry) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, l := range entries {
		if _, ok := seen[l.EmployeeID]; !ok {
			seen[l.EmployeeID] = struct{}{}
			ids = append(ids, l.EmployeeID)
		}
	}
	return ids
}

// CompOffReport summarizes a comp-off update.
type CompOffReport struct {
	BatchID     string          `json:"batch_id"`
	Inserted    int             `json:"inserted"`
	Updated     int             `json:"updated"`
	Unchanged   int             `json:"unchanged"`
	DaysUpdated int             `json:"days_updated"`
	Conflicts   []ConflictError `json:"conflicts,omitempty"`
}

// maxCompOffSpan bounds a single comp-off request.
const maxCompOffSpan = 31

// UpdateCompOff records comp-off days from..to for an employee in the given
// transaction state and flips the affected day rows when the state changed.
func (s *Service) UpdateCompOff(ctx context.Context, employeeID string, from, to time.Time, state string) (*CompOffReport, error) {
	if strings.TrimSpace(state) == "" {
		return nil, &ValidationError{Field: "transaction_status", Message: "state is required"}
	}
	dates := DatesBetween(from, to)
	if from.IsZero() || len(dates) == 0 {
		return nil, &ValidationError{Field: "end_date", Message: "end date before start date"}
	}
	if len(dates) > maxCompOffSpan {
		return nil, &ValidationError{Field: "end_date", Message: fmt.Sprintf("range longer than %d days", maxCompOffSpan)}
	}

	incoming := make([]LeaveEntry, len(dates))
	for i, d := range dates {
		incoming[i] = LeaveEntry{EmployeeID: employeeID, Status: LeaveCompOff, Date: d, TransactionState: strings.ToUpper(strings.TrimSpace(state))}
	}

	report := &CompOffReport{BatchID: uuid.NewString()}
	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := requireEmployee(ctx, tx, employeeID); err != nil {
			return err
		}
		existing, err := tx.LoadLeaves(ctx, LeaveFilter{EmployeeID: employeeID, From: dates[0], To: dates[len(dates)-1], Kind: LeaveCompOffOnly})
		if err != nil {
			return err
		}
		plan := PlanCompOff(existing, incoming)
		report.Inserted, report.Updated, report.Unchanged = len(plan.Insert), len(plan.Update), len(plan.Unchanged)

		var rows []DayRecord
		for m := MonthOf(dates[0]); !MonthOf(dates[len(dates)-1]).Before(m); m = m.Next() {
			r, err := tx.LoadDays(ctx, employeeID, m)
			if err != nil {
				return err
			}
			rows = append(rows, r...)
		}
		patch := NewPatch(rows)
		ApplyCompOff(patch, plan)

		changed := patch.Changed()
		if err := tx.SaveDays(ctx, changed); err != nil {
			return err
		}
		if err := tx.AddLeaves(ctx, plan.Insert); err != nil {
			return err
		}
		if err := tx.UpdateLeaveState(ctx, plan.Update); err != nil {
			return err
		}
		report.DaysUpdated = len(changed)
		report.Conflicts = patch.Conflicts()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"batch_id": report.BatchID, "employee_id": employeeID})
	s.logConflicts(log, report.Conflicts)
	log.WithFields(logrus.Fields{
		"inserted":     report.Inserted,
		"updated":      report.Updated,
		"days_updated": report.DaysUpdated,
	}).Info("comp off updated")
	return report, nil
}

// CompOffRecord is a comp-off entry with the employee's display name.
type CompOffRecord struct {
	LeaveEntry
	EmployeeName string `json:"employee_name"`
}

// CompOffs lists every comp-off entry in a month.
func (s *Service) CompOffs(ctx context.Context, month Month) ([]CompOffRecord, error) {
	entries, err := s.store.LoadLeaves(ctx, MonthLeaves(month, LeaveCompOffOnly))
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	out := make([]CompOffRecord, 0, len(entries))
	for _, l := range entries {
		name, ok := names[l.EmployeeID]
		if !ok {
			e, err := s.store.GetEmployee(ctx, l.EmployeeID)
			if err != nil {
				return nil, err
			}
			if e != nil {
				name = e.FullName()
			}
			names[l.EmployeeID] = name
		}
		out = append(out, CompOffRecord{LeaveEntry: l, EmployeeName: name})
	}
	return out, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayReport summarizes a holiday sheet reconciliation.
type HolidayReport struct {
	BatchID     string          `json:"batch_id"`
	Added       int             `json:"added"`
	Removed     int             `json:"removed"`
	Renamed     int             `json:"renamed"`
	IgnoredPast int             `json:"ignored_past"`
	DaysUpdated int             `json:"days_updated"`
	Conflicts   []ConflictError `json:"conflicts,omitempty"`
}

func (s *Service) Holidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	return s.store.ListHolidays(ctx, from, to)
}

// ReconcileHolidays makes holidays the calendar for the current and future
// months. Earlier holidays, stored or uploaded, are left alone.
func (s *Service) ReconcileHolidays(ctx context.Context, holidays []Holiday) (*HolidayReport, error) {
	report := &HolidayReport{BatchID: uuid.NewString()}
	cutoff := s.CurrentMonth().Start()

	dates := make(map[time.Time]int, len(holidays))
	for i, h := range holidays {
		row := i + 1
		if h.Date.IsZero() {
			return nil, &ValidationError{Row: row, Field: "holiday_date", Message: "date is required"}
		}
		if strings.TrimSpace(h.Name) == "" {
			return nil, &ValidationError{Row: row, Field: "holiday", Message: "name is required"}
		}
		d := DateOf(h.Date)
		if first, dup := dates[d]; dup {
			return nil, &ValidationError{Row: row, Field: "holiday_date", Message: fmt.Sprintf("%s already given on row %d", d.Format(DateLayout), first)}
		}
		dates[d] = row
		if d.Before(cutoff) {
			report.IgnoredPast++
		}
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		prev, err := tx.ListHolidays(ctx, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		diff := DiffHolidays(prev, holidays, s.now())
		report.Added, report.Removed, report.Renamed = len(diff.Added), len(diff.Removed), len(diff.Renamed)
		if diff.Empty() {
			return nil
		}

		rows, err := tx.LoadDaysOn(ctx, diff.Dates())
		if err != nil {
			return err
		}
		patch := NewPatch(rows)
		ApplyHolidayDiff(patch, diff)

		changed := patch.Changed()
		if err := tx.SaveDays(ctx, changed); err != nil {
			return err
		}
		removed := make([]time.Time, len(diff.Removed))
		for i, h := range diff.Removed {
			removed[i] = h.Date
		}
		if err := tx.DeleteHolidays(ctx, removed); err != nil {
			return err
		}
		if err := tx.SaveHolidays(ctx, append(diff.Added, diff.Renamed...)); err != nil {
			return err
		}
		report.DaysUpdated = len(changed)
		report.Conflicts = patch.Conflicts()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.log.WithField("batch_id", report.BatchID)
	s.logConflicts(log, report.Conflicts)
	log.WithFields(logrus.Fields{
		"added":        report.Added,
		"removed":      report.Removed,
		"renamed":      report.Renamed,
		"ignored_past": report.IgnoredPast,
		"days_updated": report.DaysUpdated,
	}).Info("holiday sheet reconciled")
	return report, nil
}

// =============================================================================
// FREEZE WINDOW
// =============================================================================

// FreezeStatus is the state in force now and the window that set it.
type FreezeStatus struct {
	State  FreezeState   `json:"status"`
	Window *FreezeWindow `json:"window,omitempty"`
}

func (s *Service) FreezeStatus(ctx context.Context) (*FreezeStatus, error) {
	w, err := s.store.LatestFreezeWindow(ctx)
	if err != nil {
		return nil, err
	}
	return &FreezeStatus{State: EffectiveState(w, s.now()), Window: w}, nil
}

// SetFreeze records a new freeze window. actorID must be a known employee.
func (s *Service) SetFreeze(ctx context.Context, state FreezeState, actorID string) (*FreezeWindow, error) {
	if !state.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown freeze state %q", state)}
	}
	w := FreezeWindow{ID: uuid.NewString(), State: state, SetBy: actorID, At: s.now().UTC()}
	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := requireEmployee(ctx, tx, actorID); err != nil {
			return err
		}
		return tx.SaveFreezeWindow(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"state": state, "set_by": actorID}).Info("freeze window changed")
	return &w, nil
}

func (s *Service) logConflicts(log logrus.FieldLogger, conflicts []ConflictError) {
	for i := range conflicts {
		c := conflicts[i]
		log.WithFields(logrus.Fields{
			"employee_id": c.EmployeeID,
			"date":        c.Date.Format(DateLayout),
			"found":       c.Found,
			"want":        c.Want,
		}).Warn("skipped day with conflicting status")
	}
}

// Editable reports whether employees may write to month right now.
func (s *Service) Editable(ctx context.Context, month Month) (bool, error) {
	w, err := s.store.LatestFreezeWindow(ctx)
	if err != nil {
		return false, err
	}
	err = CheckWritable(month, s.now(), w)
	if IsPermissionDenied(err) {
		return false, nil
	}
	return err == nil, err
}

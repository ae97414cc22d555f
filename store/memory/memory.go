// Package memory provides an in-memory timesheet.Store for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type dayKey struct {
	EmployeeID string
	Month      timesheet.Month
	Day        int
}

type leaveKey struct {
	EmployeeID string
	Status     string
	Date       time.Time
	State      string
}

// data is the unlocked state. Store methods lock and delegate; the
// transactional view calls it directly under the lock WithTx holds.
type data struct {
	employees map[string]timesheet.Employee
	days      map[dayKey]timesheet.DayRecord
	leaves    map[leaveKey]timesheet.LeaveEntry
	holidays  map[time.Time]timesheet.Holiday
	windows   []timesheet.FreezeWindow
}

func newData() *data {
	return &data{
		employees: make(map[string]timesheet.Employee),
		days:      make(map[dayKey]timesheet.DayRecord),
		leaves:    make(map[leaveKey]timesheet.LeaveEntry),
		holidays:  make(map[time.Time]timesheet.Holiday),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.days {
		c.days[k] = v
	}
	for k, v := range d.leaves {
		c.leaves[k] = v
	}
	for k, v := range d.holidays {
		c.holidays[k] = v
	}
	c.windows = append([]timesheet.FreezeWindow(nil), d.windows...)
	return c
}

// Store implements timesheet.Store in memory.
type Store struct {
	mu sync.RWMutex
	d  *data
}

var _ timesheet.Store = (*Store)(nil)

func New() *Store {
	return &Store{d: newData()}
}

// WithTx runs fn against a view of the store. On error the state from
// before fn is restored.
func (s *Store) WithTx(ctx context.Context, fn func(timesheet.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(&txView{data: s.d}); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (*timesheet.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context, f timesheet.EmployeeFilter) ([]timesheet.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListEmployees(ctx, f)
}

func (s *Store) SaveEmployee(ctx context.Context, e timesheet.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.SaveEmployee(ctx, e)
}

func (s *Store) ProjectCodes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ProjectCodes(ctx)
}

func (s *Store) ProjectNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ProjectNames(ctx)
}

func (s *Store) LoadDays(ctx context.Context, employeeID string, month timesheet.Month) ([]timesheet.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.LoadDays(ctx, employeeID, month)
}

func (s *Store) LoadDaysOn(ctx context.Context, dates []time.Time) ([]timesheet.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.LoadDaysOn(ctx, dates)
}

func (s *Store) SaveDays(ctx context.Context, rows []timesheet.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.SaveDays(ctx, rows)
}

func (s *Store) LoadLeaves(ctx context.Context, f timesheet.LeaveFilter) ([]timesheet.LeaveEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.LoadLeaves(ctx, f)
}

func (s *Store) AddLeaves(ctx context.Context, entries []timesheet.LeaveEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.AddLeaves(ctx, entries)
}

func (s *Store) DeleteLeaves(ctx context.Context, entries []timesheet.LeaveEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.DeleteLeaves(ctx, entries)
}

func (s *Store) UpdateLeaveState(ctx context.Context, entries []timesheet.LeaveEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.UpdateLeaveState(ctx, entries)
}

func (s *Store) ListHolidays(ctx context.Context, from, to time.Time) ([]timesheet.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListHolidays(ctx, from, to)
}

func (s *Store) SaveHolidays(ctx context.Context, holidays []timesheet.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.SaveHolidays(ctx, holidays)
}

func (s *Store) DeleteHolidays(ctx context.Context, dates []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.DeleteHolidays(ctx, dates)
}

func (s *Store) LatestFreezeWindow(ctx context.Context) (*timesheet.FreezeWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.LatestFreezeWindow(ctx)
}

func (s *Store) SaveFreezeWindow(ctx context.Context, w timesheet.FreezeWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.SaveFreezeWindow(ctx, w)
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

type txView struct {
	*data
}

// WithTx inside a transaction runs fn in the same transaction.
func (tv *txView) WithTx(ctx context.Context, fn func(timesheet.Store) error) error {
	return fn(tv)
}

// =============================================================================
// STATE OPERATIONS
// =============================================================================

func (d *data) GetEmployee(_ context.Context, id string) (*timesheet.Employee, error) {
	e, ok := d.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (d *data) ListEmployees(_ context.Context, f timesheet.EmployeeFilter) ([]timesheet.Employee, error) {
	var out []timesheet.Employee
	for _, e := range d.employees {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) SaveEmployee(_ context.Context, e timesheet.Employee) error {
	e.StartDate = dateOrZero(e.StartDate)
	d.employees[e.ID] = e
	return nil
}

func (d *data) ProjectCodes(_ context.Context) ([]string, error) {
	return d.distinct(func(e timesheet.Employee) string { return e.ProjectCode }), nil
}

func (d *data) ProjectNames(_ context.Context) ([]string, error) {
	return d.distinct(func(e timesheet.Employee) string { return e.ProjectName }), nil
}

func (d *data) distinct(field func(timesheet.Employee) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range d.employees {
		v := field(e)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func (d *data) LoadDays(_ context.Context, employeeID string, month timesheet.Month) ([]timesheet.DayRecord, error) {
	var out []timesheet.DayRecord
	for day := 1; day <= month.Days(); day++ {
		if r, ok := d.days[dayKey{employeeID, month, day}]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *data) LoadDaysOn(_ context.Context, dates []time.Time) ([]timesheet.DayRecord, error) {
	want := make(map[time.Time]struct{}, len(dates))
	for _, t := range dates {
		want[timesheet.DateOf(t)] = struct{}{}
	}
	var out []timesheet.DayRecord
	for _, r := range d.days {
		if _, ok := want[r.Date()]; ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Date().Before(out[j].Date())
	})
	return out, nil
}

func (d *data) SaveDays(_ context.Context, rows []timesheet.DayRecord) error {
	for _, r := range rows {
		d.days[dayKey{r.EmployeeID, r.Month, r.DayOfMonth}] = r
	}
	return nil
}

func (d *data) LoadLeaves(_ context.Context, f timesheet.LeaveFilter) ([]timesheet.LeaveEntry, error) {
	var out []timesheet.LeaveEntry
	for _, l := range d.leaves {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	timesheet.SortLeaves(out)
	return out, nil
}

func (d *data) AddLeaves(_ context.Context, entries []timesheet.LeaveEntry) error {
	for _, l := range entries {
		l.Date = timesheet.DateOf(l.Date)
		d.leaves[keyOf(l)] = l
	}
	return nil
}

func (d *data) DeleteLeaves(_ context.Context, entries []timesheet.LeaveEntry) error {
	for _, l := range entries {
		l.Date = timesheet.DateOf(l.Date)
		delete(d.leaves, keyOf(l))
	}
	return nil
}

func (d *data) UpdateLeaveState(_ context.Context, entries []timesheet.LeaveEntry) error {
	for _, upd := range entries {
		date := timesheet.DateOf(upd.Date)
		for k, l := range d.leaves {
			if l.EmployeeID == upd.EmployeeID && l.Status == upd.Status && l.Date.Equal(date) {
				delete(d.leaves, k)
				l.TransactionState = upd.TransactionState
				d.leaves[keyOf(l)] = l
			}
		}
	}
	return nil
}

func keyOf(l timesheet.LeaveEntry) leaveKey {
	return leaveKey{l.EmployeeID, l.Status, l.Date, l.TransactionState}
}

func (d *data) ListHolidays(_ context.Context, from, to time.Time) ([]timesheet.Holiday, error) {
	var out []timesheet.Holiday
	for date, h := range d.holidays {
		if !from.IsZero() && date.Before(timesheet.DateOf(from)) {
			continue
		}
		if !to.IsZero() && date.After(timesheet.DateOf(to)) {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (d *data) SaveHolidays(_ context.Context, holidays []timesheet.Holiday) error {
	for _, h := range holidays {
		h.Date = timesheet.DateOf(h.Date)
		d.holidays[h.Date] = h
	}
	return nil
}

func (d *data) DeleteHolidays(_ context.Context, dates []time.Time) error {
	for _, t := range dates {
		delete(d.holidays, timesheet.DateOf(t))
	}
	return nil
}

func (d *data) LatestFreezeWindow(_ context.Context) (*timesheet.FreezeWindow, error) {
	if len(d.windows) == 0 {
		return nil, nil
	}
	latest := d.windows[0]
	for _, w := range d.windows[1:] {
		if !w.At.Before(latest.At) {
			latest = w
		}
	}
	return &latest, nil
}

func (d *data) SaveFreezeWindow(_ context.Context, w timesheet.FreezeWindow) error {
	d.windows = append(d.windows, w)
	return nil
}

func dateOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return timesheet.DateOf(t)
}

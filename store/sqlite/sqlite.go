/*
Package sqlite provides a SQLite-backed implementation of timesheet.Store.

PURPOSE:
  Persists employees, day rows, leave entries, holidays and freeze
  windows. All reconciliation writes go through WithTx so an upload
  commits whole or not at all.

KEY TABLES:
  employees:       roster, keyed externally by indxx_id
  levels, teams, departments, managers,
  project_numbers, project_codes,
  project_names:   reference tables created on demand
  timesheet_days:  one row per employee per day, unique per day
  leaves:          one row per leave day
  holidays:        one row per holiday date
  time_windows:    freeze history, latest row in force

MIGRATIONS:
  Schema lives in migrations/*.sql, embedded and applied with
  golang-migrate. New() applies pending migrations; Open() does not,
  for the CLI's migrate subcommands.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single pooled connection,
  which also keeps ":memory:" databases shared across calls. Inside
  WithTx every query runs on the *sql.Tx.

USAGE:
  store, err := sqlite.New("./data/timesheet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := timesheet.NewService(store)

SEE ALSO:
  - timesheet/store.go: interface definitions
  - store/memory: in-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/warp/timesheet-engine/timesheet"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements timesheet.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	ops
}

var _ timesheet.Store = (*Store)(nil)

// Open opens the database without touching its schema.
// Use ":memory:" for an in-memory database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, ops: ops{q: db}}, nil
}

// New opens the database and applies pending migrations.
func New(dbPath string) (*Store, error) {
	store, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.MigrateUp(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// MIGRATIONS
// =============================================================================

// migrator builds a migrate instance over the store's connection. The
// instance must not be closed: closing it closes the shared *sql.DB.
func (s *Store) migrator() (*migrate.Migrate, error) {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies all pending migrations.
func (s *Store) MigrateUp() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back the given number of migrations, or all of them
// when steps is zero.
func (s *Store) MigrateDown(steps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.migrator()
	if err != nil {
		return err
	}
	if steps <= 0 {
		err = m.Down()
	} else {
		err = m.Steps(-steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the applied version. ok is false when no
// migration has run yet.
func (s *Store) MigrationVersion() (version uint, dirty bool, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.migrator()
	if err != nil {
		return 0, false, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, true, nil
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (*timesheet.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops.GetEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context, f timesheet.EmployeeFilter) ([]timesheet.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops.ListEmployees(ctx, f)
}

func (s *Store) SaveEmployee(ctx context.Context, e timesheet.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.SaveEmployee(ctx, e)
}

func (s *Store) ProjectCodes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops.ProjectCodes(ctx)
}

func (s *Store) ProjectNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops.ProjectNames(ctx)
}

func (s *Store) LoadDays(ctx context.Context, employeeID string, month timesheet.Month) ([]timesheet.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops.LoadDays(ctx, employeeID, month)
}

func (s *Store) LoadDaysOn(ctx context.Context, dates []time.Time) ([]timesheet.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops.LoadDaysOn(ctx, dates)
}

// SaveDays writes rows atomically.
func (s *Store) SaveDays(ctx context.Context, rows []timesheet.DayRecord) error {
	return s.WithTx(ctx, func(tx timesheet.Store) error { return tx.SaveDays(ctx, rows) })
}

func (s *Store) LoadLeaves(ctx context.Context, f timesheet.LeaveFilter) ([]timesheet.LeaveEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops.LoadLeaves(ctx, f)
}

func (s *Store) AddLeaves(ctx context.Context, entries []timesheet.LeaveEntry) error {
	return s.WithTx(ctx, func(tx timesheet.Store) error { return tx.AddLeaves(ctx, entries) })
}

func (s *Store) DeleteLeaves(ctx context.Context, entries []timesheet.LeaveEntry) error {
	return s.WithTx(ctx, func(tx timesheet.Store) error { return tx.DeleteLeaves(ctx, entries) })
}

func (s *Store) UpdateLeaveState(ctx context.Context, entries []timesheet.LeaveEntry) error {
	return s.WithTx(ctx, func(tx timesheet.Store) error { return tx.UpdateLeaveState(ctx, entries) })
}

func (s *Store) ListHolidays(ctx context.Context, from, to time.Time) ([]timesheet.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops.ListHolidays(ctx, from, to)
}

func (s *Store) SaveHolidays(ctx context.Context, holidays []timesheet.Holiday) error {
	return s.WithTx(ctx, func(tx timesheet.Store) error { return tx.SaveHolidays(ctx, holidays) })
}

func (s *Store) DeleteHolidays(ctx context.Context, dates []time.Time) error {
	return s.WithTx(ctx, func(tx timesheet.Store) error { return tx.DeleteHolidays(ctx, dates) })
}

func (s *Store) LatestFreezeWindow(ctx context.Context) (*timesheet.FreezeWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ops.LatestFreezeWindow(ctx)
}

func (s *Store) SaveFreezeWindow(ctx context.Context, w timesheet.FreezeWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.SaveFreezeWindow(ctx, w)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(timesheet.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{ops: ops{q: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	ops
}

// WithTx inside a transaction runs fn in the same transaction.
func (ts *txStore) WithTx(ctx context.Context, fn func(timesheet.Store) error) error {
	return fn(ts)
}

// =============================================================================
// HELPERS
// =============================================================================

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ops runs every query against q. The Store uses the pool; txStore uses
// the open transaction.
type ops struct {
	q queryer
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatDate(t time.Time) string {
	return timesheet.DateOf(t).Format(timesheet.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timesheet.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored date %q: %w", s, err)
	}
	return t, nil
}

func now() string {
	return time.Now().UTC().Format(timestampLayout)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// employeeKey resolves an external employee id to its row id.
func (o ops) employeeKey(ctx context.Context, id string) (int64, error) {
	var key int64
	err := o.q.QueryRowContext(ctx, "SELECT id FROM employees WHERE indxx_id = ?", id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &timesheet.NotFoundError{Kind: "employee", ID: id}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up employee %s: %w", id, err)
	}
	return key, nil
}

// employeeKeys resolves and caches keys for one batch.
type employeeKeys struct {
	o     ops
	cache map[string]int64
}

func (o ops) keys() *employeeKeys {
	return &employeeKeys{o: o, cache: make(map[string]int64)}
}

func (k *employeeKeys) get(ctx context.Context, id string) (int64, error) {
	if key, ok := k.cache[id]; ok {
		return key, nil
	}
	key, err := k.o.employeeKey(ctx, id)
	if err != nil {
		return 0, err
	}
	k.cache[id] = key
	return key, nil
}

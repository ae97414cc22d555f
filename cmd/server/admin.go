package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/timesheet-engine/ingest"
	"github.com/warp/timesheet-engine/store/sqlite"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// MIGRATE
// =============================================================================

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRawStore(opts, func(s *sqlite.Store, log *logrus.Logger) error {
				if err := s.MigrateDown(steps); err != nil {
					return err
				}
				log.WithField("steps", steps).Info("migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back (0 for all)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRawStore(opts, func(s *sqlite.Store, log *logrus.Logger) error {
					if err := s.MigrateUp(); err != nil {
						return err
					}
					log.Info("migrations applied")
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Print the schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRawStore(opts, func(s *sqlite.Store, _ *logrus.Logger) error {
					version, dirty, ok, err := s.MigrationVersion()
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

// withRawStore opens the database without migrating it.
func withRawStore(opts *globalOptions, fn func(*sqlite.Store, *logrus.Logger) error) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}
	s, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s, log)
}

// =============================================================================
// IMPORT
// =============================================================================

func newImportCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a roster, leave or holiday sheet (.csv or .xlsx)",
	}

	var monthFlag string
	leaves := &cobra.Command{
		Use:   "leaves FILE",
		Short: "Reconcile a leave sheet for one month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withImport(opts, args[0], func(a *app, rows [][]string) error {
				month := a.service.CurrentMonth()
				if monthFlag != "" {
					m, err := timesheet.ParseMonth(monthFlag)
					if err != nil {
						return err
					}
					month = m
				}
				sheet, err := ingest.ParseLeaves(rows, month)
				if err != nil {
					return err
				}
				report, err := a.service.ReconcileLeaves(cmd.Context(), month, sheet.Entries)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: added %d, removed %d, unchanged %d, days updated %d, conflicts %d, dropped rows %d\n",
					month, report.Added, report.Removed, report.Unchanged, report.DaysUpdated, len(report.Conflicts), sheet.Dropped)
				return nil
			})
		},
	}
	leaves.Flags().StringVar(&monthFlag, "month", "", "Target month as YYYY-MM (default: current)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "employees FILE",
			Short: "Import a roster sheet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withImport(opts, args[0], func(a *app, rows [][]string) error {
					roster, err := ingest.ParseRoster(rows)
					if err != nil {
						return err
					}
					result, err := a.service.ImportEmployees(cmd.Context(), roster)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", result.Imported, len(result.Skipped))
					for _, s := range result.Skipped {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", s.Error())
					}
					return nil
				})
			},
		},
		leaves,
		&cobra.Command{
			Use:   "holidays FILE",
			Short: "Replace the holiday calendar from the current month on",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withImport(opts, args[0], func(a *app, rows [][]string) error {
					holidays, err := ingest.ParseHolidays(rows)
					if err != nil {
						return err
					}
					report, err := a.service.ReconcileHolidays(cmd.Context(), holidays)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "added %d, removed %d, renamed %d, ignored past %d, days updated %d, conflicts %d\n",
						report.Added, report.Removed, report.Renamed, report.IgnoredPast, report.DaysUpdated, len(report.Conflicts))
					return nil
				})
			},
		},
	)
	return cmd
}

func withImport(opts *globalOptions, path string, fn func(*app, [][]string) error) error {
	format, err := ingest.FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	rows, err := ingest.ReadRows(f, format)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a, rows)
}

// =============================================================================
// FREEZE
// =============================================================================

func newFreezeCmd(opts *globalOptions, state timesheet.FreezeState) *cobra.Command {
	var by string
	use := "freeze"
	short := "Close the current month for edits"
	if state == timesheet.Unfrozen {
		use = "unfreeze"
		short = "Reopen the current month for edits"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			w, err := a.service.SetFreeze(cmd.Context(), state, strings.TrimSpace(by))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s at %s by %s\n", w.State, w.At.Format(time.RFC3339), w.SetBy)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Employee id of the actor (required)")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

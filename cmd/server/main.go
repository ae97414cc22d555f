/*
main.go - Application entry point

PURPOSE:
  Command-line entry point for the timesheet engine. The serve command
  runs the HTTP API; the other commands run the same operations against
  the database directly, for cron jobs and one-off maintenance.

COMMANDS:
  serve                         Run the HTTP server
  migrate up|down|status        Manage the schema
  import employees|leaves|holidays FILE
                                Load a roster, leave or holiday sheet
  freeze / unfreeze --by ID     Close or reopen the current month
  export --project-code X ...   Write the monthly export zip

GLOBAL FLAGS:
  --config   YAML config file (default: timesheet.yaml, optional)
  --db       SQLite database path, overrides the config
  --verbose  Debug logging

ENVIRONMENT:
  TIMESHEET_PORT, TIMESHEET_DB, TIMESHEET_LOG_LEVEL override the file.

SEE ALSO:
  - config/config.go: Configuration layout
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/timesheet-engine/config"
	"github.com/warp/timesheet-engine/report"
	"github.com/warp/timesheet-engine/store/sqlite"
	"github.com/warp/timesheet-engine/timesheet"
)

type globalOptions struct {
	configPath string
	dbPath     string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "timesheet",
		Short:         "Timesheet engine: day status reconciliation for HR uploads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "timesheet.yaml", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(
		newServeCmd(&opts),
		newMigrateCmd(&opts),
		newImportCmd(&opts),
		newFreezeCmd(&opts, timesheet.Frozen),
		newFreezeCmd(&opts, timesheet.Unfrozen),
		newExportCmd(&opts),
	)
	return cmd
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app is the wired dependency graph shared by every command.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *sqlite.Store
	service  *timesheet.Service
	exporter *report.Exporter
}

func loadConfig(opts *globalOptions) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openApp loads config, opens and migrates the database and builds the
// service layer. Callers must close the returned app.
func openApp(opts *globalOptions) (*app, error) {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.WithField("path", cfg.Database.Path).Debug("database ready")

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		service: timesheet.NewService(store, timesheet.WithLogger(log)),
		exporter: report.NewExporter(store,
			report.WithWorkers(cfg.Export.Workers),
			report.WithExportLogger(log),
		),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

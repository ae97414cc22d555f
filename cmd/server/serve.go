package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/timesheet-engine/api"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if port != 0 {
				a.cfg.Server.Port = port
			}
			return runServer(cmd.Context(), a)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	return cmd
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, a *app) error {
	handler := api.NewHandler(a.service, a.store, a.exporter, a.log)
	handler.MaxUploadBytes = a.cfg.Server.MaxUploadBytes

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      api.NewRouter(handler, a.cfg.CORS.AllowedOrigins),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed into the request log
  2. Logger:     Structured request logging through logrus
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/employees/*      Roster, timesheets and comp-off
  /api/leaves/*         Leave sheet uploads
  /api/comp-off/*       Comp-off listing
  /api/holidays/*       Holiday calendar
  /api/freeze           Edit window
  /api/projects/*       Project lookups
  /api/reports/*        Status dashboard and export

SECURITY NOTE:
  No authentication middleware. Callers identify themselves where an
  action is attributed (the freeze window's "by").

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Status-List", "Content-Disposition"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/upload", h.UploadEmployees)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/timesheet", h.GetTimesheet)
			r.Put("/{id}/timesheet", h.SaveTimesheet)
			r.Post("/{id}/comp-off", h.UpdateCompOff)
		})

		r.Post("/leaves/upload", h.UploadLeaves)
		r.Get("/comp-off/{year}/{month}", h.ListCompOffs)

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/upload", h.UploadHolidays)
		})

		r.Get("/freeze", h.GetFreeze)
		r.Post("/freeze", h.SetFreeze)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/codes", h.ListProjectCodes)
			r.Get("/names", h.ListProjectNames)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/status", h.StatusReport)
			r.Post("/export", h.Export)
		})
	})

	return r
}

// RequestLogger logs one line per request with its status and duration.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entry := log.WithFields(logrus.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"request_id":  middleware.GetReqID(r.Context()),
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("request failed")
					return
				}
				entry.Debug("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

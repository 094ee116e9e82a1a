/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests from calendar dashboards

ROUTE GROUPS:
  /api/label*, /api/progress, /api/fiscal-year    Date resolution
  /api/schedule*, /api/events, /api/runs          Schedules and population
  /api/templates, /api/agendas                    Agenda documents
  /healthz                                        Liveness

SECURITY NOTE:
  No authentication middleware. Bind to localhost or put a proxy in front.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/piengine/main.go: Server startup
*/
package api

import (
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. origins lists
// the allowed CORS origins; "*" allows any origin without credentials.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(origins, "*"),
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/label", func(r chi.Router) {
			r.Get("/", h.GetLabel)
			r.Get("/next", h.GetNextMonthLabel)
		})
		r.Get("/progress", h.GetProgress)
		r.Get("/fiscal-year", h.GetFiscalYear)

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", h.GetSchedule)
			r.Post("/populate", h.PopulateSchedule)
		})
		r.Get("/schedule.ics", h.GetScheduleICS)
		r.Get("/events", h.ListEvents)
		r.Get("/runs", h.ListRuns)

		r.Post("/templates", h.CreateTemplate)
		r.Post("/agendas", h.CreateAgenda)
	})

	r.Get("/healthz", h.Health)

	return r
}

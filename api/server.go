/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/timer/*          Timer state machine
  /api/pay/*            Pay calculation and history
  /api/settings/*       Preferences, rules, rates
  /api/dates/*          Per-date derivations for the UI

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Timer routes
		r.Route("/timer", func(r chi.Router) {
			r.Get("/", h.GetTimer)
			r.Get("/display", h.GetTimerDisplay)
			r.Post("/start", h.StartTimer)
			r.Post("/pause", h.PauseTimer)
			r.Post("/resume", h.ResumeTimer)
			r.Post("/stop", h.StopTimer)
			r.Post("/undo-break", h.UndoLastBreak)
			r.Post("/note", h.SetBreakNote)
		})

		// Pay routes
		r.Route("/pay", func(r chi.Router) {
			r.Post("/calculate", h.Calculate)
			r.Get("/history", h.GetPayHistory)
			r.Post("/history", h.SaveCalculation)
		})

		// Settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/preferences", h.SetPreferences)
			r.Put("/pay-rules", h.SetPayRules)
			r.Put("/notifications", h.SetNotifications)
			r.Put("/rates", h.SetRates)
		})

		// Per-date derivations
		r.Route("/dates/{date}", func(r chi.Router) {
			r.Get("/overtime-split", h.GetOvertimeSplit)
			r.Get("/night-allocation", h.GetNightAllocation)
			r.Get("/shifts", h.GetShifts)
		})
	})

	return r
}

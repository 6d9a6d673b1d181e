/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests from HR tooling

ROUTE GROUPS:
  /api/health           Liveness
  /api/employees/*      Directory, balances, audit trail, recalculation
  /api/entitlements     Entitlement assignment
  /api/adjustments      Manual adjustments
  /api/accrual/*        Accrual runs
  /api/carry-forward/*  Year-end migration, overrides, report
  /api/suspensions/*    Suspension proration
  /api/requests/*       Request seeding, finalization, irregular flag
  /api/patterns/*       Irregular usage analysis

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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
// allowedOrigins feeds the CORS middleware; an empty list allows none.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}/balances", h.GetBalances)
			r.Get("/{id}/adjustments", h.ListAdjustments)
			r.Post("/{id}/recalculate", h.Recalculate)
		})

		// Ledger routes
		r.Post("/entitlements", h.AssignEntitlement)
		r.Post("/adjustments", h.CreateAdjustment)

		// Batch routes
		r.Post("/accrual/run", h.RunAccrual)
		r.Route("/carry-forward", func(r chi.Router) {
			r.Post("/", h.CarryForward)
			r.Post("/preview", h.PreviewCarryForward)
			r.Post("/override", h.OverrideCarryForward)
			r.Get("/report", h.CarryForwardReport)
			r.Get("/report.pdf", h.CarryForwardReportPDF)
		})

		// Suspension routes
		r.Route("/suspensions", func(r chi.Router) {
			r.Post("/", h.ApplySuspension)
			r.Post("/preview", h.PreviewSuspension)
		})

		// Request routes
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.SaveRequest)
			r.Post("/{id}/finalize", h.FinalizeRequest)
			r.Post("/{id}/flag", h.FlagRequest)
		})

		r.Post("/patterns/analyze", h.AnalyzePatterns)
	})

	return r
}

/*
server.go - HTTP router and middleware configuration

ROUTER: chi, for the same reasons the rest of this stack reaches for
it: lightweight, context-based, middleware-friendly, RESTful route
patterns.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for callers running elsewhere

ROUTE GROUPS:
  /api/tenants/{id}/credits/*     Mutating credit operations
  /api/tenants/{id}/balance       Read-only balance
  /api/tenants/{id}/operations    Read-only operation history

SECURITY NOTE:
  No authentication middleware here. A deployment fronting this router
  is expected to terminate auth upstream (gateway, service mesh).

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

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api/tenants/{id}", func(r chi.Router) {
		r.Route("/credits", func(r chi.Router) {
			r.Post("/add", h.AddCredit)
			r.Post("/consume", h.ConsumeCredit)
			r.Post("/refund", h.RefundCredit)
			r.Post("/expire", h.ExpireCredit)
			r.Post("/renew", h.RenewCredit)
		})
		r.Get("/balance", h.GetBalance)
		r.Get("/operations", h.GetOperationHistory)
	})

	return r
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/v1/grants/*                        Grant registry
  /api/v1/grant-items/*                   Grant item detail
  /api/v1/employees/*                     Employee records
  /api/v1/employments/*                   Employments + probation transitions
  /api/v1/employee-funding-allocations/*  Allocation engine surface

SECURITY NOTE:
  No authentication middleware. Bearer-token auth and the permission layer
  sit in front of this service; all endpoints here are unauthenticated.

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

	r.Route("/api/v1", func(r chi.Router) {
		// Grant registry
		r.Route("/grants", func(r chi.Router) {
			r.Get("/", h.ListGrants)
			r.Post("/", h.CreateGrant)
			r.Get("/{id}", h.GetGrant)
			r.Post("/{id}/items", h.CreateGrantItem)
		})
		r.Get("/grant-items/{id}", h.GetGrantItem)

		// Employees
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
		})

		// Employments and the probation ledger
		r.Route("/employments", func(r chi.Router) {
			r.Post("/", h.CreateEmployment)
			r.Get("/{id}", h.GetEmployment)
			r.Delete("/{id}", h.TerminateEmployment)
			r.Get("/{id}/probation", h.GetProbationHistory)
			r.Post("/{id}/probation/pass", h.MarkProbationPassed)
			r.Post("/{id}/probation/extend", h.MarkProbationExtended)
			r.Post("/{id}/probation/fail", h.MarkProbationFailed)
		})

		// Allocation engine surface
		r.Route("/employee-funding-allocations", func(r chi.Router) {
			r.Post("/", h.CreateAllocationSet)
			r.Put("/employee/{employee_id}", h.ReplaceAllocationSet)
			r.Post("/bulk-deactivate", h.BulkDeactivate)
			r.Get("/grant-structure", h.GrantStructure)
			r.Get("/by-grant-item/{id}", h.AllocationsByGrantItem)
			r.Get("/by-employment/{id}", h.AllocationsByEmployment)
		})
	})

	return r
}

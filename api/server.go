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
  /api/employees/*      Employees, their requests and balances
  /api/requests/*       Leave request lifecycle and step decisions
  /api/leave-types/*    Leave type configuration
  /api/offices/*        Offices and workflow configuration
  /api/holidays/*       Holiday calendar
  /api/admin/*          Balance administration
  /api/working-days     Working-day preview

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
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/requests", h.ListEmployeeRequests)
			r.Get("/{id}/balances", h.GetEmployeeBalances)
			r.Get("/{id}/balances/{year}/{balanceType}/mutations", h.GetBalanceMutations)
		})

		// Leave request routes
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.CreateRequest)
			r.Get("/pending", h.ListPendingRequests)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/submit", h.SubmitRequest)
			r.Post("/{id}/resubmit", h.ResubmitRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
			r.Post("/{id}/steps/{stepID}", h.DecideStep)
		})

		// Configuration routes
		r.Route("/leave-types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.Post("/", h.SaveLeaveType)
		})

		r.Route("/offices", func(r chi.Router) {
			r.Post("/", h.SaveOffice)
			r.Get("/{id}", h.GetOffice)
			r.Get("/{officeID}/workflow", h.GetWorkflowConfig)
		})

		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", h.SaveWorkflowConfig)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/balances", h.OpenBalance)
			r.Post("/adjustments", h.AdjustBalance)
			r.Post("/carryover", h.Carryover)
		})

		// Calculator
		r.Get("/working-days", h.PreviewWorkingDays)
	})

	return r
}

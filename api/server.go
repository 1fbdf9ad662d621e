/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for the frontend
  5. Authenticate: JWT bearer token, principal into context

ROLE GATING:
  employee    read own tasks, read incentives
  admin       task and user management, evaluations
  accountant  incentive calculation, approval, payroll reports
  Admins get accountant routes too: in small teams one person wears
  both hats.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token parsing and RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/incentive-engine/core"
)

// NewRouter creates a new router with all routes configured. The JWT
// secret gates every /api route; an empty secret is rejected at parse
// time rather than silently disabling auth.
func NewRouter(h *Handler, jwtSecret string) *chi.Mux {
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

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(jwtSecret))

		// User routes
		r.Route("/users", func(r chi.Router) {
			r.With(RequireRole(core.RoleAdmin, core.RoleAccountant)).Get("/", h.ListUsers)
			r.Get("/{id}", h.GetUser)
			r.With(RequireRole(core.RoleAdmin)).Put("/{id}", h.SaveUser)
			r.Get("/{id}/tasks", h.ListUserTasks)
			r.Get("/{id}/incentives", h.ListUserIncentives)
		})

		// Task routes
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Get("/{id}", h.GetTask)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(core.RoleAdmin))
				r.Post("/", h.CreateTask)
				r.Put("/{id}", h.UpdateTask)
				r.Delete("/{id}", h.DeleteTask)
				r.Put("/{id}/rubric", h.ReplaceRubric)
				r.Post("/{id}/requirements/{index}/completion", h.RecordCompletion)
				r.Post("/{id}/evaluation", h.FinalizeEvaluation)
			})

			// Assignees move their own tasks; the transition graph keeps
			// them honest.
			r.Post("/{id}/status", h.ChangeTaskStatus)
		})

		// Incentive routes
		r.Route("/incentives", func(r chi.Router) {
			r.Use(RequireRole(core.RoleAdmin, core.RoleAccountant))
			r.Get("/", h.ListIncentives)
			r.Post("/calculate", h.CalculateIncentive)
			r.Get("/{id}", h.GetIncentive)
			r.Post("/{id}/status", h.SetIncentiveStatus)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Use(RequireRole(core.RoleAdmin, core.RoleAccountant))
			r.Get("/payroll", h.PayrollReport)
		})
	})

	return r
}

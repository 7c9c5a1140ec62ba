/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zap access log (needs the request ID)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the admin frontend

ACCESS LEVELS:
  public         /health, auth register/login, catalog reads
  authenticated  /api/transactions/*
  admin          accounts, debt, outstanding, user list, catalog writes,
                 scenarios

  Every admin route goes through the same auth.RequireRole middleware.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/middleware.go: Authenticate, RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/shopledger/auth"
	"github.com/warp/shopledger/ledger"
	"github.com/warp/shopledger/logging"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	authenticated := auth.Authenticate(h.tokens, h.writeError)
	admin := auth.RequireRole(ledger.RoleAdmin, h.writeError)

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.With(authenticated, admin).Get("/users", h.ListAccounts)
		})

		// Account and debt routes
		r.Route("/accounts", func(r chi.Router) {
			r.Use(authenticated, admin)
			r.Get("/", h.ListAccounts)
			r.Get("/{userId}", h.GetAccount)
			r.Get("/{userId}/debt-history", h.GetDebtHistory)
			r.Post("/{userId}/debt", h.AdjustDebt)
			r.Delete("/{userId}/debt", h.ClearDebt)
		})

		r.With(authenticated, admin).Get("/debts/outstanding", h.ListOutstanding)

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.UpdateTransaction)
		})

		// Catalog routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
			r.Group(func(r chi.Router) {
				r.Use(authenticated, admin)
				r.Post("/", h.CreateProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeleteProduct)
			})
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Group(func(r chi.Router) {
				r.Use(authenticated, admin)
				r.Post("/", h.CreateCategory)
				r.Delete("/{id}", h.DeleteCategory)
			})
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Use(authenticated, admin)
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found"})
	})

	return r
}

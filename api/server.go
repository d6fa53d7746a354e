/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        X-Forwarded-For / X-Real-IP into RemoteAddr
  3. RequestLogger: One zerolog line per request
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the register frontend

  Under /api, except /api/health:
  6. Identity:      X-User-ID must name an active user (401 otherwise)
  7. Throttle:      Token bucket per user (429 when exhausted), optional
  8. RequireRole:   Per route group (403 when the role is too low)

ROLES:
  cashier   sell, look up products/customers, mark receipts
  manager   + catalog and customer edits, status changes, refunds,
            loyalty adjustments, detailed reports
  admin     + user management and demo data

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Identity and request logging
  - throttle/: Rate limiters
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/throttle"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// Limiter throttles authenticated requests. Nil disables throttling.
	Limiter throttle.Limiter
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(MaxBodyBytes))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", UserHeader, IdempotencyHeader},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Remaining", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(notFound)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(Identity(h.Store, h.Log))
			r.Use(recordPrincipal)
			if opts.Limiter != nil {
				r.Use(throttle.Middleware(opts.Limiter, principalKeyFunc, h.Log))
			}

			manager := RequireRole(pos.RoleManager)
			admin := RequireRole(pos.RoleAdmin)

			// User routes
			r.Route("/users", func(r chi.Router) {
				r.Get("/me", h.Me)
				r.With(admin).Get("/", h.ListUsers)
				r.With(admin).Post("/", h.CreateUser)
				r.With(admin).Delete("/{id}", h.DeactivateUser)
			})

			// Category routes
			r.Route("/categories", func(r chi.Router) {
				r.Get("/", h.ListCategories)
				r.With(manager).Post("/", h.CreateCategory)
				r.With(manager).Put("/{id}", h.UpdateCategory)
				r.With(manager).Delete("/{id}", h.DeleteCategory)
			})

			// Product routes
			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Get("/low-stock", h.LowStockProducts)
				r.Get("/{id}", h.GetProduct)
				r.With(manager).Post("/", h.CreateProduct)
				r.With(manager).Put("/{id}", h.UpdateProduct)
				r.With(manager).Put("/{id}/stock", h.AdjustStock)
				r.With(manager).Delete("/{id}", h.DeleteProduct)
			})

			// Customer routes
			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.ListCustomers)
				r.Post("/", h.CreateCustomer)
				r.Get("/{id}", h.GetCustomer)
				r.Get("/{id}/loyalty", h.GetLoyalty)
				r.With(manager).Put("/{id}", h.UpdateCustomer)
				r.With(manager).Delete("/{id}", h.DeleteCustomer)
				r.With(manager).Post("/{id}/loyalty/grant", h.GrantPoints)
				r.With(manager).Post("/{id}/loyalty/redeem", h.RedeemPoints)
			})

			// Transaction routes
			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.ListTransactions)
				r.Post("/", h.CreateSale)
				r.Get("/number/{number}", h.GetTransactionByNumber)
				r.Get("/{id}", h.GetTransaction)
				r.Post("/{id}/receipt-printed", h.MarkReceiptPrinted)
				r.With(manager).Put("/{id}/status", h.UpdateStatus)
				r.With(manager).Post("/{id}/refund", h.Refund)
			})

			// Report routes
			r.Route("/reports", func(r chi.Router) {
				r.Get("/daily-sales", h.DailySales)
				r.With(manager).Get("/top-products", h.TopProducts)
				r.With(manager).Get("/transaction-stats", h.TransactionStats)
			})

			// Demo data
			r.With(admin).Post("/admin/seed", h.LoadDemo)
		})
	})

	return r
}

/**
 * @description
 * HTTP router setup for the ledger-service using go-chi/chi.
 */
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries the settings the router needs from configuration.
type RouterOptions struct {
	Auth           AuthOptions
	InternalAPIKey string
	AllowedOrigins []string
}

// NewRouter creates a new Chi router and registers ledger routes.
func NewRouter(h *Handlers, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/internal/accounts", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(opts.InternalAPIKey))
		r.Put("/{id}/status", h.UpdateAccountStatusHandler)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(opts.Auth))

			r.Post("/accounts", h.OpenAccountHandler)
			r.Get("/accounts/me", h.GetAccountHandler)
			r.Get("/accounts/me/summary", h.AccountSummaryHandler)
			r.Post("/accounts/me/transaction-pin", h.CreateTransactionPINHandler)
			r.Put("/accounts/me/transaction-pin", h.ChangeTransactionPINHandler)

			r.Get("/beneficiaries", h.ListBeneficiariesHandler)
			r.Post("/beneficiaries", h.CreateBeneficiaryHandler)
			r.Get("/beneficiaries/{id}", h.GetBeneficiaryHandler)
			r.Put("/beneficiaries/{id}", h.UpdateBeneficiaryHandler)
			r.Delete("/beneficiaries/{id}", h.DeleteBeneficiaryHandler)

			r.Get("/transactions", h.ListTransactionsHandler)
			r.Post("/transactions/deposit", h.DepositHandler)
			r.Post("/transactions/transfer", h.TransferHandler)
			r.Get("/transactions/{transactionID}", h.GetTransactionHandler)
		})
	})

	return r
}

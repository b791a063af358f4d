// internal/api/router.go
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"p2p-lending/internal/api/handler"
	"p2p-lending/internal/api/types"
)

// ServiceBanner is returned by GET /api/.
const ServiceBanner = "P2P Lending API"

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(ledgerHandler *handler.LedgerHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Bound every request, collaborator calls included

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, types.StatusResponse{Status: "ok"})
		})
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{"message": ServiceBanner})
		})
	})

	// Ledger routes keep the flat paths existing clients call.
	r.Post("/login", ledgerHandler.Login)
	r.Route("/user/{userID}", func(r chi.Router) {
		r.Get("/", ledgerHandler.GetUser)
		r.Get("/loans", ledgerHandler.ListLoans)
	})
	r.Post("/request_loan", ledgerHandler.RequestLoan)
	r.Post("/pay_loan", ledgerHandler.PayLoan)
	r.Post("/verify_identity", ledgerHandler.VerifyIdentity)

	r.Route("/wallet", func(r chi.Router) {
		r.Post("/deposit", ledgerHandler.Deposit)
		r.Post("/withdraw", ledgerHandler.Withdraw)
	})

	if logger != nil {
		logger.Debug("HTTP routes registered")
	}
	return r
}

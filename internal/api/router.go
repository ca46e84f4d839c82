package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter wires the read-side HTTP endpoints plus the payment webhook.
// The webhook handler is passed in so this package stays independent of
// the payments provider.
func NewRouter(ledger *LedgerService, webhook http.HandlerFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", ledger.handleHealth)
	r.Get("/users/{userId}/balance", ledger.handleGetBalance)
	r.Get("/users/{userId}/transactions", ledger.handleGetTransactions)
	r.Post("/webhooks/stripe", webhook)

	return r
}

func (s *LedgerService) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.HealthCheck(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *LedgerService) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")

	account, err := s.GetAccountDetails(r.Context(), userId)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve balance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":         account.UserId,
		"balance":         account.Balance,
		"lifetime_earned": account.LifetimeEarned,
		"lifetime_spent":  account.LifetimeSpent,
	})
}

func (s *LedgerService) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")

	params := store.HistoryParams{
		UserId: userId,
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
		Kind:   models.TransactionKind(strings.ToUpper(r.URL.Query().Get("kind"))),
	}

	page, err := s.GetTransactionHistory(r.Context(), params)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("Failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

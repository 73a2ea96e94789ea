package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// FiatHandler serves the manually tracked fiat balance endpoints.
type FiatHandler struct {
	store  domain.FiatStore
	logger *slog.Logger
}

// NewFiatHandler creates a FiatHandler backed by the given store.
func NewFiatHandler(store domain.FiatStore, logger *slog.Logger) *FiatHandler {
	return &FiatHandler{
		store:  store,
		logger: logger,
	}
}

// fiatBalanceBody is the request body for setting a fiat balance. Amount is
// a decimal string so no precision is lost in transit.
type fiatBalanceBody struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// ListFiat returns all manually tracked fiat balances.
// GET /api/fiat
func (h *FiatHandler) ListFiat(w http.ResponseWriter, r *http.Request) {
	balances, err := h.store.FiatBalances(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list fiat failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list fiat balances")
		return
	}

	out := make(map[string]string, len(balances))
	for _, b := range balances {
		out[string(b.Currency)] = b.Amount.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": out})
}

// SetFiat records or overwrites one fiat balance.
// PUT /api/fiat
func (h *FiatHandler) SetFiat(w http.ResponseWriter, r *http.Request) {
	var body fiatBalanceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(body.Currency))
	if currency == "" {
		writeError(w, http.StatusBadRequest, "missing currency")
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}

	if err := h.store.SetFiatBalance(r.Context(), domain.Asset(currency), amount); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: set fiat failed",
			slog.String("currency", currency),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to set fiat balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"currency": currency,
		"amount":   amount.String(),
	})
}

// RemoveFiat deletes one tracked fiat balance.
// DELETE /api/fiat/{currency}
func (h *FiatHandler) RemoveFiat(w http.ResponseWriter, r *http.Request) {
	currency := strings.ToUpper(pathParam(r, "currency"))
	if currency == "" {
		writeError(w, http.StatusBadRequest, "missing currency")
		return
	}

	if err := h.store.RemoveFiatBalance(r.Context(), domain.Asset(currency)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "fiat balance not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: remove fiat failed",
			slog.String("currency", currency),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to remove fiat balance")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

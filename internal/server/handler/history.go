package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// HistoryHandler serves read access to persisted snapshot history.
type HistoryHandler struct {
	store  domain.SnapshotStore
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler backed by the given store.
func NewHistoryHandler(store domain.SnapshotStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:  store,
		logger: logger,
	}
}

// assetHistoryResponse wraps the asset series with its identifying symbol.
type assetHistoryResponse struct {
	Asset   domain.Asset          `json:"asset"`
	Entries []domain.TimedBalance `json:"entries"`
}

// AssetHistory returns the persisted (timestamp, amount, value) series for
// one asset, optionally bounded by from_timestamp / to_timestamp.
// GET /api/history/assets/{symbol}
func (h *HistoryHandler) AssetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(pathParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing asset symbol")
		return
	}

	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp bound")
		return
	}

	entries, err := h.store.TimedBalances(r.Context(), domain.Asset(symbol), from, to)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: asset history failed",
			slog.String("asset", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to query asset history")
		return
	}

	writeJSON(w, http.StatusOK, assetHistoryResponse{
		Asset:   domain.Asset(symbol),
		Entries: entries,
	})
}

// LatestLocations returns the most recent per-location value distribution,
// total included, in the fixed persist order.
// GET /api/history/locations/latest
func (h *HistoryHandler) LatestLocations(w http.ResponseWriter, r *http.Request) {
	values, err := h.store.LatestLocationDistribution(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: latest locations failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to query location distribution")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"locations": values})
}

// NetValueHistory returns the persisted net worth series, optionally bounded
// by from_timestamp / to_timestamp.
// GET /api/history/netvalue
func (h *HistoryHandler) NetValueHistory(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp bound")
		return
	}

	points, err := h.store.NetValueSeries(r.Context(), from, to)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: net value history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to query net value history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": points})
}

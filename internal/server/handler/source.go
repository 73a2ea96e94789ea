package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jfilipcz/netfolio/internal/cache"
)

// StatusProvider exposes the fetch cache state of every known source.
type StatusProvider interface {
	Statuses() []cache.SourceStatus
}

// SourceHandler serves the per-source status endpoint.
type SourceHandler struct {
	statuses StatusProvider
	logger   *slog.Logger
}

// NewSourceHandler creates a SourceHandler with the given provider.
func NewSourceHandler(statuses StatusProvider, logger *slog.Logger) *SourceHandler {
	return &SourceHandler{
		statuses: statuses,
		logger:   logger,
	}
}

// sourceStatusView is the JSON shape of one source entry.
type sourceStatusView struct {
	Source    string `json:"source"`
	Kind      string `json:"kind"`
	HasResult bool   `json:"has_result"`
	FetchedAt string `json:"fetched_at,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// ListSources reports the cached fetch state of every source that has been
// queried at least once.
// GET /api/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	statuses := h.statuses.Statuses()

	out := make([]sourceStatusView, 0, len(statuses))
	for _, s := range statuses {
		view := sourceStatusView{
			Source:    s.Key.String(),
			Kind:      string(s.Key.Kind),
			HasResult: s.HasResult,
		}
		if !s.FetchedAt.IsZero() {
			view.FetchedAt = s.FetchedAt.UTC().Format(time.RFC3339)
		}
		if s.LastError != nil {
			view.LastError = s.LastError.Error()
		}
		out = append(out, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

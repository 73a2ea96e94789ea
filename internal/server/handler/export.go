package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// BlobDeleter removes a single object from the export bucket.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// ExportHandler serves the cold-storage export endpoints.
type ExportHandler struct {
	balances BalanceService
	exporter domain.Exporter
	deleter  BlobDeleter
	logger   *slog.Logger
}

// NewExportHandler creates an ExportHandler with the given dependencies.
func NewExportHandler(balances BalanceService, exporter domain.Exporter, deleter BlobDeleter, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		balances: balances,
		exporter: exporter,
		deleter:  deleter,
		logger:   logger,
	}
}

// ExportSnapshot runs a fresh aggregation pass without persisting it and
// uploads the resulting snapshot to the export bucket.
// POST /api/export/snapshot
func (h *ExportHandler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.balances.Run(r.Context(), time.Now().UTC(), false)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: export snapshot run failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to aggregate balances for export")
		return
	}

	path, err := h.exporter.ExportSnapshot(r.Context(), snap)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: export snapshot upload failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to upload snapshot export")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// ArchiveHistory uploads the net worth series recorded before the cutoff.
// The optional `before` query parameter is RFC 3339; it defaults to now.
// POST /api/export/history
func (h *ExportHandler) ArchiveHistory(w http.ResponseWriter, r *http.Request) {
	before := time.Now().UTC()
	if v := r.URL.Query().Get("before"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before timestamp")
			return
		}
		before = parsed.UTC()
	}

	count, err := h.exporter.ArchiveNetValueHistory(r.Context(), before)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to archive history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"archived": count,
		"before":   before.Format(time.RFC3339),
	})
}

// ListExports returns metadata for every stored export object.
// GET /api/export
func (h *ExportHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	infos, err := h.exporter.ListExports(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list exports failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list exports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"exports": infos})
}

// DeleteExport removes one export object by its full key.
// DELETE /api/export/{path...}
func (h *ExportHandler) DeleteExport(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r, "path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "missing export path")
		return
	}

	if err := h.deleter.Delete(r.Context(), path); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: delete export failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete export")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

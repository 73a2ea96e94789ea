package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jfilipcz/netfolio/internal/aggregator"
	"github.com/jfilipcz/netfolio/internal/domain"
	"github.com/jfilipcz/netfolio/internal/scheduler"
)

// BalanceService runs one full aggregation pass and returns the resulting
// snapshot. The concrete implementation is the aggregator.
type BalanceService interface {
	Run(ctx context.Context, now time.Time, save bool) (*domain.Snapshot, error)
}

// TaskScheduler submits aggregation runs for background execution and
// answers poll requests.
type TaskScheduler interface {
	Submit(ctx context.Context, name string, run scheduler.RunFunc) string
	Poll(id string) (domain.TaskRecord, error)
}

// BalanceHandler serves the balance query and task poll endpoints.
type BalanceHandler struct {
	balances BalanceService
	tasks    TaskScheduler
	logger   *slog.Logger
}

// NewBalanceHandler creates a BalanceHandler with the given service and logger.
func NewBalanceHandler(balances BalanceService, tasks TaskScheduler, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balances: balances,
		tasks:    tasks,
		logger:   logger,
	}
}

// QueryBalances runs a full aggregation pass and returns the snapshot.
//
//	GET /api/balances?save_data=true&async_query=false
//
// save_data (default true) controls persistence of the run's snapshot.
// async_query (default false) submits the run as a background task and
// responds immediately with a task id to poll.
func (h *BalanceHandler) QueryBalances(w http.ResponseWriter, r *http.Request) {
	save, err := parseBoolParam(r, "save_data", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	async, err := parseBoolParam(r, "async_query", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if async {
		id := h.tasks.Submit(r.Context(), "query_balances", func(ctx context.Context) (*domain.Snapshot, error) {
			return h.balances.Run(ctx, time.Now().UTC(), save)
		})
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
		return
	}

	snap, err := h.balances.Run(r.Context(), time.Now().UTC(), save)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: query balances failed",
			slog.String("error", err.Error()),
		)
		if aggregator.IsAllSourcesFailed(err) {
			writeError(w, http.StatusBadGateway, "all balance sources failed")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to query balances")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// PollTask returns the state of a background aggregation run.
// GET /api/tasks/{id}
func (h *BalanceHandler) PollTask(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing task id")
		return
	}

	rec, err := h.tasks.Poll(id)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: poll task failed",
			slog.String("task_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to poll task")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

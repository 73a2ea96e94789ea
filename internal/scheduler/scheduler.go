// Package scheduler provides asynchronous execution of aggregation runs: a
// submitted run gets a task id immediately, executes on its own goroutine,
// and transitions exactly once from pending to completed or failed. Pollers
// read the task table by id; completions are also published on the signal
// bus for push consumers.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// TaskChannel is the bus channel task lifecycle events are published on.
const TaskChannel = "tasks"

// RunFunc is the work a task executes.
type RunFunc func(ctx context.Context) (*domain.Snapshot, error)

// Scheduler owns the process-wide task table.
type Scheduler struct {
	mu     sync.RWMutex
	tasks  map[string]*domain.TaskRecord
	bus    domain.SignalBus // may be nil (events disabled)
	logger *slog.Logger
}

// New creates an empty Scheduler. bus may be nil to disable event
// publication.
func New(bus domain.SignalBus, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:  make(map[string]*domain.TaskRecord),
		bus:    bus,
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// Submit registers a new task and starts executing run on its own
// goroutine. It returns the task id immediately. The worker inherits the
// caller's context values but not its cancellation: an async run outlives
// the request that submitted it.
func (s *Scheduler) Submit(ctx context.Context, name string, run RunFunc) string {
	id := uuid.NewString()

	s.mu.Lock()
	s.tasks[id] = &domain.TaskRecord{
		ID:          id,
		Name:        name,
		Status:      domain.TaskStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "task submitted",
		slog.String("task_id", id),
		slog.String("name", name),
	)

	wctx := context.WithoutCancel(ctx)
	go func() {
		result, err := run(wctx)
		s.finish(wctx, id, result, err)
	}()

	return id
}

// Poll returns a copy of the task record for id, or
// domain.ErrTaskNotFound. A pending record is stable: it never exposes a
// partial result.
func (s *Scheduler) Poll(id string) (domain.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[id]
	if !ok {
		return domain.TaskRecord{}, domain.ErrTaskNotFound
	}
	return *rec, nil
}

// finish performs the exactly-once terminal transition for id and
// publishes the lifecycle event.
func (s *Scheduler) finish(ctx context.Context, id string, result *domain.Snapshot, err error) {
	s.mu.Lock()
	rec, ok := s.tasks[id]
	if !ok || rec.Status != domain.TaskStatusPending {
		s.mu.Unlock()
		return
	}
	rec.FinishedAt = time.Now().UTC()
	if err != nil {
		rec.Status = domain.TaskStatusFailed
		rec.Err = err.Error()
	} else {
		rec.Status = domain.TaskStatusCompleted
		rec.Result = result
	}
	status := rec.Status
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "task finished",
		slog.String("task_id", id),
		slog.String("status", string(status)),
	)

	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":   "task_" + string(status),
		"task_id": id,
	})
	if pubErr := s.bus.Publish(ctx, TaskChannel, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "publish task event failed",
			slog.String("task_id", id),
			slog.String("error", pubErr.Error()),
		)
	}
}

package domain

import "time"

// TaskStatus is the lifecycle state of an asynchronously executed run.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskRecord tracks one asynchronous aggregation run. It is written exactly
// once by the worker executing the run (the pending -> completed|failed
// transition) and read many times by pollers. A poll before completion
// yields a stable pending record, never a partial result.
type TaskRecord struct {
	ID          string     `json:"task_id"`
	Name        string     `json:"name"`
	Status      TaskStatus `json:"status"`
	Result      *Snapshot  `json:"result,omitempty"`
	Err         string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	FinishedAt  time.Time  `json:"finished_at,omitzero"`
}

package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jfilipcz/netfolio/internal/domain"
)

type MockSignalBus struct {
	mock.Mock
}

func (m *MockSignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	args := m.Called(ctx, channel, payload)
	return args.Error(0)
}

func (m *MockSignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	args := m.Called(ctx, channel)
	return args.Get(0).(<-chan []byte), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForTerminal(t *testing.T, s *Scheduler, id string) domain.TaskRecord {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		rec, err := s.Poll(id)
		require.NoError(t, err)
		if rec.Status != domain.TaskStatusPending {
			return rec
		}
		select {
		case <-deadline:
			t.Fatalf("task %s never left pending", id)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSubmit_CompletesWithResult(t *testing.T) {
	s := New(nil, testLogger())
	snap := &domain.Snapshot{NetValue: decimal.NewFromInt(12500)}

	started := make(chan struct{})
	id := s.Submit(context.Background(), "query_balances", func(ctx context.Context) (*domain.Snapshot, error) {
		<-started
		return snap, nil
	})
	require.NotEmpty(t, id)

	// The record is visible as pending before the work finishes.
	rec, err := s.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, rec.Status)
	assert.Nil(t, rec.Result)
	assert.False(t, rec.SubmittedAt.IsZero())

	close(started)
	rec = waitForTerminal(t, s, id)
	assert.Equal(t, domain.TaskStatusCompleted, rec.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "12500", rec.Result.NetValue.String())
	assert.Empty(t, rec.Err)
	assert.False(t, rec.FinishedAt.IsZero())
}

func TestSubmit_RecordsFailure(t *testing.T) {
	s := New(nil, testLogger())

	id := s.Submit(context.Background(), "query_balances", func(ctx context.Context) (*domain.Snapshot, error) {
		return nil, errors.New("aggregator: all sources failed")
	})

	rec := waitForTerminal(t, s, id)
	assert.Equal(t, domain.TaskStatusFailed, rec.Status)
	assert.Nil(t, rec.Result)
	assert.Contains(t, rec.Err, "all sources failed")
}

func TestPoll_UnknownTask(t *testing.T) {
	s := New(nil, testLogger())

	_, err := s.Poll("b9f2f6e0-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestSubmit_WorkerSurvivesCallerCancellation(t *testing.T) {
	s := New(nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	id := s.Submit(ctx, "query_balances", func(ctx context.Context) (*domain.Snapshot, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &domain.Snapshot{}, nil
	})
	cancel()

	rec := waitForTerminal(t, s, id)
	assert.Equal(t, domain.TaskStatusCompleted, rec.Status)
}

func TestFinish_PublishesLifecycleEvent(t *testing.T) {
	bus := new(MockSignalBus)
	published := make(chan []byte, 1)
	bus.On("Publish", mock.Anything, TaskChannel, mock.Anything).
		Run(func(args mock.Arguments) {
			published <- args.Get(2).([]byte)
		}).
		Return(nil)

	s := New(bus, testLogger())
	id := s.Submit(context.Background(), "query_balances", func(ctx context.Context) (*domain.Snapshot, error) {
		return &domain.Snapshot{}, nil
	})

	select {
	case payload := <-published:
		var evt struct {
			Event  string `json:"event"`
			TaskID string `json:"task_id"`
		}
		require.NoError(t, json.Unmarshal(payload, &evt))
		assert.Equal(t, "task_completed", evt.Event)
		assert.Equal(t, id, evt.TaskID)
	case <-time.After(2 * time.Second):
		t.Fatal("no task event published")
	}

	bus.AssertExpectations(t)
}

func TestTaskRecord_JSONShape(t *testing.T) {
	s := New(nil, testLogger())
	id := s.Submit(context.Background(), "query_balances", func(ctx context.Context) (*domain.Snapshot, error) {
		return nil, errors.New("boom")
	})
	rec := waitForTerminal(t, s, id)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Contains(t, out, "task_id")
	assert.Contains(t, out, "error")
	assert.NotContains(t, out, "result", "failed tasks omit the result field")
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jfilipcz/netfolio/internal/cache"
	"github.com/jfilipcz/netfolio/internal/domain"
)

type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) ExportSnapshot(ctx context.Context, snap *domain.Snapshot) (string, error) {
	args := m.Called(ctx, snap)
	return args.String(0), args.Error(1)
}

func (m *MockExporter) ArchiveNetValueHistory(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockExporter) ListExports(ctx context.Context) ([]domain.BlobInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.BlobInfo), args.Error(1)
}

type MockBlobDeleter struct {
	mock.Mock
}

func (m *MockBlobDeleter) Delete(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

type MockStatusProvider struct {
	mock.Mock
}

func (m *MockStatusProvider) Statuses() []cache.SourceStatus {
	args := m.Called()
	return args.Get(0).([]cache.SourceStatus)
}

func TestExportSnapshot_Handler(t *testing.T) {
	svc := new(MockBalanceService)
	svc.On("Run", mock.Anything, mock.Anything, false).Return(testSnapshot(), nil)

	exporter := new(MockExporter)
	exporter.On("ExportSnapshot", mock.Anything, mock.Anything).
		Return("exports/snapshots/2026-09-01T120000Z.json", nil)

	h := NewExportHandler(svc, exporter, new(MockBlobDeleter), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/export/snapshot", nil)
	rec := httptest.NewRecorder()
	h.ExportSnapshot(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"path":"exports/snapshots/2026-09-01T120000Z.json"}`, rec.Body.String())
	svc.AssertExpectations(t)
	exporter.AssertExpectations(t)
}

func TestExportSnapshot_Handler_RunFailure(t *testing.T) {
	svc := new(MockBalanceService)
	svc.On("Run", mock.Anything, mock.Anything, false).Return(nil, errors.New("all sources down"))

	exporter := new(MockExporter)
	h := NewExportHandler(svc, exporter, new(MockBlobDeleter), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/export/snapshot", nil)
	rec := httptest.NewRecorder()
	h.ExportSnapshot(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	exporter.AssertNotCalled(t, "ExportSnapshot", mock.Anything, mock.Anything)
}

func TestArchiveHistory(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	exporter := new(MockExporter)
	exporter.On("ArchiveNetValueHistory", mock.Anything, cutoff).Return(int64(42), nil)

	h := NewExportHandler(new(MockBalanceService), exporter, new(MockBlobDeleter), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/export/history?before=2026-08-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ArchiveHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Archived int64  `json:"archived"`
		Before   string `json:"before"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, int64(42), out.Archived)
	assert.Equal(t, "2026-08-01T00:00:00Z", out.Before)
}

func TestArchiveHistory_InvalidCutoff(t *testing.T) {
	exporter := new(MockExporter)
	h := NewExportHandler(new(MockBalanceService), exporter, new(MockBlobDeleter), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/export/history?before=yesterday", nil)
	rec := httptest.NewRecorder()
	h.ArchiveHistory(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	exporter.AssertNotCalled(t, "ArchiveNetValueHistory", mock.Anything, mock.Anything)
}

func TestDeleteExport(t *testing.T) {
	deleter := new(MockBlobDeleter)
	deleter.On("Delete", mock.Anything, "exports/snapshots/old.json").Return(nil)

	h := NewExportHandler(new(MockBalanceService), new(MockExporter), deleter, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/export/exports/snapshots/old.json", nil)
	req.SetPathValue("path", "exports/snapshots/old.json")
	rec := httptest.NewRecorder()
	h.DeleteExport(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	deleter.AssertExpectations(t)
}

func TestListSources(t *testing.T) {
	fetchErr := errors.New("binance: unauthorized")
	provider := new(MockStatusProvider)
	provider.On("Statuses").Return([]cache.SourceStatus{
		{
			Key:       domain.SourceKey{Kind: domain.SourceKindExchange, Identity: "binance"},
			HasResult: false,
			LastError: fetchErr,
		},
		{
			Key:       domain.SourceKey{Kind: domain.SourceKindFiat, Identity: "manual"},
			HasResult: true,
			FetchedAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		},
	})

	h := NewSourceHandler(provider, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
	rec := httptest.NewRecorder()
	h.ListSources(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Sources []struct {
			Source    string `json:"source"`
			Kind      string `json:"kind"`
			HasResult bool   `json:"has_result"`
			FetchedAt string `json:"fetched_at"`
			LastError string `json:"last_error"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Sources, 2)

	assert.Equal(t, "exchange:binance", out.Sources[0].Source)
	assert.False(t, out.Sources[0].HasResult)
	assert.Equal(t, "binance: unauthorized", out.Sources[0].LastError)
	assert.Empty(t, out.Sources[0].FetchedAt)

	assert.Equal(t, "fiat:manual", out.Sources[1].Source)
	assert.True(t, out.Sources[1].HasResult)
	assert.Equal(t, "2026-09-01T12:00:00Z", out.Sources[1].FetchedAt)
}

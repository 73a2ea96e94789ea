package price

import (
	"context"
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

type MockPriceOracle struct {
	mock.Mock
}

func (m *MockPriceOracle) QueryPrice(ctx context.Context, asset, currency domain.Asset) (decimal.Decimal, error) {
	args := m.Called(ctx, asset, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockPriceCache struct {
	mock.Mock
}

func (m *MockPriceCache) GetPrice(ctx context.Context, asset, currency domain.Asset) (decimal.Decimal, time.Time, error) {
	args := m.Called(ctx, asset, currency)
	return args.Get(0).(decimal.Decimal), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockPriceCache) SetPrice(ctx context.Context, asset, currency domain.Asset, price decimal.Decimal, ts time.Time) error {
	args := m.Called(ctx, asset, currency, price, ts)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPriceOf_ValuationCurrencyIsAlwaysOne(t *testing.T) {
	oracle := new(MockPriceOracle)
	r := NewResolver(oracle, nil, domain.AssetUSD, testLogger())

	price, err := r.PriceOf(context.Background(), domain.AssetUSD)
	require.NoError(t, err)
	assert.Equal(t, "1", price.String())
	oracle.AssertNotCalled(t, "QueryPrice", mock.Anything, mock.Anything, mock.Anything)
}

func TestPriceOf_CacheHitSkipsOracle(t *testing.T) {
	oracle := new(MockPriceOracle)
	pc := new(MockPriceCache)
	pc.On("GetPrice", mock.Anything, domain.AssetETH, domain.AssetUSD).
		Return(decimal.NewFromInt(1000), time.Now().UTC(), nil)

	r := NewResolver(oracle, pc, domain.AssetUSD, testLogger())

	price, err := r.PriceOf(context.Background(), domain.AssetETH)
	require.NoError(t, err)
	assert.Equal(t, "1000", price.String())
	oracle.AssertNotCalled(t, "QueryPrice", mock.Anything, mock.Anything, mock.Anything)
	pc.AssertExpectations(t)
}

func TestPriceOf_CacheMissQueriesOracleAndBackfills(t *testing.T) {
	oracle := new(MockPriceOracle)
	oracle.On("QueryPrice", mock.Anything, domain.AssetBTC, domain.AssetUSD).
		Return(decimal.NewFromInt(50000), nil)

	pc := new(MockPriceCache)
	pc.On("GetPrice", mock.Anything, domain.AssetBTC, domain.AssetUSD).
		Return(decimal.Zero, time.Time{}, domain.ErrNotFound)
	pc.On("SetPrice", mock.Anything, domain.AssetBTC, domain.AssetUSD, decimal.NewFromInt(50000), mock.Anything).
		Return(nil)

	r := NewResolver(oracle, pc, domain.AssetUSD, testLogger())

	price, err := r.PriceOf(context.Background(), domain.AssetBTC)
	require.NoError(t, err)
	assert.Equal(t, "50000", price.String())
	oracle.AssertExpectations(t)
	pc.AssertExpectations(t)
}

func TestPriceOf_CacheFailuresDegradeToOracle(t *testing.T) {
	oracle := new(MockPriceOracle)
	oracle.On("QueryPrice", mock.Anything, domain.AssetETH, domain.AssetUSD).
		Return(decimal.NewFromInt(1000), nil)

	pc := new(MockPriceCache)
	pc.On("GetPrice", mock.Anything, domain.AssetETH, domain.AssetUSD).
		Return(decimal.Zero, time.Time{}, errors.New("redis: connection refused"))
	pc.On("SetPrice", mock.Anything, domain.AssetETH, domain.AssetUSD, mock.Anything, mock.Anything).
		Return(errors.New("redis: connection refused"))

	r := NewResolver(oracle, pc, domain.AssetUSD, testLogger())

	price, err := r.PriceOf(context.Background(), domain.AssetETH)
	require.NoError(t, err)
	assert.Equal(t, "1000", price.String())
}

func TestPriceOf_OracleFailureSurfaces(t *testing.T) {
	oracle := new(MockPriceOracle)
	oracle.On("QueryPrice", mock.Anything, domain.Asset("RDN"), domain.AssetUSD).
		Return(decimal.Zero, domain.ErrPriceUnavailable)

	r := NewResolver(oracle, nil, domain.AssetUSD, testLogger())

	_, err := r.PriceOf(context.Background(), domain.Asset("RDN"))
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestPriceOf_NoCacheConfigured(t *testing.T) {
	oracle := new(MockPriceOracle)
	oracle.On("QueryPrice", mock.Anything, domain.AssetETH, domain.AssetEUR).
		Return(decimal.RequireFromString("920.5"), nil)

	r := NewResolver(oracle, nil, domain.AssetEUR, testLogger())

	price, err := r.PriceOf(context.Background(), domain.AssetETH)
	require.NoError(t, err)
	assert.Equal(t, "920.5", price.String())
	assert.Equal(t, domain.AssetEUR, r.Currency())
}

package aggregator

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

	"github.com/jfilipcz/netfolio/internal/cache"
	"github.com/jfilipcz/netfolio/internal/domain"
)

type MockSource struct {
	mock.Mock
	key      domain.SourceKey
	location domain.Location
}

func (m *MockSource) Key() domain.SourceKey     { return m.key }
func (m *MockSource) Location() domain.Location { return m.location }

func (m *MockSource) FetchBalances(ctx context.Context) (domain.AssetAmounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.AssetAmounts), args.Error(1)
}

type MockPriceResolver struct {
	mock.Mock
}

func (m *MockPriceResolver) PriceOf(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPriceResolver) Currency() domain.Asset {
	args := m.Called()
	return args.Get(0).(domain.Asset)
}

type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockSnapshotStore) TimedBalances(ctx context.Context, asset domain.Asset, from, to *time.Time) ([]domain.TimedBalance, error) {
	args := m.Called(ctx, asset, from, to)
	return args.Get(0).([]domain.TimedBalance), args.Error(1)
}

func (m *MockSnapshotStore) LatestLocationDistribution(ctx context.Context) ([]domain.TimedLocationValue, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.TimedLocationValue), args.Error(1)
}

func (m *MockSnapshotStore) NetValueSeries(ctx context.Context, from, to *time.Time) ([]domain.NetValuePoint, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]domain.NetValuePoint), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func exchangeSource(name string) *MockSource {
	return &MockSource{
		key:      domain.SourceKey{Kind: domain.SourceKindExchange, Identity: name},
		location: domain.Location(name),
	}
}

func chainSource(chain string) *MockSource {
	return &MockSource{
		key:      domain.SourceKey{Kind: domain.SourceKindBlockchain, Identity: chain},
		location: domain.LocationBlockchain,
	}
}

func fiatSource() *MockSource {
	return &MockSource{
		key:      domain.SourceKey{Kind: domain.SourceKindFiat, Identity: "manual"},
		location: domain.LocationBanks,
	}
}

func newTestAggregator(
	t *testing.T,
	sources []domain.BalanceSource,
	exchanges []domain.Location,
	resolver PriceResolver,
	store domain.SnapshotStore,
	cacheTTL time.Duration,
) *Aggregator {
	t.Helper()
	return New(sources, exchanges, cache.New(testLogger()), resolver, store, cacheTTL, time.Second, testLogger())
}

func amounts(kv map[domain.Asset]string) domain.AssetAmounts {
	out := make(domain.AssetAmounts, len(kv))
	for asset, amount := range kv {
		out[asset] = decimal.RequireFromString(amount)
	}
	return out
}

func TestRun_AggregatesAcrossSources(t *testing.T) {
	binance := exchangeSource("binance")
	binance.On("FetchBalances", mock.Anything).Return(amounts(map[domain.Asset]string{
		"ETH": "10",
		"RDN": "20",
	}), nil)

	chain := chainSource("ethereum")
	chain.On("FetchBalances", mock.Anything).Return(amounts(map[domain.Asset]string{
		"ETH": "0.000000000003",
		"BTC": "0.08",
	}), nil)

	banks := fiatSource()
	banks.On("FetchBalances", mock.Anything).Return(amounts(map[domain.Asset]string{
		"EUR": "1550",
	}), nil)

	resolver := new(MockPriceResolver)
	resolver.On("PriceOf", mock.Anything, domain.Asset("ETH")).Return(decimal.NewFromInt(1000), nil)
	resolver.On("PriceOf", mock.Anything, domain.Asset("RDN")).Return(decimal.NewFromInt(2), nil)
	resolver.On("PriceOf", mock.Anything, domain.Asset("BTC")).Return(decimal.NewFromInt(50000), nil)
	resolver.On("PriceOf", mock.Anything, domain.Asset("EUR")).Return(decimal.RequireFromString("1.1"), nil)

	store := new(MockSnapshotStore)
	store.On("SaveSnapshot", mock.Anything, mock.Anything).Return(nil)

	agg := newTestAggregator(t,
		[]domain.BalanceSource{binance, chain, banks},
		[]domain.Location{"binance"},
		resolver, store, 0,
	)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	snap, err := agg.Run(context.Background(), now, true)
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, now, snap.Timestamp)

	// ETH sums across exchange and chain without losing wei precision.
	require.Contains(t, snap.Assets, domain.Asset("ETH"))
	eth := snap.Assets["ETH"]
	assert.Equal(t, "10.000000000003", eth.Amount.String())
	require.NotNil(t, eth.Value)
	assert.Equal(t, "10000.000000003", eth.Value.String())

	assert.Equal(t, "15745.000000003", snap.NetValue.String())

	assert.Equal(t, "10040", snap.Locations["binance"].Value.String())
	assert.Equal(t, "4000.000000003", snap.Locations[domain.LocationBlockchain].Value.String())
	assert.Equal(t, "1705", snap.Locations[domain.LocationBanks].Value.String())
	assert.Equal(t, snap.NetValue.String(), snap.Locations[domain.LocationTotal].Value.String())
	assert.Equal(t, "100", snap.Locations[domain.LocationTotal].Percentage.String())

	// Location totals reconcile with net worth exactly.
	sum := decimal.Zero
	for loc, entry := range snap.Locations {
		if loc == domain.LocationTotal {
			continue
		}
		sum = sum.Add(entry.Value)
	}
	assert.True(t, sum.Equal(snap.NetValue))

	assert.Equal(t, []domain.Location{
		"binance", domain.LocationTotal, domain.LocationBanks, domain.LocationBlockchain,
	}, snap.LocationOrder)

	store.AssertNumberOfCalls(t, "SaveSnapshot", 1)
	binance.AssertExpectations(t)
	chain.AssertExpectations(t)
	banks.AssertExpectations(t)
}

func TestRun_PartialSourceFailureDropsSource(t *testing.T) {
	binance := exchangeSource("binance")
	binance.On("FetchBalances", mock.Anything).Return(nil, errors.New("binance: api unavailable"))

	banks := fiatSource()
	banks.On("FetchBalances", mock.Anything).Return(amounts(map[domain.Asset]string{
		"EUR": "100",
	}), nil)

	resolver := new(MockPriceResolver)
	resolver.On("PriceOf", mock.Anything, domain.Asset("EUR")).Return(decimal.RequireFromString("1.1"), nil)

	store := new(MockSnapshotStore)

	agg := newTestAggregator(t,
		[]domain.BalanceSource{binance, banks},
		[]domain.Location{"binance"},
		resolver, store, 0,
	)

	snap, err := agg.Run(context.Background(), time.Now().UTC(), false)
	require.NoError(t, err)

	assert.NotContains(t, snap.Locations, domain.Location("binance"))
	assert.Contains(t, snap.Locations, domain.LocationBanks)
	assert.Equal(t, "110", snap.NetValue.String())

	// The failed exchange drops out of the location order too.
	assert.Equal(t, []domain.Location{
		domain.LocationTotal, domain.LocationBanks,
	}, snap.LocationOrder)
}

func TestRun_AllSourcesFailed(t *testing.T) {
	binance := exchangeSource("binance")
	binance.On("FetchBalances", mock.Anything).Return(nil, errors.New("binance: api unavailable"))

	chain := chainSource("bitcoin")
	chain.On("FetchBalances", mock.Anything).Return(nil, errors.New("blockstream: timeout"))

	resolver := new(MockPriceResolver)
	store := new(MockSnapshotStore)

	agg := newTestAggregator(t,
		[]domain.BalanceSource{binance, chain},
		[]domain.Location{"binance"},
		resolver, store, 0,
	)

	snap, err := agg.Run(context.Background(), time.Now().UTC(), true)
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, IsAllSourcesFailed(err))
	assert.ErrorIs(t, err, domain.ErrAllSourcesFailed)
	store.AssertNotCalled(t, "SaveSnapshot", mock.Anything, mock.Anything)
}

func TestRun_UnpricedAssetKeepsAmount(t *testing.T) {
	binance := exchangeSource("binance")
	binance.On("FetchBalances", mock.Anything).Return(amounts(map[domain.Asset]string{
		"ETH": "2",
		"RDN": "20",
	}), nil)

	resolver := new(MockPriceResolver)
	resolver.On("PriceOf", mock.Anything, domain.Asset("ETH")).Return(decimal.NewFromInt(1000), nil)
	resolver.On("PriceOf", mock.Anything, domain.Asset("RDN")).Return(decimal.Zero, domain.ErrPriceUnavailable)
	resolver.On("Currency").Return(domain.AssetUSD).Maybe()

	store := new(MockSnapshotStore)

	agg := newTestAggregator(t,
		[]domain.BalanceSource{binance},
		[]domain.Location{"binance"},
		resolver, store, 0,
	)

	snap, err := agg.Run(context.Background(), time.Now().UTC(), false)
	require.NoError(t, err)

	rdn := snap.Assets["RDN"]
	assert.Equal(t, "20", rdn.Amount.String())
	assert.Nil(t, rdn.Value)
	assert.Nil(t, rdn.Percentage)

	// The unpriced asset contributes nothing to net worth or its location.
	assert.Equal(t, "2000", snap.NetValue.String())
	assert.Equal(t, "2000", snap.Locations["binance"].Value.String())

	eth := snap.Assets["ETH"]
	require.NotNil(t, eth.Percentage)
	assert.Equal(t, "100", eth.Percentage.String())
}

func TestRun_SaveFalseNeverPersists(t *testing.T) {
	banks := fiatSource()
	banks.On("FetchBalances", mock.Anything).Return(amounts(map[domain.Asset]string{
		"USD": "50",
	}), nil)

	resolver := new(MockPriceResolver)
	resolver.On("PriceOf", mock.Anything, domain.Asset("USD")).Return(decimal.NewFromInt(1), nil)

	store := new(MockSnapshotStore)

	agg := newTestAggregator(t, []domain.BalanceSource{banks}, nil, resolver, store, 0)

	_, err := agg.Run(context.Background(), time.Now().UTC(), false)
	require.NoError(t, err)
	store.AssertNotCalled(t, "SaveSnapshot", mock.Anything, mock.Anything)
}

func TestRun_PersistFailureSurfaces(t *testing.T) {
	banks := fiatSource()
	banks.On("FetchBalances", mock.Anything).Return(amounts(map[domain.Asset]string{
		"USD": "50",
	}), nil)

	resolver := new(MockPriceResolver)
	resolver.On("PriceOf", mock.Anything, domain.Asset("USD")).Return(decimal.NewFromInt(1), nil)

	store := new(MockSnapshotStore)
	store.On("SaveSnapshot", mock.Anything, mock.Anything).Return(errors.New("postgres: connection reset"))

	agg := newTestAggregator(t, []domain.BalanceSource{banks}, nil, resolver, store, 0)

	snap, err := agg.Run(context.Background(), time.Now().UTC(), true)
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.Contains(t, err.Error(), "persist snapshot")
	assert.False(t, IsAllSourcesFailed(err))
}

func TestRun_ZeroNetWorthPercentages(t *testing.T) {
	banks := fiatSource()
	banks.On("FetchBalances", mock.Anything).Return(amounts(map[domain.Asset]string{
		"EUR": "0",
	}), nil)

	resolver := new(MockPriceResolver)
	resolver.On("PriceOf", mock.Anything, domain.Asset("EUR")).Return(decimal.RequireFromString("1.1"), nil)

	store := new(MockSnapshotStore)

	agg := newTestAggregator(t, []domain.BalanceSource{banks}, nil, resolver, store, 0)

	snap, err := agg.Run(context.Background(), time.Now().UTC(), false)
	require.NoError(t, err)

	assert.True(t, snap.NetValue.IsZero())
	eur := snap.Assets["EUR"]
	require.NotNil(t, eur.Percentage)
	assert.True(t, eur.Percentage.IsZero())
	assert.True(t, snap.Locations[domain.LocationTotal].Percentage.IsZero())
}

func TestRun_CacheServesRepeatRuns(t *testing.T) {
	banks := fiatSource()
	banks.On("FetchBalances", mock.Anything).Return(amounts(map[domain.Asset]string{
		"EUR": "100",
	}), nil).Once()

	resolver := new(MockPriceResolver)
	resolver.On("PriceOf", mock.Anything, domain.Asset("EUR")).Return(decimal.NewFromInt(1), nil)

	store := new(MockSnapshotStore)

	agg := newTestAggregator(t, []domain.BalanceSource{banks}, nil, resolver, store, 10*time.Minute)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	_, err := agg.Run(context.Background(), now, false)
	require.NoError(t, err)

	// Second run within the TTL is served from the fetch cache.
	snap, err := agg.Run(context.Background(), now.Add(time.Minute), false)
	require.NoError(t, err)
	assert.Equal(t, "100", snap.NetValue.String())

	banks.AssertExpectations(t)
}

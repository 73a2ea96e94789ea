package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfilipcz/netfolio/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKey(identity string) domain.SourceKey {
	return domain.SourceKey{Kind: domain.SourceKindExchange, Identity: identity}
}

func fixedFetch(amounts domain.AssetAmounts, calls *int) FetchFunc {
	return func(ctx context.Context) (domain.AssetAmounts, error) {
		*calls++
		return amounts, nil
	}
}

func TestGetOrFetch_ServesFreshEntry(t *testing.T) {
	c := New(testLogger())
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	balance := domain.AssetAmounts{domain.AssetETH: decimal.NewFromInt(2)}

	var calls int
	got, err := c.GetOrFetch(context.Background(), testKey("binance"), now, time.Minute, fixedFetch(balance, &calls))
	require.NoError(t, err)
	assert.Equal(t, "2", got[domain.AssetETH].String())

	got, err = c.GetOrFetch(context.Background(), testKey("binance"), now.Add(30*time.Second), time.Minute, fixedFetch(balance, &calls))
	require.NoError(t, err)
	assert.Equal(t, "2", got[domain.AssetETH].String())
	assert.Equal(t, 1, calls)
}

func TestGetOrFetch_RefetchesAfterExpiry(t *testing.T) {
	c := New(testLogger())
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	balance := domain.AssetAmounts{domain.AssetETH: decimal.NewFromInt(2)}

	var calls int
	_, err := c.GetOrFetch(context.Background(), testKey("binance"), now, time.Minute, fixedFetch(balance, &calls))
	require.NoError(t, err)

	_, err = c.GetOrFetch(context.Background(), testKey("binance"), now.Add(time.Minute), time.Minute, fixedFetch(balance, &calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrFetch_ZeroTTLAlwaysFetches(t *testing.T) {
	c := New(testLogger())
	now := time.Now().UTC()
	balance := domain.AssetAmounts{domain.AssetBTC: decimal.RequireFromString("0.08")}

	var calls int
	for i := 0; i < 3; i++ {
		_, err := c.GetOrFetch(context.Background(), testKey("poloniex"), now, 0, fixedFetch(balance, &calls))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestGetOrFetch_KeysAreIndependent(t *testing.T) {
	c := New(testLogger())
	now := time.Now().UTC()

	var binanceCalls, poloniexCalls int
	_, err := c.GetOrFetch(context.Background(), testKey("binance"), now, time.Minute,
		fixedFetch(domain.AssetAmounts{domain.AssetETH: decimal.NewFromInt(1)}, &binanceCalls))
	require.NoError(t, err)

	got, err := c.GetOrFetch(context.Background(), testKey("poloniex"), now, time.Minute,
		fixedFetch(domain.AssetAmounts{domain.AssetBTC: decimal.NewFromInt(3)}, &poloniexCalls))
	require.NoError(t, err)

	assert.Equal(t, 1, binanceCalls)
	assert.Equal(t, 1, poloniexCalls)
	assert.NotContains(t, got, domain.AssetETH)
}

func TestGetOrFetch_FailurePreservesPriorSuccess(t *testing.T) {
	c := New(testLogger())
	key := testKey("binance")
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	balance := domain.AssetAmounts{domain.AssetETH: decimal.NewFromInt(5)}

	var calls int
	_, err := c.GetOrFetch(context.Background(), key, now, time.Minute, fixedFetch(balance, &calls))
	require.NoError(t, err)

	fetchErr := errors.New("binance: 502 bad gateway")
	_, err = c.GetOrFetch(context.Background(), key, now.Add(2*time.Minute), time.Minute,
		func(ctx context.Context) (domain.AssetAmounts, error) {
			return nil, fetchErr
		})
	assert.ErrorIs(t, err, fetchErr)
	assert.ErrorIs(t, c.LastError(key), fetchErr)

	// The prior success still serves a caller for whom it is fresh.
	got, err := c.GetOrFetch(context.Background(), key, now.Add(30*time.Second), time.Minute,
		func(ctx context.Context) (domain.AssetAmounts, error) {
			t.Fatal("fetch should not run for a fresh entry")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "5", got[domain.AssetETH].String())
}

func TestGetOrFetch_ReturnedMapIsIsolated(t *testing.T) {
	c := New(testLogger())
	key := testKey("binance")
	now := time.Now().UTC()

	var calls int
	got, err := c.GetOrFetch(context.Background(), key, now, time.Minute,
		fixedFetch(domain.AssetAmounts{domain.AssetETH: decimal.NewFromInt(1)}, &calls))
	require.NoError(t, err)

	// Mutating the returned map must not corrupt the cached copy.
	got[domain.AssetETH] = decimal.NewFromInt(999)

	cached, err := c.GetOrFetch(context.Background(), key, now, time.Minute,
		func(ctx context.Context) (domain.AssetAmounts, error) {
			t.Fatal("fetch should not run for a fresh entry")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "1", cached[domain.AssetETH].String())
}

func TestStatuses(t *testing.T) {
	c := New(testLogger())
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	var calls int
	_, err := c.GetOrFetch(context.Background(), testKey("poloniex"), now, time.Minute,
		fixedFetch(domain.AssetAmounts{domain.AssetBTC: decimal.NewFromInt(1)}, &calls))
	require.NoError(t, err)

	fetchErr := errors.New("binance: unauthorized")
	_, _ = c.GetOrFetch(context.Background(), testKey("binance"), now, time.Minute,
		func(ctx context.Context) (domain.AssetAmounts, error) {
			return nil, fetchErr
		})

	statuses := c.Statuses()
	require.Len(t, statuses, 2)

	// Sorted by key string, so binance before poloniex.
	assert.Equal(t, "exchange:binance", statuses[0].Key.String())
	assert.False(t, statuses[0].HasResult)
	assert.ErrorIs(t, statuses[0].LastError, fetchErr)

	assert.Equal(t, "exchange:poloniex", statuses[1].Key.String())
	assert.True(t, statuses[1].HasResult)
	assert.Equal(t, now, statuses[1].FetchedAt)
	assert.NoError(t, statuses[1].LastError)
}

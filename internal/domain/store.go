package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TimedBalance is one persisted (timestamp, asset, amount, value) point.
type TimedBalance struct {
	Time     time.Time       `json:"time"`
	Asset    Asset           `json:"asset"`
	Amount   decimal.Decimal `json:"amount"`
	USDValue decimal.Decimal `json:"usd_value"`
}

// TimedLocationValue is one persisted (timestamp, location, value) point.
type TimedLocationValue struct {
	Time     time.Time       `json:"time"`
	Location Location        `json:"location"`
	USDValue decimal.Decimal `json:"usd_value"`
}

// NetValuePoint is one persisted (timestamp, net worth) point.
type NetValuePoint struct {
	Time     time.Time       `json:"time"`
	USDValue decimal.Decimal `json:"usd_value"`
}

// SnapshotStore is the append-only time-series store for snapshot history.
// SaveSnapshot must be atomic: either every row of a run's write set becomes
// visible or none does, so concurrent readers never observe a half-written
// snapshot.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// TimedBalances returns the (timestamp, amount) series for one asset,
	// ordered by time ascending. Nil bounds mean unbounded.
	TimedBalances(ctx context.Context, asset Asset, from, to *time.Time) ([]TimedBalance, error)

	// LatestLocationDistribution returns the most recent full location
	// report in the fixed persist order, total included.
	LatestLocationDistribution(ctx context.Context) ([]TimedLocationValue, error)

	// NetValueSeries returns the net worth series ordered by time ascending.
	NetValueSeries(ctx context.Context, from, to *time.Time) ([]NetValuePoint, error)
}

// FiatBalance is a manually recorded fiat holding.
type FiatBalance struct {
	Currency Asset
	Amount   decimal.Decimal
}

// FiatStore persists manually entered fiat holdings.
type FiatStore interface {
	SetFiatBalance(ctx context.Context, currency Asset, amount decimal.Decimal) error
	FiatBalances(ctx context.Context) ([]FiatBalance, error)
	RemoveFiatBalance(ctx context.Context, currency Asset) error
}

// PriceOracle answers "unit price of asset in currency". Implementations
// return ErrPriceUnavailable when no quote exists for the pair.
type PriceOracle interface {
	QueryPrice(ctx context.Context, asset, currency Asset) (decimal.Decimal, error)
}

// PriceCache provides fast access to recently resolved unit prices.
type PriceCache interface {
	GetPrice(ctx context.Context, asset, currency Asset) (decimal.Decimal, time.Time, error)
	SetPrice(ctx context.Context, asset, currency Asset, price decimal.Decimal, ts time.Time) error
}

// StreamMessage represents a single entry from a bus stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub used to push task lifecycle and snapshot
// events to interested consumers (the WebSocket hub).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

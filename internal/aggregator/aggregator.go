// Package aggregator implements the balance aggregation and snapshot
// engine: fan out to every configured balance source, merge the results
// into one ledger, price every asset, compute per-location totals and
// percentages, and optionally persist the snapshot atomically.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jfilipcz/netfolio/internal/cache"
	"github.com/jfilipcz/netfolio/internal/domain"
)

// PriceResolver is the pricing capability the engine depends on.
type PriceResolver interface {
	PriceOf(ctx context.Context, asset domain.Asset) (decimal.Decimal, error)
	Currency() domain.Asset
}

// Aggregator orchestrates one aggregation run over the fixed set of
// configured sources. It owns the ledger and snapshot only for the duration
// of a run; the fetch cache is process-wide and shared across runs.
type Aggregator struct {
	sources           []domain.BalanceSource
	exchangeLocations []domain.Location
	fetchCache        *cache.FetchCache
	prices            PriceResolver
	store             domain.SnapshotStore
	cacheTTL          time.Duration
	fetchTimeout      time.Duration
	logger            *slog.Logger
}

// New creates an Aggregator. exchangeLocations is the configured exchange
// order, which fixes the location persist order.
func New(
	sources []domain.BalanceSource,
	exchangeLocations []domain.Location,
	fetchCache *cache.FetchCache,
	prices PriceResolver,
	store domain.SnapshotStore,
	cacheTTL time.Duration,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		sources:           sources,
		exchangeLocations: exchangeLocations,
		fetchCache:        fetchCache,
		prices:            prices,
		store:             store,
		cacheTTL:          cacheTTL,
		fetchTimeout:      fetchTimeout,
		logger:            logger.With(slog.String("component", "aggregator")),
	}
}

// Currency returns the valuation currency every holding is converted into.
func (a *Aggregator) Currency() domain.Asset {
	return a.prices.Currency()
}

// fetchOutcome is the result of one source fetch within a run.
type fetchOutcome struct {
	balances domain.SourceBalances
	err      error
}

// Run executes one aggregation: concurrent cached fetches across all
// configured sources, ledger merge, pricing, totals, percentages, and
// (when save is true) one atomic snapshot append. now is the run's single
// time observation: the snapshot timestamp and every cache freshness check
// derive from it.
//
// A failing source is logged and dropped from the merge; the run only fails
// when every source fails (domain.ErrAllSourcesFailed) or, with save set,
// when persistence fails.
func (a *Aggregator) Run(ctx context.Context, now time.Time, save bool) (*domain.Snapshot, error) {
	outcomes := make([]fetchOutcome, len(a.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, a.fetchTimeout)
			defer cancel()

			amounts, err := a.fetchCache.GetOrFetch(fctx, src.Key(), now, a.cacheTTL, src.FetchBalances)
			if err != nil {
				a.logger.WarnContext(ctx, "source fetch failed",
					slog.String("source", src.Key().String()),
					slog.String("error", err.Error()),
				)
				outcomes[i] = fetchOutcome{err: err}
				return nil
			}

			outcomes[i] = fetchOutcome{balances: domain.SourceBalances{
				Key:      src.Key(),
				Location: src.Location(),
				Amounts:  amounts,
			}}
			return nil
		})
	}
	// Fetch goroutines never return errors; failures are per-source.
	_ = g.Wait()

	var succeeded []domain.SourceBalances
	var failures []string
	for _, out := range outcomes {
		if out.err != nil {
			failures = append(failures, out.err.Error())
			continue
		}
		succeeded = append(succeeded, out.balances)
	}
	if len(succeeded) == 0 {
		return nil, fmt.Errorf("aggregator: %w: %s", domain.ErrAllSourcesFailed, strings.Join(failures, "; "))
	}

	// Merge every successful per-source asset map into one ledger.
	ledger := make(domain.AssetAmounts)
	for _, sb := range succeeded {
		ledger.Merge(sb.Amounts)
	}

	// Resolve each distinct asset's unit price exactly once.
	prices := make(map[domain.Asset]*decimal.Decimal, len(ledger))
	for asset := range ledger {
		p, err := a.prices.PriceOf(ctx, asset)
		if err != nil {
			a.logger.WarnContext(ctx, "price resolution failed",
				slog.String("asset", asset.String()),
				slog.String("currency", a.prices.Currency().String()),
				slog.String("error", err.Error()),
			)
			prices[asset] = nil
			continue
		}
		prices[asset] = &p
	}

	// Per-location totals are the canonical valuation path: they regroup
	// the same per-source observations the ledger merged, so the sum
	// invariants hold exactly. Every successful source contributes its
	// location even when it holds nothing.
	locationTotals := make(map[domain.Location]decimal.Decimal)
	for _, sb := range succeeded {
		if _, ok := locationTotals[sb.Location]; !ok {
			locationTotals[sb.Location] = decimal.Zero
		}
		for asset, amount := range sb.Amounts {
			p := prices[asset]
			if p == nil {
				continue
			}
			locationTotals[sb.Location] = locationTotals[sb.Location].Add(amount.Mul(*p))
		}
	}

	netValue := decimal.Zero
	for _, v := range locationTotals {
		netValue = netValue.Add(v)
	}

	assets := make(map[domain.Asset]domain.AssetEntry, len(ledger))
	for asset, amount := range ledger {
		entry := domain.AssetEntry{Amount: amount}
		if p := prices[asset]; p != nil {
			value := amount.Mul(*p)
			entry.Value = &value
			pct := percentageOf(value, netValue)
			entry.Percentage = &pct
		}
		assets[asset] = entry
	}

	locations := make(map[domain.Location]domain.LocationEntry, len(locationTotals)+1)
	for loc, value := range locationTotals {
		locations[loc] = domain.LocationEntry{
			Value:      value,
			Percentage: percentageOf(value, netValue),
		}
	}
	locations[domain.LocationTotal] = domain.LocationEntry{
		Value:      netValue,
		Percentage: percentageOf(netValue, netValue),
	}

	snap := &domain.Snapshot{
		Timestamp:     now,
		Assets:        assets,
		Locations:     locations,
		LocationOrder: a.locationOrder(locations),
		NetValue:      netValue,
	}

	a.logger.InfoContext(ctx, "aggregation run complete",
		slog.Time("timestamp", now),
		slog.Int("sources_ok", len(succeeded)),
		slog.Int("sources_failed", len(failures)),
		slog.Int("assets", len(assets)),
		slog.String("net_value", netValue.String()),
		slog.Bool("save", save),
	)

	if save {
		if err := a.store.SaveSnapshot(ctx, snap); err != nil {
			return nil, fmt.Errorf("aggregator: persist snapshot: %w", err)
		}
	}

	return snap, nil
}

// locationOrder filters the fixed persist order down to the locations
// present in this run.
func (a *Aggregator) locationOrder(locations map[domain.Location]domain.LocationEntry) []domain.Location {
	order := make([]domain.Location, 0, len(locations))
	for _, loc := range domain.LocationPersistOrder(a.exchangeLocations) {
		if _, ok := locations[loc]; ok {
			order = append(order, loc)
		}
	}
	return order
}

// percentageOf returns 100*value/total, or zero when total is zero so a
// worthless portfolio never divides by zero.
func percentageOf(value, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return value.Mul(decimal.NewFromInt(100)).Div(total)
}

// IsAllSourcesFailed reports whether err is the aggregated-failure error
// returned when no source produced a result.
func IsAllSourcesFailed(err error) bool {
	return errors.Is(err, domain.ErrAllSourcesFailed)
}

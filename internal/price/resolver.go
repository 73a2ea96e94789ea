// Package price implements the price resolver: unit prices in the
// valuation currency, answered from the shared price cache when possible
// and from the oracle otherwise.
package price

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// Resolver answers "unit price of asset in the valuation currency". It is a
// pure query layer: it never mutates aggregator state. The aggregator asks
// once per distinct asset per run, which bounds oracle calls.
type Resolver struct {
	oracle   domain.PriceOracle
	cache    domain.PriceCache // may be nil (cache disabled)
	currency domain.Asset
	logger   *slog.Logger
}

// NewResolver creates a Resolver for the given valuation currency. cache
// may be nil to disable price caching.
func NewResolver(oracle domain.PriceOracle, cache domain.PriceCache, currency domain.Asset, logger *slog.Logger) *Resolver {
	return &Resolver{
		oracle:   oracle,
		cache:    cache,
		currency: currency,
		logger:   logger.With(slog.String("component", "price_resolver")),
	}
}

// Currency returns the valuation currency.
func (r *Resolver) Currency() domain.Asset {
	return r.currency
}

// PriceOf resolves the current unit price of asset in the valuation
// currency. Unpriceable assets surface domain.ErrPriceUnavailable; cache
// failures are degraded to oracle queries, never to run failures.
func (r *Resolver) PriceOf(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	if asset == r.currency {
		return decimal.NewFromInt(1), nil
	}

	if r.cache != nil {
		cached, _, err := r.cache.GetPrice(ctx, asset, r.currency)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "price cache read failed",
				slog.String("asset", asset.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	quoted, err := r.oracle.QueryPrice(ctx, asset, r.currency)
	if err != nil {
		return decimal.Zero, err
	}

	if r.cache != nil {
		if err := r.cache.SetPrice(ctx, asset, r.currency, quoted, time.Now().UTC()); err != nil {
			r.logger.WarnContext(ctx, "price cache write failed",
				slog.String("asset", asset.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return quoted, nil
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each resolved
// unit price is stored as a hash at key "price:{asset}:{currency}" with
// fields "price" (decimal string) and "ts" (Unix nanosecond timestamp). The
// key carries a TTL so stale quotes age out on their own.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. Entries
// expire after ttl; a non-positive ttl keeps them forever.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(asset, currency domain.Asset) string {
	return "price:" + asset.String() + ":" + currency.String()
}

// SetPrice stores the resolved unit price for an asset/currency pair.
func (pc *PriceCache) SetPrice(ctx context.Context, asset, currency domain.Asset, price decimal.Decimal, ts time.Time) error {
	key := priceKey(asset, currency)
	fields := map[string]interface{}{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", key, err)
	}
	if pc.ttl > 0 {
		if err := pc.rdb.Expire(ctx, key, pc.ttl).Err(); err != nil {
			return fmt.Errorf("redis: expire price %s: %w", key, err)
		}
	}
	return nil
}

// GetPrice retrieves the cached unit price and its resolution timestamp.
// It returns domain.ErrNotFound when no entry exists.
func (pc *PriceCache) GetPrice(ctx context.Context, asset, currency domain.Asset) (decimal.Decimal, time.Time, error) {
	key := priceKey(asset, currency)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get price %s: %w", key, err)
	}
	if len(vals) == 0 {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse price %s: %w", key, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)

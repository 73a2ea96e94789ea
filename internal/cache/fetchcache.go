// Package cache implements the process-wide source fetch cache: one entry
// per configured balance source, refreshed when older than the configured
// TTL. It lives for the whole process and is shared by every aggregation
// run.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// FetchFunc performs the underlying source fetch when the cache cannot
// serve a fresh entry.
type FetchFunc func(ctx context.Context) (domain.AssetAmounts, error)

// entry is the cached state for one source key. Access is serialized by the
// per-entry mutex, so a read-modify-write on one key never interleaves with
// another writer of the same key; different keys are fully independent.
type entry struct {
	mu        sync.Mutex
	hasResult bool
	amounts   domain.AssetAmounts
	fetchedAt time.Time
	lastErr   error
}

// FetchCache holds the CacheEntry table. Entries are created on first fetch
// of a source key and never deleted; the table is bounded by the fixed set
// of configured sources.
type FetchCache struct {
	mu      sync.Mutex
	entries map[domain.SourceKey]*entry
	logger  *slog.Logger
}

// New creates an empty FetchCache.
func New(logger *slog.Logger) *FetchCache {
	return &FetchCache{
		entries: make(map[domain.SourceKey]*entry),
		logger:  logger.With(slog.String("component", "fetch_cache")),
	}
}

// GetOrFetch returns the cached amounts for key when the entry is younger
// than ttl relative to now; otherwise it invokes fetch. A ttl of zero
// disables caching and always refetches. Concurrent callers for the same
// key serialize on the entry, so they share the in-flight result instead of
// racing the upstream API.
//
// A failed fetch returns the error and leaves any prior successful entry in
// place: the stale success is only served again once it is fresh relative
// to a later caller's now, which cannot happen after expiry, but it is
// never destroyed by an error.
func (c *FetchCache) GetOrFetch(
	ctx context.Context,
	key domain.SourceKey,
	now time.Time,
	ttl time.Duration,
	fetch FetchFunc,
) (domain.AssetAmounts, error) {
	e := c.entryFor(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	if ttl > 0 && e.hasResult && now.Sub(e.fetchedAt) < ttl {
		c.logger.Debug("cache hit",
			slog.String("source", key.String()),
			slog.Time("fetched_at", e.fetchedAt),
		)
		return e.amounts.Copy(), nil
	}

	amounts, err := fetch(ctx)
	if err != nil {
		e.lastErr = err
		return nil, err
	}

	e.hasResult = true
	e.amounts = amounts.Copy()
	e.fetchedAt = now
	e.lastErr = nil

	return amounts, nil
}

// SourceStatus describes the cached state of one source key.
type SourceStatus struct {
	Key       domain.SourceKey
	HasResult bool
	FetchedAt time.Time
	LastError error
}

// Statuses returns a point-in-time view of every known entry, ordered by
// source key.
func (c *FetchCache) Statuses() []SourceStatus {
	c.mu.Lock()
	keys := make([]domain.SourceKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	out := make([]SourceStatus, 0, len(keys))
	for _, k := range keys {
		e := c.entryFor(k)
		e.mu.Lock()
		out = append(out, SourceStatus{
			Key:       k,
			HasResult: e.hasResult,
			FetchedAt: e.fetchedAt,
			LastError: e.lastErr,
		})
		e.mu.Unlock()
	}
	return out
}

// LastError returns the most recent fetch error recorded for key, or nil.
func (c *FetchCache) LastError(key domain.SourceKey) error {
	e := c.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (c *FetchCache) entryFor(key domain.SourceKey) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	// Allow reports whether a request for the key fits under the limit for
	// the window, counting the request when it does.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Wait blocks until a request for the key is allowed or the context is
	// cancelled.
	Wait(ctx context.Context, key string) error
}

// Package ratelimit throttles outbound requests so the scraper stays
// well under the site's tolerance.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates request pacing.
type Limiter interface {
	// Allow reports whether a request may proceed right now.
	Allow() bool
	// Wait blocks until a request may proceed or ctx is cancelled.
	Wait(ctx context.Context) error
}

type tokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows perMinute requests per minute with the given
// burst capacity.
func NewTokenBucket(perMinute, burst int) Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &tokenBucket{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

func (t *tokenBucket) Allow() bool {
	return t.limiter.Allow()
}

func (t *tokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// NewInterval enforces a fixed minimum delay between requests. A
// non-positive delay disables throttling.
func NewInterval(delay time.Duration) Limiter {
	if delay <= 0 {
		return &tokenBucket{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &tokenBucket{
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

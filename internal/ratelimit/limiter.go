// Package ratelimit gates all outbound fetches of a pipeline run behind a
// shared token bucket.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultBurst is the bucket capacity when the config does not override it.
const DefaultBurst = 5

// Limiter is a token-bucket admission gate. One instance is shared by every
// worker of a pipeline run; it is the single deliberate serialization point.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter granting perSecond tokens per second with the given
// burst capacity.
func New(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Acquire blocks until one token is available or the context is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

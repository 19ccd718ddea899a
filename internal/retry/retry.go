// Package retry wraps fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the wait before the first retry; it doubles each attempt.
	DefaultBaseDelay = time.Second
)

// Permanent marks an error as not worth retrying; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Executor retries an operation up to MaxRetries times with delays of
// BaseDelay * 2^attempt. It holds no per-invocation state, so one Executor is
// safe to share across concurrent workers.
type Executor struct {
	MaxRetries int
	BaseDelay  time.Duration
	Logger     *zap.Logger
}

// NewExecutor creates an executor with the given bounds, falling back to the
// defaults for non-positive values.
func NewExecutor(maxRetries int, baseDelay time.Duration, logger *zap.Logger) *Executor {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Executor{MaxRetries: maxRetries, BaseDelay: baseDelay, Logger: logger}
}

// Do runs op, retrying on error until MaxRetries is exhausted. The operation
// is invoked at most MaxRetries+1 times; the last error is returned wrapped.
func (e *Executor) Do(ctx context.Context, name string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = e.BaseDelay * (1 << 16)
	b.MaxElapsedTime = 0 // bounded by retry count, not wall clock
	b.Reset()

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		if e.Logger != nil {
			e.Logger.Warn("operation failed, retrying",
				zap.String("op", name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.MaxRetries)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("%s failed after %d attempts: %w", name, attempt+1, err)
	}
	return nil
}

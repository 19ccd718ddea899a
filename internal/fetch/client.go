// Package fetch layers the cache, compliance gate, rate limiter and retry
// executor in front of the raw page fetchers.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/ingest-pipeline/internal/cache"
	"github.com/user/ingest-pipeline/internal/domain"
	"github.com/user/ingest-pipeline/internal/monitoring"
	"github.com/user/ingest-pipeline/internal/ratelimit"
	"github.com/user/ingest-pipeline/internal/retry"
)

// ErrDisallowed marks a URL the compliance policy rejected. Permanent: the
// URL is skipped, never retried.
var ErrDisallowed = errors.New("fetch disallowed by compliance policy")

// Client is the single entry point workers use to get a page. Every call goes
// cache -> compliance -> rate limiter -> retry -> network.
type Client struct {
	cache    cache.Cache
	limiter  *ratelimit.Limiter
	retrier  *retry.Executor
	policy   CompliancePolicy
	plain    Fetcher
	rendered Fetcher
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewClient wires the fetch stack together. rendered may be nil when no source
// needs JavaScript rendering.
func NewClient(
	c cache.Cache,
	limiter *ratelimit.Limiter,
	retrier *retry.Executor,
	policy CompliancePolicy,
	plain Fetcher,
	rendered Fetcher,
	m *monitoring.Metrics,
	logger *zap.Logger,
) *Client {
	return &Client{
		cache:    c,
		limiter:  limiter,
		retrier:  retrier,
		policy:   policy,
		plain:    plain,
		rendered: rendered,
		metrics:  m,
		logger:   logger,
	}
}

// Get returns the page at url, from cache when fresh, otherwise fetched under
// the rate limiter with retries. A compliance rejection returns ErrDisallowed.
func (c *Client) Get(ctx context.Context, url string, renderJS bool) (domain.FetchResult, error) {
	if res, ok := c.cache.Get(ctx, url); ok {
		c.metrics.IncCacheHits()
		return res, nil
	}

	if allowed, reason := c.policy.CanFetch(url); !allowed {
		c.logger.Debug("fetch disallowed", zap.String("url", url), zap.String("reason", reason))
		c.metrics.IncErrorsTotal("compliance_rejected")
		return domain.FetchResult{URL: url, Err: reason}, fmt.Errorf("%w: %s", ErrDisallowed, reason)
	}

	fetcher := c.plain
	if renderJS && c.rendered != nil {
		fetcher = c.rendered
	}

	var res domain.FetchResult
	err := c.retrier.Do(ctx, "fetch "+url, func() error {
		// Each attempt takes its own token so retries stay throttled too.
		if err := c.limiter.Acquire(ctx); err != nil {
			return retry.Permanent(err)
		}
		res = fetcher.Fetch(ctx, url)
		c.metrics.IncFetchedTotal()
		if !res.Succeeded {
			return errors.New(res.Err)
		}
		return nil
	})
	if err != nil {
		c.metrics.IncErrorsTotal("fetch_failed")
		if res.URL == "" {
			res = domain.FetchResult{URL: url, Err: err.Error()}
		}
		return res, err
	}

	c.cache.Set(ctx, url, res)
	return res, nil
}

// Package pipeline composes discovery, extraction and storage into per-source
// runs with bounded concurrency.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/ingest-pipeline/internal/domain"
	"github.com/user/ingest-pipeline/internal/extract"
	"github.com/user/ingest-pipeline/internal/fetch"
	"github.com/user/ingest-pipeline/internal/monitoring"
	"github.com/user/ingest-pipeline/internal/storage"
)

const (
	// DefaultConcurrency is the worker-pool bound on in-flight URLs.
	DefaultConcurrency = 10

	// DefaultBatchPause smooths outbound bursts between batches, on top of
	// what the rate limiter enforces.
	DefaultBatchPause = 500 * time.Millisecond
)

// resettable is implemented by validators whose duplicate tracking is scoped
// to a single run.
type resettable interface {
	Reset()
}

// outcome is the tagged per-URL result: a record, a skip with a reason, or an
// error. Workers never let one URL's failure cross the batch boundary.
type outcome struct {
	record *domain.Record
	reason string
	err    error
}

// Pool fetches, extracts and validates batches of URLs with bounded concurrency.
type Pool struct {
	client      *fetch.Client
	registry    *extract.Registry
	validator   extract.Validator
	failures    storage.FailureLog
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	concurrency int
	batchPause  time.Duration
}

// NewPool creates a worker pool processing at most concurrency URLs at once.
// failures may be nil when per-URL failure tracking is not wanted.
func NewPool(
	client *fetch.Client,
	registry *extract.Registry,
	validator extract.Validator,
	failures storage.FailureLog,
	m *monitoring.Metrics,
	logger *zap.Logger,
	concurrency int,
	batchPause time.Duration,
) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if batchPause < 0 {
		batchPause = DefaultBatchPause
	}
	return &Pool{
		client:      client,
		registry:    registry,
		validator:   validator,
		failures:    failures,
		metrics:     m,
		logger:      logger,
		concurrency: concurrency,
		batchPause:  batchPause,
	}
}

// CrawlAll processes the URLs in batches of at most the pool's concurrency and
// returns every record that fetched, extracted and validated cleanly. Record
// order is not significant. Cancellation stops dispatching new batches;
// in-flight fetches finish under their own timeouts.
func (p *Pool) CrawlAll(ctx context.Context, urls []string, source string, renderJS bool) []domain.Record {
	var records []domain.Record

	for start := 0; start < len(urls); start += p.concurrency {
		if ctx.Err() != nil {
			p.logger.Info("crawl cancelled, not dispatching further batches",
				zap.String("source", source),
				zap.Int("processed", start))
			break
		}

		end := start + p.concurrency
		if end > len(urls) {
			end = len(urls)
		}
		batch := urls[start:end]

		outcomes := make([]outcome, len(batch))
		var wg sync.WaitGroup
		for i, u := range batch {
			wg.Add(1)
			go func(i int, u string) {
				defer wg.Done()
				outcomes[i] = p.processURL(ctx, u, source, renderJS)
			}(i, u)
		}
		wg.Wait()

		for i, out := range outcomes {
			switch {
			case out.err != nil:
				p.logger.Warn("no record for URL",
					zap.String("url", batch[i]), zap.Error(out.err))
				p.recordFailure(ctx, batch[i], source, out.err)
			case out.record == nil:
				p.logger.Debug("URL skipped",
					zap.String("url", batch[i]), zap.String("reason", out.reason))
			default:
				records = append(records, *out.record)
				p.metrics.IncExtractedTotal()
			}
		}

		if end < len(urls) && p.batchPause > 0 {
			select {
			case <-time.After(p.batchPause):
			case <-ctx.Done():
			}
		}
	}

	return records
}

// recordFailure logs a failed URL for later inspection. Best effort only.
func (p *Pool) recordFailure(ctx context.Context, url, source string, cause error) {
	if p.failures == nil {
		return
	}
	f := domain.URLFailure{URL: url, Source: source, Reason: cause.Error()}
	if err := p.failures.RecordFailure(ctx, f); err != nil {
		p.logger.Warn("could not record URL failure",
			zap.String("url", url), zap.Error(err))
	}
}

// processURL runs one URL through fetch, extraction and validation. Panics in
// extractor or validator implementations are contained here.
func (p *Pool) processURL(ctx context.Context, url, source string, renderJS bool) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.IncErrorsTotal("worker_panic")
			out = outcome{err: fmt.Errorf("panic processing %s: %v", url, r)}
		}
	}()

	res, err := p.client.Get(ctx, url, renderJS)
	if err != nil {
		return outcome{err: err}
	}

	extractor, ok := p.registry.Lookup(source)
	if !ok {
		return outcome{reason: "no extractor for source"}
	}

	rec, err := extractor.Extract(res, source)
	if err != nil {
		p.metrics.IncErrorsTotal("extract_failed")
		return outcome{err: fmt.Errorf("extract %s: %w", url, err)}
	}
	if rec == nil {
		return outcome{reason: "nothing extracted"}
	}

	v := p.validator.Validate(rec)
	if !v.IsValid {
		return outcome{reason: "invalid: " + strings.Join(v.Errors, "; ")}
	}
	if v.IsDuplicate {
		return outcome{reason: "duplicate record"}
	}

	return outcome{record: rec}
}

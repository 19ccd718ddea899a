package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/user/ingest-pipeline/internal/cache"
	"github.com/user/ingest-pipeline/internal/config"
	"github.com/user/ingest-pipeline/internal/discover"
	"github.com/user/ingest-pipeline/internal/domain"
	"github.com/user/ingest-pipeline/internal/monitoring"
	"github.com/user/ingest-pipeline/internal/storage"
)

// State tracks where a source's run currently is.
type State int32

const (
	StateIdle State = iota
	StateDiscovering
	StateCrawling
	StateStoring
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateCrawling:
		return "crawling"
	case StateStoring:
		return "storing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrRunActive is returned when a run is requested while one is in progress.
var ErrRunActive = errors.New("a pipeline run is already active")

// Orchestrator sequences discovery, extraction and storage per source and
// aggregates run statistics. One source failing never stops the others.
type Orchestrator struct {
	sources    []config.Source
	discoverer *discover.Discoverer
	pool       *Pool
	store      storage.Store
	cache      cache.Cache
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	maxURLs    int
	defaultMax int

	running atomic.Bool
	state   atomic.Int32
	lastRun atomic.Pointer[domain.AggregateStats]
}

// NewOrchestrator wires the pipeline stages together for the configured sources.
func NewOrchestrator(
	sources []config.Source,
	d *discover.Discoverer,
	pool *Pool,
	store storage.Store,
	c cache.Cache,
	m *monitoring.Metrics,
	logger *zap.Logger,
	maxURLs int,
	defaultMaxArticles int,
) *Orchestrator {
	return &Orchestrator{
		sources:    sources,
		discoverer: d,
		pool:       pool,
		store:      store,
		cache:      c,
		metrics:    m,
		logger:     logger,
		maxURLs:    maxURLs,
		defaultMax: defaultMaxArticles,
	}
}

// State returns the current stage of the in-progress source run.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// LastRun returns the stats of the most recently completed run, if any.
func (o *Orchestrator) LastRun() *domain.AggregateStats {
	return o.lastRun.Load()
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run executes the full pipeline over every configured source, sequentially,
// isolating per-source failures, and returns the aggregate stats. Only one run
// may be active at a time.
func (o *Orchestrator) Run(ctx context.Context) (domain.AggregateStats, error) {
	if !o.running.CompareAndSwap(false, true) {
		return domain.AggregateStats{}, ErrRunActive
	}
	defer o.running.Store(false)
	return o.run(ctx), nil
}

// Start claims the run slot and executes the run on its own goroutine, so
// callers learn synchronously whether the run was admitted. ErrRunActive is
// returned when another run already holds the slot.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrRunActive
	}
	go func() {
		defer o.running.Store(false)
		o.run(ctx)
	}()
	return nil
}

func (o *Orchestrator) run(ctx context.Context) domain.AggregateStats {
	// Duplicate tracking is scoped to one run, so a re-triggered run can
	// refresh records stored by the previous one.
	if r, ok := o.pool.validator.(resettable); ok {
		r.Reset()
	}

	agg := domain.AggregateStats{StartedAt: time.Now()}
	for _, src := range o.sources {
		if ctx.Err() != nil {
			o.logger.Info("run cancelled", zap.String("next_source", src.Name))
			break
		}
		agg.Add(o.CrawlSource(ctx, src))
	}

	cs := o.cache.Stats()
	agg.CacheValid = cs.Valid
	agg.CacheExpired = cs.Expired
	agg.FinishedAt = time.Now()
	agg.ElapsedSeconds = agg.FinishedAt.Sub(agg.StartedAt).Seconds()

	o.logger.Info("pipeline run finished",
		zap.Int("sources", len(agg.Sources)),
		zap.Int("failed_sources", agg.FailedSources),
		zap.Int("urls_discovered", agg.URLsDiscovered),
		zap.Int("records_extracted", agg.RecordsExtracted),
		zap.Int("records_stored", agg.RecordsStored),
		zap.Int64("cache_hits", agg.CacheHits),
		zap.Float64("elapsed_seconds", agg.ElapsedSeconds),
	)

	o.lastRun.Store(&agg)
	o.state.Store(int32(StateIdle))
	return agg
}

// CrawlSource runs one source through discovery, extraction and storage and
// reports its stats. Failures surface in the stats, never as panics or as
// errors that would stop sibling sources.
func (o *Orchestrator) CrawlSource(ctx context.Context, src config.Source) domain.RunStats {
	start := time.Now()
	hitsBefore := o.cache.Stats().Hits
	stats := domain.RunStats{Source: src.Name}

	maxArticles := src.MaxArticles
	if maxArticles <= 0 {
		maxArticles = o.defaultMax
	}
	// Discovery past what the pool will crawl is wasted fetch budget.
	maxURLs := o.maxURLs
	if maxArticles < maxURLs {
		maxURLs = maxArticles
	}

	o.state.Store(int32(StateDiscovering))
	o.logger.Info("discovering", zap.String("source", src.Name),
		zap.Int("seeds", len(src.SeedURLs)), zap.Int("max_urls", maxURLs))
	urls := o.discoverer.Discover(ctx, src.SeedURLs, src.Ruleset, maxURLs)
	stats.URLsDiscovered = len(urls)

	if len(urls) == 0 {
		o.finishSource(&stats, start, hitsBefore, "discovery found no URLs")
		return stats
	}
	if len(urls) > maxArticles {
		urls = urls[:maxArticles]
	}

	o.state.Store(int32(StateCrawling))
	o.logger.Info("crawling", zap.String("source", src.Name), zap.Int("urls", len(urls)))
	records := o.pool.CrawlAll(ctx, urls, src.Name, src.Ruleset.RenderJS)
	stats.RecordsExtracted = len(records)

	if len(records) > 0 {
		o.state.Store(int32(StateStoring))
		result, err := o.store.UpsertBatch(ctx, records)
		if err != nil {
			o.metrics.IncErrorsTotal("store_failed")
			o.finishSource(&stats, start, hitsBefore, "storage failed: "+err.Error())
			return stats
		}
		stats.RecordsStored = result.New + result.Updated
		o.metrics.AddStored(result.New, result.Updated)
		o.logger.Info("stored batch", zap.String("source", src.Name),
			zap.Int("new", result.New), zap.Int("updated", result.Updated))
	}

	o.state.Store(int32(StateDone))
	stats.ElapsedSeconds = time.Since(start).Seconds()
	stats.CacheHits = o.cache.Stats().Hits - hitsBefore
	o.metrics.ObserveSourceRun(src.Name, "ok", stats.ElapsedSeconds)
	o.logger.Info("source run done",
		zap.String("source", src.Name),
		zap.Int("urls_discovered", stats.URLsDiscovered),
		zap.Int("records_extracted", stats.RecordsExtracted),
		zap.Int("records_stored", stats.RecordsStored),
		zap.Float64("elapsed_seconds", stats.ElapsedSeconds),
	)
	return stats
}

// finishSource marks a source-level failure without aborting the run.
func (o *Orchestrator) finishSource(stats *domain.RunStats, start time.Time, hitsBefore int64, reason string) {
	o.state.Store(int32(StateFailed))
	stats.Failed = true
	stats.FailReason = reason
	stats.ElapsedSeconds = time.Since(start).Seconds()
	stats.CacheHits = o.cache.Stats().Hits - hitsBefore
	o.metrics.ObserveSourceRun(stats.Source, "failed", stats.ElapsedSeconds)
	o.logger.Error("source run failed",
		zap.String("source", stats.Source),
		zap.String("reason", reason),
	)
}

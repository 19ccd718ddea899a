// Package monitoring holds the Prometheus metrics for the pipeline.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	FetchedTotal    prometheus.Counter
	CacheHitsTotal  prometheus.Counter
	ExtractedTotal  prometheus.Counter
	StoredTotal     *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	SourceRunsTotal *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
}

// New registers the pipeline metrics with the given registerer. Tests pass
// their own registry so parallel pipelines do not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_pages_fetched_total",
			Help: "Total number of network fetch attempts",
		}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_cache_hits_total",
			Help: "Total number of fetches served from cache",
		}),
		ExtractedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_records_extracted_total",
			Help: "Total number of records that passed extraction and validation",
		}),
		StoredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_records_stored_total",
			Help: "Total number of records written to storage",
		}, []string{"outcome"}), // 'new' or 'updated'
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of errors encountered",
		}, []string{"type"}), // e.g. 'fetch_failed', 'store_failed'
		SourceRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_source_runs_total",
			Help: "Per-source run completions",
		}, []string{"source", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_source_run_duration_seconds",
			Help:    "Wall-clock duration of one source's run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"source"}),
	}
}

func (m *Metrics) IncFetchedTotal() {
	m.FetchedTotal.Inc()
}

func (m *Metrics) IncCacheHits() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) IncExtractedTotal() {
	m.ExtractedTotal.Inc()
}

func (m *Metrics) AddStored(newCount, updatedCount int) {
	m.StoredTotal.WithLabelValues("new").Add(float64(newCount))
	m.StoredTotal.WithLabelValues("updated").Add(float64(updatedCount))
}

func (m *Metrics) IncErrorsTotal(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveSourceRun(source, status string, seconds float64) {
	m.SourceRunsTotal.WithLabelValues(source, status).Inc()
	m.RunDuration.WithLabelValues(source).Observe(seconds)
}

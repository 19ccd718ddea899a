package domain

import (
	"time"
)

// FetchResult holds the outcome of fetching a single URL. It is immutable once
// constructed: producers build it, consumers only read it.
type FetchResult struct {
	URL        string
	Succeeded  bool
	StatusCode int
	Body       []byte
	FromCache  bool
	Err        string
}

// Record is the extraction output handed to validation and storage.
type Record struct {
	URL         string     `json:"url"`
	SourceName  string     `json:"source_name"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	Region      string     `json:"region,omitempty"`
	Topics      []string   `json:"topics,omitempty"`
	FullText    string     `json:"full_text,omitempty"`
}

// URLFailure describes a URL that produced no record, with a running count of
// how often it has failed.
type URLFailure struct {
	URL    string `json:"url"`
	Source string `json:"source"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// BatchUpsertResult reports how one stored batch split into inserts and updates.
type BatchUpsertResult struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
}

// RunStats aggregates the counters for one source's run.
type RunStats struct {
	Source           string  `json:"source"`
	URLsDiscovered   int     `json:"urls_discovered"`
	RecordsExtracted int     `json:"records_extracted"`
	RecordsStored    int     `json:"records_stored"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	CacheHits        int64   `json:"cache_hits"`
	Failed           bool    `json:"failed"`
	FailReason       string  `json:"fail_reason,omitempty"`
}

// AggregateStats rolls per-source stats up into pipeline-wide totals.
type AggregateStats struct {
	Sources          []RunStats `json:"sources"`
	URLsDiscovered   int        `json:"urls_discovered"`
	RecordsExtracted int        `json:"records_extracted"`
	RecordsStored    int        `json:"records_stored"`
	CacheHits        int64      `json:"cache_hits"`
	CacheValid       int64      `json:"cache_valid"`
	CacheExpired     int64      `json:"cache_expired"`
	ElapsedSeconds   float64    `json:"elapsed_seconds"`
	FailedSources    int        `json:"failed_sources"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       time.Time  `json:"finished_at"`
}

// Add folds one source's run into the aggregate.
func (a *AggregateStats) Add(s RunStats) {
	a.Sources = append(a.Sources, s)
	a.URLsDiscovered += s.URLsDiscovered
	a.RecordsExtracted += s.RecordsExtracted
	a.RecordsStored += s.RecordsStored
	a.CacheHits += s.CacheHits
	if s.Failed {
		a.FailedSources++
	}
}

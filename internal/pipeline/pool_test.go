package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/ingest-pipeline/internal/cache"
	"github.com/user/ingest-pipeline/internal/domain"
	"github.com/user/ingest-pipeline/internal/extract"
	"github.com/user/ingest-pipeline/internal/fetch"
	"github.com/user/ingest-pipeline/internal/monitoring"
	"github.com/user/ingest-pipeline/internal/ratelimit"
	"github.com/user/ingest-pipeline/internal/retry"
	"github.com/user/ingest-pipeline/internal/storage"
)

func newTestFetchClient(c cache.Cache) *fetch.Client {
	return fetch.NewClient(
		c,
		ratelimit.New(1000, 100),
		retry.NewExecutor(0, time.Millisecond, zap.NewNop()),
		fetch.DefaultPolicy{},
		fetch.NewHTTP(5*time.Second),
		nil,
		monitoring.New(prometheus.NewRegistry()),
		zap.NewNop(),
	)
}

func articleBody(title string) string {
	return fmt.Sprintf(`<html><head><title>%s</title>
		<meta name="description" content="summary of %s">
		</head><body><p>full text of %s</p></body></html>`, title, title, title)
}

func newTestPool(client *fetch.Client, validator extract.Validator, concurrency int) *Pool {
	return NewPool(
		client,
		extract.NewRegistry(extract.Article{}),
		validator,
		nil,
		monitoring.New(prometheus.NewRegistry()),
		zap.NewNop(),
		concurrency,
		0, // no inter-batch pause in tests
	)
}

func TestCrawlAllRespectsConcurrencyBound(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		fmt.Fprint(w, articleBody("story "+r.URL.Path))
	}))
	defer srv.Close()

	urls := make([]string, 20)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/news/2024/item-%d", srv.URL, i)
	}

	pool := newTestPool(newTestFetchClient(cache.NewMemory(time.Hour)), extract.NewRecordValidator(), 10)
	records := pool.CrawlAll(context.Background(), urls, "example", false)

	assert.Len(t, records, 20, "all URLs processed across 2 batches of 10")
	assert.LessOrEqual(t, maxInFlight.Load(), int64(10), "never more than N URLs in flight")
}

func TestCrawlAllOneFailureDoesNotAbortTheBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, articleBody("healthy page"))
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/bad", srv.URL + "/good"}
	pool := newTestPool(newTestFetchClient(cache.NewMemory(time.Hour)), extract.NewRecordValidator(), 10)

	records := pool.CrawlAll(context.Background(), urls, "example", false)
	require.Len(t, records, 1)
	assert.Equal(t, srv.URL+"/good", records[0].URL)
}

type panickyValidator struct{}

func (panickyValidator) Validate(*domain.Record) extract.Validation {
	panic("validator exploded")
}

func TestCrawlAllContainsWorkerPanics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleBody("any page"))
	}))
	defer srv.Close()

	pool := newTestPool(newTestFetchClient(cache.NewMemory(time.Hour)), panickyValidator{}, 5)

	assert.NotPanics(t, func() {
		records := pool.CrawlAll(context.Background(), []string{srv.URL + "/a", srv.URL + "/b"}, "example", false)
		assert.Empty(t, records)
	})
}

func TestCrawlAllSkipsDuplicateRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleBody("repeated story"))
	}))
	defer srv.Close()

	// The validator flags the second record for the same URL as a duplicate.
	validator := extract.NewRecordValidator()
	pool := newTestPool(newTestFetchClient(cache.NewMemory(time.Hour)), validator, 10)

	url := srv.URL + "/news/2024/story"
	first := pool.CrawlAll(context.Background(), []string{url}, "example", false)
	second := pool.CrawlAll(context.Background(), []string{url}, "example", false)

	assert.Len(t, first, 1)
	assert.Empty(t, second, "validator-level duplicate yields no record")
}

func TestCrawlAllCancellationStopsNewBatches(t *testing.T) {
	var served atomic.Int64
	var mu sync.Mutex
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		mu.Lock()
		cancel() // cancel during the first batch
		mu.Unlock()
		fmt.Fprint(w, articleBody("story"))
	}))
	defer srv.Close()

	urls := make([]string, 12)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/news/2024/item-%d", srv.URL, i)
	}

	pool := newTestPool(newTestFetchClient(cache.NewMemory(time.Hour)), extract.NewRecordValidator(), 4)
	pool.CrawlAll(ctx, urls, "example", false)

	assert.LessOrEqual(t, served.Load(), int64(4), "no batch dispatched after cancellation")
}

func TestCrawlAllRecordsFailedURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, articleBody("a perfectly healthy page"))
	}))
	defer srv.Close()

	failures := storage.NewMemoryFailureLog()
	pool := NewPool(
		newTestFetchClient(cache.NewMemory(time.Hour)),
		extract.NewRegistry(extract.Article{}),
		extract.NewRecordValidator(),
		failures,
		monitoring.New(prometheus.NewRegistry()),
		zap.NewNop(),
		10,
		0,
	)

	records := pool.CrawlAll(context.Background(), []string{srv.URL + "/down", srv.URL + "/ok"}, "example", false)
	require.Len(t, records, 1)

	logged := failures.Failures()
	require.Len(t, logged, 1)
	assert.Equal(t, srv.URL+"/down", logged[0].URL)
	assert.Equal(t, "example", logged[0].Source)
	assert.Equal(t, 1, logged[0].Count)
	assert.Contains(t, logged[0].Reason, "503")
}

func TestCrawlAllRecordOrderIsNotLoadBearing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleBody("story at "+r.URL.Path))
	}))
	defer srv.Close()

	urls := []string{
		srv.URL + "/news/2024/a",
		srv.URL + "/news/2024/b",
		srv.URL + "/news/2024/c",
	}
	pool := newTestPool(newTestFetchClient(cache.NewMemory(time.Hour)), extract.NewRecordValidator(), 3)

	records := pool.CrawlAll(context.Background(), urls, "example", false)
	require.Len(t, records, 3)

	got := make(map[string]bool, len(records))
	for _, rec := range records {
		got[rec.URL] = true
		assert.Equal(t, "example", rec.SourceName)
	}
	for _, u := range urls {
		assert.True(t, got[u], "membership is deterministic even if order is not: %s", u)
	}
}

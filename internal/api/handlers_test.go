package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/ingest-pipeline/internal/cache"
	"github.com/user/ingest-pipeline/internal/config"
	"github.com/user/ingest-pipeline/internal/discover"
	"github.com/user/ingest-pipeline/internal/domain"
	"github.com/user/ingest-pipeline/internal/extract"
	"github.com/user/ingest-pipeline/internal/fetch"
	"github.com/user/ingest-pipeline/internal/monitoring"
	"github.com/user/ingest-pipeline/internal/pipeline"
	"github.com/user/ingest-pipeline/internal/ratelimit"
	"github.com/user/ingest-pipeline/internal/retry"
	"github.com/user/ingest-pipeline/internal/storage"
)

// newTestServer builds a server over a single-article fake source and an
// in-memory store. originDelay slows every origin response down, to hold a
// triggered run in flight.
func newTestServer(t *testing.T, store storage.Store, originDelay time.Duration) (*Server, *httptest.Server) {
	t.Helper()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(originDelay)
		if r.URL.Path == "/" {
			fmt.Fprint(w, `<html><body><a href="/news/2024/story">s</a></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><head><title>A perfectly fine headline</title>
			<meta name="description" content="something happened"></head>
			<body><p>text</p></body></html>`)
	}))
	t.Cleanup(origin.Close)

	u, err := url.Parse(origin.URL)
	require.NoError(t, err)
	src := config.Source{
		Name:     "test-source",
		SeedURLs: []string{origin.URL + "/"},
		Ruleset: domain.SourceRuleset{
			Domain:            u.Hostname(),
			IncludeSubstrings: []string{"/news/"},
			MinPathSegments:   3,
		},
	}

	metrics := monitoring.New(prometheus.NewRegistry())
	fetchCache := cache.NewMemory(time.Hour)
	client := fetch.NewClient(
		fetchCache,
		ratelimit.New(1000, 100),
		retry.NewExecutor(0, time.Millisecond, zap.NewNop()),
		fetch.DefaultPolicy{},
		fetch.NewHTTP(5*time.Second),
		nil,
		metrics,
		zap.NewNop(),
	)
	orchestrator := pipeline.NewOrchestrator(
		[]config.Source{src},
		discover.New(client, discover.DefaultBatchSize, zap.NewNop()),
		pipeline.NewPool(client, extract.NewRegistry(extract.Article{}),
			extract.NewRecordValidator(), nil, metrics, zap.NewNop(), 10, 0),
		store,
		fetchCache,
		metrics,
		zap.NewNop(),
		50,
		50,
	)

	cfg := &config.Config{ServerPort: "0"}
	s := NewServer(cfg, orchestrator, store, nil, zap.NewNop(), context.Background())
	api := httptest.NewServer(s.router)
	t.Cleanup(api.Close)
	return s, api
}

func TestHealthCheck(t *testing.T) {
	_, api := newTestServer(t, storage.NewMemory(), 0)

	resp, err := http.Get(api.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["store"])
}

type downStore struct{ *storage.Memory }

func (d *downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthCheckReportsUnhealthyStore(t *testing.T) {
	_, api := newTestServer(t, &downStore{Memory: storage.NewMemory()}, 0)

	resp, err := http.Get(api.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLatestRunBeforeAnyRun(t *testing.T) {
	_, api := newTestServer(t, storage.NewMemory(), 0)

	resp, err := http.Get(api.URL + "/api/runs/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTriggerRunThenFetchStats(t *testing.T) {
	store := storage.NewMemory()
	_, api := newTestServer(t, store, 0)

	resp, err := http.Post(api.URL+"/api/runs", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		r, err := http.Get(api.URL + "/api/runs/latest")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		return r.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond, "the async run should finish")

	r, err := http.Get(api.URL + "/api/runs/latest")
	require.NoError(t, err)
	defer r.Body.Close()

	var agg domain.AggregateStats
	require.NoError(t, json.NewDecoder(r.Body).Decode(&agg))
	assert.Equal(t, 1, agg.URLsDiscovered)
	assert.Equal(t, 1, agg.RecordsStored)
	assert.Equal(t, 1, store.Len())
}

func TestTriggerRunWhileActiveGetsConflict(t *testing.T) {
	// A slow origin keeps the first run in flight while the second trigger
	// arrives.
	_, api := newTestServer(t, storage.NewMemory(), 300*time.Millisecond)

	first, err := http.Post(api.URL+"/api/runs", "application/json", nil)
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusAccepted, first.StatusCode)

	second, err := http.Post(api.URL+"/api/runs", "application/json", nil)
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusConflict, second.StatusCode,
		"the run slot is claimed before 202 is returned")

	require.Eventually(t, func() bool {
		r, err := http.Get(api.URL + "/api/runs/latest")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		return r.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
}

func TestRunStatus(t *testing.T) {
	_, api := newTestServer(t, storage.NewMemory(), 0)

	resp, err := http.Get(api.URL + "/api/runs/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["running"])
	assert.Equal(t, "idle", body["state"])
}

func TestMetricsEndpointIsExposed(t *testing.T) {
	_, api := newTestServer(t, storage.NewMemory(), 0)

	resp, err := http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

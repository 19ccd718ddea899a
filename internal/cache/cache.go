// Package cache stores fetch results keyed by URL with a TTL so a pipeline run
// never fetches the same page twice.
package cache

import (
	"context"
	"time"

	"github.com/user/ingest-pipeline/internal/domain"
)

// DefaultTTL is how long a cached fetch result stays usable.
const DefaultTTL = 24 * time.Hour

// Stats is a snapshot of cache activity counters.
type Stats struct {
	Total   int64 `json:"total"`
	Valid   int64 `json:"valid"`
	Expired int64 `json:"expired"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache is the fetch-result cache consulted before every network call.
// A miss is not an error; it just means the caller fetches for real.
type Cache interface {
	Get(ctx context.Context, url string) (domain.FetchResult, bool)
	Set(ctx context.Context, url string, res domain.FetchResult)
	Stats() Stats
}

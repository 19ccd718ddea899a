// Package extract defines the pluggable extraction and validation capabilities
// the worker pool runs over fetched pages.
package extract

import (
	"sync"

	"github.com/user/ingest-pipeline/internal/domain"
)

// Extractor turns a fetched page into a Record. Returning (nil, nil) means the
// page carried nothing extractable, which is not an error.
type Extractor interface {
	Extract(res domain.FetchResult, source string) (*domain.Record, error)
}

// Registry maps source names to their extractor. Lookup is by source name,
// with an optional fallback for sources without a dedicated implementation.
type Registry struct {
	mu         sync.RWMutex
	bySource   map[string]Extractor
	fallback   Extractor
}

// NewRegistry creates a registry with the given fallback extractor, which may
// be nil if unmatched sources should simply yield no records.
func NewRegistry(fallback Extractor) *Registry {
	return &Registry{
		bySource: make(map[string]Extractor),
		fallback: fallback,
	}
}

// Register installs an extractor for a source name, replacing any previous one.
func (r *Registry) Register(source string, e Extractor) {
	r.mu.Lock()
	r.bySource[source] = e
	r.mu.Unlock()
}

// Lookup returns the extractor for a source, falling back to the default.
// The second return is false when no extractor is available at all.
func (r *Registry) Lookup(source string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.bySource[source]; ok {
		return e, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

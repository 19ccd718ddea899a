package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/ingest-pipeline/internal/domain"
)

type entry struct {
	result   domain.FetchResult
	storedAt time.Time
}

// Memory is an in-process TTL cache. Entries older than the TTL are treated as
// absent and evicted lazily on the next Get; there is no background sweep.
type Memory struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]entry

	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64
}

// NewMemory creates an in-memory cache. A non-positive ttl falls back to DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

func (m *Memory) Get(_ context.Context, url string) (domain.FetchResult, bool) {
	m.mu.Lock()
	e, ok := m.entries[url]
	if ok && time.Since(e.storedAt) > m.ttl {
		delete(m.entries, url)
		ok = false
		m.expired.Add(1)
	}
	m.mu.Unlock()

	if !ok {
		m.misses.Add(1)
		return domain.FetchResult{}, false
	}
	m.hits.Add(1)
	res := e.result
	res.FromCache = true
	return res, true
}

// Set overwrites any existing entry unconditionally.
func (m *Memory) Set(_ context.Context, url string, res domain.FetchResult) {
	m.mu.Lock()
	m.entries[url] = entry{result: res, storedAt: time.Now()}
	m.mu.Unlock()
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	total := int64(len(m.entries))
	var valid int64
	for _, e := range m.entries {
		if time.Since(e.storedAt) <= m.ttl {
			valid++
		}
	}
	m.mu.Unlock()

	return Stats{
		Total:   total,
		Valid:   valid,
		Expired: m.expired.Load(),
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}
}

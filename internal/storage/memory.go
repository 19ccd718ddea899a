package storage

import (
	"context"
	"sync"

	"github.com/user/ingest-pipeline/internal/domain"
)

// Memory keeps records in a map keyed by URL. Used for tests and for runs
// without a database configured.
type Memory struct {
	mu      sync.Mutex
	records map[string]domain.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]domain.Record)}
}

func (s *Memory) Ping(context.Context) error {
	return nil
}

func (s *Memory) UpsertBatch(_ context.Context, records []domain.Record) (domain.BatchUpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result domain.BatchUpsertResult
	for _, rec := range records {
		if _, exists := s.records[rec.URL]; exists {
			result.Updated++
		} else {
			result.New++
		}
		s.records[rec.URL] = rec
	}
	return result, nil
}

// Len reports how many distinct records are stored.
func (s *Memory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns the stored record for a URL.
func (s *Memory) Get(url string) (domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[url]
	return rec, ok
}

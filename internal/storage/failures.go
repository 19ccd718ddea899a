package storage

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/ingest-pipeline/internal/domain"
)

// FailureLog records URLs that yielded no record so operators can inspect
// what a source lost. Best effort: a write failure here never fails a run.
type FailureLog interface {
	RecordFailure(ctx context.Context, f domain.URLFailure) error
}

// MemoryFailureLog keeps failures in memory, counting repeats per URL.
type MemoryFailureLog struct {
	mu       sync.Mutex
	failures map[string]domain.URLFailure
}

func NewMemoryFailureLog() *MemoryFailureLog {
	return &MemoryFailureLog{failures: make(map[string]domain.URLFailure)}
}

func (l *MemoryFailureLog) RecordFailure(_ context.Context, f domain.URLFailure) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.failures[f.URL]; ok {
		f.Count = prev.Count + 1
	} else {
		f.Count = 1
	}
	l.failures[f.URL] = f
	return nil
}

// Failures returns a snapshot of the recorded failures.
func (l *MemoryFailureLog) Failures() []domain.URLFailure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.URLFailure, 0, len(l.failures))
	for _, f := range l.failures {
		out = append(out, f)
	}
	return out
}

const failureUpsertSQL = `
INSERT INTO failed_urls (url, source_name, reason, failure_count, last_failed_at)
VALUES ($1, $2, $3, 1, NOW())
ON CONFLICT (url) DO UPDATE SET
  source_name = EXCLUDED.source_name,
  reason = EXCLUDED.reason,
  failure_count = failed_urls.failure_count + 1,
  last_failed_at = NOW()
`

// PostgresFailureLog persists failures in the failed_urls table, incrementing
// the count when the same URL fails again.
type PostgresFailureLog struct {
	db *pgxpool.Pool
}

func NewPostgresFailureLog(db *pgxpool.Pool) *PostgresFailureLog {
	return &PostgresFailureLog{db: db}
}

func (l *PostgresFailureLog) RecordFailure(ctx context.Context, f domain.URLFailure) error {
	_, err := l.db.Exec(ctx, failureUpsertSQL, f.URL, f.Source, f.Reason)
	return err
}

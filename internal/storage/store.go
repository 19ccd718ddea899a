// Package storage persists validated records, keyed by URL.
package storage

import (
	"context"

	"github.com/user/ingest-pipeline/internal/domain"
)

// Store upserts batches of records. UpsertBatch is idempotent: resubmitting a
// record counts as an update, never a duplicate row.
type Store interface {
	UpsertBatch(ctx context.Context, records []domain.Record) (domain.BatchUpsertResult, error)
	Ping(ctx context.Context) error
}

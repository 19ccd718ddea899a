package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/ingest-pipeline/internal/domain"
)

const upsertSQL = `
INSERT INTO records (url, source_name, title, summary, publish_date, region, topics, full_text)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (url) DO UPDATE SET
  source_name = EXCLUDED.source_name,
  title = EXCLUDED.title,
  summary = EXCLUDED.summary,
  publish_date = EXCLUDED.publish_date,
  region = EXCLUDED.region,
  topics = EXCLUDED.topics,
  full_text = EXCLUDED.full_text,
  updated_at = NOW()
RETURNING (xmax = 0)
`

// Postgres writes record batches into PostgreSQL.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Postgres) Close() {
	s.db.Close()
}

// FailureLog returns a failure log sharing this store's connection pool.
func (s *Postgres) FailureLog() *PostgresFailureLog {
	return NewPostgresFailureLog(s.db)
}

// UpsertBatch writes all records in one transaction. xmax = 0 on the upserted
// row distinguishes a fresh insert from an update of an existing one.
func (s *Postgres) UpsertBatch(ctx context.Context, records []domain.Record) (domain.BatchUpsertResult, error) {
	var result domain.BatchUpsertResult
	if len(records) == 0 {
		return result, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertSQL,
			rec.URL, rec.SourceName, rec.Title, rec.Summary,
			rec.PublishDate, rec.Region, rec.Topics, rec.FullText)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		var inserted bool
		if err := br.QueryRow().Scan(&inserted); err != nil {
			br.Close()
			return domain.BatchUpsertResult{}, fmt.Errorf("batch exec %d: %w", i, err)
		}
		if inserted {
			result.New++
		} else {
			result.Updated++
		}
	}
	if err := br.Close(); err != nil {
		return domain.BatchUpsertResult{}, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.BatchUpsertResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

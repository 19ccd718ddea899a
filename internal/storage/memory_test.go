package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/ingest-pipeline/internal/domain"
)

func TestUpsertBatchIsIdempotent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	rec := domain.Record{URL: "https://example.com/a", SourceName: "src", Title: "A headline"}

	first, err := s.UpsertBatch(ctx, []domain.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchUpsertResult{New: 1, Updated: 0}, first)

	second, err := s.UpsertBatch(ctx, []domain.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchUpsertResult{New: 0, Updated: 1}, second)

	assert.Equal(t, 1, s.Len(), "re-submitting never creates a duplicate row")
}

func TestUpsertBatchMixedBatch(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.UpsertBatch(ctx, []domain.Record{
		{URL: "https://example.com/a", Title: "first version"},
	})
	require.NoError(t, err)

	result, err := s.UpsertBatch(ctx, []domain.Record{
		{URL: "https://example.com/a", Title: "second version"},
		{URL: "https://example.com/b", Title: "brand new"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchUpsertResult{New: 1, Updated: 1}, result)

	got, ok := s.Get("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "second version", got.Title, "update replaces the stored record")
}

func TestUpsertBatchEmpty(t *testing.T) {
	s := NewMemory()
	result, err := s.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.New)
	assert.Zero(t, result.Updated)
}

func TestMemoryFailureLogCountsRepeats(t *testing.T) {
	l := NewMemoryFailureLog()
	ctx := context.Background()

	f := domain.URLFailure{URL: "https://example.com/a", Source: "src", Reason: "status 503"}
	require.NoError(t, l.RecordFailure(ctx, f))
	f.Reason = "timeout"
	require.NoError(t, l.RecordFailure(ctx, f))

	failures := l.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].Count)
	assert.Equal(t, "timeout", failures[0].Reason, "latest reason wins")
}

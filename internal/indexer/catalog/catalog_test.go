package catalog

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/postgres"
)

func TestSucceeded(t *testing.T) {
	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	b := Succeeded(&indexer.BuildResult{
		Generation:   "gen-1",
		CorpusPath:   "pages.jsonl",
		TotalDocs:    4,
		IndexedDocs:  3,
		UniqueTokens: 9,
		StartedAt:    start,
		FinishedAt:   start.Add(time.Second),
	})
	assert.Equal(t, StatusSuccess, b.Status)
	assert.Equal(t, "gen-1", b.Generation)
	assert.Equal(t, 3, b.IndexedDocs)
	assert.Empty(t, b.Error)
}

func TestFailed(t *testing.T) {
	b := Failed("pages.jsonl", time.Now().UTC(), errors.New("line 5: bad record"))
	assert.Equal(t, StatusFailed, b.Status)
	assert.Empty(t, b.Generation)
	assert.Equal(t, "line 5: bad record", b.Error)
	assert.False(t, b.FinishedAt.Before(b.StartedAt))
}

// TestStore runs against a real database when SP_TEST_POSTGRES_HOST is set.
func TestStore(t *testing.T) {
	host := os.Getenv("SP_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("SP_TEST_POSTGRES_HOST not set")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Postgres.Host = host

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres)
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	require.NoError(t, store.EnsureSchema(ctx))

	gen := "gen-test-" + time.Now().UTC().Format("20060102150405.000000000")
	now := time.Now().UTC()
	id, err := store.Record(ctx, Build{
		Generation: gen, CorpusPath: "pages.jsonl", TotalDocs: 2, IndexedDocs: 2, UniqueTokens: 5,
		StartedAt: now.Add(-time.Second), FinishedAt: now, Status: StatusSuccess,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = store.Record(ctx, Failed("pages.jsonl", now, errors.New("boom")))
	require.NoError(t, err)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, StatusSuccess, latest.Status)

	builds, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, builds, 2)
}

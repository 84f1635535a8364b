package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.Indexer.DataDir)
	assert.Equal(t, 200, cfg.Indexer.ProgressEvery)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "classic", cfg.Search.DefaultMode)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "index.complete", cfg.Kafka.Topics.IndexComplete)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
indexer:
  dataDir: /var/lib/corpus
  corpusPath: /srv/pages.jsonl.gz
  keepGenerations: 5
search:
  defaultLimit: 20
  maxResults: 50
redis:
  cacheTTL: 2m
`), 0o644))

	t.Setenv("SP_INDEXER_CORPUS_PATH", "/override/pages.jsonl")
	t.Setenv("SP_KAFKA_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/corpus", cfg.Indexer.DataDir)
	assert.Equal(t, "/override/pages.jsonl", cfg.Indexer.CorpusPath)
	assert.Equal(t, 5, cfg.Indexer.KeepGenerations)
	assert.Equal(t, 64*1024*1024, cfg.Indexer.MaxRecordBytes)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.True(t, cfg.Kafka.Enabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"defaultLimit": "search:\n  defaultLimit: 0\n",
		"defaultMode":  "search:\n  defaultMode: prob\n",
		"maxResults":   "search:\n  maxResults: 5\n",
	}
	for field, body := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, field)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

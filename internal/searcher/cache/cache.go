// Package cache memoizes ranked query results per snapshot generation. The
// backing store is Redis when configured and an in-process LRU otherwise.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

const keyPrefix = "search:"

type QueryCache struct {
	store   Store
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache", "store", store.Name()),
	}
}

// Key identifies a request against one generation. Requests that differ
// only in spelling of the same tokens, or in an implicit versus explicit
// default, share a key.
func Key(generation string, req executor.Request) string {
	mode := req.Mode
	if m, err := ranker.ParseMode(mode); err == nil {
		mode = string(m)
	}
	limit := req.Limit
	if limit == 0 {
		limit = executor.DefaultLimit
	}
	tokens := tokenizer.Tokenize(req.Query)
	raw := fmt.Sprintf("%s|%s|%d|%s", generation, mode, limit, strings.Join(tokens, " "))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) ([]executor.Result, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if !ok {
		c.miss()
		return nil, false
	}
	var results []executor.Result
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, key string, results []executor.Result) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached results for key or runs compute once for
// all concurrent callers with the same key. Errors are never cached. The
// boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func() ([]executor.Result, error),
) ([]executor.Result, bool, error) {
	if results, ok := c.Get(ctx, key); ok {
		return results, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]executor.Result), false, nil
}

// Invalidate drops every cached entry.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.Flush(ctx)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Backend names the store in use.
func (c *QueryCache) Backend() string {
	return c.store.Name()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

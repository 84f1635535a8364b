// Package reload installs newly published generations into a running
// searcher. It is driven by index-complete events from Kafka and by the
// initial load at startup.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

type Reloader struct {
	src     snapshot.Source
	holder  *snapshot.Holder
	cache   *cache.QueryCache
	metrics *metrics.Metrics
	logger  *slog.Logger
	mu      sync.Mutex
}

// New returns a Reloader that loads generations found under src.DataDir
// against src.CorpusPath. queryCache may be nil.
func New(src snapshot.Source, holder *snapshot.Holder, queryCache *cache.QueryCache, m *metrics.Metrics) *Reloader {
	src.Dir = ""
	return &Reloader{
		src:     src,
		holder:  holder,
		cache:   queryCache,
		metrics: m,
		logger:  slog.Default().With("component", "snapshot-reloader"),
	}
}

// Reload loads generation (the current link when empty) and swaps it in.
// On failure the serving snapshot is left untouched. Reloading the
// generation already being served is a no-op.
func (r *Reloader) Reload(ctx context.Context, generation string) (*snapshot.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.src
	if generation != "" {
		if generation != filepath.Base(generation) || strings.HasPrefix(generation, ".") {
			return nil, apperrors.Invalidf("invalid generation name %q", generation)
		}
		if cur, err := r.holder.Current(); err == nil && cur.Generation == generation {
			r.logger.Debug("generation already serving", "generation", generation)
			return cur, nil
		}
		src.Dir = filepath.Join(r.src.DataDir, artifact.GenerationsDir, generation)
	}

	snap, err := snapshot.NewLoader(src, r.metrics).Load(ctx)
	if err != nil {
		return nil, err
	}
	r.install(ctx, snap)
	return snap, nil
}

func (r *Reloader) install(ctx context.Context, snap *snapshot.Snapshot) {
	prev := r.holder.Swap(snap)
	if r.metrics != nil {
		r.metrics.SnapshotDocuments.Set(float64(snap.TotalDocs))
		r.metrics.SnapshotTokens.Set(float64(snap.Tokens()))
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after swap failed", "error", err)
		}
	}
	attrs := []any{"generation", snap.Generation, "total_docs", snap.TotalDocs, "tokens", snap.Tokens()}
	if prev != nil {
		attrs = append(attrs, "previous", prev.Generation)
	}
	r.logger.Info("snapshot installed", attrs...)
}

// HandleMessage is a kafka.MessageHandler for index-complete events.
func (r *Reloader) HandleMessage(ctx context.Context, _ []byte, value []byte) error {
	ev, err := kafka.DecodeIndexComplete(value)
	if err != nil {
		return err
	}
	r.logger.Info("index complete event received",
		"generation", ev.Generation,
		"dir", ev.Dir,
		"total_docs", ev.TotalDocs,
		"completed_at", ev.CompletedAt,
	)
	if _, err := r.Reload(ctx, ev.Generation); err != nil {
		return fmt.Errorf("reloading generation %s: %w", ev.Generation, err)
	}
	return nil
}

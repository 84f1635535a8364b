// Package indexer builds the inverted index in one offline pass over the
// corpus and publishes it as a new artifact generation.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// BuildResult describes a published generation.
type BuildResult struct {
	Generation   string    `json:"generation"`
	Dir          string    `json:"dir"`
	CorpusPath   string    `json:"corpus_path,omitempty"`
	TotalDocs    int       `json:"total_docs"`
	IndexedDocs  int       `json:"indexed_docs"`
	UniqueTokens int       `json:"unique_tokens"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// SkippedDocs is the number of records that produced no tokens.
func (r *BuildResult) SkippedDocs() int {
	return r.TotalDocs - r.IndexedDocs
}

type Builder struct {
	writer  *artifact.Writer
	cfg     config.IndexerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewBuilder(cfg config.IndexerConfig, m *metrics.Metrics) *Builder {
	return &Builder{
		writer:  artifact.NewWriter(cfg.DataDir),
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "index-builder"),
	}
}

// BuildFile builds from the corpus at path (gzip when it ends in .gz).
func (b *Builder) BuildFile(ctx context.Context, path string) (*BuildResult, error) {
	rc, err := corpus.Open(path)
	if err != nil {
		b.recordBuild("failed")
		return nil, err
	}
	defer rc.Close()
	res, err := b.Build(ctx, rc)
	if err != nil {
		return nil, err
	}
	res.CorpusPath = path
	return res, nil
}

// Build reads every record from r in order, assigns ids starting at 1 and
// publishes the index and statistics atomically. Any unparsable record
// aborts the build and nothing is published.
func (b *Builder) Build(ctx context.Context, r io.Reader) (*BuildResult, error) {
	started := time.Now().UTC()
	mem, reader, err := b.accumulate(ctx, r)
	if err != nil {
		b.recordBuild("failed")
		return nil, err
	}
	total := reader.Count()
	b.logger.Info("corpus scanned",
		"total_docs", total,
		"indexed_docs", mem.DocCount(),
		"unique_tokens", mem.Terms(),
	)

	gen, err := b.writer.Begin()
	if err != nil {
		b.recordBuild("failed")
		return nil, err
	}
	dir, err := b.persist(gen, mem, total)
	if err != nil {
		if abortErr := gen.Abort(); abortErr != nil {
			b.logger.Error("discarding failed generation", "generation", gen.Name, "error", abortErr)
		}
		b.recordBuild("failed")
		return nil, err
	}
	b.recordBuild("success")

	res := &BuildResult{
		Generation:   gen.Name,
		Dir:          dir,
		TotalDocs:    total,
		IndexedDocs:  mem.DocCount(),
		UniqueTokens: mem.Terms(),
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
	}
	b.logger.Info("generation published",
		"generation", res.Generation,
		"dir", res.Dir,
		"duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)

	removed, err := artifact.Prune(b.cfg.DataDir, b.cfg.KeepGenerations)
	if err != nil {
		b.logger.Warn("pruning old generations failed", "error", err)
	} else if len(removed) > 0 {
		b.logger.Info("old generations pruned", "removed", removed)
	}
	return res, nil
}

func (b *Builder) accumulate(ctx context.Context, r io.Reader) (*index.MemoryIndex, *corpus.Reader, error) {
	mem := index.NewMemoryIndex()
	reader := corpus.NewReader(r, b.cfg.MaxRecordBytes)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("build cancelled: %w", err)
		}
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return mem, reader, nil
		}
		if err != nil {
			return nil, nil, err
		}
		tokens := tokenizer.Tokenize(document.Flatten(rec.Doc))
		if mem.AddDocument(rec.ID, document.Project(rec.Doc), tokens) {
			b.incr(func(m *metrics.Metrics) { m.DocsIndexedTotal.Inc() })
		} else {
			b.incr(func(m *metrics.Metrics) { m.DocsSkippedTotal.Inc() })
			b.logger.Debug("record produced no tokens", "doc_id", rec.ID, "line", rec.Line)
		}
		if b.cfg.ProgressEvery > 0 && rec.ID%b.cfg.ProgressEvery == 0 {
			b.logger.Info("indexing progress", "docs", rec.ID, "unique_tokens", mem.Terms())
		}
	}
}

func (b *Builder) persist(gen *artifact.Generation, mem *index.MemoryIndex, total int) (string, error) {
	if err := gen.WriteIndex(mem.Entries()); err != nil {
		return "", fmt.Errorf("writing index: %w", err)
	}
	if err := gen.WriteStats(mem.Stats(total)); err != nil {
		return "", fmt.Errorf("writing statistics: %w", err)
	}
	dir, err := gen.Commit()
	if err != nil {
		return "", fmt.Errorf("publishing generation: %w", err)
	}
	return dir, nil
}

func (b *Builder) recordBuild(status string) {
	b.incr(func(m *metrics.Metrics) { m.IndexBuildsTotal.WithLabelValues(status).Inc() })
}

func (b *Builder) incr(fn func(m *metrics.Metrics)) {
	if b.metrics != nil {
		fn(b.metrics)
	}
}

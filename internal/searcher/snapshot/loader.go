package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// Source tells a Loader where to read from. Dir selects a generation
// directory explicitly; when empty the current link under DataDir is used.
type Source struct {
	DataDir        string
	Dir            string
	CorpusPath     string
	MaxRecordBytes int
}

// Loader performs a one-time load. Concurrent callers of Load block until
// the first one finishes and then all observe the same result.
type Loader struct {
	src     Source
	once    sync.Once
	snap    *Snapshot
	err     error
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewLoader(src Source, m *metrics.Metrics) *Loader {
	return &Loader{
		src:     src,
		metrics: m,
		logger:  slog.Default().With("component", "snapshot-loader"),
	}
}

// Load reads the index, the statistics and the corpus, validates that they
// agree and returns the snapshot. Errors wrap apperrors.ErrInitialization.
// Calls after the first return the cached result.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	l.once.Do(func() {
		start := time.Now()
		l.snap, l.err = l.load(ctx)
		status := "success"
		if l.err != nil {
			l.err = fmt.Errorf("%w: %w", apperrors.ErrInitialization, l.err)
			status = "failed"
			l.logger.Error("snapshot load failed", "error", l.err)
		} else {
			l.logger.Info("snapshot loaded",
				"generation", l.snap.Generation,
				"total_docs", l.snap.TotalDocs,
				"tokens", l.snap.Tokens(),
				"duration", time.Since(start).Round(time.Millisecond),
			)
		}
		if l.metrics != nil {
			l.metrics.SnapshotLoadsTotal.WithLabelValues(status).Inc()
		}
	})
	return l.snap, l.err
}

type rawIndex struct {
	postings map[string]index.PostingList
	globalTF map[string]int
}

func (l *Loader) load(ctx context.Context) (*Snapshot, error) {
	dir := l.src.Dir
	if dir == "" {
		resolved, err := artifact.ResolveCurrent(l.src.DataDir)
		if err != nil {
			return nil, err
		}
		dir = resolved
	}

	var (
		idx   *rawIndex
		stats *index.DocStats
		docs  map[int]document.Meta
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		idx, err = readIndex(gctx, dir)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = artifact.ReadStats(dir)
		return err
	})
	g.Go(func() error {
		var err error
		docs, err = readCorpus(gctx, l.src.CorpusPath, l.src.MaxRecordBytes)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	indexed, err := validate(idx, stats, len(docs))
	if err != nil {
		return nil, fmt.Errorf("generation %s: %w", filepath.Base(dir), err)
	}
	return &Snapshot{
		Generation:  filepath.Base(dir),
		Dir:         dir,
		TotalDocs:   stats.TotalDocs,
		IndexedDocs: indexed,
		LoadedAt:    time.Now().UTC(),
		postings:    idx.postings,
		globalTF:    idx.globalTF,
		docs:        docs,
	}, nil
}

func readIndex(ctx context.Context, dir string) (*rawIndex, error) {
	idx := &rawIndex{
		postings: make(map[string]index.PostingList),
		globalTF: make(map[string]int),
	}
	err := artifact.ReadIndex(dir, func(entry index.TermEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, dup := idx.postings[entry.Term]; dup {
			return fmt.Errorf("duplicate token %q in index", entry.Term)
		}
		idx.postings[entry.Term] = entry.Postings
		idx.globalTF[entry.Term] = entry.GlobalTF
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// readCorpus re-enumerates the corpus exactly as the builder did to recover
// id -> display metadata.
func readCorpus(ctx context.Context, path string, maxRecordBytes int) (map[int]document.Meta, error) {
	rc, err := corpus.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	docs := make(map[int]document.Meta)
	reader := corpus.NewReader(rc, maxRecordBytes)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading corpus: %w", err)
		}
		docs[rec.ID] = document.Project(rec.Doc)
	}
}

// validate checks the cross-artifact invariants and returns the number of
// documents that have postings.
func validate(idx *rawIndex, stats *index.DocStats, corpusDocs int) (int, error) {
	if stats.TotalDocs < 0 {
		return 0, fmt.Errorf("negative total_docs %d", stats.TotalDocs)
	}
	if corpusDocs != stats.TotalDocs {
		return 0, fmt.Errorf("corpus has %d records but index was built from %d; corpus changed since build",
			corpusDocs, stats.TotalDocs)
	}
	perDoc := make(map[int]int, len(stats.DocLengths))
	for term, pl := range idx.postings {
		sum := 0
		prev := 0
		for _, p := range pl {
			if p.DocID <= prev {
				return 0, fmt.Errorf("postings for %q not strictly ascending at doc %d", term, p.DocID)
			}
			if p.DocID > stats.TotalDocs {
				return 0, fmt.Errorf("token %q references doc %d beyond total_docs %d", term, p.DocID, stats.TotalDocs)
			}
			if p.Frequency < 1 {
				return 0, fmt.Errorf("token %q has non-positive frequency in doc %d", term, p.DocID)
			}
			prev = p.DocID
			sum += p.Frequency
			perDoc[p.DocID] += p.Frequency
		}
		if sum != idx.globalTF[term] {
			return 0, fmt.Errorf("token %q global_tf %d does not match postings sum %d", term, idx.globalTF[term], sum)
		}
	}
	if len(perDoc) != len(stats.DocLengths) {
		return 0, fmt.Errorf("index covers %d documents but statistics list %d", len(perDoc), len(stats.DocLengths))
	}
	for docID, length := range perDoc {
		want, ok := stats.DocLengths[docID]
		if !ok {
			return 0, fmt.Errorf("doc %d has postings but no length", docID)
		}
		if want != length {
			return 0, fmt.Errorf("doc %d length %d does not match postings sum %d", docID, want, length)
		}
	}
	return len(perDoc), nil
}

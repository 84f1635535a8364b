// Package catalog records every index build in PostgreSQL so operators can
// see which generation was built from which corpus and when.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/postgres"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS index_builds (
    id            BIGSERIAL PRIMARY KEY,
    generation    TEXT NOT NULL DEFAULT '',
    corpus_path   TEXT NOT NULL,
    total_docs    INTEGER NOT NULL DEFAULT 0,
    indexed_docs  INTEGER NOT NULL DEFAULT 0,
    unique_tokens INTEGER NOT NULL DEFAULT 0,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ NOT NULL,
    status        TEXT NOT NULL,
    error         TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_index_builds_status_finished
    ON index_builds (status, finished_at DESC)`,
}

// Build is one row of index_builds.
type Build struct {
	ID           int64     `json:"id"`
	Generation   string    `json:"generation"`
	CorpusPath   string    `json:"corpus_path"`
	TotalDocs    int       `json:"total_docs"`
	IndexedDocs  int       `json:"indexed_docs"`
	UniqueTokens int       `json:"unique_tokens"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// Succeeded converts a published build into a catalog row.
func Succeeded(res *indexer.BuildResult) Build {
	return Build{
		Generation:   res.Generation,
		CorpusPath:   res.CorpusPath,
		TotalDocs:    res.TotalDocs,
		IndexedDocs:  res.IndexedDocs,
		UniqueTokens: res.UniqueTokens,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		Status:       StatusSuccess,
	}
}

// Failed describes a build that published nothing.
func Failed(corpusPath string, started time.Time, cause error) Build {
	return Build{
		CorpusPath: corpusPath,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Status:     StatusFailed,
		Error:      cause.Error(),
	}
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "build-catalog"),
	}
}

// EnsureSchema creates the index_builds table and its index when they do
// not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating index_builds schema: %w", err)
			}
		}
		return nil
	})
}

// Record inserts b and returns its id.
func (s *Store) Record(ctx context.Context, b Build) (int64, error) {
	var id int64
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO index_builds
		    (generation, corpus_path, total_docs, indexed_docs, unique_tokens, started_at, finished_at, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		b.Generation, b.CorpusPath, b.TotalDocs, b.IndexedDocs, b.UniqueTokens,
		b.StartedAt, b.FinishedAt, b.Status, b.Error,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("recording build: %w", err)
	}
	s.logger.Info("build recorded", "id", id, "generation", b.Generation, "status", b.Status)
	return id, nil
}

// Latest returns the most recent successful build, or nil when there is
// none.
func (s *Store) Latest(ctx context.Context) (*Build, error) {
	var b Build
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, generation, corpus_path, total_docs, indexed_docs, unique_tokens,
		        started_at, finished_at, status, error
		   FROM index_builds
		  WHERE status = $1
		  ORDER BY finished_at DESC, id DESC
		  LIMIT 1`,
		StatusSuccess,
	).Scan(&b.ID, &b.Generation, &b.CorpusPath, &b.TotalDocs, &b.IndexedDocs, &b.UniqueTokens,
		&b.StartedAt, &b.FinishedAt, &b.Status, &b.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest build: %w", err)
	}
	return &b, nil
}

// List returns the last limit builds, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Build, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, generation, corpus_path, total_docs, indexed_docs, unique_tokens,
		        started_at, finished_at, status, error
		   FROM index_builds
		  ORDER BY finished_at DESC, id DESC
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.ID, &b.Generation, &b.CorpusPath, &b.TotalDocs, &b.IndexedDocs, &b.UniqueTokens,
			&b.StartedAt, &b.FinishedAt, &b.Status, &b.Error); err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

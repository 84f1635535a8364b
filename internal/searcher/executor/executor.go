// Package executor answers conjunctive multi-token queries against a loaded
// snapshot and returns TF-IDF ranked results.
package executor

import (
	"context"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// DefaultLimit is used when a request does not set one.
const DefaultLimit = 10

// Request is a single query. A zero Mode means classic and a zero Limit
// means DefaultLimit.
type Request struct {
	Query string
	Mode  string
	Limit int
}

type Result struct {
	DocID int     `json:"doc_id"`
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

type Executor struct {
	metrics *metrics.Metrics
}

func New(m *metrics.Metrics) *Executor {
	return &Executor{metrics: m}
}

// Search tokenizes the query, intersects the posting lists of every token
// and scores each surviving document as the sum over query tokens of
// (1 + ln tf) * idf. A query with no tokens, or with any token absent from
// the index, returns an empty result. Unknown modes and negative limits
// fail with apperrors.ErrInvalidInput.
func (e *Executor) Search(ctx context.Context, snap *snapshot.Snapshot, req Request) ([]Result, error) {
	start := time.Now()
	mode, err := ranker.ParseMode(req.Mode)
	if err != nil {
		e.count("invalid", "error")
		return nil, err
	}
	limit := req.Limit
	if limit < 0 {
		e.count(string(mode), "error")
		return nil, apperrors.Invalidf("limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = DefaultLimit
	}

	tokens := tokenizer.Tokenize(req.Query)
	results := e.search(snap, tokens, mode, limit)

	resultType := "hit"
	if len(results) == 0 {
		resultType = "zero_result"
	}
	e.count(string(mode), resultType)
	logger.FromContext(ctx).Debug("query executed",
		"component", "query-executor",
		"query", req.Query,
		"tokens", tokens,
		"mode", mode,
		"results", len(results),
		"duration", time.Since(start),
	)
	return results, nil
}

func (e *Executor) search(snap *snapshot.Snapshot, tokens []string, mode ranker.Mode, limit int) []Result {
	if len(tokens) == 0 {
		return []Result{}
	}
	lists := make([]index.PostingList, len(tokens))
	for i, token := range tokens {
		pl, ok := snap.Postings(token)
		if !ok || len(pl) == 0 {
			return []Result{}
		}
		lists[i] = pl
	}

	candidates := intersect(lists)
	if len(candidates) == 0 {
		return []Result{}
	}

	idf := make([]float64, len(lists))
	for i, pl := range lists {
		idf[i] = mode.IDF(len(pl), snap.TotalDocs)
	}
	scored := make([]ranker.ScoredDoc, 0, len(candidates))
	for _, docID := range candidates {
		score := 0.0
		for i, pl := range lists {
			tf, _ := pl.Find(docID)
			score += ranker.TFWeight(tf) * idf[i]
		}
		scored = append(scored, ranker.ScoredDoc{DocID: docID, Score: score})
	}

	ranked := ranker.Rank(scored, limit)
	results := make([]Result, 0, len(ranked))
	for _, sd := range ranked {
		meta := snap.Doc(sd.DocID)
		results = append(results, Result{
			DocID: sd.DocID,
			Title: meta.Title,
			URL:   meta.URL,
			Score: ranker.Round4(sd.Score),
		})
	}
	return results
}

// intersect returns the ids present in every list. Lists are ascending by
// id; the walk starts from the shortest.
func intersect(lists []index.PostingList) []int {
	order := make([]int, len(lists))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(lists[order[a]]) < len(lists[order[b]])
	})

	shortest := lists[order[0]]
	candidates := make([]int, len(shortest))
	for i, p := range shortest {
		candidates[i] = p.DocID
	}
	for _, li := range order[1:] {
		candidates = mergeIntersect(candidates, lists[li])
		if len(candidates) == 0 {
			break
		}
	}
	return candidates
}

func mergeIntersect(ids []int, pl index.PostingList) []int {
	out := ids[:0]
	i, j := 0, 0
	for i < len(ids) && j < len(pl) {
		switch {
		case ids[i] == pl[j].DocID:
			out = append(out, ids[i])
			i++
			j++
		case ids[i] < pl[j].DocID:
			i++
		default:
			j++
		}
	}
	return out
}

func (e *Executor) count(mode, resultType string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(mode, resultType).Inc()
	}
}

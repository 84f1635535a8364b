package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/snapshot"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query      string            `json:"query"`
	Mode       string            `json:"mode"`
	Generation string            `json:"generation"`
	Results    []executor.Result `json:"results"`
	Cached     bool              `json:"cached"`
}

type Handler struct {
	holder   *snapshot.Holder
	executor *executor.Executor
	cache    *cache.QueryCache
	sem      *semaphore.Weighted
	cfg      config.SearchConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New wires the HTTP surface of the searcher. queryCache and m may be nil.
func New(holder *snapshot.Holder, exec *executor.Executor, queryCache *cache.QueryCache, cfg config.SearchConfig, m *metrics.Metrics) *Handler {
	var sem *semaphore.Weighted
	if cfg.MaxConcurrentQueries > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentQueries))
	}
	return &Handler{
		holder:   holder,
		executor: exec,
		cache:    queryCache,
		sem:      sem,
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req := executor.Request{
		Query: r.URL.Query().Get("q"),
		Mode:  r.URL.Query().Get("mode"),
		Limit: h.cfg.DefaultLimit,
	}
	if req.Mode == "" {
		req.Mode = h.cfg.DefaultMode
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, apperrors.Invalidf("limit must be an integer, got %q", limitStr))
			return
		}
		req.Limit = parsed
	}
	if h.cfg.MaxResults > 0 && req.Limit > h.cfg.MaxResults {
		req.Limit = h.cfg.MaxResults
	}

	if h.sem != nil {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "request cancelled while waiting for a query slot"))
			return
		}
		defer h.sem.Release(1)
	}

	snap, err := h.holder.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}

	var (
		results  []executor.Result
		cacheHit bool
	)
	compute := func() ([]executor.Result, error) {
		return h.executor.Search(ctx, snap, req)
	}
	cacheStatus := "bypass"
	if h.cache != nil {
		results, cacheHit, err = h.cache.GetOrCompute(ctx, cache.Key(snap.Generation, req), compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		results, err = compute()
	}
	if err != nil {
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			log.Error("search execution failed", "query", req.Query, "error", err)
		}
		h.writeError(w, err)
		return
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	log.Info("search completed",
		"query", req.Query,
		"mode", req.Mode,
		"generation", snap.Generation,
		"returned", len(results),
		"cache", cacheStatus,
		"latency_ms", elapsed.Milliseconds(),
	)

	mode := req.Mode
	if mode == "" {
		mode = "classic"
	}
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:      req.Query,
		Mode:       mode,
		Generation: snap.Generation,
		Results:    results,
		Cached:     cacheHit,
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.holder.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Info())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"backend":  h.cache.Backend(),
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.ErrCacheDisabled)
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}

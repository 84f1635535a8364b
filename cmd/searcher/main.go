package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/snapshot"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

const redisOpTimeout = 50 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"data_dir", cfg.Indexer.DataDir,
		"corpus", cfg.Indexer.CorpusPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		metricsServer.Start()
		defer metricsServer.Shutdown(context.Background())
	}

	var redisClient *pkgredis.Client
	var store cache.Store
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, falling back to local cache", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{})
			store = cache.NewGuardedStore(cache.NewRedisStore(redisClient, cfg.Redis.CacheTTL), breaker, redisOpTimeout)
			slog.Info("search cache enabled", "backend", "redis", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	if store == nil {
		store = cache.NewLocalStore(cfg.Redis.LocalCacheSize)
		slog.Info("search cache enabled", "backend", "local", "size", cfg.Redis.LocalCacheSize)
	}
	queryCache := cache.New(store, m)

	holder := &snapshot.Holder{}
	reloader := reload.New(snapshot.Source{
		DataDir:        cfg.Indexer.DataDir,
		CorpusPath:     cfg.Indexer.CorpusPath,
		MaxRecordBytes: cfg.Indexer.MaxRecordBytes,
	}, holder, queryCache, m)
	if _, err := reloader.Reload(ctx, ""); err != nil {
		slog.Error("failed to load index", "error", err)
		os.Exit(1)
	}

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, reloader.HandleMessage)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index complete consumer stopped", "error", err)
			}
		}()
		slog.Info("hot reload enabled", "topic", cfg.Kafka.Topics.IndexComplete, "group", cfg.Kafka.ConsumerGroup)
	}

	checker := health.NewChecker()
	checker.Register("snapshot", health.Ping(func(ctx context.Context) error {
		_, err := holder.Current()
		return err
	}, true))
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, false))
	}

	h := handler.New(holder, executor.New(m), queryCache, cfg.Search, m)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(prometheus.DefaultGatherer))

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/catalog"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	corpusPath := flag.String("corpus", "", "corpus file (overrides indexer.corpusPath)")
	dataDir := flag.String("data-dir", "", "artifact directory (overrides indexer.dataDir)")
	history := flag.Int("history", 0, "print the last N catalogued builds and exit (requires postgres)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusPath != "" {
		cfg.Indexer.CorpusPath = *corpusPath
	}
	if *dataDir != "" {
		cfg.Indexer.DataDir = *dataDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build",
		"corpus", cfg.Indexer.CorpusPath,
		"data_dir", cfg.Indexer.DataDir,
		"keep_generations", cfg.Indexer.KeepGenerations,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		metricsServer.Start()
		defer metricsServer.Shutdown(context.Background())
	}

	var store *catalog.Store
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = catalog.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare build catalog", "error", err)
			os.Exit(1)
		}
		if *history > 0 {
			printHistory(ctx, store, *history)
			return
		}
		if prev, err := store.Latest(ctx); err != nil {
			slog.Warn("failed to read previous build", "error", err)
		} else if prev != nil {
			slog.Info("previous build",
				"generation", prev.Generation,
				"total_docs", prev.TotalDocs,
				"finished_at", prev.FinishedAt,
			)
		}
	} else if *history > 0 {
		slog.Error("build history requires postgres.enabled")
		os.Exit(1)
	}

	started := time.Now().UTC()
	res, err := indexer.NewBuilder(cfg.Indexer, m).BuildFile(ctx, cfg.Indexer.CorpusPath)
	if err != nil {
		slog.Error("index build failed", "error", err)
		if store != nil {
			if _, recErr := store.Record(context.Background(), catalog.Failed(cfg.Indexer.CorpusPath, started, err)); recErr != nil {
				slog.Error("failed to record build", "error", recErr)
			}
		}
		os.Exit(1)
	}

	if store != nil {
		if _, err := store.Record(ctx, catalog.Succeeded(res)); err != nil {
			slog.Error("failed to record build", "error", err)
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, resilience.RetryConfig{MaxAttempts: 5})
		defer producer.Close()
		ev := kafka.IndexComplete{
			Generation:   res.Generation,
			Dir:          res.Dir,
			TotalDocs:    res.TotalDocs,
			UniqueTokens: res.UniqueTokens,
			CompletedAt:  res.FinishedAt,
		}
		if err := producer.PublishIndexComplete(ctx, ev); err != nil {
			// the generation is published on disk; searchers pick it up on restart
			slog.Error("failed to announce generation", "generation", res.Generation, "error", err)
		} else {
			slog.Info("generation announced", "topic", cfg.Kafka.Topics.IndexComplete, "generation", res.Generation)
		}
	}

	slog.Info("index build finished",
		"generation", res.Generation,
		"total_docs", res.TotalDocs,
		"indexed_docs", res.IndexedDocs,
		"skipped_docs", res.SkippedDocs(),
		"unique_tokens", res.UniqueTokens,
		"duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)
}

func printHistory(ctx context.Context, store *catalog.Store, n int) {
	builds, err := store.List(ctx, n)
	if err != nil {
		slog.Error("failed to list builds", "error", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, b := range builds {
		if err := enc.Encode(b); err != nil {
			slog.Error("failed to print build", "error", err)
			os.Exit(1)
		}
	}
}

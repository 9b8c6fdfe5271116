package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"martingale-lab/internal/broker/feed"
	"martingale-lab/internal/config"
	"martingale-lab/internal/ingestion"
	"martingale-lab/internal/logging"
	"martingale-lab/internal/observability"
	chstore "martingale-lab/internal/storage/clickhouse"
	"martingale-lab/internal/storage/migrations"
	pgstore "martingale-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	batchSize := flag.Int("batch-size", ingestion.DefaultBatchSize, "Ticks per insert batch")
	flushInterval := flag.Duration("flush-interval", ingestion.DefaultFlushInterval, "Max time a partial batch waits")
	migrate := flag.Bool("migrate", true, "Apply database migrations on startup")
	flag.Parse()

	stderr := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		stderr.Fatalf("load config: %v", err)
	}
	if cfg.Storage.ClickhouseDSN == "" {
		stderr.Fatal("storage.clickhouse_dsn is required: ticks are archived in ClickHouse")
	}
	if len(cfg.Feed.Symbols) == 0 {
		stderr.Fatal("feed.symbols is required")
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Console)
	if err != nil {
		stderr.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// ClickHouse holds the tick archive; migrations create the database
	// and tables on first run.
	var conn *chstore.Conn
	if *migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			stderr.Fatalf("clickhouse migrations: %v", err)
		}
	} else {
		conn, err = chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			stderr.Fatalf("connect to clickhouse: %v", err)
		}
	}
	defer conn.Close()

	// Postgres migrations ride along so one binary prepares both stores.
	if *migrate && cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			stderr.Fatalf("connect to postgres: %v", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			stderr.Fatalf("postgres migrations: %v", err)
		}
		pool.Close()
	}

	metrics := observability.NewMetrics("")

	recorder, err := ingestion.NewRecorder(ingestion.RecorderOptions{
		Store:         chstore.NewTickStore(conn).WithMetrics(metrics),
		BatchSize:     *batchSize,
		FlushInterval: *flushInterval,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		stderr.Fatalf("create recorder: %v", err)
	}

	priceFeed, err := feed.NewWSFeed(ctx, feed.WSOptions{
		Endpoint: cfg.Feed.Endpoint,
		Symbols:  cfg.Feed.Symbols,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		stderr.Fatalf("connect price feed: %v", err)
	}
	defer priceFeed.Close()

	logger.Info("recording started",
		zap.Strings("symbols", cfg.Feed.Symbols),
		zap.Int("batch_size", *batchSize),
		zap.Duration("flush_interval", *flushInterval))

	start := time.Now()
	stored, err := recorder.Run(ctx, priceFeed)
	if err != nil && !errors.Is(err, context.Canceled) {
		stderr.Fatalf("recorder: %v", err)
	}

	logger.Info("recording stopped",
		zap.Int("ticks_stored", stored),
		zap.Duration("elapsed", time.Since(start)))
	fmt.Printf("Stored %d ticks in %s\n", stored, time.Since(start).Round(time.Second))
}

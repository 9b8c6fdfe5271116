package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"martingale-lab/internal/broker/feed"
	"martingale-lab/internal/broker/paper"
	"martingale-lab/internal/config"
	"martingale-lab/internal/coordinator"
	"martingale-lab/internal/domain"
	"martingale-lab/internal/logging"
	"martingale-lab/internal/observability"
	"martingale-lab/internal/risk"
	"martingale-lab/internal/storage"
	"martingale-lab/internal/storage/memory"
	pgstore "martingale-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	stderr := log.New(os.Stderr, "[trade] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		stderr.Fatalf("load config: %v", err)
	}
	if cfg.Mode != "paper" {
		stderr.Fatalf("unsupported mode %q: only paper execution is available", cfg.Mode)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Console)
	if err != nil {
		stderr.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	settings, err := cfg.Settings()
	if err != nil {
		stderr.Fatalf("resolve instances: %v", err)
	}

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

	metrics := observability.NewMetrics("")
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics listener started", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			srv.Shutdown(shutCtx)
		}()
	}

	// Cycle archive
	var recordStore storage.CycleRecordStore = memory.NewCycleRecordStore()
	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			stderr.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		recordStore = pgstore.NewCycleRecordStore(pool).WithMetrics(metrics)
	}

	account, err := paper.NewAccount(cfg.Account.InitialBalance)
	if err != nil {
		stderr.Fatalf("create paper account: %v", err)
	}
	venue := paper.NewExecutor(cfg.Account.SlippageBps)

	manager := risk.NewManager(risk.Options{
		Limits:        cfg.RiskLimits(),
		InitialEquity: cfg.Account.InitialBalance,
		Logger:        logger,
		Metrics:       metrics,
	})

	coord, err := coordinator.New(coordinator.Options{
		Settings:    settings,
		Executor:    venue,
		Capital:     account,
		Risk:        manager,
		Store:       recordStore,
		Logger:      logger,
		Metrics:     metrics,
		Sequential:  cfg.Sequential,
		ObserveTick: venue.ObserveTick,
		ApplyPnL:    account.Apply,
	})
	if err != nil {
		stderr.Fatalf("create coordinator: %v", err)
	}

	symbols := cfg.Feed.Symbols
	if len(symbols) == 0 {
		symbols = symbolsFromSettings(settings)
	}

	priceFeed, err := feed.NewWSFeed(ctx, feed.WSOptions{
		Endpoint: cfg.Feed.Endpoint,
		Symbols:  symbols,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		stderr.Fatalf("connect price feed: %v", err)
	}
	defer priceFeed.Close()

	logger.Info("trading started",
		zap.Int("instances", len(settings)),
		zap.Strings("symbols", symbols),
		zap.Float64("balance", cfg.Account.InitialBalance))

	result, err := coord.Run(ctx, priceFeed)
	if err != nil && !errors.Is(err, context.Canceled) {
		stderr.Fatalf("coordinator: %v", err)
	}

	balance, _ := account.AvailableCapital(context.Background())
	logger.Info("trading stopped",
		zap.Int("ticks", result.TicksProcessed),
		zap.Int("cycles", result.CyclesClosed),
		zap.Float64("balance", balance))

	fmt.Printf("\nProcessed %d ticks, closed %d cycles, final balance %.2f\n",
		result.TicksProcessed, result.CyclesClosed, balance)
	for _, e := range result.Errors {
		fmt.Printf("instance error: %s\n", e)
	}
}

// symbolsFromSettings collects the distinct symbols across instances,
// preserving configuration order.
func symbolsFromSettings(settings []domain.StrategySettings) []string {
	seen := make(map[string]bool, len(settings))
	var symbols []string
	for _, s := range settings {
		if !seen[s.Symbol] {
			seen[s.Symbol] = true
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols
}

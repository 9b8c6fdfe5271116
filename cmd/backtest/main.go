package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"martingale-lab/internal/backtest"
	"martingale-lab/internal/config"
	"martingale-lab/internal/logging"
	"martingale-lab/internal/storage"
	chstore "martingale-lab/internal/storage/clickhouse"
	pgstore "martingale-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	symbol := flag.String("symbol", "", "Symbol to replay (required)")
	startMs := flag.Int64("start-ms", 0, "Replay window start, Unix ms (0 = from the beginning)")
	endMs := flag.Int64("end-ms", 0, "Replay window end, Unix ms (0 = to the end)")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	persistResult := flag.Bool("persist", false, "Persist closed cycles to PostgreSQL")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.Storage.ClickhouseDSN == "" {
		logger.Fatal("storage.clickhouse_dsn is required: backtests replay stored ticks")
	}

	settings, err := cfg.Settings()
	if err != nil {
		logger.Fatalf("resolve instances: %v", err)
	}

	zlog, err := logging.New(cfg.Logging.Level, cfg.Logging.Console)
	if err != nil {
		logger.Fatalf("build logger: %v", err)
	}
	defer zlog.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// ClickHouse for the tick archive
	conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		logger.Fatalf("connect to clickhouse: %v", err)
	}
	defer conn.Close()
	tickStore := chstore.NewTickStore(conn)

	// Optional cycle persistence
	var recordStore storage.CycleRecordStore
	if *persistResult {
		if cfg.Storage.PostgresDSN == "" {
			logger.Fatal("storage.postgres_dsn is required with --persist")
		}
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		recordStore = pgstore.NewCycleRecordStore(pool)
	}

	runner, err := backtest.NewRunner(backtest.Options{
		Settings:       settings,
		RiskLimits:     cfg.RiskLimits(),
		InitialBalance: cfg.Account.InitialBalance,
		SlippageBps:    cfg.Account.SlippageBps,
		Sequential:     cfg.Sequential,
		Store:          recordStore,
		Logger:         zlog,
	})
	if err != nil {
		logger.Fatalf("create runner: %v", err)
	}

	logger.Printf("Running backtest: symbol=%s instances=%d window=[%d, %d]",
		*symbol, len(settings), *startMs, *endMs)

	results, err := runner.RunStored(ctx, tickStore, *symbol, *startMs, *endMs)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	// Output result
	if *outputJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
	} else {
		printResults(results)
	}
}

// printResults outputs a human-readable backtest summary.
func printResults(r *backtest.Results) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Ticks Processed:    %d\n", r.TicksProcessed)
	fmt.Printf("Cycles Closed:      %d\n", r.CyclesClosed)
	fmt.Printf("Initial Balance:    %.2f\n", r.InitialBalance)
	fmt.Printf("Final Balance:      %.2f\n", r.FinalBalance)
	fmt.Printf("Net P&L:            %+.2f (%.2f%%)\n",
		r.FinalBalance-r.InitialBalance,
		(r.FinalBalance-r.InitialBalance)/r.InitialBalance*100)
	fmt.Println()

	for _, agg := range r.Aggregates {
		fmt.Printf("--- %s %s ---\n", agg.Variant, agg.Symbol)
		fmt.Printf("  Cycles:           %d (%d won, %d lost)\n", agg.TotalCycles, agg.Wins, agg.Losses)
		fmt.Printf("  Win Rate:         %.1f%%\n", agg.WinRate*100)
		fmt.Printf("  Total P&L:        %+.2f\n", agg.TotalPnL)
		fmt.Printf("  P&L Mean/Median:  %+.2f / %+.2f\n", agg.PnLMean, agg.PnLMedian)
		fmt.Printf("  P&L P10/P90:      %+.2f / %+.2f\n", agg.PnLP10, agg.PnLP90)
		fmt.Printf("  Max Drawdown:     %.2f\n", agg.MaxDrawdown)
		fmt.Printf("  Max Consec Loss:  %d\n", agg.MaxConsecutiveLosses)
		fmt.Printf("  Profit Factor:    %.2f\n", agg.ProfitFactor)
		fmt.Printf("  Recovery Factor:  %.2f\n", agg.RecoveryFactor)
		fmt.Println()
	}

	if len(r.EquityCurve) > 0 {
		last := r.EquityCurve[len(r.EquityCurve)-1]
		fmt.Printf("Last Cycle Closed:  %s\n", time.UnixMilli(last.TimestampMs).Format(time.RFC3339))
	}
	for _, e := range r.Errors {
		fmt.Printf("Instance Error:     %s\n", e)
	}
}

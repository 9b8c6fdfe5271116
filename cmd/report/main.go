package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"martingale-lab/internal/config"
	"martingale-lab/internal/domain"
	"martingale-lab/internal/metrics"
	"martingale-lab/internal/reporting"
	"martingale-lab/internal/storage"
	chstore "martingale-lab/internal/storage/clickhouse"
	pgstore "martingale-lab/internal/storage/postgres"
)

type pair struct {
	variant domain.Variant
	symbol  string
}

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	variant := flag.String("variant", "", "Report a single variant (requires --symbol)")
	symbol := flag.String("symbol", "", "Report a single symbol (requires --variant)")
	dryRun := flag.Bool("dry-run", false, "Compute and print without storing")
	outputDir := flag.String("output-dir", "", "Write REPORT.md and CYCLE_AGGREGATES.csv into this directory")
	flag.Parse()

	ctx := context.Background()

	if (*variant == "") != (*symbol == "") {
		fmt.Fprintln(os.Stderr, "Error: --variant and --symbol must be set together")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: storage.postgres_dsn and storage.clickhouse_dsn are required")
		os.Exit(1)
	}

	// Connect to PostgreSQL for cycle records
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	recordStore := pgstore.NewCycleRecordStore(pool)

	// Connect to ClickHouse for aggregate snapshots
	conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	aggStore := chstore.NewCycleAggregateStore(conn)

	aggregator := metrics.NewAggregator(recordStore, aggStore)

	pairs := reportPairs(cfg, *variant, *symbol)
	if len(pairs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no instances configured and no --variant/--symbol given")
		os.Exit(1)
	}

	var reported int
	for _, p := range pairs {
		agg, err := computeOne(ctx, aggregator, p, *dryRun)
		if errors.Is(err, metrics.ErrNoCycles) {
			fmt.Printf("%s %s: no closed cycles\n", p.variant, p.symbol)
			continue
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			fmt.Printf("%s %s: snapshot unchanged since last report\n", p.variant, p.symbol)
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error computing %s/%s: %v\n", p.variant, p.symbol, err)
			os.Exit(1)
		}
		printAggregate(agg)
		reported++
	}

	fmt.Printf("\nReported %d of %d strategy instances\n", reported, len(pairs))

	if *outputDir != "" {
		gen := reporting.NewGenerator(recordStore, aggStore)
		if err := gen.WriteFiles(ctx, *outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report files: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Report files generated:")
		fmt.Printf("  - %s/%s\n", *outputDir, reporting.MarkdownFileName)
		fmt.Printf("  - %s/%s\n", *outputDir, reporting.CSVFileName)
	}
}

// reportPairs resolves which (variant, symbol) pairs to report: the single
// flagged pair, or every configured instance.
func reportPairs(cfg *config.Config, variant, symbol string) []pair {
	if variant != "" {
		return []pair{{domain.Variant(variant), symbol}}
	}

	seen := make(map[pair]bool)
	var pairs []pair
	for _, inst := range cfg.Instances {
		p := pair{domain.Variant(inst.Variant), inst.Symbol}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	return pairs
}

func computeOne(ctx context.Context, agg *metrics.Aggregator, p pair, dryRun bool) (*domain.CycleAggregate, error) {
	if dryRun {
		return agg.ComputeAggregate(ctx, p.variant, p.symbol)
	}
	return agg.ComputeAndStore(ctx, p.variant, p.symbol)
}

// printAggregate outputs a human-readable aggregate summary.
func printAggregate(a *domain.CycleAggregate) {
	fmt.Printf("=== %s %s ===\n", a.Variant, a.Symbol)
	fmt.Printf("  Cycles:           %d (%d won, %d lost)\n", a.TotalCycles, a.Wins, a.Losses)
	fmt.Printf("  Win Rate:         %.1f%%\n", a.WinRate*100)
	fmt.Printf("  Total P&L:        %+.2f\n", a.TotalPnL)
	fmt.Printf("  P&L Mean/Median:  %+.2f / %+.2f\n", a.PnLMean, a.PnLMedian)
	fmt.Printf("  P&L P10/P90:      %+.2f / %+.2f\n", a.PnLP10, a.PnLP90)
	fmt.Printf("  P&L Min/Max:      %+.2f / %+.2f\n", a.PnLMin, a.PnLMax)
	fmt.Printf("  Stddev:           %.2f\n", a.PnLStddev)
	fmt.Printf("  Max Drawdown:     %.2f\n", a.MaxDrawdown)
	fmt.Printf("  Max Consec Loss:  %d\n", a.MaxConsecutiveLosses)
	fmt.Printf("  Profit Factor:    %.2f\n", a.ProfitFactor)
	fmt.Printf("  Recovery Factor:  %.2f\n", a.RecoveryFactor)
	fmt.Println()
}

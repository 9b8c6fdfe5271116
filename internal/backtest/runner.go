// Package backtest replays recorded ticks through the full strategy
// stack: the paper venue fills orders, the coordinator gates and
// archives cycles, and the run reports the resulting equity curve and
// per-variant aggregates. A backtest and a live run share every code
// path except the feed and the venue.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"martingale-lab/internal/broker/feed"
	"martingale-lab/internal/broker/paper"
	"martingale-lab/internal/coordinator"
	"martingale-lab/internal/domain"
	"martingale-lab/internal/metrics"
	"martingale-lab/internal/observability"
	"martingale-lab/internal/risk"
	"martingale-lab/internal/storage"
	"martingale-lab/internal/storage/memory"
)

// ErrNoTicks is returned when a run has nothing to replay.
var ErrNoTicks = errors.New("no ticks to replay")

// Options configures a backtest run.
type Options struct {
	Settings       []domain.StrategySettings
	RiskLimits     domain.RiskLimits
	InitialBalance float64
	SlippageBps    float64

	// Sequential mirrors the coordinator option: one instance at a time.
	Sequential bool

	// Store, when set, receives every closed cycle in addition to the
	// in-memory archive the results are built from.
	Store   storage.CycleRecordStore
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// EquityPoint is one sample of the balance curve, taken at cycle close.
type EquityPoint struct {
	TimestampMs int64
	Balance     float64
}

// Results holds the output of one backtest run.
type Results struct {
	TicksProcessed int
	CyclesClosed   int
	Records        []*domain.CycleRecord
	Aggregates     []*domain.CycleAggregate
	Errors         []string

	InitialBalance float64
	FinalBalance   float64
	EquityCurve    []EquityPoint
}

// Runner executes deterministic replays.
type Runner struct {
	opts Options
	log  *zap.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %.2f", opts.InitialBalance)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{opts: opts, log: log}, nil
}

// Run replays the given ticks in order. Ticks are sorted by timestamp
// first; the engines reject regressions, so a stable replay order is
// part of the determinism contract.
func (r *Runner) Run(ctx context.Context, ticks []domain.Tick) (*Results, error) {
	if len(ticks) == 0 {
		return nil, ErrNoTicks
	}

	sorted := make([]domain.Tick, len(ticks))
	copy(sorted, ticks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})

	account, err := paper.NewAccount(r.opts.InitialBalance)
	if err != nil {
		return nil, fmt.Errorf("paper account: %w", err)
	}
	venue := paper.NewExecutor(r.opts.SlippageBps)

	manager := risk.NewManager(risk.Options{
		Limits:        r.opts.RiskLimits,
		InitialEquity: r.opts.InitialBalance,
		Logger:        r.log,
		Metrics:       r.opts.Metrics,
	})

	archive := memory.NewCycleRecordStore()

	coord, err := coordinator.New(coordinator.Options{
		Settings:    r.opts.Settings,
		Executor:    venue,
		Capital:     account,
		Risk:        manager,
		Store:       archive,
		Logger:      r.log,
		Metrics:     r.opts.Metrics,
		Sequential:  r.opts.Sequential,
		ObserveTick: venue.ObserveTick,
		ApplyPnL:    account.Apply,
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	replay := feed.NewReplay(sorted)
	defer replay.Close()

	runResult, err := coord.Run(ctx, replay)
	if err != nil {
		return nil, fmt.Errorf("replay run: %w", err)
	}

	if r.opts.Store != nil {
		for _, rec := range runResult.Records {
			if err := r.opts.Store.Insert(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				return nil, fmt.Errorf("archive cycle %s: %w", rec.CycleID, err)
			}
		}
	}

	return r.buildResults(runResult), nil
}

// RunStored loads the symbol's ticks from the tick archive and replays
// them. A zero start and end replays everything.
func (r *Runner) RunStored(ctx context.Context, store storage.TickStore, symbol string, startMs, endMs int64) (*Results, error) {
	var (
		ticks []*domain.Tick
		err   error
	)
	if startMs == 0 && endMs == 0 {
		ticks, err = store.GetBySymbol(ctx, symbol)
	} else {
		ticks, err = store.GetByTimeRange(ctx, symbol, startMs, endMs)
	}
	if err != nil {
		return nil, fmt.Errorf("load ticks: %w", err)
	}

	flat := make([]domain.Tick, len(ticks))
	for i, t := range ticks {
		flat[i] = *t
	}
	return r.Run(ctx, flat)
}

// buildResults folds the run into the equity curve and aggregates.
func (r *Runner) buildResults(run *coordinator.RunResult) *Results {
	records := make([]*domain.CycleRecord, len(run.Records))
	copy(records, run.Records)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ClosedAtMs < records[j].ClosedAtMs
	})

	balance := r.opts.InitialBalance
	curve := make([]EquityPoint, 0, len(records))
	for _, rec := range records {
		balance += rec.RealizedPnL
		curve = append(curve, EquityPoint{TimestampMs: rec.ClosedAtMs, Balance: balance})
	}

	return &Results{
		TicksProcessed: run.TicksProcessed,
		CyclesClosed:   run.CyclesClosed,
		Records:        records,
		Aggregates:     metrics.ComputeAll(records),
		Errors:         run.Errors,
		InitialBalance: r.opts.InitialBalance,
		FinalBalance:   balance,
		EquityCurve:    curve,
	}
}

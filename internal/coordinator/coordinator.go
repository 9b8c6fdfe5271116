// Package coordinator runs the strategy instances over a shared tick
// stream. It gates cycle starts through the risk manager, applies each
// instance's completion policy, archives closed cycles, and owns the
// only read-modify-write path to shared capital.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"martingale-lab/internal/broker"
	"martingale-lab/internal/domain"
	"martingale-lab/internal/engine"
	"martingale-lab/internal/observability"
	"martingale-lab/internal/risk"
	"martingale-lab/internal/storage"
)

// ErrNoInstances is returned when Run is called with nothing to run.
var ErrNoInstances = errors.New("no strategy instances configured")

// instanceState is the coordinator-side lifecycle of one instance.
type instanceState int

const (
	stateEligible instanceState = iota
	stateCooldown
	stateStopped
	statePaused // cycle-level error, awaiting manual intervention
)

// instance pairs a runtime with its coordinator bookkeeping.
type instance struct {
	settings domain.StrategySettings
	runtime  *engine.Runtime
	state    instanceState
	resumeMs int64 // cooldown end, tick time
}

// Options configures a Coordinator.
type Options struct {
	Settings []domain.StrategySettings
	Executor broker.OrderExecutor
	Capital  broker.CapitalProvider
	Risk     *risk.Manager
	Store    storage.CycleRecordStore // optional cycle archive
	Logger   *zap.Logger
	Metrics  *observability.Metrics

	// Sequential runs one instance at a time in configuration order,
	// advancing when its cycle closes. Default is parallel: every
	// instance sees every tick for its symbol.
	Sequential bool

	// ObserveTick, when set, sees every tick before the engines do. The
	// paper venue uses it to track its fill price.
	ObserveTick func(domain.Tick)

	// ApplyPnL, when set, posts each closed cycle's realized P&L to the
	// capital ledger.
	ApplyPnL func(float64)
}

// RunResult summarizes one coordinator run.
type RunResult struct {
	TicksProcessed int
	CyclesClosed   int
	Records        []*domain.CycleRecord
	Errors         []string
}

// Coordinator drives the strategy instances from a single goroutine; the
// risk manager's mutex is the only lock shared with other loops.
type Coordinator struct {
	instances []*instance
	executor  broker.OrderExecutor
	capital   broker.CapitalProvider
	risk      *risk.Manager
	store     storage.CycleRecordStore
	log       *zap.Logger
	metrics   *observability.Metrics

	sequential  bool
	current     int // sequential mode cursor
	observeTick func(domain.Tick)
	applyPnL    func(float64)
}

// New builds a coordinator. Settings are resolved and validated here,
// once, before any cycle starts.
func New(opts Options) (*Coordinator, error) {
	if len(opts.Settings) == 0 {
		return nil, ErrNoInstances
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c := &Coordinator{
		executor:    opts.Executor,
		capital:     opts.Capital,
		risk:        opts.Risk,
		store:       opts.Store,
		log:         log,
		metrics:     opts.Metrics,
		sequential:  opts.Sequential,
		observeTick: opts.ObserveTick,
		applyPnL:    opts.ApplyPnL,
	}

	for _, s := range opts.Settings {
		s.Resolve()
		rt, err := engine.NewRuntime(engine.Options{
			Settings: s,
			Executor: opts.Executor,
			Capital:  opts.Capital,
			Logger:   log,
			Metrics:  opts.Metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("instance %s/%s: %w", s.Variant, s.Symbol, err)
		}
		c.instances = append(c.instances, &instance{settings: s, runtime: rt})
	}
	return c, nil
}

// Run consumes the feed until it closes, the context is cancelled, or
// every instance has stopped.
func (c *Coordinator) Run(ctx context.Context, feed broker.PriceFeed) (*RunResult, error) {
	result := &RunResult{}

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case tick, ok := <-feed.Ticks():
			if !ok {
				if err := feed.Err(); err != nil {
					return result, fmt.Errorf("feed terminated: %w", err)
				}
				return result, nil
			}
			result.TicksProcessed++
			c.processTick(ctx, tick, result)
			if c.allStopped() {
				return result, nil
			}
		}
	}
}

// processTick routes one tick to the eligible instances for its symbol.
func (c *Coordinator) processTick(ctx context.Context, tick domain.Tick, result *RunResult) {
	if c.observeTick != nil {
		c.observeTick(tick)
	}

	emergency := c.risk != nil && c.risk.Emergency()

	for i, inst := range c.instances {
		if inst.settings.Symbol != tick.Symbol {
			continue
		}
		if c.sequential && i != c.current {
			continue
		}
		if inst.state == stateStopped || inst.state == statePaused {
			continue
		}

		if emergency && inst.runtime.Active() {
			inst.runtime.RequestEmergencyExit()
		}
		if !inst.runtime.Active() && !c.mayStart(inst, tick.TimestampMs) {
			continue
		}

		wasActive := inst.runtime.Active()
		record, err := inst.runtime.OnTick(ctx, tick)
		if err != nil {
			c.handleInstanceError(inst, err, result)
			continue
		}
		if !wasActive && inst.runtime.Active() && c.risk != nil {
			c.risk.RegisterCycleStart(inst.runtime.CycleID())
		}
		if record != nil {
			c.handleClose(ctx, inst, i, record, result)
		}
	}
}

// mayStart checks cooldown and risk limits before an idle instance is
// allowed to open a new cycle.
func (c *Coordinator) mayStart(inst *instance, nowMs int64) bool {
	if inst.state == stateCooldown {
		if nowMs < inst.resumeMs {
			return false
		}
		inst.state = stateEligible
	}
	if c.risk != nil {
		if err := c.risk.CanStartCycle(); err != nil {
			return false
		}
	}
	return true
}

// handleClose archives the cycle, settles P&L, and applies the
// completion policy.
func (c *Coordinator) handleClose(ctx context.Context, inst *instance, idx int, record *domain.CycleRecord, result *RunResult) {
	result.CyclesClosed++
	result.Records = append(result.Records, record)

	if c.risk != nil {
		if err := c.risk.RegisterCycleEnd(record.CycleID, record.RealizedPnL); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("risk settle %s: %v", record.CycleID, err))
		}
	}
	if c.applyPnL != nil {
		c.applyPnL(record.RealizedPnL)
	}
	if c.metrics != nil {
		c.metrics.LastCycleClosed.Set(float64(record.ClosedAtMs) / 1000)
	}
	if c.store != nil {
		if err := c.store.Insert(ctx, record); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			result.Errors = append(result.Errors, fmt.Sprintf("archive %s: %v", record.CycleID, err))
			c.log.Error("cycle archive failed",
				zap.String("cycle_id", record.CycleID), zap.Error(err))
		}
	}

	switch inst.settings.Completion {
	case domain.CompletionStop:
		inst.state = stateStopped
		c.log.Info("instance stopped after cycle",
			zap.String("variant", string(inst.settings.Variant)),
			zap.String("symbol", inst.settings.Symbol))
	case domain.CompletionCooldown:
		inst.state = stateCooldown
		inst.resumeMs = record.ClosedAtMs + int64(inst.settings.CooldownSec)*1000
	default: // restart
		inst.state = stateEligible
	}

	if c.sequential {
		c.advance(idx)
	}
}

// advance moves the sequential cursor to the next runnable instance.
func (c *Coordinator) advance(from int) {
	n := len(c.instances)
	for step := 1; step <= n; step++ {
		next := (from + step) % n
		st := c.instances[next].state
		if st != stateStopped && st != statePaused {
			c.current = next
			return
		}
	}
}

// handleInstanceError applies the error taxonomy: capital failures
// escalate to an emergency exit for that instance's open cycle, anything
// else pauses the instance rather than crashing the coordinator.
func (c *Coordinator) handleInstanceError(inst *instance, err error, result *RunResult) {
	result.Errors = append(result.Errors,
		fmt.Sprintf("%s/%s: %v", inst.settings.Variant, inst.settings.Symbol, err))

	if errors.Is(err, engine.ErrOutOfOrderTick) && c.metrics != nil {
		c.metrics.TicksOutOfOrder.WithLabelValues(inst.settings.Symbol).Inc()
	}
	if errors.Is(err, engine.ErrCapitalQuery) {
		c.log.Error("capital query failed, requesting emergency exit", zap.Error(err))
		inst.runtime.RequestEmergencyExit()
		return
	}
	if errors.Is(err, engine.ErrCloseFailed) {
		// the close retries on the next tick
		c.log.Warn("cycle close incomplete, retrying", zap.Error(err))
		return
	}
	inst.state = statePaused
	c.log.Error("instance paused, awaiting manual intervention",
		zap.String("variant", string(inst.settings.Variant)),
		zap.String("symbol", inst.settings.Symbol),
		zap.Error(err))
}

// Resume lifts a pause set by a cycle-level error.
func (c *Coordinator) Resume(variant domain.Variant, symbol string) bool {
	for _, inst := range c.instances {
		if inst.settings.Variant == variant && inst.settings.Symbol == symbol && inst.state == statePaused {
			inst.state = stateEligible
			return true
		}
	}
	return false
}

func (c *Coordinator) allStopped() bool {
	for _, inst := range c.instances {
		if inst.state != stateStopped {
			return false
		}
	}
	return true
}

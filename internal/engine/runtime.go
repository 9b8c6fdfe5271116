// Package engine runs one cycle at a time for a single (symbol, variant)
// strategy instance. Every tick flows through the same sequence: ladder,
// sizing, order placement, net position, trailing stops, exit evaluation.
// The runtime is single-threaded; the coordinator owns its decision loop.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"martingale-lab/internal/broker"
	"martingale-lab/internal/domain"
	"martingale-lab/internal/exits"
	"martingale-lab/internal/idhash"
	"martingale-lab/internal/ladder"
	"martingale-lab/internal/observability"
	"martingale-lab/internal/position"
	"martingale-lab/internal/sizing"
	"martingale-lab/internal/trailing"
	"martingale-lab/internal/zone"
)

// Runtime errors.
var (
	// ErrOutOfOrderTick flags a timestamp regression. Ticks are never
	// silently reordered; the violation surfaces to the caller.
	ErrOutOfOrderTick = errors.New("tick timestamp regressed")
	// ErrSymbolMismatch flags a tick routed to the wrong instance.
	ErrSymbolMismatch = errors.New("tick symbol does not match instance")
	// ErrCapitalQuery wraps a failed capital lookup at sizing time.
	ErrCapitalQuery = errors.New("capital query failed")
	// ErrCloseFailed wraps a rejected closing order. The cycle stays in
	// Closing and the close is retried on the next tick.
	ErrCloseFailed = errors.New("closing order failed")
)

// Options configures a Runtime.
type Options struct {
	Settings domain.StrategySettings // validated and resolved by the caller
	Executor broker.OrderExecutor
	Capital  broker.CapitalProvider
	Logger   *zap.Logger
	Metrics  *observability.Metrics // optional
}

// Runtime drives one cycle from arming to close. After a cycle closes the
// runtime resets itself; whether another cycle starts is the coordinator's
// call, made by feeding or withholding further ticks.
type Runtime struct {
	settings domain.StrategySettings
	policy   ladder.Policy
	executor broker.OrderExecutor
	capital  broker.CapitalProvider
	sizer    *sizing.Sizer
	log      *zap.Logger
	metrics  *observability.Metrics

	cycle *domain.Cycle
	zm    *zone.Model
	lad   *ladder.Ladder
	pos   *position.Tracker
	trail *trailing.Tracker
	eval  *exits.Evaluator

	lastTickMs int64
	hasTick    bool
	realized   float64
	exitReason string
	emergency  bool
	sequence   int
}

// NewRuntime builds a runtime for one strategy instance. Settings must
// already be resolved; Validate is re-run here so a misconfigured
// instance fails at construction rather than mid-cycle.
func NewRuntime(opts Options) (*Runtime, error) {
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("strategy settings: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{
		settings: opts.Settings,
		policy:   ladder.PolicyFor(opts.Settings.Variant),
		executor: opts.Executor,
		capital:  opts.Capital,
		sizer:    sizing.NewSizer(opts.Settings.Sizing),
		log: log.With(
			zap.String("variant", string(opts.Settings.Variant)),
			zap.String("symbol", opts.Settings.Symbol),
		),
		metrics: opts.Metrics,
	}, nil
}

// Active reports whether a cycle is currently open.
func (r *Runtime) Active() bool {
	return r.cycle != nil
}

// CycleID returns the open cycle's ID, or "" when idle.
func (r *Runtime) CycleID() string {
	if r.cycle == nil {
		return ""
	}
	return r.cycle.CycleID
}

// Symbol returns the instance's symbol.
func (r *Runtime) Symbol() string {
	return r.settings.Symbol
}

// Snapshot returns the current net position state, or the zero snapshot
// when no cycle is open.
func (r *Runtime) Snapshot() position.Snapshot {
	if r.pos == nil {
		return position.Snapshot{}
	}
	return r.pos.Snapshot()
}

// RequestEmergencyExit forces the next tick to liquidate the open cycle
// with an Emergency exit. A runtime with no open cycle ignores it.
func (r *Runtime) RequestEmergencyExit() {
	if r.cycle == nil {
		return
	}
	r.emergency = true
}

// OnTick processes one price observation. It returns a non-nil record
// exactly once per cycle, on the tick that closes it.
func (r *Runtime) OnTick(ctx context.Context, tick domain.Tick) (*domain.CycleRecord, error) {
	if tick.Symbol != r.settings.Symbol {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrSymbolMismatch, tick.Symbol, r.settings.Symbol)
	}
	if r.hasTick && tick.TimestampMs < r.lastTickMs {
		return nil, fmt.Errorf("%w: %d after %d", ErrOutOfOrderTick, tick.TimestampMs, r.lastTickMs)
	}
	r.lastTickMs = tick.TimestampMs
	r.hasTick = true

	if r.cycle == nil {
		if err := r.startCycle(tick); err != nil {
			return nil, err
		}
	}
	if r.cycle.Status == domain.CycleClosing {
		return r.closeCycle(ctx, tick)
	}

	if err := r.processLadder(ctx, tick); err != nil {
		return nil, err
	}

	r.pos.OnTick(tick.Price)
	hits := r.updateTrailing(tick.Price)

	decision := r.eval.Evaluate(exits.Input{
		Price:         tick.Price,
		Net:           r.pos.Snapshot(),
		TrailingHits:  hits,
		Emergency:     r.emergency,
		BreakoutArmed: r.lad.Breakout() != domain.BreakoutNone,
		ZoneCenter:    r.zm.Center(),
		Legs:          r.cycle.Legs,
	})

	switch decision.Action {
	case exits.CloseLegs:
		return nil, r.closeLegs(ctx, tick, decision.LegIndexes)
	case exits.CloseCycle:
		r.cycle.Status = domain.CycleClosing
		r.exitReason = decision.Reason
		r.lad.Close()
		r.log.Info("cycle exit triggered",
			zap.String("cycle_id", r.cycle.CycleID),
			zap.String("reason", decision.Reason),
			zap.Float64("price", tick.Price),
			zap.Float64("unrealized_pnl", r.pos.Snapshot().UnrealizedPnL))
		return r.closeCycle(ctx, tick)
	}
	return nil, nil
}

// startCycle opens a new cycle on the first tick after idle. The zone
// center comes from configuration, or from this tick when unset.
func (r *Runtime) startCycle(tick domain.Tick) error {
	center := tick.Price
	if r.settings.ZoneCenter != nil {
		center = *r.settings.ZoneCenter
	}
	zm, err := zone.NewModel(center, r.settings.Distances)
	if err != nil {
		return fmt.Errorf("zone model: %w", err)
	}

	r.zm = zm
	r.lad = ladder.New(r.policy, zm, r.settings.MaxLegs, r.settings.BreakoutThresholdPct, r.settings.RetryPolicy)
	r.pos = position.NewTracker()
	r.trail = trailing.NewTracker(r.settings.TrailingTriggers, r.settings.TrailingDistances)
	r.eval = exits.New(exits.Config{
		MaxNetLoss:            r.settings.MaxNetLoss,
		MinNetProfit:          r.settings.MinNetProfit,
		StopLosses:            r.settings.StopLosses,
		TakeProfits:           r.settings.TakeProfits,
		ReversionExit:         r.policy.ReversionExit,
		ReversionTolerancePct: r.settings.ReversionTolerancePct,
	})
	r.realized = 0
	r.exitReason = ""

	r.cycle = &domain.Cycle{
		CycleID:    idhash.ComputeCycleID(string(r.settings.Variant), r.settings.Symbol, tick.TimestampMs, r.sequence),
		Variant:    r.settings.Variant,
		Symbol:     r.settings.Symbol,
		ZoneCenter: center,
		Status:     domain.CycleActive,
		StartedAt:  tick.TimestampMs,
	}
	r.sequence++

	if r.metrics != nil {
		r.metrics.CyclesStarted.WithLabelValues(string(r.settings.Variant)).Inc()
		r.metrics.ActiveCycles.WithLabelValues(string(r.settings.Variant)).Inc()
	}
	r.log.Info("cycle started",
		zap.String("cycle_id", r.cycle.CycleID),
		zap.Float64("zone_center", center))
	return nil
}

// processLadder advances the ladder and, when it emits an intent, sizes
// and places the leg order. Sizing and order failures are recoverable:
// the leg releases back to the ladder and the cycle keeps running.
func (r *Runtime) processLadder(ctx context.Context, tick domain.Tick) error {
	intent, err := r.lad.OnTick(tick.Price)
	if err != nil {
		return err
	}
	if intent == nil {
		return nil
	}

	avail, err := r.capital.AvailableCapital(ctx)
	if err != nil {
		if relErr := r.lad.Release(); relErr != nil {
			return relErr
		}
		return fmt.Errorf("%w: %v", ErrCapitalQuery, err)
	}

	mult := r.settings.SizeMultipliers[intent.LegIndex]
	qty, err := r.sizer.Size(mult, avail, tick.Price)
	if err != nil {
		r.log.Warn("leg sizing failed, skipping tick",
			zap.String("cycle_id", r.cycle.CycleID),
			zap.Int("leg", intent.LegIndex),
			zap.Error(err))
		if r.metrics != nil {
			r.metrics.SizingFailures.WithLabelValues(string(r.settings.Variant), "sizing").Inc()
		}
		return r.lad.Release()
	}

	fill, err := r.executor.Place(ctx, domain.OrderRequest{
		ClientOrderID: uuid.NewString(),
		CycleID:       r.cycle.CycleID,
		LegIndex:      intent.LegIndex,
		Symbol:        r.settings.Symbol,
		Direction:     intent.Direction,
		Quantity:      qty,
		Type:          domain.OrderTypeMarket,
	})
	if err != nil {
		r.log.Warn("leg order rejected",
			zap.String("cycle_id", r.cycle.CycleID),
			zap.Int("leg", intent.LegIndex),
			zap.Error(err))
		if r.metrics != nil {
			r.metrics.LegsRejected.WithLabelValues(string(r.settings.Variant)).Inc()
		}
		return r.lad.Fail()
	}

	leg := &domain.Leg{
		Index:          intent.LegIndex,
		Direction:      intent.Direction,
		TriggerPrice:   intent.TriggerPrice,
		Quantity:       fill.FillQty,
		EntryPrice:     fill.FillPrice,
		BoundaryPct:    intent.DistancePct,
		SizeMultiplier: mult,
		Status:         domain.LegFilled,
		FilledAtMs:     fill.FilledAtMs,
	}
	r.cycle.Legs = append(r.cycle.Legs, leg)
	r.pos.OnFill(leg)
	if err := r.lad.ConfirmFill(); err != nil {
		return err
	}

	if r.metrics != nil {
		r.metrics.LegsPlaced.WithLabelValues(string(r.settings.Variant), string(intent.Direction)).Inc()
		r.metrics.OpenLegs.WithLabelValues(string(r.settings.Variant), r.settings.Symbol).Inc()
		if r.lad.State() == ladder.StateFrozen {
			r.metrics.LadderFreezes.Inc()
		}
	}
	r.log.Info("leg filled",
		zap.String("cycle_id", r.cycle.CycleID),
		zap.Int("leg", leg.Index),
		zap.String("direction", string(leg.Direction)),
		zap.Float64("quantity", leg.Quantity),
		zap.Float64("entry_price", leg.EntryPrice))
	return nil
}

// updateTrailing feeds every filled leg to the trailing tracker and
// collects the legs whose stop fired on this tick.
func (r *Runtime) updateTrailing(price float64) []int {
	if !r.settings.TrailingEnabled {
		return nil
	}
	var hits []int
	for _, leg := range r.cycle.Legs {
		if !leg.Filled() {
			continue
		}
		if r.trail.OnTick(leg, price) {
			hits = append(hits, leg.Index)
		}
	}
	return hits
}

// closeLegs exits the listed legs individually while the cycle stays
// active. Realized P&L from partial exits accrues to the cycle total.
func (r *Runtime) closeLegs(ctx context.Context, tick domain.Tick, indexes []int) error {
	for _, idx := range indexes {
		leg := r.legByIndex(idx)
		if leg == nil || !leg.Filled() {
			continue
		}
		if err := r.closeLeg(ctx, tick, leg); err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.PartialExits.WithLabelValues(string(r.settings.Variant)).Inc()
		}
		r.log.Info("leg take profit",
			zap.String("cycle_id", r.cycle.CycleID),
			zap.Int("leg", leg.Index),
			zap.Float64("price", tick.Price))
	}
	return nil
}

// closeCycle liquidates every remaining filled leg and archives the
// cycle. A rejected closing order leaves the cycle in Closing; the next
// tick retries the remaining legs.
func (r *Runtime) closeCycle(ctx context.Context, tick domain.Tick) (*domain.CycleRecord, error) {
	for _, leg := range r.cycle.Legs {
		if !leg.Filled() {
			continue
		}
		if err := r.closeLeg(ctx, tick, leg); err != nil {
			return nil, fmt.Errorf("%w: leg %d: %v", ErrCloseFailed, leg.Index, err)
		}
	}

	r.cycle.Status = domain.CycleClosed
	r.cycle.ClosedAt = tick.TimestampMs
	r.cycle.ExitReason = r.exitReason
	record := r.buildRecord(tick)

	if r.metrics != nil {
		r.metrics.ActiveCycles.WithLabelValues(string(r.settings.Variant)).Dec()
		r.metrics.OpenLegs.WithLabelValues(string(r.settings.Variant), r.settings.Symbol).Set(0)
		r.metrics.RecordCycleClosed(string(r.settings.Variant), r.exitReason,
			record.RealizedPnL, float64(record.ClosedAtMs-record.StartedAtMs)/1000)
		if r.exitReason == domain.ExitReasonEmergency {
			r.metrics.EmergencyExits.Inc()
		}
	}
	r.log.Info("cycle closed",
		zap.String("cycle_id", record.CycleID),
		zap.String("reason", record.ExitReason),
		zap.Int("legs", record.LegCount),
		zap.Float64("realized_pnl", record.RealizedPnL))

	r.cycle = nil
	r.pos.Reset()
	r.trail.Reset()
	r.emergency = false
	return record, nil
}

// closeLeg places the closing order for one leg and realizes its P&L.
func (r *Runtime) closeLeg(ctx context.Context, tick domain.Tick, leg *domain.Leg) error {
	fill, err := r.executor.Place(ctx, domain.OrderRequest{
		ClientOrderID: uuid.NewString(),
		CycleID:       r.cycle.CycleID,
		LegIndex:      -1,
		Symbol:        r.settings.Symbol,
		Direction:     leg.Direction.Opposite(),
		Quantity:      leg.Quantity,
		Type:          domain.OrderTypeMarket,
	})
	if err != nil {
		return err
	}
	r.realized += legPnL(leg, fill.FillPrice)
	leg.Status = domain.LegClosed
	return nil
}

// buildRecord converts the closed cycle into its archive form. Every leg
// that held a fill at any point is recorded, including legs already
// closed by a partial exit.
func (r *Runtime) buildRecord(tick domain.Tick) *domain.CycleRecord {
	record := &domain.CycleRecord{
		CycleID:     r.cycle.CycleID,
		Variant:     r.cycle.Variant,
		Symbol:      r.cycle.Symbol,
		ZoneCenter:  r.cycle.ZoneCenter,
		StartedAtMs: r.cycle.StartedAt,
		ClosedAtMs:  tick.TimestampMs,
		ExitReason:  r.exitReason,
		ExitPrice:   tick.Price,
		RealizedPnL: r.realized,
	}
	for _, leg := range r.cycle.Legs {
		if leg.EntryPrice <= 0 {
			continue
		}
		record.Legs = append(record.Legs, domain.LegRecord{
			CycleID:        r.cycle.CycleID,
			LegIndex:       leg.Index,
			Direction:      leg.Direction,
			TriggerPrice:   leg.TriggerPrice,
			EntryPrice:     leg.EntryPrice,
			Quantity:       leg.Quantity,
			SizeMultiplier: leg.SizeMultiplier,
			BoundaryPct:    leg.BoundaryPct,
			FilledAtMs:     leg.FilledAtMs,
		})
	}
	record.LegCount = len(record.Legs)
	return record
}

func (r *Runtime) legByIndex(idx int) *domain.Leg {
	for _, leg := range r.cycle.Legs {
		if leg.Index == idx {
			return leg
		}
	}
	return nil
}

// legPnL is the realized P&L of one leg closed at the given price.
func legPnL(leg *domain.Leg, closePrice float64) float64 {
	diff := closePrice - leg.EntryPrice
	if leg.Direction == domain.DirectionShort {
		diff = -diff
	}
	return diff * leg.Quantity
}

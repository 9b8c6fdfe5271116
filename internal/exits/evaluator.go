// Package exits decides, once per tick, whether a cycle keeps running,
// closes a subset of its legs, or closes entirely. All exit conditions
// funnel through one evaluator so their precedence stays deterministic
// when several fire on the same tick.
package exits

import (
	"math"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/position"
)

// Action is the evaluator's verdict for one tick.
type Action int

const (
	// Hold keeps the cycle active.
	Hold Action = iota
	// CloseCycle closes every filled leg and ends the cycle.
	CloseCycle
	// CloseLegs closes only the listed legs; the cycle stays active.
	CloseLegs
)

// Decision carries the verdict, the exit reason recorded on the cycle,
// and for partial exits the legs to close.
type Decision struct {
	Action     Action
	Reason     string
	LegIndexes []int
}

// Config is the exit surface of the strategy settings, resolved to the
// ladder length before the cycle starts.
type Config struct {
	// MaxNetLoss closes the cycle when unrealized net loss reaches this
	// currency amount. Zero disables the hard stop.
	MaxNetLoss float64
	// MinNetProfit is the extra profit required beyond breakeven before
	// a recovery exit fires. Zero exits on any positive net P&L.
	MinNetProfit float64
	// StopLosses holds the per-leg stop-loss percent, entry-relative. A
	// zero entry disables the stop for that leg; any hit closes the whole
	// cycle, not just the losing leg.
	StopLosses []float64
	// TakeProfits holds the per-leg take-profit percent. A zero entry
	// disables the per-leg exit for that leg.
	TakeProfits []float64
	// ReversionExit enables the failed-breakout exit for variants that
	// arm on a breakout.
	ReversionExit bool
	// ReversionTolerancePct is how close to the zone center, in percent
	// of the center, price must return for the breakout to count as
	// failed.
	ReversionTolerancePct float64
}

// Input is everything the evaluator inspects on one tick. Net position
// and trailing stops are updated by the engine before evaluation.
type Input struct {
	Price         float64
	Net           position.Snapshot
	TrailingHits  []int // leg indexes whose trailing stop fired this tick
	Emergency     bool  // risk manager demands liquidation
	BreakoutArmed bool
	ZoneCenter    float64
	Legs          []*domain.Leg
}

// Evaluator applies the exit conditions in fixed precedence order.
type Evaluator struct {
	cfg Config
}

// New creates an evaluator.
func New(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate returns the first matching exit, or a Hold decision.
// Precedence: stop-loss (net hard stop, then per-leg), emergency, trailing
// stop, failed breakout, net recovery, then per-leg take-profit. The whole
// cycle closes on a trailing or stop-loss hit; only take-profit exits are
// partial.
func (e *Evaluator) Evaluate(in Input) Decision {
	if e.cfg.MaxNetLoss > 0 && in.Net.UnrealizedPnL <= -e.cfg.MaxNetLoss {
		return Decision{Action: CloseCycle, Reason: domain.ExitReasonStopLoss}
	}
	if legs := e.stopLossLegs(in); len(legs) > 0 {
		return Decision{Action: CloseCycle, Reason: domain.ExitReasonStopLoss, LegIndexes: legs}
	}
	if in.Emergency {
		return Decision{Action: CloseCycle, Reason: domain.ExitReasonEmergency}
	}
	if len(in.TrailingHits) > 0 {
		return Decision{Action: CloseCycle, Reason: domain.ExitReasonTrailingStop, LegIndexes: in.TrailingHits}
	}
	if e.breakoutFailed(in) {
		return Decision{Action: CloseCycle, Reason: domain.ExitReasonBreakoutFailed}
	}
	if in.Net.UnrealizedPnL > 0 && in.Net.UnrealizedPnL >= e.cfg.MinNetProfit {
		return Decision{Action: CloseCycle, Reason: domain.ExitReasonRecoveryAchieved}
	}
	if legs := e.takeProfitLegs(in); len(legs) > 0 {
		return Decision{Action: CloseLegs, Reason: domain.ExitReasonTakeProfit, LegIndexes: legs}
	}
	return Decision{Action: Hold}
}

// breakoutFailed reports whether price has reverted to the zone center
// after the breakout armed. Profitability is irrelevant here: a failed
// breakout invalidates the cycle's premise.
func (e *Evaluator) breakoutFailed(in Input) bool {
	if !e.cfg.ReversionExit || !in.BreakoutArmed || in.ZoneCenter <= 0 {
		return false
	}
	move := math.Abs(in.Price-in.ZoneCenter) / in.ZoneCenter * 100
	return move <= e.cfg.ReversionTolerancePct
}

// stopLossLegs returns the filled legs whose individual loss reached their
// configured stop, measured against each leg's own entry price. One hit is
// enough to end the cycle; the indexes are recorded for the exit log.
func (e *Evaluator) stopLossLegs(in Input) []int {
	var hit []int
	for _, leg := range in.Legs {
		if !leg.Filled() || leg.EntryPrice <= 0 {
			continue
		}
		if leg.Index >= len(e.cfg.StopLosses) {
			continue
		}
		sl := e.cfg.StopLosses[leg.Index]
		if sl <= 0 {
			continue
		}
		if legProfitPct(leg, in.Price) <= -sl {
			hit = append(hit, leg.Index)
		}
	}
	return hit
}

// takeProfitLegs returns the filled legs whose individual profit reached
// their configured take-profit, independent of the net position.
func (e *Evaluator) takeProfitLegs(in Input) []int {
	var hit []int
	for _, leg := range in.Legs {
		if !leg.Filled() || leg.EntryPrice <= 0 {
			continue
		}
		if leg.Index >= len(e.cfg.TakeProfits) {
			continue
		}
		tp := e.cfg.TakeProfits[leg.Index]
		if tp <= 0 {
			continue
		}
		if legProfitPct(leg, in.Price) >= tp {
			hit = append(hit, leg.Index)
		}
	}
	return hit
}

// legProfitPct is the leg's own profit in percent of its entry price.
func legProfitPct(leg *domain.Leg, price float64) float64 {
	pct := (price - leg.EntryPrice) / leg.EntryPrice * 100
	if leg.Direction == domain.DirectionShort {
		return -pct
	}
	return pct
}

// Package trailing tracks per-leg high-water marks and trailing-stop
// prices, independent of the ladder and zone logic.
package trailing

import (
	"martingale-lab/internal/domain"
)

// State is the trailing-stop state for one leg.
type State struct {
	Active    bool
	HighWater float64 // most favorable price seen since activation
	StopPrice float64 // never moves unfavorably once set
}

// Tracker manages one trailing stop per leg index. Trigger and distance
// percentages are configured per leg; out-of-range indices were resolved
// away before construction.
type Tracker struct {
	triggers  []float64 // profit pct that activates trailing
	distances []float64 // trail distance pct from the high-water mark
	states    map[int]*State
}

// NewTracker creates a tracker from resolved per-leg tables.
func NewTracker(triggers, distances []float64) *Tracker {
	return &Tracker{
		triggers:  triggers,
		distances: distances,
		states:    make(map[int]*State),
	}
}

// State returns the trailing state for a leg, or nil when never activated.
func (t *Tracker) State(legIndex int) *State {
	return t.states[legIndex]
}

// OnTick advances the trailing stop for one filled leg and reports whether
// the stop has been hit at the given price.
//
// Activation: leg profit ratio reaches the leg's trigger percentage.
// Once active the stop follows favorable movement only; for a long leg the
// stop price is non-decreasing, for a short leg non-increasing.
func (t *Tracker) OnTick(leg *domain.Leg, price float64) bool {
	if !leg.Filled() || leg.EntryPrice <= 0 {
		return false
	}

	trigger := t.table(t.triggers, leg.Index)
	distance := t.table(t.distances, leg.Index)
	if trigger <= 0 || distance <= 0 {
		return false
	}

	profitPct := leg.Direction.Sign() * (price - leg.EntryPrice) / leg.EntryPrice * 100

	st := t.states[leg.Index]
	if st == nil || !st.Active {
		if profitPct < trigger {
			return false
		}
		t.states[leg.Index] = &State{
			Active:    true,
			HighWater: price,
			StopPrice: initialStop(leg.Direction, price, distance),
		}
		return false
	}

	if leg.Direction == domain.DirectionLong {
		if price > st.HighWater {
			st.HighWater = price
			if stop := price * (1 - distance/100); stop > st.StopPrice {
				st.StopPrice = stop
			}
		}
		return price <= st.StopPrice
	}

	if price < st.HighWater {
		st.HighWater = price
		if stop := price * (1 + distance/100); stop < st.StopPrice {
			st.StopPrice = stop
		}
	}
	return price >= st.StopPrice
}

// Reset clears all per-leg state. Called only on cycle close.
func (t *Tracker) Reset() {
	t.states = make(map[int]*State)
}

func (t *Tracker) table(vals []float64, legIndex int) float64 {
	if len(vals) == 0 {
		return 0
	}
	if legIndex >= len(vals) {
		return vals[len(vals)-1]
	}
	return vals[legIndex]
}

func initialStop(dir domain.Direction, price, distancePct float64) float64 {
	if dir == domain.DirectionLong {
		return price * (1 - distancePct/100)
	}
	return price * (1 + distancePct/100)
}

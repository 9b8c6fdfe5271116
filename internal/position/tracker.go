// Package position aggregates signed quantity and weighted-average cost
// across the filled legs of a cycle.
package position

import (
	"martingale-lab/internal/domain"
)

// Snapshot is the derived net-position state at a point in time.
// It is a pure function of the filled legs plus the last tick price and is
// never mutated independently of them.
type Snapshot struct {
	NetQuantity   float64 // Σ long qty − Σ short qty
	LongQuantity  float64
	ShortQuantity float64
	AvgLongEntry  float64 // volume-weighted, 0 when no long legs
	AvgShortEntry float64 // volume-weighted, 0 when no short legs

	// BlendedAvgEntry is volume-weighted over all filled legs regardless
	// of side. The recovery condition is evaluated on the combined book,
	// not per side.
	BlendedAvgEntry float64

	UnrealizedPnL float64
	LastPrice     float64
}

// Tracker recomputes the snapshot from the authoritative leg list.
type Tracker struct {
	legs      []*domain.Leg
	lastPrice float64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// OnFill registers a filled leg. The tracker keeps a reference; legs are
// owned by the cycle and are not mutated here.
func (t *Tracker) OnFill(leg *domain.Leg) {
	t.legs = append(t.legs, leg)
}

// OnTick updates the mark price used for unrealized P&L.
func (t *Tracker) OnTick(price float64) {
	t.lastPrice = price
}

// Reset clears all state for a new cycle.
func (t *Tracker) Reset() {
	t.legs = nil
	t.lastPrice = 0
}

// Snapshot recomputes the net position from scratch. An empty ladder
// yields the zero snapshot with UnrealizedPnL == 0.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{LastPrice: t.lastPrice}

	var longValue, shortValue, totalValue, totalQty float64
	for _, leg := range t.legs {
		if !leg.Filled() {
			continue
		}
		if leg.Direction == domain.DirectionLong {
			s.LongQuantity += leg.Quantity
			longValue += leg.Quantity * leg.EntryPrice
		} else {
			s.ShortQuantity += leg.Quantity
			shortValue += leg.Quantity * leg.EntryPrice
		}
		totalQty += leg.Quantity
		totalValue += leg.Quantity * leg.EntryPrice

		s.UnrealizedPnL += (t.lastPrice - leg.EntryPrice) * leg.SignedQuantity()
	}

	s.NetQuantity = s.LongQuantity - s.ShortQuantity
	if s.LongQuantity > 0 {
		s.AvgLongEntry = longValue / s.LongQuantity
	}
	if s.ShortQuantity > 0 {
		s.AvgShortEntry = shortValue / s.ShortQuantity
	}
	if totalQty > 0 {
		s.BlendedAvgEntry = totalValue / totalQty
	}
	return s
}

// IsProfitable reports whether the combined book shows positive
// unrealized P&L at the last tick price.
func (t *Tracker) IsProfitable() bool {
	return t.Snapshot().UnrealizedPnL > 0
}

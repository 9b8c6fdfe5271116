package domain

// CycleStatus is the lifecycle state of a cycle.
type CycleStatus string

// Cycle lifecycle states.
const (
	CycleIdle    CycleStatus = "IDLE"
	CycleActive  CycleStatus = "ACTIVE"
	CycleClosing CycleStatus = "CLOSING"
	CycleClosed  CycleStatus = "CLOSED"
)

// LegStatus is the order state of a single leg.
type LegStatus string

// Leg order states. A closed leg was filled and later exited on its own,
// ahead of the cycle, by a per-leg take-profit.
const (
	LegPending   LegStatus = "PENDING"
	LegFilled    LegStatus = "FILLED"
	LegCancelled LegStatus = "CANCELLED"
	LegClosed    LegStatus = "CLOSED"
)

// Exit reason codes, in evaluation precedence order.
const (
	ExitReasonStopLoss         = "STOP_LOSS"
	ExitReasonEmergency        = "EMERGENCY"
	ExitReasonTrailingStop     = "TRAILING_STOP"
	ExitReasonBreakoutFailed   = "BREAKOUT_FAILED"
	ExitReasonRecoveryAchieved = "RECOVERY_ACHIEVED"
	ExitReasonTakeProfit       = "TAKE_PROFIT"
)

// Leg is one order placed within a cycle's ladder.
type Leg struct {
	Index          int       // 0-based position in the ladder
	Direction      Direction // alternates strictly between consecutive filled legs
	TriggerPrice   float64   // boundary value that emitted the intent
	Quantity       float64   // sized units
	EntryPrice     float64   // fill price once confirmed, 0 while pending
	BoundaryPct    float64   // distance schedule entry used, percent of center
	SizeMultiplier float64   // multiplier applied by the sizer
	Status         LegStatus
	FilledAtMs     int64 // fill confirmation time, 0 while pending
}

// Filled reports whether the leg has a confirmed fill.
func (l *Leg) Filled() bool {
	return l.Status == LegFilled
}

// SignedQuantity returns quantity with the direction sign applied.
func (l *Leg) SignedQuantity() float64 {
	return l.Direction.Sign() * l.Quantity
}

// Cycle is one complete run of a strategy from first leg to exit.
// Legs are owned exclusively by their cycle and archived, never reused,
// when the cycle closes.
type Cycle struct {
	CycleID    string
	Variant    Variant
	Symbol     string
	ZoneCenter float64 // fixed at cycle start, never recalculated mid-cycle
	Status     CycleStatus
	StartedAt  int64 // ms, cycle start
	ClosedAt   int64 // ms, 0 while open
	ExitReason string
	Legs       []*Leg
}

// FilledLegs returns the legs with confirmed fills, in ladder order.
func (c *Cycle) FilledLegs() []*Leg {
	var filled []*Leg
	for _, leg := range c.Legs {
		if leg.Filled() {
			filled = append(filled, leg)
		}
	}
	return filled
}

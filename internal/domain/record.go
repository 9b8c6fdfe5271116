package domain

// LegRecord is the archived form of a filled leg.
type LegRecord struct {
	CycleID        string
	LegIndex       int
	Direction      Direction
	TriggerPrice   float64
	EntryPrice     float64
	Quantity       float64
	SizeMultiplier float64
	BoundaryPct    float64
	FilledAtMs     int64
}

// CycleRecord is the archived form of a closed cycle. Records are
// append-only: a cycle is archived exactly once, at close.
type CycleRecord struct {
	CycleID     string
	Variant     Variant
	Symbol      string
	ZoneCenter  float64
	StartedAtMs int64
	ClosedAtMs  int64
	ExitReason  string
	ExitPrice   float64
	LegCount    int
	RealizedPnL float64
	Legs        []LegRecord
}

// Won reports whether the cycle closed with positive realized P&L.
func (r *CycleRecord) Won() bool {
	return r.RealizedPnL > 0
}

// CycleAggregate holds per-(variant, symbol) statistics over closed cycles.
type CycleAggregate struct {
	Variant Variant
	Symbol  string

	TotalCycles int
	Wins        int
	Losses      int
	WinRate     float64

	TotalPnL  float64
	PnLMean   float64
	PnLMedian float64
	PnLP10    float64
	PnLP90    float64
	PnLStddev float64
	PnLMin    float64
	PnLMax    float64

	MaxDrawdown          float64 // worst peak-to-trough of the cumulative P&L curve
	MaxConsecutiveLosses int
	RecoveryFactor       float64 // total P&L / max drawdown
	ProfitFactor         float64 // gross wins / gross losses
}

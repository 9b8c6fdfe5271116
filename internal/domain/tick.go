package domain

// Tick is a single observed price for a symbol.
// Ticks for a symbol must arrive in non-decreasing timestamp order; the
// engine rejects violations rather than reordering.
type Tick struct {
	Symbol      string
	Price       float64
	TimestampMs int64
}

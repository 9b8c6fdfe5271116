// Package reporting renders stored cycle results as Markdown and CSV
// documents for review outside the trading binaries.
package reporting

import (
	"time"

	"martingale-lab/internal/domain"
)

// DataSummary holds the headline totals across every stored cycle.
type DataSummary struct {
	TotalCycles int
	TotalWins   int
	TotalLosses int
	TotalPnL    float64

	// Close-time range of the underlying cycles, Unix ms. Zero when no
	// cycles exist.
	DateRangeStartMs int64
	DateRangeEndMs   int64
}

// Report is the full rendered-report model.
type Report struct {
	GeneratedAt time.Time

	VariantCount int
	SymbolCount  int

	DataSummary DataSummary
	Aggregates  []*domain.CycleAggregate
}

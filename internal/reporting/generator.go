package reporting

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/storage"
)

// Output file names inside the report directory.
const (
	MarkdownFileName = "REPORT.md"
	CSVFileName      = "CYCLE_AGGREGATES.csv"
)

// Generator produces reports from stored data.
type Generator struct {
	recordStore    storage.CycleRecordStore
	aggregateStore storage.CycleAggregateStore
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(recordStore storage.CycleRecordStore, aggStore storage.CycleAggregateStore) *Generator {
	return &Generator{
		recordStore:    recordStore,
		aggregateStore: aggStore,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report model from the stored aggregates and cycle
// records.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	aggs, err := g.aggregateStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}

	summary, err := g.generateDataSummary(ctx, aggs)
	if err != nil {
		return nil, err
	}

	variantSet := make(map[domain.Variant]struct{})
	symbolSet := make(map[string]struct{})
	for _, agg := range aggs {
		variantSet[agg.Variant] = struct{}{}
		symbolSet[agg.Symbol] = struct{}{}
	}

	return &Report{
		GeneratedAt:  g.now(),
		VariantCount: len(variantSet),
		SymbolCount:  len(symbolSet),
		DataSummary:  *summary,
		Aggregates:   aggs,
	}, nil
}

// WriteFiles generates the report and writes the Markdown and CSV
// renderings into outputDir, creating it if needed.
func (g *Generator) WriteFiles(ctx context.Context, outputDir string) error {
	report, err := g.Generate(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, MarkdownFileName), []byte(RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, CSVFileName), []byte(RenderCSV(report.Aggregates)), 0o644); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	return nil
}

// generateDataSummary folds counts from the aggregates and the close-time
// range from the underlying cycle records.
func (g *Generator) generateDataSummary(ctx context.Context, aggs []*domain.CycleAggregate) (*DataSummary, error) {
	summary := &DataSummary{}
	for _, agg := range aggs {
		summary.TotalCycles += agg.TotalCycles
		summary.TotalWins += agg.Wins
		summary.TotalLosses += agg.Losses
		summary.TotalPnL += agg.TotalPnL
	}

	records, err := g.recordStore.GetByTimeRange(ctx, 0, math.MaxInt64)
	if err != nil {
		return nil, fmt.Errorf("load cycle records: %w", err)
	}
	for _, r := range records {
		if summary.DateRangeStartMs == 0 || r.ClosedAtMs < summary.DateRangeStartMs {
			summary.DateRangeStartMs = r.ClosedAtMs
		}
		if r.ClosedAtMs > summary.DateRangeEndMs {
			summary.DateRangeEndMs = r.ClosedAtMs
		}
	}
	return summary, nil
}

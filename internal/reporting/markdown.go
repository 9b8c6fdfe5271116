package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Cycle Performance Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Variants: %d | Symbols: %d\n\n", r.VariantCount, r.SymbolCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Cycles | %d |\n", r.DataSummary.TotalCycles))
	sb.WriteString(fmt.Sprintf("| Wins | %d |\n", r.DataSummary.TotalWins))
	sb.WriteString(fmt.Sprintf("| Losses | %d |\n", r.DataSummary.TotalLosses))
	sb.WriteString(fmt.Sprintf("| Total P&L | %.4f |\n", r.DataSummary.TotalPnL))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStartMs))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEndMs))
	sb.WriteString("\n")

	// Strategy Metrics
	sb.WriteString("## Strategy Metrics\n\n")
	if len(r.Aggregates) > 0 {
		sb.WriteString("| Variant | Symbol | Cycles | Wins | WinRate | TotalPnL | Mean | Median | P10 | P90 | MaxDD | MaxLoss | PF | RF |\n")
		sb.WriteString("|---------|--------|--------|------|---------|----------|------|--------|-----|-----|-------|---------|----|----|\n")
		for _, a := range r.Aggregates {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %d | %.4f | %.4f |\n",
				a.Variant, a.Symbol,
				a.TotalCycles, a.Wins, a.WinRate, a.TotalPnL,
				a.PnLMean, a.PnLMedian, a.PnLP10, a.PnLP90,
				a.MaxDrawdown, a.MaxConsecutiveLosses,
				a.ProfitFactor, a.RecoveryFactor))
		}
	} else {
		sb.WriteString("No strategy metrics available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

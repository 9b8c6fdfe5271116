package reporting

import (
	"fmt"
	"strings"

	"martingale-lab/internal/domain"
)

// RenderCSV renders cycle aggregates as a CSV string.
func RenderCSV(aggs []*domain.CycleAggregate) string {
	var sb strings.Builder

	// Header
	sb.WriteString("variant,symbol,total_cycles,wins,losses,win_rate,total_pnl,")
	sb.WriteString("pnl_mean,pnl_median,pnl_p10,pnl_p90,pnl_stddev,pnl_min,pnl_max,")
	sb.WriteString("max_drawdown,max_consecutive_losses,recovery_factor,profit_factor\n")

	// Rows
	for _, a := range aggs {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%.6f,%.6f\n",
			a.Variant,
			a.Symbol,
			a.TotalCycles,
			a.Wins,
			a.Losses,
			a.WinRate,
			a.TotalPnL,
			a.PnLMean,
			a.PnLMedian,
			a.PnLP10,
			a.PnLP90,
			a.PnLStddev,
			a.PnLMin,
			a.PnLMax,
			a.MaxDrawdown,
			a.MaxConsecutiveLosses,
			a.RecoveryFactor,
			a.ProfitFactor,
		))
	}

	return sb.String()
}

// Package metrics computes per-(variant, symbol) statistics over the
// cycle archive: outcome distribution, drawdown, loss streaks, and the
// recovery and profit factors used to compare the strategy variants.
package metrics

import (
	"math"
	"sort"

	"martingale-lab/internal/domain"
)

// computeFromRecords calculates all metrics from closed cycles of one
// (variant, symbol) pair. Records are sorted by ClosedAtMs ASC, CycleID ASC
// before computing order-dependent metrics (MaxDrawdown,
// MaxConsecutiveLosses).
func computeFromRecords(records []*domain.CycleRecord, variant domain.Variant, symbol string) *domain.CycleAggregate {
	n := len(records)
	if n == 0 {
		return &domain.CycleAggregate{Variant: variant, Symbol: symbol}
	}

	sorted := make([]*domain.CycleRecord, n)
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ClosedAtMs != sorted[j].ClosedAtMs {
			return sorted[i].ClosedAtMs < sorted[j].ClosedAtMs
		}
		return sorted[i].CycleID < sorted[j].CycleID
	})

	wins := 0
	total := 0.0
	pnls := make([]float64, n)
	for i, r := range sorted {
		pnls[i] = r.RealizedPnL
		total += r.RealizedPnL
		if r.Won() {
			wins++
		}
	}

	sortedPnLs := make([]float64, n)
	copy(sortedPnLs, pnls)
	sort.Float64s(sortedPnLs)

	mean := total / float64(n)
	maxDrawdown := computeMaxDrawdown(pnls)

	return &domain.CycleAggregate{
		Variant: variant,
		Symbol:  symbol,

		TotalCycles: n,
		Wins:        wins,
		Losses:      n - wins,
		WinRate:     float64(wins) / float64(n),

		TotalPnL:  total,
		PnLMean:   mean,
		PnLMedian: computePercentile(sortedPnLs, 0.50),
		PnLP10:    computePercentile(sortedPnLs, 0.10),
		PnLP90:    computePercentile(sortedPnLs, 0.90),
		PnLStddev: computeStddev(pnls, mean),
		PnLMin:    sortedPnLs[0],
		PnLMax:    sortedPnLs[n-1],

		MaxDrawdown:          maxDrawdown,
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(pnls),
		RecoveryFactor:       computeRecoveryFactor(total, maxDrawdown),
		ProfitFactor:         computeProfitFactor(pnls),
	}
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(pnls []float64, mean float64) float64 {
	n := len(pnls)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, p := range pnls {
		diff := p - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC. p is the percentile (0.10 = 10th).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on the cumulative
// P&L curve. PnLs must be in chronological order.
func computeMaxDrawdown(pnls []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of pnl <= 0.
// PnLs must be in chronological order.
func computeMaxConsecutiveLosses(pnls []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, p := range pnls {
		if p <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}

// computeRecoveryFactor is total P&L over max drawdown. Zero drawdown
// yields zero rather than an infinity that breaks downstream sorting.
func computeRecoveryFactor(totalPnL, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return totalPnL / maxDrawdown
}

// computeProfitFactor is gross wins over gross losses. All-winning
// histories report zero for the same reason as computeRecoveryFactor.
func computeProfitFactor(pnls []float64) float64 {
	grossWin := 0.0
	grossLoss := 0.0
	for _, p := range pnls {
		if p > 0 {
			grossWin += p
		} else {
			grossLoss += -p
		}
	}
	if grossLoss == 0 {
		return 0
	}
	return grossWin / grossLoss
}

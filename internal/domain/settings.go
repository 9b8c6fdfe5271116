package domain

import (
	"errors"
	"fmt"
)

// Configuration errors. These are fatal to the affected cycle only.
var (
	ErrUnknownVariant        = errors.New("unknown strategy variant")
	ErrEmptyDistanceSchedule = errors.New("distance schedule must not be empty")
	ErrEmptyMultiplierTable  = errors.New("size multiplier table must not be empty")
	ErrInvalidMaxLegs        = errors.New("max legs must be between 1 and 50")
	ErrShrinkingSchedule     = errors.New("distance schedule must be non-decreasing")
	ErrNonPositiveSizing     = errors.New("sizing parameters must be positive")
	ErrMissingBreakout       = errors.New("breakout threshold required for breakout-driven variants")
)

// SizingMode selects how the base sizing value is interpreted.
type SizingMode string

// Sizing modes.
const (
	SizingPercentage    SizingMode = "PERCENTAGE"     // base value is percent of available capital
	SizingFixedCurrency SizingMode = "FIXED_CURRENCY" // base value is a currency amount
	SizingFixedUnits    SizingMode = "FIXED_UNITS"    // base value is a unit count
)

// SizingPolicy decides what happens when a computed quantity falls below
// the configured minimum. The original system silently floored to one unit,
// which corrupts percentage-based scaling; the policy is explicit here.
type SizingPolicy string

// Sizing policies for sub-minimum quantities.
const (
	SizingReject SizingPolicy = "REJECT" // skip the leg intent for this tick
	SizingClamp  SizingPolicy = "CLAMP"  // raise the quantity to MinUnits
)

// SizingConfig is the resolved position-sizing configuration.
type SizingConfig struct {
	Mode      SizingMode
	BaseValue float64
	MinUnits  float64
	MaxUnits  float64
	Policy    SizingPolicy
}

// OrderRetryPolicy decides how the ladder reacts to a rejected leg order.
type OrderRetryPolicy string

// Order retry policies.
const (
	RetryNextTick    OrderRetryPolicy = "RETRY_NEXT_TICK"    // re-attempt on the next tick past the boundary
	WaitNextCrossing OrderRetryPolicy = "WAIT_NEXT_CROSSING" // require price to leave and re-cross the boundary
)

// CompletionPolicy decides what the coordinator does when a cycle closes.
type CompletionPolicy string

// Cycle completion policies.
const (
	CompletionRestart  CompletionPolicy = "RESTART"  // start a new cycle immediately
	CompletionStop     CompletionPolicy = "STOP"     // stop the instance
	CompletionCooldown CompletionPolicy = "COOLDOWN" // wait the cooldown, then restart
)

// StrategySettings is the fully-resolved configuration for one
// (symbol, variant) instance. All per-leg slices are resolved to exactly
// MaxLegs entries before use; out-of-range leg indices never occur at
// runtime.
type StrategySettings struct {
	Variant Variant
	Symbol  string

	// ZoneCenter is the configured zone center; nil means "set at the
	// price observed on the first tick".
	ZoneCenter *float64

	MaxLegs int

	// Per-leg tables, percentages. Distances must be non-decreasing.
	Distances         []float64
	SizeMultipliers   []float64
	TakeProfits       []float64 // 0 disables the per-leg take profit
	StopLosses        []float64 // 0 disables the per-leg stop loss
	TrailingTriggers  []float64 // profit pct that activates trailing
	TrailingDistances []float64 // trail distance pct once active

	TrailingEnabled bool

	// Breakout-driven variants only.
	BreakoutThresholdPct  float64 // move from center that arms the cycle
	ReversionTolerancePct float64 // closeness to center that fails the breakout

	// Net-position exit tuning.
	MinNetProfit float64 // currency; recovery exit requires PnL above this
	MaxNetLoss   float64 // currency; hard stop on net exposure, 0 disables

	Sizing      SizingConfig
	RetryPolicy OrderRetryPolicy

	// Coordinator behavior after a cycle closes.
	Completion  CompletionPolicy
	CooldownSec int // only for CompletionCooldown
}

// Validate checks the settings for configuration errors. It must be called
// on resolved settings, once, at cycle start.
func (s *StrategySettings) Validate() error {
	if !s.Variant.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownVariant, s.Variant)
	}
	if s.MaxLegs < 1 || s.MaxLegs > 50 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxLegs, s.MaxLegs)
	}
	if len(s.Distances) == 0 {
		return ErrEmptyDistanceSchedule
	}
	if len(s.SizeMultipliers) == 0 {
		return ErrEmptyMultiplierTable
	}
	for i := 1; i < len(s.Distances); i++ {
		if s.Distances[i] < s.Distances[i-1] {
			return fmt.Errorf("%w: index %d (%.4f < %.4f)",
				ErrShrinkingSchedule, i, s.Distances[i], s.Distances[i-1])
		}
	}
	for i, d := range s.Distances {
		if d <= 0 {
			return fmt.Errorf("%w: distance[%d] = %.4f", ErrNonPositiveSizing, i, d)
		}
	}
	for i, m := range s.SizeMultipliers {
		if m <= 0 {
			return fmt.Errorf("%w: multiplier[%d] = %.4f", ErrNonPositiveSizing, i, m)
		}
	}
	if s.Sizing.BaseValue <= 0 {
		return fmt.Errorf("%w: sizing base value = %.4f", ErrNonPositiveSizing, s.Sizing.BaseValue)
	}
	if s.Sizing.MinUnits < 0 || s.Sizing.MaxUnits <= 0 || s.Sizing.MaxUnits < s.Sizing.MinUnits {
		return fmt.Errorf("%w: clamp bounds [%.4f, %.4f]",
			ErrNonPositiveSizing, s.Sizing.MinUnits, s.Sizing.MaxUnits)
	}
	if s.Variant.BreakoutDriven() && s.BreakoutThresholdPct <= 0 {
		return ErrMissingBreakout
	}
	return nil
}

// Resolve pads every per-leg table to exactly MaxLegs entries by repeating
// the last defined value, so a ladder deeper than the configured schedule
// falls back to the last value and never to a default sentinel.
func (s *StrategySettings) Resolve() {
	s.Distances = padToLength(s.Distances, s.MaxLegs)
	s.SizeMultipliers = padToLength(s.SizeMultipliers, s.MaxLegs)
	s.TakeProfits = padToLength(s.TakeProfits, s.MaxLegs)
	s.StopLosses = padToLength(s.StopLosses, s.MaxLegs)
	s.TrailingTriggers = padToLength(s.TrailingTriggers, s.MaxLegs)
	s.TrailingDistances = padToLength(s.TrailingDistances, s.MaxLegs)
}

// padToLength extends vals to n entries by repeating the last value.
// Empty input stays empty; Validate rejects empty required tables.
func padToLength(vals []float64, n int) []float64 {
	if len(vals) == 0 || len(vals) >= n {
		if len(vals) > n {
			return vals[:n]
		}
		return vals
	}
	out := make([]float64, n)
	copy(out, vals)
	last := vals[len(vals)-1]
	for i := len(vals); i < n; i++ {
		out[i] = last
	}
	return out
}

// RiskLimits are the coordinator-level limits, consumed at cycle start and
// re-checked on every tick.
type RiskLimits struct {
	MaxConcurrentCycles    int
	MaxCyclesPerDay        int
	DailyLossLimit         float64 // positive currency amount
	DailyProfitTarget      float64 // positive currency amount, 0 disables
	MaxDrawdownPct         float64 // of peak equity, 0 disables
	EmergencyLossThreshold float64 // currency, forces Emergency exits
	EmergencyDrawdownPct   float64 // of peak equity, forces Emergency exits
}

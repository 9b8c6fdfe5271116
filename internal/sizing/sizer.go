// Package sizing converts a configured sizing intent plus a per-leg
// multiplier into a concrete order quantity.
package sizing

import (
	"errors"
	"fmt"

	"martingale-lab/internal/domain"
)

// Sizing errors. These are recoverable: the caller skips the current
// tick's leg intent and retries on the next tick.
var (
	ErrNonPositivePrice   = errors.New("sizing requires a positive current price")
	ErrNonPositiveCapital = errors.New("sizing requires positive available capital")
	ErrBelowMinimum       = errors.New("computed quantity below configured minimum")
	ErrUnknownMode        = errors.New("unknown sizing mode")
)

// Sizer computes order quantities from a resolved SizingConfig.
// Sizer is stateless; Size is idempotent for identical inputs.
type Sizer struct {
	cfg domain.SizingConfig
}

// NewSizer creates a sizer from resolved configuration.
func NewSizer(cfg domain.SizingConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size computes the unit quantity for one leg.
//
//   - Percentage: availableCapital * (base/100) * legMultiplier, in currency,
//     converted to units at currentPrice.
//   - FixedCurrency: base * legMultiplier in currency, converted to units.
//   - FixedUnits: base * legMultiplier units directly.
//
// Degenerate inputs (non-positive price or capital where the mode needs
// them) return an error rather than a clamped nonsensical value. A result
// below MinUnits is rejected or clamped per the configured policy; a result
// above MaxUnits is always capped.
func (s *Sizer) Size(legMultiplier, availableCapital, currentPrice float64) (float64, error) {
	if legMultiplier <= 0 {
		return 0, fmt.Errorf("%w: leg multiplier %.4f", ErrBelowMinimum, legMultiplier)
	}

	var qty float64
	switch s.cfg.Mode {
	case domain.SizingPercentage:
		if availableCapital <= 0 {
			return 0, ErrNonPositiveCapital
		}
		if currentPrice <= 0 {
			return 0, ErrNonPositivePrice
		}
		dollarAmount := availableCapital * (s.cfg.BaseValue / 100) * legMultiplier
		qty = dollarAmount / currentPrice

	case domain.SizingFixedCurrency:
		if currentPrice <= 0 {
			return 0, ErrNonPositivePrice
		}
		qty = (s.cfg.BaseValue * legMultiplier) / currentPrice

	case domain.SizingFixedUnits:
		qty = s.cfg.BaseValue * legMultiplier

	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s.cfg.Mode)
	}

	if qty > s.cfg.MaxUnits {
		qty = s.cfg.MaxUnits
	}
	if qty < s.cfg.MinUnits {
		if s.cfg.Policy == domain.SizingClamp {
			return s.cfg.MinUnits, nil
		}
		return 0, fmt.Errorf("%w: %.6f < %.6f", ErrBelowMinimum, qty, s.cfg.MinUnits)
	}
	return qty, nil
}

// Package ladder implements the shared leg-ladder state machine,
// parameterized by a small per-variant policy instead of four parallel
// code paths.
package ladder

import (
	"martingale-lab/internal/domain"
	"martingale-lab/internal/zone"
)

// Policy is the variant-specific capability set consumed by the ladder:
// how a cycle arms, which boundary sides may trigger legs, the first leg's
// direction, and whether the zone-reversion exit applies.
type Policy struct {
	Variant domain.Variant

	// ArmsOnBreakout: the cycle arms when price moves away from the
	// center by the breakout threshold (IZRM/WDM) instead of on a touch
	// of the center (ZRM/CDM). Arming a breakout variant also fixes the
	// breakout side; all later boundary checks are confined to it.
	ArmsOnBreakout bool

	// ReversionExit: a return to the zone center after arming fails the
	// breakout and exits the cycle (IZRM/WDM).
	ReversionExit bool

	// firstLegLongOnUpper is the direction rule for leg 0: true means an
	// upper-boundary trigger opens Long. Reversion variants fade the
	// touched boundary (sell the top, buy the bottom); WDM trades with
	// the breakout; IZRM trades against it.
	firstLegLongOnUpper bool
}

// PolicyFor returns the policy for a variant. Unknown variants were
// rejected by settings validation before a ladder is built.
func PolicyFor(v domain.Variant) Policy {
	switch v {
	case domain.VariantWDM:
		return Policy{
			Variant:             v,
			ArmsOnBreakout:      true,
			ReversionExit:       true,
			firstLegLongOnUpper: true,
		}
	case domain.VariantIZRM:
		return Policy{
			Variant:             v,
			ArmsOnBreakout:      true,
			ReversionExit:       true,
			firstLegLongOnUpper: false,
		}
	default: // ZRM, CDM
		return Policy{
			Variant:             v,
			ArmsOnBreakout:      false,
			ReversionExit:       false,
			firstLegLongOnUpper: false,
		}
	}
}

// SidePermitted reports whether a boundary side may trigger legs given the
// armed breakout side. Reversion variants watch both sides; breakout
// variants only the breakout side.
func (p Policy) SidePermitted(side zone.Side, breakout domain.BreakoutSide) bool {
	if !p.ArmsOnBreakout {
		return true
	}
	switch breakout {
	case domain.BreakoutUp:
		return side == zone.Upper
	case domain.BreakoutDown:
		return side == zone.Lower
	}
	return false
}

// FirstLegDirection returns leg 0's direction for the boundary side that
// triggered it. Legs after the first alternate unconditionally and do not
// consult the policy.
func (p Policy) FirstLegDirection(side zone.Side) domain.Direction {
	longOnUpper := p.firstLegLongOnUpper
	if side == zone.Upper {
		if longOnUpper {
			return domain.DirectionLong
		}
		return domain.DirectionShort
	}
	if longOnUpper {
		return domain.DirectionShort
	}
	return domain.DirectionLong
}

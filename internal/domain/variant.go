package domain

// Variant identifies one of the four martingale recovery strategies.
type Variant string

// Strategy variant constants.
const (
	// VariantCDM is Counter Direction Martingale: reversion entry, legs
	// added against the move.
	VariantCDM Variant = "CDM"

	// VariantWDM is With Direction Martingale: breakout entry, legs added
	// with the move.
	VariantWDM Variant = "WDM"

	// VariantZRM is Zone Recovery Martingale: both zone boundaries watched,
	// first leg fades the touched boundary.
	VariantZRM Variant = "ZRM"

	// VariantIZRM is Inverse Zone Recovery Martingale: breakout fixes a
	// side, legs added only on that side, exits on zone reversion.
	VariantIZRM Variant = "IZRM"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantCDM, VariantWDM, VariantZRM, VariantIZRM:
		return true
	}
	return false
}

// BreakoutDriven reports whether the variant arms on a breakout away from
// the zone center (IZRM/WDM) rather than on a touch of the center (ZRM/CDM).
func (v Variant) BreakoutDriven() bool {
	return v == VariantIZRM || v == VariantWDM
}

// Direction is the side of a leg or net exposure.
type Direction string

// Direction constants.
const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Sign returns +1 for long, -1 for short.
func (d Direction) Sign() float64 {
	if d == DirectionLong {
		return 1
	}
	return -1
}

// BreakoutSide is the side a breakout-driven cycle is constrained to.
type BreakoutSide string

// Breakout side constants.
const (
	BreakoutNone BreakoutSide = ""
	BreakoutUp   BreakoutSide = "UP"
	BreakoutDown BreakoutSide = "DOWN"
)

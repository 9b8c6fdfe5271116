// Package zone computes the expanding boundary prices around a fixed
// zone center.
package zone

import (
	"errors"
)

// ErrEmptySchedule is returned when a model is built without distances.
var ErrEmptySchedule = errors.New("zone distance schedule is empty")

// Side selects the boundary above or below the center.
type Side int

// Boundary sides.
const (
	Upper Side = iota
	Lower
)

// Model holds the zone center and the per-leg distance schedule.
// The center is fixed at cycle start and never recalculated mid-cycle.
// Distances are percentages: schedule entry 2.0 places the boundary 2%
// from the center.
type Model struct {
	center   float64
	schedule []float64
}

// NewModel creates a zone model. The schedule must be non-empty; callers
// validate monotonicity before cycle start.
func NewModel(center float64, schedule []float64) (*Model, error) {
	if len(schedule) == 0 {
		return nil, ErrEmptySchedule
	}
	s := make([]float64, len(schedule))
	copy(s, schedule)
	return &Model{center: center, schedule: s}, nil
}

// Center returns the fixed zone center.
func (m *Model) Center() float64 {
	return m.center
}

// Distance returns the schedule entry for a leg index, clamped to the last
// value when the ladder exceeds the schedule length.
func (m *Model) Distance(legIndex int) float64 {
	if legIndex >= len(m.schedule) {
		return m.schedule[len(m.schedule)-1]
	}
	if legIndex < 0 {
		return m.schedule[0]
	}
	return m.schedule[legIndex]
}

// Boundary returns the price of the upper or lower boundary for a leg index.
func (m *Model) Boundary(legIndex int, side Side) float64 {
	d := m.Distance(legIndex) / 100
	if side == Upper {
		return m.center * (1 + d)
	}
	return m.center * (1 - d)
}

// Crossed reports which boundary, if any, the price has touched or crossed.
// Each side expands independently as its boundaries are consumed, so the
// two sides carry separate schedule indices. The bool result is false when
// the price is strictly inside both boundaries. Upper wins a tie.
func (m *Model) Crossed(price float64, upperIndex, lowerIndex int) (Side, bool) {
	if price >= m.Boundary(upperIndex, Upper) {
		return Upper, true
	}
	if price <= m.Boundary(lowerIndex, Lower) {
		return Lower, true
	}
	return Upper, false
}

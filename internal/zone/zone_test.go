package zone

import (
	"errors"
	"math"
	"testing"
)

func TestNewModel_EmptySchedule(t *testing.T) {
	_, err := NewModel(100, nil)
	if !errors.Is(err, ErrEmptySchedule) {
		t.Fatalf("expected ErrEmptySchedule, got %v", err)
	}
}

func TestModel_Boundary(t *testing.T) {
	m, err := NewModel(100, []float64{2, 4, 6})
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	tests := []struct {
		name     string
		legIndex int
		side     Side
		want     float64
	}{
		{"leg 0 upper", 0, Upper, 102},
		{"leg 0 lower", 0, Lower, 98},
		{"leg 1 upper", 1, Upper, 104},
		{"leg 2 lower", 2, Lower, 94},
		{"beyond schedule clamps to last", 5, Upper, 106},
		{"beyond schedule clamps to last lower", 9, Lower, 94},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Boundary(tt.legIndex, tt.side)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Boundary(%d, %v) = %v, want %v", tt.legIndex, tt.side, got, tt.want)
			}
		})
	}
}

func TestModel_Crossed(t *testing.T) {
	m, err := NewModel(100, []float64{2, 4})
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	tests := []struct {
		name       string
		price      float64
		upperIndex int
		lowerIndex int
		wantSide   Side
		wantHit    bool
	}{
		{"inside zone", 101, 0, 0, Upper, false},
		{"exactly on upper", 102, 0, 0, Upper, true},
		{"above upper", 103.5, 0, 0, Upper, true},
		{"exactly on lower", 98, 0, 0, Lower, true},
		{"below lower", 95, 0, 0, Lower, true},
		{"consumed upper needs wider move", 102, 1, 0, Upper, false},
		{"second upper crossing", 104, 1, 0, Upper, true},
		{"sides expand independently", 98, 1, 0, Lower, true},
		{"consumed lower holds", 97, 1, 1, Lower, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, hit := m.Crossed(tt.price, tt.upperIndex, tt.lowerIndex)
			if hit != tt.wantHit {
				t.Fatalf("Crossed(%v, %d, %d) hit = %v, want %v", tt.price, tt.upperIndex, tt.lowerIndex, hit, tt.wantHit)
			}
			if hit && side != tt.wantSide {
				t.Errorf("Crossed(%v, %d, %d) side = %v, want %v", tt.price, tt.upperIndex, tt.lowerIndex, side, tt.wantSide)
			}
		})
	}
}

func TestModel_CenterFixed(t *testing.T) {
	m, err := NewModel(250.5, []float64{1})
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	if m.Center() != 250.5 {
		t.Errorf("Center() = %v, want 250.5", m.Center())
	}
}

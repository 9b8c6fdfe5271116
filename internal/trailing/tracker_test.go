package trailing

import (
	"testing"

	"martingale-lab/internal/domain"
)

func longLeg(index int, entry float64) *domain.Leg {
	return &domain.Leg{
		Index:      index,
		Direction:  domain.DirectionLong,
		Quantity:   1,
		EntryPrice: entry,
		Status:     domain.LegFilled,
	}
}

func shortLeg(index int, entry float64) *domain.Leg {
	leg := longLeg(index, entry)
	leg.Direction = domain.DirectionShort
	return leg
}

func TestTracker_ActivationThreshold(t *testing.T) {
	// Trigger at 5% profit, trail 1% behind.
	tr := NewTracker([]float64{5}, []float64{1})
	leg := longLeg(0, 100)

	// Below trigger: no activation, no exit.
	if tr.OnTick(leg, 104) {
		t.Fatal("stop fired below activation threshold")
	}
	if tr.State(0) != nil {
		t.Fatal("state created before activation")
	}

	// At trigger: activates, does not fire on the activating tick.
	if tr.OnTick(leg, 105) {
		t.Fatal("stop fired on the activating tick")
	}
	st := tr.State(0)
	if st == nil || !st.Active {
		t.Fatal("trailing not active after trigger reached")
	}
	if st.HighWater != 105 {
		t.Errorf("HighWater = %v, want 105", st.HighWater)
	}
	if want := 105 * 0.99; st.StopPrice != want {
		t.Errorf("StopPrice = %v, want %v", st.StopPrice, want)
	}
}

func TestTracker_StopNeverLoosens_Long(t *testing.T) {
	tr := NewTracker([]float64{5}, []float64{1})
	leg := longLeg(0, 100)

	tr.OnTick(leg, 105) // activate
	prices := []float64{106, 108, 107.5, 110, 109.5}
	prevStop := tr.State(0).StopPrice

	for _, p := range prices {
		tr.OnTick(leg, p)
		stop := tr.State(0).StopPrice
		if stop < prevStop {
			t.Fatalf("stop loosened from %v to %v at price %v", prevStop, stop, p)
		}
		prevStop = stop
	}

	// After high water 110, stop sits at 108.9; retreat to it fires.
	if !tr.OnTick(leg, 108.9) {
		t.Error("stop did not fire at the stop price")
	}
}

func TestTracker_ShortMirror(t *testing.T) {
	tr := NewTracker([]float64{5}, []float64{1})
	leg := shortLeg(0, 100)

	// Short profits as price falls: 5% profit at 95.
	if tr.OnTick(leg, 96) {
		t.Fatal("stop fired below activation threshold")
	}
	tr.OnTick(leg, 95)
	st := tr.State(0)
	if st == nil || !st.Active {
		t.Fatal("trailing not active for short leg")
	}
	if want := 95 * 1.01; st.StopPrice != want {
		t.Errorf("StopPrice = %v, want %v", st.StopPrice, want)
	}

	// Favorable continuation tightens the stop downward.
	tr.OnTick(leg, 90)
	if got, want := tr.State(0).StopPrice, 90*1.01; got != want {
		t.Errorf("StopPrice = %v, want %v", got, want)
	}

	// Adverse bounce to the stop fires.
	if !tr.OnTick(leg, 90.9) {
		t.Error("short stop did not fire on adverse bounce")
	}
}

func TestTracker_PerLegIndependence(t *testing.T) {
	tr := NewTracker([]float64{5, 10}, []float64{1, 2})
	leg0 := longLeg(0, 100)
	leg1 := longLeg(1, 100)

	tr.OnTick(leg0, 105) // leg 0 activates at 5%
	tr.OnTick(leg1, 105) // leg 1 needs 10%

	if tr.State(0) == nil {
		t.Error("leg 0 should be active")
	}
	if tr.State(1) != nil {
		t.Error("leg 1 activated below its trigger")
	}

	tr.OnTick(leg1, 110)
	if tr.State(1) == nil {
		t.Error("leg 1 should be active at 10% profit")
	}
}

func TestTracker_PendingLegIgnored(t *testing.T) {
	tr := NewTracker([]float64{5}, []float64{1})
	leg := &domain.Leg{Index: 0, Direction: domain.DirectionLong, Status: domain.LegPending}

	if tr.OnTick(leg, 1000) {
		t.Error("pending leg produced a trailing exit")
	}
}

func TestTracker_ResetClearsState(t *testing.T) {
	tr := NewTracker([]float64{5}, []float64{1})
	leg := longLeg(0, 100)
	tr.OnTick(leg, 105)

	tr.Reset()
	if tr.State(0) != nil {
		t.Error("state survived Reset")
	}
}

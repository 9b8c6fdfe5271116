package exits

import (
	"testing"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/position"
)

func filledLeg(index int, dir domain.Direction, entry, qty float64) *domain.Leg {
	return &domain.Leg{
		Index:      index,
		Direction:  dir,
		EntryPrice: entry,
		Quantity:   qty,
		Status:     domain.LegFilled,
	}
}

func TestEvaluator_Precedence(t *testing.T) {
	cfg := Config{
		MaxNetLoss:            50,
		TakeProfits:           []float64{1},
		ReversionExit:         true,
		ReversionTolerancePct: 0.1,
	}
	profitableLeg := []*domain.Leg{filledLeg(0, domain.DirectionLong, 100, 1)}

	tests := []struct {
		name       string
		in         Input
		wantAction Action
		wantReason string
	}{
		{
			name: "stop loss beats emergency",
			in: Input{
				Price:     90,
				Net:       position.Snapshot{UnrealizedPnL: -50},
				Emergency: true,
			},
			wantAction: CloseCycle,
			wantReason: domain.ExitReasonStopLoss,
		},
		{
			name: "emergency beats trailing",
			in: Input{
				Price:        104,
				Net:          position.Snapshot{UnrealizedPnL: -10},
				Emergency:    true,
				TrailingHits: []int{0},
			},
			wantAction: CloseCycle,
			wantReason: domain.ExitReasonEmergency,
		},
		{
			name: "trailing beats reversion",
			in: Input{
				Price:         100.05,
				Net:           position.Snapshot{UnrealizedPnL: -10},
				TrailingHits:  []int{1},
				BreakoutArmed: true,
				ZoneCenter:    100,
			},
			wantAction: CloseCycle,
			wantReason: domain.ExitReasonTrailingStop,
		},
		{
			name: "reversion beats recovery",
			in: Input{
				Price:         100.05,
				Net:           position.Snapshot{UnrealizedPnL: 25},
				BreakoutArmed: true,
				ZoneCenter:    100,
			},
			wantAction: CloseCycle,
			wantReason: domain.ExitReasonBreakoutFailed,
		},
		{
			name: "recovery beats take profit",
			in: Input{
				Price: 102,
				Net:   position.Snapshot{UnrealizedPnL: 2},
				Legs:  profitableLeg,
			},
			wantAction: CloseCycle,
			wantReason: domain.ExitReasonRecoveryAchieved,
		},
		{
			name: "take profit when net still negative",
			in: Input{
				Price: 102,
				Net:   position.Snapshot{UnrealizedPnL: -5},
				Legs:  profitableLeg,
			},
			wantAction: CloseLegs,
			wantReason: domain.ExitReasonTakeProfit,
		},
		{
			name: "nothing fires",
			in: Input{
				Price: 100.5,
				Net:   position.Snapshot{UnrealizedPnL: -5},
			},
			wantAction: Hold,
		},
	}

	e := New(cfg)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.in)
			if got.Action != tt.wantAction {
				t.Fatalf("Action = %v, want %v", got.Action, tt.wantAction)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluator_StopLossDisabledWhenZero(t *testing.T) {
	e := New(Config{})
	d := e.Evaluate(Input{Price: 50, Net: position.Snapshot{UnrealizedPnL: -1000}})
	if d.Action != Hold {
		t.Fatalf("Action = %v, want Hold with no stop configured", d.Action)
	}
}

func TestEvaluator_MinNetProfit(t *testing.T) {
	e := New(Config{MinNetProfit: 10})

	if d := e.Evaluate(Input{Net: position.Snapshot{UnrealizedPnL: 5}}); d.Action != Hold {
		t.Fatalf("profit below threshold: Action = %v, want Hold", d.Action)
	}
	d := e.Evaluate(Input{Net: position.Snapshot{UnrealizedPnL: 10}})
	if d.Action != CloseCycle || d.Reason != domain.ExitReasonRecoveryAchieved {
		t.Fatalf("profit at threshold: got %+v, want recovery close", d)
	}
}

func TestEvaluator_ReversionIgnoresProfitability(t *testing.T) {
	e := New(Config{ReversionExit: true, ReversionTolerancePct: 0.1})

	// within 0.1% of the center, deep under water
	d := e.Evaluate(Input{
		Price:         99.95,
		Net:           position.Snapshot{UnrealizedPnL: -500},
		BreakoutArmed: true,
		ZoneCenter:    100,
	})
	if d.Action != CloseCycle || d.Reason != domain.ExitReasonBreakoutFailed {
		t.Fatalf("got %+v, want breakout-failed close", d)
	}

	// same price but the breakout never armed
	d = e.Evaluate(Input{Price: 99.95, BreakoutArmed: false, ZoneCenter: 100})
	if d.Action != Hold {
		t.Fatalf("Action = %v, want Hold before arming", d.Action)
	}
}

func TestEvaluator_StopLossPerLeg(t *testing.T) {
	e := New(Config{StopLosses: []float64{1, 0}})
	legs := []*domain.Leg{
		filledLeg(0, domain.DirectionShort, 102, 1), // short from 102, price 105 => -2.94%
		filledLeg(1, domain.DirectionLong, 98, 1.5), // sl disabled
		{Index: 2, Direction: domain.DirectionLong}, // pending, ignored
	}

	d := e.Evaluate(Input{Price: 105, Net: position.Snapshot{UnrealizedPnL: -3}, Legs: legs})
	if d.Action != CloseCycle {
		t.Fatalf("Action = %v, want CloseCycle", d.Action)
	}
	if d.Reason != domain.ExitReasonStopLoss {
		t.Fatalf("Reason = %q, want %q", d.Reason, domain.ExitReasonStopLoss)
	}
	if len(d.LegIndexes) != 1 || d.LegIndexes[0] != 0 {
		t.Fatalf("LegIndexes = %v, want [0]", d.LegIndexes)
	}
}

func TestEvaluator_StopLossPerLegLong(t *testing.T) {
	e := New(Config{StopLosses: []float64{2}})
	legs := []*domain.Leg{filledLeg(0, domain.DirectionLong, 100, 1)}

	// long from 100 at 98.5 is -1.5%, inside the 2% stop
	if d := e.Evaluate(Input{Price: 98.5, Legs: legs}); d.Action != Hold {
		t.Fatalf("inside stop: Action = %v, want Hold", d.Action)
	}
	d := e.Evaluate(Input{Price: 98, Legs: legs})
	if d.Action != CloseCycle || d.Reason != domain.ExitReasonStopLoss {
		t.Fatalf("at stop: got %+v, want stop-loss close", d)
	}
}

func TestEvaluator_NetStopBeatsPerLegStop(t *testing.T) {
	e := New(Config{MaxNetLoss: 50, StopLosses: []float64{1}})
	legs := []*domain.Leg{filledLeg(0, domain.DirectionShort, 102, 1)}

	d := e.Evaluate(Input{Price: 105, Net: position.Snapshot{UnrealizedPnL: -50}, Legs: legs})
	if d.Action != CloseCycle || d.Reason != domain.ExitReasonStopLoss {
		t.Fatalf("got %+v, want stop-loss close", d)
	}
	if len(d.LegIndexes) != 0 {
		t.Fatalf("LegIndexes = %v, want none for the net stop", d.LegIndexes)
	}
}

func TestEvaluator_PerLegStopBeatsEmergency(t *testing.T) {
	e := New(Config{StopLosses: []float64{1}})
	legs := []*domain.Leg{filledLeg(0, domain.DirectionShort, 102, 1)}

	d := e.Evaluate(Input{Price: 105, Emergency: true, Legs: legs})
	if d.Action != CloseCycle || d.Reason != domain.ExitReasonStopLoss {
		t.Fatalf("got %+v, want stop-loss close", d)
	}
}

func TestEvaluator_TakeProfitPerLeg(t *testing.T) {
	e := New(Config{TakeProfits: []float64{2, 2, 0}})
	legs := []*domain.Leg{
		filledLeg(0, domain.DirectionShort, 102, 1),  // short from 102, price 99 => +2.94%
		filledLeg(1, domain.DirectionLong, 98, 1.5),  // long from 98, price 99 => +1.02%
		filledLeg(2, domain.DirectionShort, 104, 2),  // tp disabled
		{Index: 3, Direction: domain.DirectionShort}, // pending, ignored
	}

	d := e.Evaluate(Input{Price: 99, Net: position.Snapshot{UnrealizedPnL: -1}, Legs: legs})
	if d.Action != CloseLegs {
		t.Fatalf("Action = %v, want CloseLegs", d.Action)
	}
	if len(d.LegIndexes) != 1 || d.LegIndexes[0] != 0 {
		t.Fatalf("LegIndexes = %v, want [0]", d.LegIndexes)
	}
}

package paper

import (
	"context"
	"errors"
	"math"
	"testing"

	"martingale-lab/internal/domain"
)

func TestAccount_Balance(t *testing.T) {
	a, err := NewAccount(1000)
	if err != nil {
		t.Fatalf("NewAccount failed: %v", err)
	}

	a.Apply(-150)
	a.Apply(25)
	got, err := a.AvailableCapital(context.Background())
	if err != nil {
		t.Fatalf("AvailableCapital failed: %v", err)
	}
	if got != 875 {
		t.Errorf("balance = %v, want 875", got)
	}
}

func TestNewAccount_RejectsNonPositive(t *testing.T) {
	if _, err := NewAccount(0); !errors.Is(err, ErrNonPositive) {
		t.Fatalf("err = %v, want ErrNonPositive", err)
	}
}

func TestExecutor_SlippageDirection(t *testing.T) {
	e := NewExecutor(10) // 10 bps
	e.ObserveTick(domain.Tick{Symbol: "BTCUSDT", Price: 100, TimestampMs: 42})

	tests := []struct {
		name      string
		direction domain.Direction
		wantPrice float64
	}{
		{"buys fill higher", domain.DirectionLong, 100.1},
		{"sells fill lower", domain.DirectionShort, 99.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fill, err := e.Place(context.Background(), domain.OrderRequest{
				ClientOrderID: "c1",
				Symbol:        "BTCUSDT",
				Direction:     tt.direction,
				Quantity:      2,
				Type:          domain.OrderTypeMarket,
			})
			if err != nil {
				t.Fatalf("Place failed: %v", err)
			}
			if math.Abs(fill.FillPrice-tt.wantPrice) > 1e-9 {
				t.Errorf("FillPrice = %v, want %v", fill.FillPrice, tt.wantPrice)
			}
			if fill.FillQty != 2 {
				t.Errorf("FillQty = %v, want 2", fill.FillQty)
			}
			if fill.FilledAtMs != 42 {
				t.Errorf("FilledAtMs = %v, want 42", fill.FilledAtMs)
			}
		})
	}
}

func TestExecutor_NoPriceYet(t *testing.T) {
	e := NewExecutor(0)
	_, err := e.Place(context.Background(), domain.OrderRequest{
		Symbol: "ETHUSDT", Direction: domain.DirectionLong, Quantity: 1,
	})
	if !errors.Is(err, ErrNoPrice) {
		t.Fatalf("err = %v, want ErrNoPrice", err)
	}
}

func TestExecutor_RejectsZeroQuantity(t *testing.T) {
	e := NewExecutor(0)
	e.ObserveTick(domain.Tick{Symbol: "BTCUSDT", Price: 100})
	_, err := e.Place(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", Direction: domain.DirectionLong,
	})
	if !errors.Is(err, ErrZeroQty) {
		t.Fatalf("err = %v, want ErrZeroQty", err)
	}
}

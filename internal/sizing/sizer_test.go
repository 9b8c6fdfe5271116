package sizing

import (
	"errors"
	"math"
	"testing"

	"martingale-lab/internal/domain"
)

func rejectConfig(mode domain.SizingMode, base float64) domain.SizingConfig {
	return domain.SizingConfig{
		Mode:      mode,
		BaseValue: base,
		MinUnits:  0.001,
		MaxUnits:  100000,
		Policy:    domain.SizingReject,
	}
}

func TestSizer_Modes(t *testing.T) {
	tests := []struct {
		name       string
		cfg        domain.SizingConfig
		multiplier float64
		capital    float64
		price      float64
		want       float64
	}{
		{
			name:       "percentage mode",
			cfg:        rejectConfig(domain.SizingPercentage, 5), // 5% of capital
			multiplier: 1,
			capital:    10000,
			price:      100,
			want:       5, // $500 / $100
		},
		{
			name:       "percentage mode with leg multiplier",
			cfg:        rejectConfig(domain.SizingPercentage, 5),
			multiplier: 2,
			capital:    10000,
			price:      100,
			want:       10,
		},
		{
			name:       "fixed currency mode",
			cfg:        rejectConfig(domain.SizingFixedCurrency, 1000),
			multiplier: 1.5,
			capital:    0, // mode ignores capital
			price:      50,
			want:       30, // $1500 / $50
		},
		{
			name:       "fixed units mode ignores price",
			cfg:        rejectConfig(domain.SizingFixedUnits, 10),
			multiplier: 3,
			capital:    0,
			price:      0,
			want:       30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSizer(tt.cfg).Size(tt.multiplier, tt.capital, tt.price)
			if err != nil {
				t.Fatalf("Size failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Size() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSizer_Idempotent(t *testing.T) {
	s := NewSizer(rejectConfig(domain.SizingPercentage, 5))
	first, err := s.Size(1.5, 20000, 250)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := s.Size(1.5, 20000, 250)
		if err != nil {
			t.Fatalf("repeat %d failed: %v", i, err)
		}
		if got != first {
			t.Fatalf("repeat %d: Size() = %v, want %v", i, got, first)
		}
	}
}

func TestSizer_DegenerateInputs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     domain.SizingConfig
		capital float64
		price   float64
		wantErr error
	}{
		{"zero price percentage", rejectConfig(domain.SizingPercentage, 5), 10000, 0, ErrNonPositivePrice},
		{"negative price percentage", rejectConfig(domain.SizingPercentage, 5), 10000, -1, ErrNonPositivePrice},
		{"zero capital percentage", rejectConfig(domain.SizingPercentage, 5), 0, 100, ErrNonPositiveCapital},
		{"negative capital percentage", rejectConfig(domain.SizingPercentage, 5), -500, 100, ErrNonPositiveCapital},
		{"zero price fixed currency", rejectConfig(domain.SizingFixedCurrency, 100), 0, 0, ErrNonPositivePrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSizer(tt.cfg).Size(1, tt.capital, tt.price)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Size() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSizer_ClampBounds(t *testing.T) {
	cfg := domain.SizingConfig{
		Mode:      domain.SizingFixedUnits,
		BaseValue: 10,
		MinUnits:  5,
		MaxUnits:  50,
		Policy:    domain.SizingReject,
	}
	s := NewSizer(cfg)

	// Above max: capped.
	got, err := s.Size(100, 0, 0)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if got != 50 {
		t.Errorf("Size() = %v, want max cap 50", got)
	}
}

// A $10,000 account with 5% allocation and a 0.01 leg multiplier buys $5 of
// a $500 instrument: 0.01 units. With a 1-unit minimum the policy decides.
func TestSizer_SubMinimumPolicy(t *testing.T) {
	cfg := domain.SizingConfig{
		Mode:      domain.SizingPercentage,
		BaseValue: 5,
		MinUnits:  1,
		MaxUnits:  100000,
	}

	cfg.Policy = domain.SizingReject
	_, err := NewSizer(cfg).Size(0.01, 10000, 500)
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("reject policy: error = %v, want ErrBelowMinimum", err)
	}

	cfg.Policy = domain.SizingClamp
	got, err := NewSizer(cfg).Size(0.01, 10000, 500)
	if err != nil {
		t.Fatalf("clamp policy failed: %v", err)
	}
	if got != 1 {
		t.Errorf("clamp policy: Size() = %v, want 1", got)
	}
}

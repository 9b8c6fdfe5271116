package risk

import (
	"errors"
	"testing"
	"time"

	"martingale-lab/internal/domain"
)

func TestManager_ConcurrentCycleCap(t *testing.T) {
	m := NewManager(Options{
		Limits:        domain.RiskLimits{MaxConcurrentCycles: 2},
		InitialEquity: 10_000,
	})

	m.RegisterCycleStart("a")
	m.RegisterCycleStart("b")
	if err := m.CanStartCycle(); !errors.Is(err, ErrMaxConcurrent) {
		t.Fatalf("err = %v, want ErrMaxConcurrent", err)
	}

	if err := m.RegisterCycleEnd("a", 5); err != nil {
		t.Fatalf("RegisterCycleEnd failed: %v", err)
	}
	if err := m.CanStartCycle(); err != nil {
		t.Fatalf("CanStartCycle after slot freed: %v", err)
	}
}

func TestManager_DailyLossHaltsTrading(t *testing.T) {
	m := NewManager(Options{
		Limits:        domain.RiskLimits{DailyLossLimit: 100},
		InitialEquity: 10_000,
	})

	m.RegisterCycleStart("a")
	if err := m.RegisterCycleEnd("a", -120); err != nil {
		t.Fatalf("RegisterCycleEnd failed: %v", err)
	}

	if halted, _ := m.Halted(); !halted {
		t.Fatal("expected halt after breaching the daily loss limit")
	}
	if err := m.CanStartCycle(); !errors.Is(err, ErrTradingHalted) {
		t.Fatalf("err = %v, want ErrTradingHalted", err)
	}
}

func TestManager_ProfitTargetHaltsTrading(t *testing.T) {
	m := NewManager(Options{
		Limits:        domain.RiskLimits{DailyProfitTarget: 50},
		InitialEquity: 10_000,
	})

	m.RegisterCycleStart("a")
	if err := m.RegisterCycleEnd("a", 60); err != nil {
		t.Fatalf("RegisterCycleEnd failed: %v", err)
	}
	if err := m.CanStartCycle(); !errors.Is(err, ErrTradingHalted) {
		t.Fatalf("err = %v, want ErrTradingHalted", err)
	}
}

func TestManager_DailyCycleLimit(t *testing.T) {
	m := NewManager(Options{
		Limits:        domain.RiskLimits{MaxCyclesPerDay: 1},
		InitialEquity: 10_000,
	})

	m.RegisterCycleStart("a")
	if err := m.RegisterCycleEnd("a", 1); err != nil {
		t.Fatalf("RegisterCycleEnd failed: %v", err)
	}
	if err := m.CanStartCycle(); !errors.Is(err, ErrDailyCycleLimit) {
		t.Fatalf("err = %v, want ErrDailyCycleLimit", err)
	}
}

func TestManager_DayRolloverResetsWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	m := NewManager(Options{
		Limits:        domain.RiskLimits{DailyLossLimit: 100, MaxCyclesPerDay: 1},
		InitialEquity: 10_000,
		Now:           func() time.Time { return now },
	})

	m.RegisterCycleStart("a")
	if err := m.RegisterCycleEnd("a", -150); err != nil {
		t.Fatalf("RegisterCycleEnd failed: %v", err)
	}
	if err := m.CanStartCycle(); !errors.Is(err, ErrTradingHalted) {
		t.Fatalf("err = %v, want ErrTradingHalted before rollover", err)
	}

	now = now.Add(2 * time.Hour) // next UTC day
	if err := m.CanStartCycle(); err != nil {
		t.Fatalf("CanStartCycle after rollover: %v", err)
	}
	if got := m.DailyPnL(); got != 0 {
		t.Errorf("DailyPnL = %v after rollover, want 0", got)
	}
}

func TestManager_EmergencyThresholds(t *testing.T) {
	t.Run("daily loss", func(t *testing.T) {
		m := NewManager(Options{
			Limits:        domain.RiskLimits{EmergencyLossThreshold: 200},
			InitialEquity: 10_000,
		})
		m.RegisterCycleStart("a")
		if err := m.RegisterCycleEnd("a", -250); err != nil {
			t.Fatalf("RegisterCycleEnd failed: %v", err)
		}
		if !m.Emergency() {
			t.Fatal("expected emergency after loss threshold breach")
		}
	})

	t.Run("drawdown", func(t *testing.T) {
		m := NewManager(Options{
			Limits:        domain.RiskLimits{EmergencyDrawdownPct: 10},
			InitialEquity: 1000,
		})
		m.RegisterCycleStart("a")
		if err := m.RegisterCycleEnd("a", -150); err != nil { // 15% drawdown
			t.Fatalf("RegisterCycleEnd failed: %v", err)
		}
		if !m.Emergency() {
			t.Fatal("expected emergency after drawdown threshold breach")
		}
	})

	t.Run("quiet account", func(t *testing.T) {
		m := NewManager(Options{
			Limits:        domain.RiskLimits{EmergencyLossThreshold: 200, EmergencyDrawdownPct: 10},
			InitialEquity: 10_000,
		})
		if m.Emergency() {
			t.Fatal("unexpected emergency with no losses")
		}
	})
}

func TestManager_Resume(t *testing.T) {
	m := NewManager(Options{
		Limits:        domain.RiskLimits{DailyLossLimit: 100},
		InitialEquity: 10_000,
	})
	m.RegisterCycleStart("a")
	if err := m.RegisterCycleEnd("a", -120); err != nil {
		t.Fatalf("RegisterCycleEnd failed: %v", err)
	}

	m.Resume()
	if halted, _ := m.Halted(); halted {
		t.Fatal("still halted after Resume")
	}
	// the breach re-arms on the next start attempt
	if err := m.CanStartCycle(); !errors.Is(err, ErrTradingHalted) {
		t.Fatalf("err = %v, want ErrTradingHalted (loss still past the limit)", err)
	}
}

func TestManager_UnknownCycleEnd(t *testing.T) {
	m := NewManager(Options{InitialEquity: 10_000})
	if err := m.RegisterCycleEnd("ghost", 1); !errors.Is(err, ErrCycleNotRegistered) {
		t.Fatalf("err = %v, want ErrCycleNotRegistered", err)
	}
}

// Package risk enforces the account-level limits that sit above any
// single cycle: concurrent and daily cycle caps, daily loss and profit
// limits, drawdown tracking, and the emergency thresholds that force
// open cycles to liquidate.
package risk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/observability"
)

// Cycle-start rejections, in check order.
var (
	ErrTradingHalted      = errors.New("trading halted")
	ErrMaxConcurrent      = errors.New("maximum concurrent cycles reached")
	ErrDailyCycleLimit    = errors.New("daily cycle limit reached")
	ErrCycleNotRegistered = errors.New("cycle not registered")
)

// Manager owns the shared risk counters. Strategy loops never touch the
// counters directly; every read-modify-write goes through the manager's
// mutex.
type Manager struct {
	mu      sync.Mutex
	limits  domain.RiskLimits
	log     *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	day          string // UTC date of the current window
	dailyPnL     float64
	cyclesToday  int
	activeCycles map[string]struct{}

	equity     float64
	peakEquity float64

	halted     bool
	haltReason string
}

// Options configures a Manager.
type Options struct {
	Limits        domain.RiskLimits
	InitialEquity float64
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Now           func() time.Time // test hook, defaults to time.Now
}

// NewManager creates a risk manager.
func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		limits:       opts.Limits,
		log:          log,
		metrics:      opts.Metrics,
		now:          now,
		activeCycles: make(map[string]struct{}),
		equity:       opts.InitialEquity,
		peakEquity:   opts.InitialEquity,
	}
	m.day = m.now().UTC().Format("2006-01-02")
	return m
}

// CanStartCycle reports whether a new cycle may start. A limit breach
// discovered here halts trading before returning the rejection.
func (m *Manager) CanStartCycle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	if m.halted {
		return fmt.Errorf("%w: %s", ErrTradingHalted, m.haltReason)
	}
	if m.limits.MaxConcurrentCycles > 0 && len(m.activeCycles) >= m.limits.MaxConcurrentCycles {
		return fmt.Errorf("%w (%d)", ErrMaxConcurrent, m.limits.MaxConcurrentCycles)
	}
	if m.limits.DailyLossLimit > 0 && m.dailyPnL <= -m.limits.DailyLossLimit {
		m.halt(fmt.Sprintf("daily loss limit breached: %.2f", m.dailyPnL))
		return fmt.Errorf("%w: %s", ErrTradingHalted, m.haltReason)
	}
	if m.limits.DailyProfitTarget > 0 && m.dailyPnL >= m.limits.DailyProfitTarget {
		m.halt(fmt.Sprintf("daily profit target reached: %.2f", m.dailyPnL))
		return fmt.Errorf("%w: %s", ErrTradingHalted, m.haltReason)
	}
	if m.limits.MaxCyclesPerDay > 0 && m.cyclesToday >= m.limits.MaxCyclesPerDay {
		return fmt.Errorf("%w (%d)", ErrDailyCycleLimit, m.limits.MaxCyclesPerDay)
	}
	return nil
}

// RegisterCycleStart records a started cycle.
func (m *Manager) RegisterCycleStart(cycleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	m.activeCycles[cycleID] = struct{}{}
	m.cyclesToday++
}

// RegisterCycleEnd records a closed cycle and folds its realized P&L
// into the daily window and the equity curve.
func (m *Manager) RegisterCycleEnd(cycleID string, pnl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	if _, ok := m.activeCycles[cycleID]; !ok {
		return fmt.Errorf("%w: %s", ErrCycleNotRegistered, cycleID)
	}
	delete(m.activeCycles, cycleID)
	m.dailyPnL += pnl
	m.equity += pnl
	if m.equity > m.peakEquity {
		m.peakEquity = m.equity
	}

	if m.limits.DailyLossLimit > 0 && m.dailyPnL <= -m.limits.DailyLossLimit {
		m.halt(fmt.Sprintf("daily loss limit breached: %.2f", m.dailyPnL))
	}
	if m.limits.MaxDrawdownPct > 0 && m.drawdownPct() >= m.limits.MaxDrawdownPct {
		m.halt(fmt.Sprintf("max drawdown breached: %.2f%%", m.drawdownPct()))
	}
	m.publish()
	return nil
}

// Emergency reports whether open cycles must liquidate now. Checked on
// every tick by the coordinator; it does not halt by itself, the halt
// follows from the losses the liquidation realizes.
func (m *Manager) Emergency() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	if m.limits.EmergencyLossThreshold > 0 && m.dailyPnL <= -m.limits.EmergencyLossThreshold {
		return true
	}
	if m.limits.EmergencyDrawdownPct > 0 && m.drawdownPct() >= m.limits.EmergencyDrawdownPct {
		return true
	}
	return false
}

// Halted reports whether new cycles are blocked, and why.
func (m *Manager) Halted() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted, m.haltReason
}

// Resume lifts a halt manually.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.halted = false
	m.haltReason = ""
	m.log.Info("trading resumed")
	m.publish()
}

// DailyPnL returns the realized P&L of the current UTC day.
func (m *Manager) DailyPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	return m.dailyPnL
}

// Equity returns current equity and the peak observed.
func (m *Manager) Equity() (current, peak float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.equity, m.peakEquity
}

// rollover resets the daily window when the UTC day changes. A halt
// caused by a daily limit clears with the new day; callers hold the lock.
func (m *Manager) rollover() {
	today := m.now().UTC().Format("2006-01-02")
	if today == m.day {
		return
	}
	m.day = today
	m.dailyPnL = 0
	m.cyclesToday = 0
	if m.halted {
		m.log.Info("daily window rolled over, lifting halt", zap.String("reason", m.haltReason))
		m.halted = false
		m.haltReason = ""
	}
	m.publish()
}

func (m *Manager) halt(reason string) {
	if m.halted {
		return
	}
	m.halted = true
	m.haltReason = reason
	m.log.Warn("trading halted", zap.String("reason", reason))
	m.publish()
}

func (m *Manager) drawdownPct() float64 {
	if m.peakEquity <= 0 {
		return 0
	}
	return (m.peakEquity - m.equity) / m.peakEquity * 100
}

func (m *Manager) publish() {
	if m.metrics == nil {
		return
	}
	m.metrics.DailyPnL.Set(m.dailyPnL)
	m.metrics.PeakEquity.Set(m.peakEquity)
	m.metrics.CurrentDrawdown.Set(m.drawdownPct())
	if m.halted {
		m.metrics.TradingHalted.Set(1)
	} else {
		m.metrics.TradingHalted.Set(0)
	}
}

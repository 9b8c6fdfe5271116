// Package paper provides a simulated execution venue: market orders fill
// immediately at the last observed price plus slippage, and a simple
// account tracks the capital available for sizing. Live trading and
// backtests share it; only the tick source differs.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"martingale-lab/internal/broker"
	"martingale-lab/internal/domain"
)

// Paper venue errors.
var (
	ErrNoPrice     = errors.New("no price observed for symbol")
	ErrZeroQty     = errors.New("order quantity must be positive")
	ErrNonPositive = errors.New("initial balance must be positive")
)

// Account is the capital pool shared by every strategy instance. All
// balance changes go through Apply under the account mutex.
type Account struct {
	mu      sync.Mutex
	balance float64
}

var _ broker.CapitalProvider = (*Account)(nil)

// NewAccount creates an account with a starting balance.
func NewAccount(balance float64) (*Account, error) {
	if balance <= 0 {
		return nil, fmt.Errorf("%w: %.2f", ErrNonPositive, balance)
	}
	return &Account{balance: balance}, nil
}

// AvailableCapital returns the current balance.
func (a *Account) AvailableCapital(context.Context) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance, nil
}

// Apply adds realized P&L to the balance.
func (a *Account) Apply(pnl float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance += pnl
}

// Executor fills market orders at the last tick price adjusted by a
// fixed slippage, always against the taker: buys fill higher, sells
// lower.
type Executor struct {
	mu          sync.Mutex
	slippageBps float64
	lastPrice   map[string]float64
	lastMs      map[string]int64
}

var _ broker.OrderExecutor = (*Executor)(nil)

// NewExecutor creates a paper executor with slippage in basis points.
func NewExecutor(slippageBps float64) *Executor {
	return &Executor{
		slippageBps: slippageBps,
		lastPrice:   make(map[string]float64),
		lastMs:      make(map[string]int64),
	}
}

// ObserveTick records the venue price used for subsequent fills. The
// decision loop feeds every tick through here before the engine sees it.
func (e *Executor) ObserveTick(tick domain.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastPrice[tick.Symbol] = tick.Price
	e.lastMs[tick.Symbol] = tick.TimestampMs
}

// Place fills a market order at the last observed price plus slippage.
func (e *Executor) Place(_ context.Context, req domain.OrderRequest) (domain.OrderFill, error) {
	if req.Quantity <= 0 {
		return domain.OrderFill{}, fmt.Errorf("%w: %.8f", ErrZeroQty, req.Quantity)
	}
	e.mu.Lock()
	price, ok := e.lastPrice[req.Symbol]
	ms := e.lastMs[req.Symbol]
	e.mu.Unlock()
	if !ok {
		return domain.OrderFill{}, fmt.Errorf("%w: %s", ErrNoPrice, req.Symbol)
	}

	slip := price * e.slippageBps / 10_000
	if req.Direction == domain.DirectionLong {
		price += slip
	} else {
		price -= slip
	}

	return domain.OrderFill{
		ClientOrderID: req.ClientOrderID,
		FillPrice:     price,
		FillQty:       req.Quantity,
		FilledAtMs:    ms,
	}, nil
}

// Package broker defines the boundary between the decision engine and
// the execution venue. The engine only ever sees these interfaces; paper
// trading, live adapters, and backtest replay all sit behind them.
package broker

import (
	"context"

	"martingale-lab/internal/domain"
)

// OrderExecutor places orders and reports their outcome synchronously.
// A nil error means the order filled; rejections surface as errors so
// the ladder can apply its retry policy.
type OrderExecutor interface {
	// Place submits an order. Market orders fill at the venue's current
	// price plus slippage; a returned error of any kind means no fill.
	Place(ctx context.Context, req domain.OrderRequest) (domain.OrderFill, error)
}

// CapitalProvider reports the capital available for sizing new legs.
// Implementations own the read-modify-write boundary around balances;
// callers never cache the result across ticks.
type CapitalProvider interface {
	AvailableCapital(ctx context.Context) (float64, error)
}

// PriceFeed streams ticks for the symbols it was opened with. The channel
// closes when the feed ends or ctx is cancelled; Err reports why.
type PriceFeed interface {
	Ticks() <-chan domain.Tick
	Err() error
	Close() error
}

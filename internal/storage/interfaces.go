package storage

import (
	"context"

	"martingale-lab/internal/domain"
)

// CycleRecordStore provides access to the cycle archive. Records are
// append-only: a cycle is written exactly once, at close.
type CycleRecordStore interface {
	// Insert adds a closed cycle. Returns ErrDuplicateKey if cycle_id exists.
	Insert(ctx context.Context, r *domain.CycleRecord) error

	// GetByID retrieves a cycle by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, cycleID string) (*domain.CycleRecord, error)

	// GetByVariantSymbol retrieves all cycles for a (variant, symbol) pair,
	// ordered by close time ASC.
	GetByVariantSymbol(ctx context.Context, variant domain.Variant, symbol string) ([]*domain.CycleRecord, error)

	// GetByTimeRange retrieves cycles closed within [start, end] (inclusive),
	// ordered by close time ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.CycleRecord, error)
}

// CycleAggregateStore provides access to per-(variant, symbol) statistics.
type CycleAggregateStore interface {
	// Insert adds a new aggregate. Returns ErrDuplicateKey if the key exists.
	Insert(ctx context.Context, a *domain.CycleAggregate) error

	// GetByKey retrieves an aggregate by its composite key.
	GetByKey(ctx context.Context, variant domain.Variant, symbol string) (*domain.CycleAggregate, error)

	// GetAll retrieves all aggregates.
	GetAll(ctx context.Context) ([]*domain.CycleAggregate, error)
}

// TickStore provides access to the raw tick timeseries.
type TickStore interface {
	// InsertBulk adds multiple ticks. Fails the entire batch on error.
	InsertBulk(ctx context.Context, ticks []*domain.Tick) error

	// GetBySymbol retrieves all ticks for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Tick, error)

	// GetByTimeRange retrieves ticks for a symbol within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Tick, error)
}

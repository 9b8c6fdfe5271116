package clickhouse

import (
	"context"
	"fmt"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/storage"
)

// CycleAggregateStore implements storage.CycleAggregateStore using ClickHouse.
type CycleAggregateStore struct {
	conn *Conn
}

// NewCycleAggregateStore creates a new CycleAggregateStore.
func NewCycleAggregateStore(conn *Conn) *CycleAggregateStore {
	return &CycleAggregateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CycleAggregateStore = (*CycleAggregateStore)(nil)

// Insert adds a new aggregate. Returns ErrDuplicateKey if the key exists.
func (s *CycleAggregateStore) Insert(ctx context.Context, a *domain.CycleAggregate) error {
	if a == nil || a.Symbol == "" || !a.Variant.Valid() {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would silently replace, but the store contract
	// is append-only per key.
	exists, err := s.exists(ctx, a.Variant, a.Symbol)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO cycle_aggregates (
			variant, symbol,
			total_cycles, wins, losses, win_rate,
			total_pnl, pnl_mean, pnl_median, pnl_p10, pnl_p90,
			pnl_stddev, pnl_min, pnl_max,
			max_drawdown, max_consecutive_losses, recovery_factor, profit_factor
		) VALUES (
			?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		string(a.Variant), a.Symbol,
		uint32(a.TotalCycles), uint32(a.Wins), uint32(a.Losses), a.WinRate,
		a.TotalPnL, a.PnLMean, a.PnLMedian, a.PnLP10, a.PnLP90,
		a.PnLStddev, a.PnLMin, a.PnLMax,
		a.MaxDrawdown, uint32(a.MaxConsecutiveLosses), a.RecoveryFactor, a.ProfitFactor,
	)
	if err != nil {
		return fmt.Errorf("insert cycle aggregate: %w", err)
	}
	return nil
}

// GetByKey retrieves an aggregate by its composite key.
func (s *CycleAggregateStore) GetByKey(ctx context.Context, variant domain.Variant, symbol string) (*domain.CycleAggregate, error) {
	query := `
		SELECT
			variant, symbol,
			total_cycles, wins, losses, win_rate,
			total_pnl, pnl_mean, pnl_median, pnl_p10, pnl_p90,
			pnl_stddev, pnl_min, pnl_max,
			max_drawdown, max_consecutive_losses, recovery_factor, profit_factor
		FROM cycle_aggregates FINAL
		WHERE variant = ? AND symbol = ?
		LIMIT 1
	`

	row := s.conn.QueryRow(ctx, query, string(variant), symbol)

	a, err := scanCycleAggregate(row.Scan)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return a, nil
}

// GetAll retrieves all aggregates.
func (s *CycleAggregateStore) GetAll(ctx context.Context) ([]*domain.CycleAggregate, error) {
	query := `
		SELECT
			variant, symbol,
			total_cycles, wins, losses, win_rate,
			total_pnl, pnl_mean, pnl_median, pnl_p10, pnl_p90,
			pnl_stddev, pnl_min, pnl_max,
			max_drawdown, max_consecutive_losses, recovery_factor, profit_factor
		FROM cycle_aggregates FINAL
		ORDER BY variant ASC, symbol ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	var aggregates []*domain.CycleAggregate
	for rows.Next() {
		a, err := scanCycleAggregate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan cycle aggregate row: %w", err)
		}
		aggregates = append(aggregates, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycle aggregate rows: %w", err)
	}

	return aggregates, nil
}

// exists checks if an aggregate with the given key exists.
func (s *CycleAggregateStore) exists(ctx context.Context, variant domain.Variant, symbol string) (bool, error) {
	query := `
		SELECT count(*) FROM cycle_aggregates FINAL
		WHERE variant = ? AND symbol = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, string(variant), symbol).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanCycleAggregate scans one row via the supplied Scan function,
// converting ClickHouse integer widths back to domain types.
func scanCycleAggregate(scan func(dest ...interface{}) error) (*domain.CycleAggregate, error) {
	var (
		variant                                    string
		a                                          domain.CycleAggregate
		totalCycles, wins, losses, maxConsecLosses uint32
	)

	err := scan(
		&variant, &a.Symbol,
		&totalCycles, &wins, &losses, &a.WinRate,
		&a.TotalPnL, &a.PnLMean, &a.PnLMedian, &a.PnLP10, &a.PnLP90,
		&a.PnLStddev, &a.PnLMin, &a.PnLMax,
		&a.MaxDrawdown, &maxConsecLosses, &a.RecoveryFactor, &a.ProfitFactor,
	)
	if err != nil {
		return nil, err
	}

	a.Variant = domain.Variant(variant)
	a.TotalCycles = int(totalCycles)
	a.Wins = int(wins)
	a.Losses = int(losses)
	a.MaxConsecutiveLosses = int(maxConsecLosses)

	return &a, nil
}

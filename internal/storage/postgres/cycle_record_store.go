package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/observability"
	"martingale-lab/internal/storage"
)

// CycleRecordStore implements storage.CycleRecordStore using PostgreSQL.
// A record and its legs are written in one transaction.
type CycleRecordStore struct {
	pool    *Pool
	metrics *observability.Metrics
}

// NewCycleRecordStore creates a new CycleRecordStore.
func NewCycleRecordStore(pool *Pool) *CycleRecordStore {
	return &CycleRecordStore{pool: pool}
}

// WithMetrics enables query duration and error metrics on this store.
func (s *CycleRecordStore) WithMetrics(m *observability.Metrics) *CycleRecordStore {
	s.metrics = m
	return s
}

// Compile-time interface check.
var _ storage.CycleRecordStore = (*CycleRecordStore)(nil)

// observe reports one query to the metrics registry, if attached.
func (s *CycleRecordStore) observe(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
	}
}

// Insert adds a closed cycle. Returns ErrDuplicateKey if cycle_id exists.
func (s *CycleRecordStore) Insert(ctx context.Context, r *domain.CycleRecord) (err error) {
	if r == nil || r.CycleID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { s.observe("insert_cycle", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO cycle_records (
			cycle_id, variant, symbol, zone_center,
			started_at_ms, closed_at_ms, exit_reason, exit_price,
			leg_count, realized_pnl
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10
		)
	`,
		r.CycleID, r.Variant, r.Symbol, r.ZoneCenter,
		r.StartedAtMs, r.ClosedAtMs, r.ExitReason, r.ExitPrice,
		r.LegCount, r.RealizedPnL,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert cycle record: %w", err)
	}

	for i := range r.Legs {
		leg := &r.Legs[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO leg_records (
				cycle_id, leg_index, direction, trigger_price,
				entry_price, quantity, size_multiplier, boundary_pct,
				filled_at_ms
			) VALUES (
				$1, $2, $3, $4,
				$5, $6, $7, $8,
				$9
			)
		`,
			r.CycleID, leg.LegIndex, leg.Direction, leg.TriggerPrice,
			leg.EntryPrice, leg.Quantity, leg.SizeMultiplier, leg.BoundaryPct,
			leg.FilledAtMs,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert leg record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a cycle by its ID. Returns ErrNotFound if not exists.
func (s *CycleRecordStore) GetByID(ctx context.Context, cycleID string) (_ *domain.CycleRecord, err error) {
	defer func(start time.Time) { s.observe("get_cycle_by_id", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		SELECT
			cycle_id, variant, symbol, zone_center,
			started_at_ms, closed_at_ms, exit_reason, exit_price,
			leg_count, realized_pnl
		FROM cycle_records
		WHERE cycle_id = $1
	`, cycleID)

	r, err := scanCycleRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cycle record by id: %w", err)
	}

	if err := s.loadLegs(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetByVariantSymbol retrieves all cycles for a (variant, symbol) pair,
// ordered by close time ASC.
func (s *CycleRecordStore) GetByVariantSymbol(ctx context.Context, variant domain.Variant, symbol string) (_ []*domain.CycleRecord, err error) {
	defer func(start time.Time) { s.observe("get_cycles_by_variant_symbol", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT
			cycle_id, variant, symbol, zone_center,
			started_at_ms, closed_at_ms, exit_reason, exit_price,
			leg_count, realized_pnl
		FROM cycle_records
		WHERE variant = $1 AND symbol = $2
		ORDER BY closed_at_ms ASC, cycle_id ASC
	`, variant, symbol)
	if err != nil {
		return nil, fmt.Errorf("get cycle records by variant/symbol: %w", err)
	}
	defer rows.Close()

	records, err := scanCycleRecords(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := s.loadLegs(ctx, r); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// GetByTimeRange retrieves cycles closed within [start, end] (inclusive),
// ordered by close time ASC.
func (s *CycleRecordStore) GetByTimeRange(ctx context.Context, start, end int64) (_ []*domain.CycleRecord, err error) {
	defer func(began time.Time) { s.observe("get_cycles_by_time_range", began, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT
			cycle_id, variant, symbol, zone_center,
			started_at_ms, closed_at_ms, exit_reason, exit_price,
			leg_count, realized_pnl
		FROM cycle_records
		WHERE closed_at_ms >= $1 AND closed_at_ms <= $2
		ORDER BY closed_at_ms ASC, cycle_id ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("get cycle records by time range: %w", err)
	}
	defer rows.Close()

	records, err := scanCycleRecords(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := s.loadLegs(ctx, r); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// loadLegs fills in the leg slice for a record.
func (s *CycleRecordStore) loadLegs(ctx context.Context, r *domain.CycleRecord) error {
	rows, err := s.pool.Query(ctx, `
		SELECT
			cycle_id, leg_index, direction, trigger_price,
			entry_price, quantity, size_multiplier, boundary_pct,
			filled_at_ms
		FROM leg_records
		WHERE cycle_id = $1
		ORDER BY leg_index ASC
	`, r.CycleID)
	if err != nil {
		return fmt.Errorf("get leg records: %w", err)
	}
	defer rows.Close()

	var legs []domain.LegRecord
	for rows.Next() {
		var leg domain.LegRecord
		err := rows.Scan(
			&leg.CycleID, &leg.LegIndex, &leg.Direction, &leg.TriggerPrice,
			&leg.EntryPrice, &leg.Quantity, &leg.SizeMultiplier, &leg.BoundaryPct,
			&leg.FilledAtMs,
		)
		if err != nil {
			return fmt.Errorf("scan leg record row: %w", err)
		}
		legs = append(legs, leg)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate leg record rows: %w", err)
	}

	r.Legs = legs
	return nil
}

// scanCycleRecord scans a single row into a CycleRecord.
func scanCycleRecord(row pgx.Row) (*domain.CycleRecord, error) {
	var r domain.CycleRecord

	err := row.Scan(
		&r.CycleID, &r.Variant, &r.Symbol, &r.ZoneCenter,
		&r.StartedAtMs, &r.ClosedAtMs, &r.ExitReason, &r.ExitPrice,
		&r.LegCount, &r.RealizedPnL,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// scanCycleRecords scans multiple rows into a slice of CycleRecord.
func scanCycleRecords(rows pgx.Rows) ([]*domain.CycleRecord, error) {
	var records []*domain.CycleRecord

	for rows.Next() {
		var r domain.CycleRecord

		err := rows.Scan(
			&r.CycleID, &r.Variant, &r.Symbol, &r.ZoneCenter,
			&r.StartedAtMs, &r.ClosedAtMs, &r.ExitReason, &r.ExitPrice,
			&r.LegCount, &r.RealizedPnL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cycle record row: %w", err)
		}

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycle record rows: %w", err)
	}

	return records, nil
}

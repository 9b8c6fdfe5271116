package clickhouse

import (
	"context"
	"fmt"
	"time"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/observability"
	"martingale-lab/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse. The ticks table
// is a plain MergeTree: duplicates are not rejected, the feed is trusted to
// be append-only.
type TickStore struct {
	conn    *Conn
	metrics *observability.Metrics
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// WithMetrics enables query duration and error metrics on this store.
func (s *TickStore) WithMetrics(m *observability.Metrics) *TickStore {
	s.metrics = m
	return s
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// observe reports one query to the metrics registry, if attached.
func (s *TickStore) observe(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery("clickhouse", op, time.Since(start).Seconds(), err)
	}
}

// InsertBulk adds multiple ticks in one batch. Fails the entire batch on
// invalid input.
func (s *TickStore) InsertBulk(ctx context.Context, ticks []*domain.Tick) (err error) {
	if len(ticks) == 0 {
		return nil
	}
	defer func(start time.Time) { s.observe("insert_ticks", start, err) }(time.Now())

	for _, t := range ticks {
		if t == nil || t.Symbol == "" || t.Price <= 0 {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (symbol, timestamp_ms, price)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		if err := batch.Append(t.Symbol, uint64(t.TimestampMs), t.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all ticks for a symbol, ordered by timestamp ASC.
func (s *TickStore) GetBySymbol(ctx context.Context, symbol string) (_ []*domain.Tick, err error) {
	defer func(start time.Time) { s.observe("get_ticks_by_symbol", start, err) }(time.Now())

	query := `
		SELECT symbol, timestamp_ms, price
		FROM ticks
		WHERE symbol = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// GetByTimeRange retrieves ticks for a symbol within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *TickStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) (_ []*domain.Tick, err error) {
	defer func(began time.Time) { s.observe("get_ticks_by_time_range", began, err) }(time.Now())

	query := `
		SELECT symbol, timestamp_ms, price
		FROM ticks
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// scanTicks scans rows into a slice of Tick.
func scanTicks(rows chRows) ([]*domain.Tick, error) {
	var ticks []*domain.Tick

	for rows.Next() {
		var (
			symbol      string
			timestampMs uint64
			price       float64
		)
		if err := rows.Scan(&symbol, &timestampMs, &price); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		ticks = append(ticks, &domain.Tick{
			Symbol:      symbol,
			Price:       price,
			TimestampMs: int64(timestampMs),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}

	return ticks, nil
}

// Package ingestion records live price ticks into the tick archive so
// backtests can replay exactly what the trading binaries saw.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"martingale-lab/internal/broker"
	"martingale-lab/internal/domain"
	"martingale-lab/internal/observability"
	"martingale-lab/internal/storage"
)

// Defaults for the recorder buffer.
const (
	DefaultBatchSize     = 500
	DefaultFlushInterval = 5 * time.Second
)

// ErrNoStore is returned when the recorder is created without a tick store.
var ErrNoStore = errors.New("recorder requires a tick store")

// RecorderOptions contains configuration for creating a Recorder.
type RecorderOptions struct {
	Store storage.TickStore

	// BatchSize flushes the buffer when it reaches this many ticks.
	BatchSize int

	// FlushInterval flushes a partial buffer after this much quiet time,
	// so thin markets still reach the archive promptly.
	FlushInterval time.Duration

	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Recorder drains a price feed into a tick store in ordered batches.
type Recorder struct {
	store         storage.TickStore
	batchSize     int
	flushInterval time.Duration
	log           *zap.Logger
	metrics       *observability.Metrics
}

// NewRecorder creates a tick recorder.
func NewRecorder(opts RecorderOptions) (*Recorder, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store:         opts.Store,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		log:           log,
		metrics:       opts.Metrics,
	}, nil
}

// Run consumes the feed until it closes or ctx is cancelled, flushing the
// buffer on size and on the flush interval. It returns the number of ticks
// stored. The buffer is flushed once more on the way out, so a clean
// shutdown loses nothing.
func (r *Recorder) Run(ctx context.Context, feed broker.PriceFeed) (int, error) {
	buf := make([]*domain.Tick, 0, r.batchSize)
	stored := 0

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := r.store.InsertBulk(ctx, buf); err != nil {
			return fmt.Errorf("flush %d ticks: %w", len(buf), err)
		}
		stored += len(buf)
		r.log.Debug("flushed tick batch", zap.Int("count", len(buf)), zap.Int("stored", stored))
		buf = buf[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if err := flush(); err != nil {
				return stored, err
			}
			return stored, ctx.Err()

		case <-ticker.C:
			if err := flush(); err != nil {
				return stored, err
			}

		case tick, ok := <-feed.Ticks():
			if !ok {
				if err := flush(); err != nil {
					return stored, err
				}
				if err := feed.Err(); err != nil {
					return stored, fmt.Errorf("feed terminated: %w", err)
				}
				return stored, nil
			}
			t := tick
			buf = append(buf, &t)
			if r.metrics != nil {
				r.metrics.TicksProcessed.WithLabelValues(tick.Symbol).Inc()
			}
			if len(buf) >= r.batchSize {
				if err := flush(); err != nil {
					return stored, err
				}
			}
		}
	}
}

package memory

import (
	"context"
	"sort"
	"sync"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Tick // keyed by symbol
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{
		data: make(map[string][]*domain.Tick),
	}
}

// InsertBulk adds multiple ticks. Fails the entire batch on invalid input.
func (s *TickStore) InsertBulk(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	for _, t := range ticks {
		if t == nil || t.Symbol == "" || t.Price <= 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		copy := *t
		s.data[t.Symbol] = append(s.data[t.Symbol], &copy)
	}
	return nil
}

// GetBySymbol retrieves all ticks for a symbol, ordered by timestamp ASC.
func (s *TickStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticks := s.data[symbol]
	result := make([]*domain.Tick, 0, len(ticks))
	for _, t := range ticks {
		copy := *t
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByTimeRange retrieves ticks for a symbol within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *TickStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Tick
	for _, t := range s.data[symbol] {
		if t.TimestampMs >= start && t.TimestampMs <= end {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.TickStore = (*TickStore)(nil)

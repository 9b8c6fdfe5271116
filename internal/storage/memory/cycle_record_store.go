package memory

import (
	"context"
	"sort"
	"sync"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/storage"
)

// CycleRecordStore is an in-memory implementation of storage.CycleRecordStore.
type CycleRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CycleRecord // keyed by cycle_id
}

// NewCycleRecordStore creates a new in-memory cycle record store.
func NewCycleRecordStore() *CycleRecordStore {
	return &CycleRecordStore{
		data: make(map[string]*domain.CycleRecord),
	}
}

// Insert adds a closed cycle. Returns ErrDuplicateKey if cycle_id exists.
func (s *CycleRecordStore) Insert(_ context.Context, r *domain.CycleRecord) error {
	if r == nil || r.CycleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.CycleID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.CycleID] = copyRecord(r)
	return nil
}

// GetByID retrieves a cycle by its ID. Returns ErrNotFound if not exists.
func (s *CycleRecordStore) GetByID(_ context.Context, cycleID string) (*domain.CycleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[cycleID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// GetByVariantSymbol retrieves all cycles for a (variant, symbol) pair,
// ordered by close time ASC.
func (s *CycleRecordStore) GetByVariantSymbol(_ context.Context, variant domain.Variant, symbol string) ([]*domain.CycleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CycleRecord
	for _, r := range s.data {
		if r.Variant == variant && r.Symbol == symbol {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ClosedAtMs < result[j].ClosedAtMs
	})

	return result, nil
}

// GetByTimeRange retrieves cycles closed within [start, end] (inclusive),
// ordered by close time ASC.
func (s *CycleRecordStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.CycleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CycleRecord
	for _, r := range s.data {
		if r.ClosedAtMs >= start && r.ClosedAtMs <= end {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ClosedAtMs < result[j].ClosedAtMs
	})

	return result, nil
}

// copyRecord deep-copies a record so callers never share leg slices.
func copyRecord(r *domain.CycleRecord) *domain.CycleRecord {
	out := *r
	out.Legs = make([]domain.LegRecord, len(r.Legs))
	copy(out.Legs, r.Legs)
	return &out
}

var _ storage.CycleRecordStore = (*CycleRecordStore)(nil)

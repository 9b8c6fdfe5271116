package memory

import (
	"context"
	"sort"
	"sync"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/storage"
)

type aggregateKey struct {
	variant domain.Variant
	symbol  string
}

// CycleAggregateStore is an in-memory implementation of storage.CycleAggregateStore.
type CycleAggregateStore struct {
	mu   sync.RWMutex
	data map[aggregateKey]*domain.CycleAggregate
}

// NewCycleAggregateStore creates a new in-memory cycle aggregate store.
func NewCycleAggregateStore() *CycleAggregateStore {
	return &CycleAggregateStore{
		data: make(map[aggregateKey]*domain.CycleAggregate),
	}
}

// Insert adds a new aggregate. Returns ErrDuplicateKey if the key exists.
func (s *CycleAggregateStore) Insert(_ context.Context, a *domain.CycleAggregate) error {
	if a == nil || a.Symbol == "" || !a.Variant.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := aggregateKey{variant: a.Variant, symbol: a.Symbol}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *a
	s.data[key] = &copy
	return nil
}

// GetByKey retrieves an aggregate by its composite key.
func (s *CycleAggregateStore) GetByKey(_ context.Context, variant domain.Variant, symbol string) (*domain.CycleAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[aggregateKey{variant: variant, symbol: symbol}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *a
	return &copy, nil
}

// GetAll retrieves all aggregates.
func (s *CycleAggregateStore) GetAll(_ context.Context) ([]*domain.CycleAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CycleAggregate, 0, len(s.data))
	for _, a := range s.data {
		copy := *a
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Variant != result[j].Variant {
			return result[i].Variant < result[j].Variant
		}
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

var _ storage.CycleAggregateStore = (*CycleAggregateStore)(nil)

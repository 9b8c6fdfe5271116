package metrics

import (
	"context"
	"errors"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/storage"
)

// ErrNoCycles is returned when no closed cycles exist for the key.
var ErrNoCycles = errors.New("no cycles available for aggregation")

// Aggregator computes cycle aggregates from the archive.
type Aggregator struct {
	recordStore storage.CycleRecordStore
	aggStore    storage.CycleAggregateStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(recordStore storage.CycleRecordStore, aggStore storage.CycleAggregateStore) *Aggregator {
	return &Aggregator{
		recordStore: recordStore,
		aggStore:    aggStore,
	}
}

// ComputeAggregate computes the aggregate for one (variant, symbol) pair.
// Returns ErrNoCycles if the archive holds nothing for the key.
func (a *Aggregator) ComputeAggregate(ctx context.Context, variant domain.Variant, symbol string) (*domain.CycleAggregate, error) {
	records, err := a.recordStore.GetByVariantSymbol(ctx, variant, symbol)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoCycles
	}

	return computeFromRecords(records, variant, symbol), nil
}

// ComputeAndStore computes and persists the aggregate. The aggregate
// store is append-only per key; recomputing an existing key returns
// storage.ErrDuplicateKey.
func (a *Aggregator) ComputeAndStore(ctx context.Context, variant domain.Variant, symbol string) (*domain.CycleAggregate, error) {
	agg, err := a.ComputeAggregate(ctx, variant, symbol)
	if err != nil {
		return nil, err
	}

	if err := a.aggStore.Insert(ctx, agg); err != nil {
		return nil, err
	}

	return agg, nil
}

// ComputeAll computes aggregates for every (variant, symbol) pair present
// in the given records, keyed deterministically.
func ComputeAll(records []*domain.CycleRecord) []*domain.CycleAggregate {
	type key struct {
		variant domain.Variant
		symbol  string
	}

	grouped := make(map[key][]*domain.CycleRecord)
	var order []key
	for _, r := range records {
		k := key{r.Variant, r.Symbol}
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], r)
	}

	aggregates := make([]*domain.CycleAggregate, 0, len(order))
	for _, k := range order {
		aggregates = append(aggregates, computeFromRecords(grouped[k], k.variant, k.symbol))
	}
	return aggregates
}

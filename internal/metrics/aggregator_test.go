package metrics

import (
	"context"
	"errors"
	"math"
	"testing"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/storage"
	"martingale-lab/internal/storage/memory"
)

func insertRecords(t *testing.T, store *memory.CycleRecordStore, records ...*domain.CycleRecord) {
	t.Helper()
	ctx := context.Background()
	for _, r := range records {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s failed: %v", r.CycleID, err)
		}
	}
}

func TestAggregator_ComputeAggregate(t *testing.T) {
	recordStore := memory.NewCycleRecordStore()
	aggStore := memory.NewCycleAggregateStore()
	insertRecords(t, recordStore,
		makeRecord("c1", 10, 1000),
		makeRecord("c2", -4, 2000),
		makeRecord("c3", 6, 3000),
	)

	agg, err := NewAggregator(recordStore, aggStore).
		ComputeAggregate(context.Background(), domain.VariantZRM, "BTCUSDT")
	if err != nil {
		t.Fatalf("ComputeAggregate failed: %v", err)
	}

	if agg.TotalCycles != 3 {
		t.Errorf("TotalCycles = %d, want 3", agg.TotalCycles)
	}
	if math.Abs(agg.TotalPnL-12) > 1e-9 {
		t.Errorf("TotalPnL = %v, want 12", agg.TotalPnL)
	}
	if agg.MaxConsecutiveLosses != 1 {
		t.Errorf("MaxConsecutiveLosses = %d, want 1", agg.MaxConsecutiveLosses)
	}
}

func TestAggregator_NoCycles(t *testing.T) {
	agg := NewAggregator(memory.NewCycleRecordStore(), memory.NewCycleAggregateStore())

	_, err := agg.ComputeAggregate(context.Background(), domain.VariantWDM, "ETHUSDT")
	if !errors.Is(err, ErrNoCycles) {
		t.Fatalf("ComputeAggregate error = %v, want ErrNoCycles", err)
	}
}

func TestAggregator_ComputeAndStore(t *testing.T) {
	recordStore := memory.NewCycleRecordStore()
	aggStore := memory.NewCycleAggregateStore()
	insertRecords(t, recordStore, makeRecord("c1", 5, 1000))

	agg := NewAggregator(recordStore, aggStore)
	ctx := context.Background()

	stored, err := agg.ComputeAndStore(ctx, domain.VariantZRM, "BTCUSDT")
	if err != nil {
		t.Fatalf("ComputeAndStore failed: %v", err)
	}

	got, err := aggStore.GetByKey(ctx, domain.VariantZRM, "BTCUSDT")
	if err != nil {
		t.Fatalf("stored aggregate missing: %v", err)
	}
	if got.TotalPnL != stored.TotalPnL {
		t.Errorf("stored TotalPnL = %v, want %v", got.TotalPnL, stored.TotalPnL)
	}

	// append-only per key
	_, err = agg.ComputeAndStore(ctx, domain.VariantZRM, "BTCUSDT")
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("second ComputeAndStore error = %v, want ErrDuplicateKey", err)
	}
}

func TestComputeAll_GroupsByKey(t *testing.T) {
	eth := makeRecord("c3", 2, 3000)
	eth.Symbol = "ETHUSDT"
	wdm := makeRecord("c4", -1, 4000)
	wdm.Variant = domain.VariantWDM

	aggs := ComputeAll([]*domain.CycleRecord{
		makeRecord("c1", 10, 1000),
		makeRecord("c2", -4, 2000),
		eth,
		wdm,
	})

	if len(aggs) != 3 {
		t.Fatalf("got %d aggregates, want 3 distinct keys", len(aggs))
	}
	if aggs[0].TotalCycles != 2 {
		t.Errorf("first group TotalCycles = %d, want 2", aggs[0].TotalCycles)
	}
}

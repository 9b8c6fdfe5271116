package memory

import (
	"context"
	"errors"
	"testing"

	"martingale-lab/internal/domain"
	"martingale-lab/internal/storage"
)

func TestCycleRecordStore_InsertAndGet(t *testing.T) {
	store := NewCycleRecordStore()
	ctx := context.Background()

	record := &domain.CycleRecord{
		CycleID:     "cycle1",
		Variant:     domain.VariantZRM,
		Symbol:      "BTCUSDT",
		ZoneCenter:  100,
		StartedAtMs: 1000,
		ClosedAtMs:  5000,
		ExitReason:  domain.ExitReasonRecoveryAchieved,
		RealizedPnL: 19,
		LegCount:    3,
		Legs: []domain.LegRecord{
			{CycleID: "cycle1", LegIndex: 0, Direction: domain.DirectionShort, EntryPrice: 102, Quantity: 1},
		},
	}

	if err := store.Insert(ctx, record); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "cycle1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.RealizedPnL != 19 {
		t.Errorf("RealizedPnL mismatch: got %f, want 19", got.RealizedPnL)
	}
	if len(got.Legs) != 1 {
		t.Fatalf("Legs length = %d, want 1", len(got.Legs))
	}

	// mutating the returned record must not affect the store
	got.Legs[0].EntryPrice = 0
	again, err := store.GetByID(ctx, "cycle1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.Legs[0].EntryPrice != 102 {
		t.Error("store leaked its leg slice to the caller")
	}
}

func TestCycleRecordStore_DuplicateKey(t *testing.T) {
	store := NewCycleRecordStore()
	ctx := context.Background()

	record := &domain.CycleRecord{CycleID: "cycle1", Variant: domain.VariantCDM, Symbol: "ETHUSDT"}
	if err := store.Insert(ctx, record); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, record)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestCycleRecordStore_NotFound(t *testing.T) {
	store := NewCycleRecordStore()

	_, err := store.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCycleRecordStore_InvalidInput(t *testing.T) {
	store := NewCycleRecordStore()

	if err := store.Insert(context.Background(), &domain.CycleRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestCycleRecordStore_GetByVariantSymbol(t *testing.T) {
	store := NewCycleRecordStore()
	ctx := context.Background()

	records := []*domain.CycleRecord{
		{CycleID: "c1", Variant: domain.VariantZRM, Symbol: "BTCUSDT", ClosedAtMs: 3000},
		{CycleID: "c2", Variant: domain.VariantZRM, Symbol: "BTCUSDT", ClosedAtMs: 1000},
		{CycleID: "c3", Variant: domain.VariantIZRM, Symbol: "BTCUSDT", ClosedAtMs: 2000},
		{CycleID: "c4", Variant: domain.VariantZRM, Symbol: "ETHUSDT", ClosedAtMs: 4000},
	}
	for _, r := range records {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s failed: %v", r.CycleID, err)
		}
	}

	got, err := store.GetByVariantSymbol(ctx, domain.VariantZRM, "BTCUSDT")
	if err != nil {
		t.Fatalf("GetByVariantSymbol failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].CycleID != "c2" || got[1].CycleID != "c1" {
		t.Errorf("order = [%s %s], want [c2 c1] (close time ASC)", got[0].CycleID, got[1].CycleID)
	}
}

func TestCycleRecordStore_GetByTimeRange(t *testing.T) {
	store := NewCycleRecordStore()
	ctx := context.Background()

	for _, r := range []*domain.CycleRecord{
		{CycleID: "c1", Variant: domain.VariantZRM, Symbol: "BTCUSDT", ClosedAtMs: 1000},
		{CycleID: "c2", Variant: domain.VariantZRM, Symbol: "BTCUSDT", ClosedAtMs: 2000},
		{CycleID: "c3", Variant: domain.VariantZRM, Symbol: "BTCUSDT", ClosedAtMs: 3000},
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByTimeRange(ctx, 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2 (bounds inclusive)", len(got))
	}
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/infra/storage"
)

func TestStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(NewMemoryStorage())

	empty, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(empty.Addresses) != 0 || empty.MethodCache.Include == nil {
		t.Fatalf("expected empty default document, got %+v", empty)
	}

	state := domain.NewState()
	state.Addresses = append(state.Addresses, domain.MonitoredAddress{Address: "0xaa", Name: "alice", NextBlock: 102})
	state.MethodCache.Include["0xa0712d68"] = "0x1"
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	state.Addresses[0].NextBlock = 999

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Addresses[0].NextBlock != 102 || got.MethodCache.Include["0xa0712d68"] != "0x1" {
		t.Errorf("unexpected loaded state: %+v", got)
	}
}

func TestMissedTxRepo(t *testing.T) {
	ctx := context.Background()
	r := NewMissedTxRepo(NewMemoryStorage())

	first := &domain.MissedTransaction{
		ID:          "a",
		Address:     "0xaa",
		Transaction: domain.Transaction{Hash: "0x1"},
		CreatedAt:   time.Now().Add(-time.Minute),
	}
	second := &domain.MissedTransaction{
		ID:          "b",
		Address:     "0xaa",
		Transaction: domain.Transaction{Hash: "0x2"},
		CreatedAt:   time.Now(),
	}
	for _, m := range []*domain.MissedTransaction{second, first} {
		if err := r.Add(ctx, m); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	// Same address/hash is journaled once.
	dup := *first
	dup.ID = "c"
	if err := r.Add(ctx, &dup); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	list, _ := r.List(ctx)
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("expected [a b] oldest first, got %d entries", len(list))
	}

	if err := r.IncrementAttempt(ctx, "a"); err != nil {
		t.Fatalf("IncrementAttempt failed: %v", err)
	}
	got, _ := r.Get(ctx, "a")
	if got.Attempts != 1 || got.LastAttempt.IsZero() {
		t.Errorf("expected attempt recorded, got %+v", got)
	}

	if err := r.Resolve(ctx, "a"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := r.Get(ctx, "a"); !errors.Is(err, storage.ErrMissedTxNotFound) {
		t.Errorf("expected ErrMissedTxNotFound, got %v", err)
	}
	if n, _ := r.Count(ctx); n != 1 {
		t.Errorf("expected 1 entry left, got %d", n)
	}
}

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/infra/storage"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(Config{URL: "redis://" + mr.Addr(), Prefix: "test:"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "://nope"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestStateStore(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	s := NewStateStore(client)

	empty, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(empty.Addresses) != 0 || empty.MethodCache.Exclude == nil {
		t.Fatalf("expected empty default, got %+v", empty)
	}

	state := domain.NewState()
	state.Addresses = []domain.MonitoredAddress{{Address: "0xaa", Name: "alice", NextBlock: 102}}
	state.MethodCache.Exclude["0x"] = "0xt2"
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !mr.Exists("test:state") {
		t.Error("expected document under prefixed key")
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got.Addresses) != 1 || got.Addresses[0].NextBlock != 102 || got.MethodCache.Exclude["0x"] != "0xt2" {
		t.Errorf("unexpected state: %+v", got)
	}
}

func TestStateStore_Corrupt(t *testing.T) {
	client, mr := newTestClient(t)
	mr.Set("test:state", "{not json")

	state, err := NewStateStore(client).Load(context.Background())
	if err != nil {
		t.Fatalf("corrupt value must not fail: %v", err)
	}
	if len(state.Addresses) != 0 {
		t.Errorf("expected empty default, got %+v", state)
	}
}

func TestMissedTxRepo(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	r := NewMissedTxRepo(client)

	now := time.Now()
	older := &domain.MissedTransaction{
		ID: "a", Address: "0xaa", Transaction: domain.Transaction{Hash: "0x1"},
		CreatedAt: now.Add(-time.Minute), LastAttempt: now.Add(-time.Minute),
	}
	newer := &domain.MissedTransaction{
		ID: "b", Address: "0xaa", Transaction: domain.Transaction{Hash: "0x2"},
		CreatedAt: now, LastAttempt: now,
	}
	for _, m := range []*domain.MissedTransaction{newer, older} {
		if err := r.Add(ctx, m); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	dup := *older
	dup.ID = "c"
	if err := r.Add(ctx, &dup); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	list, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("expected [a b], got %d entries", len(list))
	}

	if err := r.IncrementAttempt(ctx, "a"); err != nil {
		t.Fatalf("IncrementAttempt failed: %v", err)
	}
	got, _ := r.Get(ctx, "a")
	if got.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", got.Attempts)
	}

	if err := r.Resolve(ctx, "a"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := r.Get(ctx, "a"); !errors.Is(err, storage.ErrMissedTxNotFound) {
		t.Errorf("expected ErrMissedTxNotFound, got %v", err)
	}
	if n, _ := r.Count(ctx); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}

	// A resolved transaction can be journaled again.
	if err := r.Add(ctx, older); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if n, _ := r.Count(ctx); n != 2 {
		t.Errorf("expected 2 entries after re-adding, got %d", n)
	}
}

func TestMissedTxRepo_ExpiredEntryIsSkipped(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	r := NewMissedTxRepo(client)

	m := &domain.MissedTransaction{ID: "x", Address: "0xaa", Transaction: domain.Transaction{Hash: "0x9"}, CreatedAt: time.Now()}
	if err := r.Add(ctx, m); err != nil {
		t.Fatal(err)
	}
	mr.Del("test:missed_tx:x")

	list, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected expired entry skipped, got %d", len(list))
	}
	if n, _ := r.Count(ctx); n != 0 {
		t.Errorf("expected stale id removed from queue, got %d", n)
	}
}

func TestMissedTxRepo_FailedAddCanBeRetried(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	r := NewMissedTxRepo(client)

	// A string under the queue key makes ZADD fail with WRONGTYPE.
	mr.Set("test:missed_txs", "not a sorted set")

	m := &domain.MissedTransaction{
		ID: "a", Address: "0xaa", Transaction: domain.Transaction{Hash: "0x1"},
		CreatedAt: time.Now(), LastAttempt: time.Now(),
	}
	if err := r.Add(ctx, m); err == nil {
		t.Fatal("expected add to fail")
	}
	if mr.Exists("test:missed_idx:0xaa:0x1") || mr.Exists("test:missed_tx:a") {
		t.Error("failed add must not leave index or entry keys")
	}

	mr.Del("test:missed_txs")
	if err := r.Add(ctx, m); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if n, err := r.Count(ctx); err != nil || n != 1 {
		t.Errorf("expected 1 journaled tx, got %d (%v)", n, err)
	}
}

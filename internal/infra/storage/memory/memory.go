package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/infra/storage"
)

type MemoryStorage struct {
	state  *domain.State
	missed map[string]*domain.MissedTransaction
	mu     sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		missed: make(map[string]*domain.MissedTransaction),
	}
}

// -----------------------------------------------------------------------------
// State Store
// -----------------------------------------------------------------------------

type StateStore struct {
	store *MemoryStorage
}

func NewStateStore(store *MemoryStorage) *StateStore {
	return &StateStore{store: store}
}

func (s *StateStore) Load(ctx context.Context) (*domain.State, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	if s.store.state == nil {
		return domain.NewState(), nil
	}
	return cloneState(s.store.state), nil
}

func (s *StateStore) Save(ctx context.Context, state *domain.State) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.state = cloneState(state)
	return nil
}

func cloneState(state *domain.State) *domain.State {
	return (&domain.State{
		Addresses: slices.Clone(state.Addresses),
		MethodCache: domain.MethodCache{
			Include: maps.Clone(state.MethodCache.Include),
			Exclude: maps.Clone(state.MethodCache.Exclude),
		},
	}).Normalize()
}

// -----------------------------------------------------------------------------
// Missed Transaction Repository
// -----------------------------------------------------------------------------

type MissedTxRepo struct {
	store *MemoryStorage
}

func NewMissedTxRepo(store *MemoryStorage) *MissedTxRepo {
	return &MissedTxRepo{store: store}
}

func (r *MissedTxRepo) Add(ctx context.Context, m *domain.MissedTransaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.missed {
		if existing.Address == m.Address && existing.Transaction.Hash == m.Transaction.Hash {
			return nil
		}
	}
	cp := *m
	r.store.missed[m.ID] = &cp
	return nil
}

func (r *MissedTxRepo) List(ctx context.Context) ([]*domain.MissedTransaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.MissedTransaction, 0, len(r.store.missed))
	for _, m := range r.store.missed {
		cp := *m
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *domain.MissedTransaction) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (r *MissedTxRepo) Get(ctx context.Context, id string) (*domain.MissedTransaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.missed[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrMissedTxNotFound, id)
	}
	cp := *m
	return &cp, nil
}

func (r *MissedTxRepo) IncrementAttempt(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.missed[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrMissedTxNotFound, id)
	}
	m.Attempts++
	m.LastAttempt = time.Now()
	return nil
}

func (r *MissedTxRepo) Resolve(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.missed, id)
	return nil
}

func (r *MissedTxRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.missed), nil
}

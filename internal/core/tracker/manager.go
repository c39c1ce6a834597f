package tracker

import (
	"fmt"
	"sync"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

// Tracker is the in-memory set of monitored addresses.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*domain.MonitoredAddress
	order   []string
	version uint64
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		entries: make(map[string]*domain.MonitoredAddress),
	}
}

// Load replaces the tracked set with the given addresses, e.g. from a
// persisted document. Duplicates keep the entry with the larger watermark.
func (t *Tracker) Load(addresses []domain.MonitoredAddress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[string]*domain.MonitoredAddress, len(addresses))
	t.order = t.order[:0]
	for _, a := range addresses {
		key := domain.NormalizeAddress(a.Address)
		if existing, ok := t.entries[key]; ok {
			if a.NextBlock > existing.NextBlock {
				existing.NextBlock = a.NextBlock
			}
			continue
		}
		t.entries[key] = &domain.MonitoredAddress{
			Address:   key,
			Name:      a.Name,
			NextBlock: a.NextBlock,
		}
		t.order = append(t.order, key)
	}
	t.version++
}

// List returns a snapshot of all tracked addresses in insertion order.
func (t *Tracker) List() []domain.MonitoredAddress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.MonitoredAddress, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, *t.entries[key])
	}
	return out
}

// Get returns the tracked entry for an address.
func (t *Tracker) Get(address string) (domain.MonitoredAddress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[domain.NormalizeAddress(address)]
	if !ok {
		return domain.MonitoredAddress{}, false
	}
	return *entry, true
}

// Len returns the number of tracked addresses.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Add starts tracking an address from nextBlock.
func (t *Tracker) Add(address, name string, nextBlock uint64) error {
	key := domain.NormalizeAddress(address)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyTracked, key)
	}
	t.entries[key] = &domain.MonitoredAddress{
		Address:   key,
		Name:      name,
		NextBlock: nextBlock,
	}
	t.order = append(t.order, key)
	t.version++
	return nil
}

// Remove stops tracking an address and returns its display name.
func (t *Tracker) Remove(address string) (string, error) {
	key := domain.NormalizeAddress(address)

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(t.entries, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.version++
	return entry.Name, nil
}

// Advance moves the watermark of an address to newNextBlock.
func (t *Tracker) Advance(address string, newNextBlock uint64) error {
	key := domain.NormalizeAddress(address)

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if newNextBlock <= entry.NextBlock {
		return fmt.Errorf(
			"%w: %s at %d, got %d",
			ErrNotAdvancing,
			key,
			entry.NextBlock,
			newNextBlock,
		)
	}
	entry.NextBlock = newNextBlock
	t.version++
	return nil
}

// Reset sets the watermark unconditionally. Operator tooling only; the
// poller must use Advance.
func (t *Tracker) Reset(address string, nextBlock uint64) error {
	key := domain.NormalizeAddress(address)

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	entry.NextBlock = nextBlock
	t.version++
	return nil
}

// Version returns a counter bumped on every mutation.
func (t *Tracker) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

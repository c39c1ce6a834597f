package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

const (
	partitionInclude = "include"
	partitionExclude = "exclude"
)

type addressRow struct {
	Address   string `db:"address"`
	Name      string `db:"name"`
	NextBlock int64  `db:"next_block"`
	Position  int    `db:"position"`
}

type methodRow struct {
	Selector  string `db:"selector"`
	Partition string `db:"kind"`
	TxHash    string `db:"tx_hash"`
}

// StateStore implements storage.StateStore using PostgreSQL.
type StateStore struct {
	db *DB
}

// NewStateStore creates a new PostgreSQL state store.
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

// Load assembles the document from the address and method cache tables.
func (s *StateStore) Load(ctx context.Context) (*domain.State, error) {
	var addresses []addressRow
	err := s.db.SelectContext(ctx, &addresses, `
		SELECT address, name, next_block, position
		FROM monitored_addresses
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load addresses: %w", err)
	}

	var methods []methodRow
	err = s.db.SelectContext(ctx, &methods, `SELECT selector, kind, tx_hash FROM method_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to load method cache: %w", err)
	}

	state := domain.NewState()
	for _, a := range addresses {
		state.Addresses = append(state.Addresses, domain.MonitoredAddress{
			Address:   a.Address,
			Name:      a.Name,
			NextBlock: uint64(a.NextBlock),
		})
	}
	for _, m := range methods {
		switch m.Partition {
		case partitionInclude:
			state.MethodCache.Include[m.Selector] = m.TxHash
		case partitionExclude:
			state.MethodCache.Exclude[m.Selector] = m.TxHash
		}
	}
	return state, nil
}

// Save replaces the document in one transaction.
func (s *StateStore) Save(ctx context.Context, state *domain.State) error {
	uow, err := s.db.NewUnitOfWork(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ReplaceAddresses(ctx, state.Addresses); err != nil {
		return err
	}
	if err := uow.ReplaceMethodCache(ctx, state.MethodCache); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

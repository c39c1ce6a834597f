package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

// UnitOfWork bundles state writes into a single database transaction,
// ensuring atomicity (all succeed or all fail).
type UnitOfWork struct {
	tx *sqlx.Tx
}

// NewUnitOfWork creates a new unit of work with an active transaction.
func (db *DB) NewUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Already committed or rolled back
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

// ReplaceAddresses rewrites the monitored address table, keeping list order.
func (u *UnitOfWork) ReplaceAddresses(ctx context.Context, addresses []domain.MonitoredAddress) error {
	if _, err := u.tx.ExecContext(ctx, `DELETE FROM monitored_addresses`); err != nil {
		return fmt.Errorf("failed to clear addresses: %w", err)
	}
	if len(addresses) == 0 {
		return nil
	}

	rows := make([]addressRow, len(addresses))
	for i, a := range addresses {
		rows[i] = addressRow{
			Address:   a.Address,
			Name:      a.Name,
			NextBlock: int64(a.NextBlock),
			Position:  i,
		}
	}
	_, err := u.tx.NamedExecContext(ctx, `
		INSERT INTO monitored_addresses (address, name, next_block, position)
		VALUES (:address, :name, :next_block, :position)
	`, rows)
	if err != nil {
		return fmt.Errorf("failed to insert addresses: %w", err)
	}
	return nil
}

// ReplaceMethodCache rewrites both method cache partitions.
func (u *UnitOfWork) ReplaceMethodCache(ctx context.Context, cache domain.MethodCache) error {
	if _, err := u.tx.ExecContext(ctx, `DELETE FROM method_cache`); err != nil {
		return fmt.Errorf("failed to clear method cache: %w", err)
	}

	rows := make([]methodRow, 0, len(cache.Include)+len(cache.Exclude))
	for sel, hash := range cache.Include {
		rows = append(rows, methodRow{Selector: sel, Partition: partitionInclude, TxHash: hash})
	}
	for sel, hash := range cache.Exclude {
		if _, ok := cache.Include[sel]; ok {
			continue
		}
		rows = append(rows, methodRow{Selector: sel, Partition: partitionExclude, TxHash: hash})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := u.tx.NamedExecContext(ctx, `
		INSERT INTO method_cache (selector, kind, tx_hash)
		VALUES (:selector, :kind, :tx_hash)
	`, rows)
	if err != nil {
		return fmt.Errorf("failed to insert method cache: %w", err)
	}
	return nil
}

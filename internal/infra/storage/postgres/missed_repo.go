package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/infra/storage"
)

const missedColumns = `
	id, address, name, tx_hash, block_number, tx_timestamp, from_address,
	to_address, value, input, reason, attempts, last_attempt, created_at
`

type missedRow struct {
	ID          string    `db:"id"`
	Address     string    `db:"address"`
	Name        string    `db:"name"`
	TxHash      string    `db:"tx_hash"`
	BlockNumber int64     `db:"block_number"`
	Timestamp   int64     `db:"tx_timestamp"`
	From        string    `db:"from_address"`
	To          string    `db:"to_address"`
	Value       string    `db:"value"`
	Input       string    `db:"input"`
	Reason      string    `db:"reason"`
	Attempts    int       `db:"attempts"`
	LastAttempt time.Time `db:"last_attempt"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r missedRow) toDomain() *domain.MissedTransaction {
	return &domain.MissedTransaction{
		ID:      r.ID,
		Address: r.Address,
		Name:    r.Name,
		Transaction: domain.Transaction{
			Hash:        r.TxHash,
			BlockNumber: uint64(r.BlockNumber),
			Timestamp:   r.Timestamp,
			From:        r.From,
			To:          r.To,
			Value:       r.Value,
			Input:       r.Input,
		},
		Reason:      r.Reason,
		Attempts:    r.Attempts,
		LastAttempt: r.LastAttempt,
		CreatedAt:   r.CreatedAt,
	}
}

// MissedTxRepo implements storage.MissedTxRepository using PostgreSQL.
type MissedTxRepo struct {
	db *DB
}

// NewMissedTxRepo creates a new PostgreSQL miss journal.
func NewMissedTxRepo(db *DB) *MissedTxRepo {
	return &MissedTxRepo{db: db}
}

// Add journals a transaction.
func (r *MissedTxRepo) Add(ctx context.Context, m *domain.MissedTransaction) error {
	row := missedRow{
		ID:          m.ID,
		Address:     m.Address,
		Name:        m.Name,
		TxHash:      m.Transaction.Hash,
		BlockNumber: int64(m.Transaction.BlockNumber),
		Timestamp:   m.Transaction.Timestamp,
		From:        m.Transaction.From,
		To:          m.Transaction.To,
		Value:       m.Transaction.Value,
		Input:       m.Transaction.Input,
		Reason:      m.Reason,
		Attempts:    m.Attempts,
		LastAttempt: m.LastAttempt,
		CreatedAt:   m.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if row.LastAttempt.IsZero() {
		row.LastAttempt = row.CreatedAt
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO missed_transactions (`+missedColumns+`)
		VALUES (
			:id, :address, :name, :tx_hash, :block_number, :tx_timestamp, :from_address,
			:to_address, :value, :input, :reason, :attempts, :last_attempt, :created_at
		)
		ON CONFLICT (address, tx_hash) DO NOTHING
	`, row)
	if err != nil {
		return fmt.Errorf("failed to add missed transaction: %w", err)
	}
	return nil
}

// List returns all journaled transactions, oldest first.
func (r *MissedTxRepo) List(ctx context.Context) ([]*domain.MissedTransaction, error) {
	var rows []missedRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+missedColumns+`
		FROM missed_transactions
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list missed transactions: %w", err)
	}

	out := make([]*domain.MissedTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Get retrieves a journaled transaction by ID.
func (r *MissedTxRepo) Get(ctx context.Context, id string) (*domain.MissedTransaction, error) {
	var row missedRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+missedColumns+`
		FROM missed_transactions
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrMissedTxNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get missed transaction: %w", err)
	}
	return row.toDomain(), nil
}

// IncrementAttempt increments the attempt count and updates last attempt.
func (r *MissedTxRepo) IncrementAttempt(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE missed_transactions
		SET attempts = attempts + 1, last_attempt = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to increment attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrMissedTxNotFound, id)
	}
	return nil
}

// Resolve removes a journaled transaction.
func (r *MissedTxRepo) Resolve(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM missed_transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to resolve missed transaction: %w", err)
	}
	return nil
}

// Count returns the number of journaled transactions.
func (r *MissedTxRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM missed_transactions`); err != nil {
		return 0, fmt.Errorf("failed to count missed transactions: %w", err)
	}
	return count, nil
}

package storage

import (
	"context"
	"errors"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

var (
	// ErrMissedTxNotFound is returned when a journal entry doesn't exist
	ErrMissedTxNotFound = errors.New("missed transaction not found")
)

// StateStore persists the monitoring document
type StateStore interface {
	// Load returns the persisted state. A store that was never written
	// returns the empty default document.
	Load(ctx context.Context) (*domain.State, error)

	// Save replaces the persisted state
	Save(ctx context.Context, state *domain.State) error
}

// MissedTxRepository journals transactions whose classification is unknown
type MissedTxRepository interface {
	// Add journals a transaction. Adding the same address/hash twice keeps
	// the existing entry.
	Add(ctx context.Context, missed *domain.MissedTransaction) error

	// List returns all journaled transactions, oldest first
	List(ctx context.Context) ([]*domain.MissedTransaction, error)

	// Get retrieves an entry by ID
	Get(ctx context.Context, id string) (*domain.MissedTransaction, error)

	// IncrementAttempt bumps the attempt counter and last attempt time
	IncrementAttempt(ctx context.Context, id string) error

	// Resolve removes an entry
	Resolve(ctx context.Context, id string) error

	// Count returns the number of journaled transactions
	Count(ctx context.Context) (int, error)
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/infra/storage"
)

// missedTTL bounds how long an entry survives without being touched.
const missedTTL = 7 * 24 * time.Hour

// MissedTxRepo implements MissedTxRepository using Redis.
type MissedTxRepo struct {
	rdb    *redis.Client
	client *Client
}

// NewMissedTxRepo creates a new Redis-backed miss journal.
func NewMissedTxRepo(client *Client) *MissedTxRepo {
	return &MissedTxRepo{
		rdb:    client.rdb,
		client: client,
	}
}

// Key helpers
func (r *MissedTxRepo) queueKey() string {
	return r.client.key("missed_txs")
}

func (r *MissedTxRepo) entryKey(id string) string {
	return r.client.key("missed_tx", id)
}

func (r *MissedTxRepo) indexKey(address, hash string) string {
	return r.client.key("missed_idx", address, hash)
}

// Add journals a transaction. The sorted set is scored by creation time so
// List returns the oldest entry first. A failed write leaves no keys behind.
func (r *MissedTxRepo) Add(ctx context.Context, m *domain.MissedTransaction) error {
	idx := r.indexKey(m.Address, m.Transaction.Hash)
	ok, err := r.rdb.SetNX(ctx, idx, m.ID, missedTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to index missed transaction: %w", err)
	}
	if !ok {
		return nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		r.rdb.Del(ctx, idx)
		return fmt.Errorf("failed to marshal missed transaction: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.entryKey(m.ID), data, missedTTL)
	pipe.ZAdd(ctx, r.queueKey(), redis.Z{
		Score:  float64(m.CreatedAt.UnixNano()),
		Member: m.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		// MULTI does not roll back the commands that succeeded.
		r.rdb.Del(ctx, idx, r.entryKey(m.ID))
		return fmt.Errorf("failed to add missed transaction: %w", err)
	}

	return nil
}

// List retrieves all journaled transactions.
func (r *MissedTxRepo) List(ctx context.Context) ([]*domain.MissedTransaction, error) {
	ids, err := r.rdb.ZRange(ctx, r.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	out := make([]*domain.MissedTransaction, 0, len(ids))
	for _, id := range ids {
		m, err := r.Get(ctx, id)
		if errors.Is(err, storage.ErrMissedTxNotFound) {
			// Data expired but ID still in queue, remove it
			r.rdb.ZRem(ctx, r.queueKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, nil
}

// Get retrieves a journaled transaction by ID.
func (r *MissedTxRepo) Get(ctx context.Context, id string) (*domain.MissedTransaction, error) {
	data, err := r.rdb.Get(ctx, r.entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", storage.ErrMissedTxNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get missed transaction: %w", err)
	}

	var m domain.MissedTransaction
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal missed transaction: %w", err)
	}
	return &m, nil
}

// IncrementAttempt increments the attempt count and updates last attempt.
func (r *MissedTxRepo) IncrementAttempt(ctx context.Context, id string) error {
	m, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	m.Attempts++
	m.LastAttempt = time.Now()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal missed transaction: %w", err)
	}
	if err := r.rdb.Set(ctx, r.entryKey(id), data, missedTTL).Err(); err != nil {
		return fmt.Errorf("failed to set missed transaction: %w", err)
	}
	return nil
}

// Resolve removes a journaled transaction.
func (r *MissedTxRepo) Resolve(ctx context.Context, id string) error {
	m, err := r.Get(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrMissedTxNotFound) {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, r.queueKey(), id)
	pipe.Del(ctx, r.entryKey(id))
	if m != nil {
		pipe.Del(ctx, r.indexKey(m.Address, m.Transaction.Hash))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to resolve missed transaction: %w", err)
	}
	return nil
}

// Count returns the number of journaled transactions.
func (r *MissedTxRepo) Count(ctx context.Context) (int, error) {
	count, err := r.rdb.ZCard(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

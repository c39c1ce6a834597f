package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

// StateStore keeps the monitoring document as a single JSON value.
type StateStore struct {
	rdb *redis.Client
	key string
	log *slog.Logger
}

// NewStateStore creates a Redis-backed state store.
func NewStateStore(client *Client) *StateStore {
	return &StateStore{
		rdb: client.rdb,
		key: client.key("state"),
		log: slog.Default().With("component", "state-redis"),
	}
}

// Load reads the document. A missing or undecodable value yields the empty
// default document.
func (s *StateStore) Load(ctx context.Context) (*domain.State, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Warn("Stored state is corrupt, starting empty", "key", s.key, "error", err)
		return domain.NewState(), nil
	}
	return state.Normalize(), nil
}

// Save replaces the document.
func (s *StateStore) Save(ctx context.Context, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

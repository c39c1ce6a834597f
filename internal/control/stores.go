package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/mintwatch/internal/core/config"
	redisclient "github.com/vietddude/mintwatch/internal/infra/redis"
	"github.com/vietddude/mintwatch/internal/infra/storage"
	"github.com/vietddude/mintwatch/internal/infra/storage/file"
	"github.com/vietddude/mintwatch/internal/infra/storage/memory"
	"github.com/vietddude/mintwatch/internal/infra/storage/postgres"
)

// Stores bundles the persistence backends selected by storage.driver.
type Stores struct {
	State   storage.StateStore
	Journal storage.MissedTxRepository

	db    *postgres.DB
	redis *redisclient.Client
}

// OpenStores connects the configured backend. The file driver keeps the
// miss journal in memory.
func OpenStores(ctx context.Context, cfg *config.AppConfig) (*Stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		slog.Info("Using Redis storage")
		return &Stores{
			State:   redisclient.NewStateStore(client),
			Journal: redisclient.NewMissedTxRepo(client),
			redis:   client,
		}, nil

	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		slog.Info("Using PostgreSQL storage")
		return &Stores{
			State:   postgres.NewStateStore(db),
			Journal: postgres.NewMissedTxRepo(db),
			db:      db,
		}, nil

	default:
		mem := memory.NewMemoryStorage()
		slog.Info("Using file storage", "path", cfg.Storage.Path)
		return &Stores{
			State:   file.NewStateStore(cfg.Storage.Path),
			Journal: memory.NewMissedTxRepo(mem),
		}, nil
	}
}

// Close releases backend connections.
func (s *Stores) Close() error {
	var errs []error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

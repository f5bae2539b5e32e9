package app

import (
	"context"
	"fmt"

	"github.com/kurihiro0119/github-star-monitor/internal/config"
	"github.com/kurihiro0119/github-star-monitor/internal/storage"
	"github.com/kurihiro0119/github-star-monitor/internal/storage/postgres"
	"github.com/kurihiro0119/github-star-monitor/internal/storage/sqlite"
)

// OpenArchive opens the configured event archive. It returns nil, nil when
// archiving is disabled.
func OpenArchive(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case storage.TypePostgres:
		store, err := postgres.NewPostgresStorage(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL storage: %w", err)
		}
		return store, nil
	case storage.TypeSQLite:
		store, err := sqlite.NewSQLiteStorage(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

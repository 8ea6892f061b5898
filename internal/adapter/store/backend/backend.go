// Package backend opens the postcode store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"go.ngs.io/postcodes-api/internal/adapter/store"
	"go.ngs.io/postcodes-api/internal/adapter/store/memory"
	"go.ngs.io/postcodes-api/internal/adapter/store/postgres"
	"go.ngs.io/postcodes-api/internal/adapter/store/sqlite"
	"go.ngs.io/postcodes-api/internal/config"
)

var (
	_ store.PostcodeStore = (*memory.Store)(nil)
	_ store.PostcodeStore = (*postgres.Store)(nil)
	_ store.PostcodeStore = (*sqlite.Store)(nil)
)

// Open returns the store named by cfg.Store. The caller owns Close.
func Open(ctx context.Context, cfg config.Config) (store.PostcodeStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), nil
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return s, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store %q: %w", cfg.SQLitePath, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Describe returns a log-safe description of the configured backend.
func Describe(cfg config.Config) string {
	switch cfg.Store {
	case config.StorePostgres:
		return "postgres"
	case config.StoreSQLite:
		return "sqlite (" + cfg.SQLitePath + ")"
	default:
		return cfg.Store
	}
}

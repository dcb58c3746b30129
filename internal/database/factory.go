package database

import (
	"fmt"
	"path/filepath"

	"fstash/internal/config"
	"fstash/internal/database/migrations"
)

// NewStoreFromConfig creates a SQLiteStore based on the database config type.
// Memory stores are migrated on creation since they always start empty;
// sqlite stores are migrated explicitly via the db CLI commands.
func NewStoreFromConfig(cfg config.DatabaseConfig) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "fstash.db"))
	case "memory":
		store, err := NewSQLiteStore(":memory:")
		if err != nil {
			return nil, err
		}
		if err := migrations.MigrateUp(store.DB()); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating memory database: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

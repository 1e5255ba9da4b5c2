package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/udisondev/patrolsignal/internal/config"
	"github.com/udisondev/patrolsignal/internal/db"
	"github.com/udisondev/patrolsignal/internal/game/cooldown"
	"github.com/udisondev/patrolsignal/internal/store/filestore"
)

// DataFileName is the cooldown file of the file backend, relative to the data directory.
const DataFileName = "SimplePatrolSignal.json"

// openStore opens the configured cooldown backend. release frees it.
func openStore(ctx context.Context, cfg config.Service) (store cooldown.Store, release func(), err error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		path := filepath.Join(cfg.DataDir, DataFileName)
		if cfg.Store.Compress {
			path += ".zst"
		}
		slog.Info("cooldown store", "backend", cfg.Store.Backend, "path", path)
		return filestore.New(path), func() {}, nil

	case config.BackendSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		slog.Info("cooldown store", "backend", cfg.Store.Backend, "path", cfg.Store.SQLitePath)
		return db.NewSQLiteCooldownRepository(sqlDB), func() {
			if err := sqlDB.Close(); err != nil {
				slog.Error("closing sqlite store", "error", err)
			}
		}, nil

	case config.BackendPostgres:
		dsn := cfg.Store.Database.DSN()
		database, err := db.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := db.RunMigrations(ctx, dsn); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("cooldown store", "backend", cfg.Store.Backend,
			"host", cfg.Store.Database.Host, "dbname", cfg.Store.Database.DBName)
		return database.Cooldowns(), database.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalid, cfg.Store.Backend)
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (creating if needed) a SQLite database file and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite dir %s: %w", dir, err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// One writer; also keeps an in-memory database alive across calls.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}

	if err := RunSQLiteMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

// SQLiteCooldownRepository stores the cooldown ledger in SQLite.
type SQLiteCooldownRepository struct {
	db *sql.DB
}

// NewSQLiteCooldownRepository creates a new SQLiteCooldownRepository.
func NewSQLiteCooldownRepository(db *sql.DB) *SQLiteCooldownRepository {
	return &SQLiteCooldownRepository{db: db}
}

// Load returns every stored entry.
func (r *SQLiteCooldownRepository) Load(ctx context.Context) (map[uint64]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT player_id, last_used_ms FROM patrol_cooldowns`)
	if err != nil {
		return nil, fmt.Errorf("query patrol_cooldowns: %w", err)
	}
	defer rows.Close()

	result := make(map[uint64]time.Time)
	for rows.Next() {
		var id, ms int64
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, fmt.Errorf("scan patrol_cooldowns: %w", err)
		}
		result[uint64(id)] = time.UnixMilli(ms).UTC()
	}
	return result, rows.Err()
}

// Save replaces the table contents with entries in one transaction.
func (r *SQLiteCooldownRepository) Save(ctx context.Context, entries map[uint64]time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM patrol_cooldowns`); err != nil {
		return fmt.Errorf("clear patrol_cooldowns: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO patrol_cooldowns (player_id, last_used_ms) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for id, t := range entries {
		if _, err := stmt.ExecContext(ctx, int64(id), t.UnixMilli()); err != nil {
			return fmt.Errorf("insert cooldown for %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit patrol_cooldowns: %w", err)
	}
	return nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CooldownRepository stores the cooldown ledger in patrol_cooldowns.
// Player IDs are stored bit-for-bit as BIGINT.
type CooldownRepository struct {
	pool *pgxpool.Pool
}

// NewCooldownRepository creates a new CooldownRepository.
func NewCooldownRepository(pool *pgxpool.Pool) *CooldownRepository {
	return &CooldownRepository{pool: pool}
}

// Load returns every stored entry.
func (r *CooldownRepository) Load(ctx context.Context) (map[uint64]time.Time, error) {
	rows, err := r.pool.Query(ctx, `SELECT player_id, last_used FROM patrol_cooldowns`)
	if err != nil {
		return nil, fmt.Errorf("query patrol_cooldowns: %w", err)
	}
	defer rows.Close()

	result := make(map[uint64]time.Time)
	for rows.Next() {
		var (
			id       int64
			lastUsed time.Time
		)
		if err := rows.Scan(&id, &lastUsed); err != nil {
			return nil, fmt.Errorf("scan patrol_cooldowns: %w", err)
		}
		result[uint64(id)] = lastUsed
	}
	return result, rows.Err()
}

// Save replaces the table contents with entries in one transaction.
func (r *CooldownRepository) Save(ctx context.Context, entries map[uint64]time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM patrol_cooldowns`); err != nil {
		return fmt.Errorf("clear patrol_cooldowns: %w", err)
	}

	if len(entries) > 0 {
		rows := make([][]any, 0, len(entries))
		for id, t := range entries {
			rows = append(rows, []any{int64(id), t})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"patrol_cooldowns"},
			[]string{"player_id", "last_used"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy patrol_cooldowns: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit patrol_cooldowns: %w", err)
	}
	return nil
}

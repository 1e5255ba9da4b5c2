// Package cooldown implements the per-player cooldown ledger for patrol signals:
// last-use timestamps keyed by player ID, persisted wholesale after every mutation.
package cooldown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/udisondev/patrolsignal/internal/scheduler"
)

// Store persists the full ledger. Save always receives the complete set of entries.
type Store interface {
	Load(ctx context.Context) (map[uint64]time.Time, error)
	Save(ctx context.Context, entries map[uint64]time.Time) error
}

// Windows holds the cooldown durations.
type Windows struct {
	Standard time.Duration
	VIP      time.Duration
}

// Max returns the larger of the two windows.
func (w Windows) Max() time.Duration {
	return max(w.Standard, w.VIP)
}

// For returns the window applicable to a player.
func (w Windows) For(vip bool) time.Duration {
	if vip {
		return w.VIP
	}
	return w.Standard
}

// Ledger tracks the last signal use per player.
//
// Not safe for concurrent use: all calls happen on the scheduler loop.
type Ledger struct {
	store   Store
	clock   scheduler.Clock
	windows Windows
	entries map[uint64]time.Time // playerID → last use
}

// NewLedger creates an empty ledger. Call Load to populate it from the store.
func NewLedger(store Store, clock scheduler.Clock, windows Windows) *Ledger {
	return &Ledger{
		store:   store,
		clock:   clock,
		windows: windows,
		entries: make(map[uint64]time.Time, 64),
	}
}

// SetWindows replaces the cooldown windows (config reload).
func (l *Ledger) SetWindows(w Windows) {
	l.windows = w
}

// Windows returns the current cooldown windows.
func (l *Ledger) Windows() Windows {
	return l.windows
}

// Load replaces in-memory state with the store contents and prunes expired entries.
// Unreadable or corrupt data is not fatal: the ledger starts empty.
func (l *Ledger) Load(ctx context.Context) error {
	entries, err := l.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			slog.Warn("cooldown data corrupt, starting with empty ledger", "error", err)
		} else {
			slog.Warn("cooldown data unreadable, starting with empty ledger", "error", err)
		}
		entries = nil
	}

	l.entries = make(map[uint64]time.Time, max(len(entries), 64))
	maps.Copy(l.entries, entries)

	pruned, err := l.PruneExpired(ctx)
	if err != nil {
		return err
	}

	slog.Info("cooldown ledger loaded",
		"entries", len(l.entries),
		"pruned", pruned)
	return nil
}

// IsOnCooldown reports whether the player used a signal within the applicable window.
func (l *Ledger) IsOnCooldown(playerID uint64, vip bool) bool {
	last, ok := l.entries[playerID]
	if !ok {
		return false
	}
	return l.clock.Now().Sub(last) < l.windows.For(vip)
}

// Remaining returns the seconds left on the player's cooldown (0 when none).
func (l *Ledger) Remaining(playerID uint64, vip bool) float64 {
	last, ok := l.entries[playerID]
	if !ok {
		return 0
	}
	remaining := l.windows.For(vip) - l.clock.Now().Sub(last)
	if remaining <= 0 {
		return 0
	}
	return remaining.Seconds()
}

// LastUse returns the recorded last use for a player.
func (l *Ledger) LastUse(playerID uint64) (time.Time, bool) {
	last, ok := l.entries[playerID]
	return last, ok
}

// Record marks the player's cooldown as starting now and persists the ledger.
func (l *Ledger) Record(ctx context.Context, playerID uint64) error {
	l.entries[playerID] = l.clock.Now()
	if err := l.Save(ctx); err != nil {
		return fmt.Errorf("record cooldown for %d: %w", playerID, err)
	}
	return nil
}

// Reset removes the player's cooldown and persists the ledger.
func (l *Ledger) Reset(ctx context.Context, playerID uint64) error {
	delete(l.entries, playerID)
	if err := l.Save(ctx); err != nil {
		return fmt.Errorf("reset cooldown for %d: %w", playerID, err)
	}
	return nil
}

// PruneExpired drops entries older than the largest window. VIP status can change
// between uses, so the larger window is the only safe bound.
// Persists only when something was removed. Returns the number of removed entries.
func (l *Ledger) PruneExpired(ctx context.Context) (int, error) {
	now := l.clock.Now()
	limit := l.windows.Max()

	removed := 0
	for id, last := range l.entries {
		if now.Sub(last) >= limit {
			delete(l.entries, id)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}
	if err := l.Save(ctx); err != nil {
		return removed, fmt.Errorf("prune cooldowns: %w", err)
	}
	return removed, nil
}

// Save writes the full ledger to the store.
func (l *Ledger) Save(ctx context.Context) error {
	snapshot := make(map[uint64]time.Time, len(l.entries))
	maps.Copy(snapshot, l.entries)
	return l.store.Save(ctx, snapshot)
}

// Len returns the number of tracked players.
func (l *Ledger) Len() int {
	return len(l.entries)
}

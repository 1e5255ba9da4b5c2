package encounter

import (
	"context"
	"fmt"
	"log/slog"
)

// flagGuard holds the global patrol flags for the duration of one encounter.
// Acquire snapshots the current values and disables both; Release restores the
// snapshot exactly once regardless of how many times it is called.
type flagGuard struct {
	flags    GlobalFlags
	saved    Flags
	released bool
}

func acquireFlags(ctx context.Context, flags GlobalFlags) (*flagGuard, error) {
	saved, err := flags.Flags(ctx)
	if err != nil {
		return nil, fmt.Errorf("read global flags: %w", err)
	}

	g := &flagGuard{flags: flags, saved: saved}
	if err := flags.SetFlags(ctx, Flags{}); err != nil {
		g.Release(ctx)
		return nil, fmt.Errorf("override global flags: %w", err)
	}
	return g, nil
}

// Saved returns the pre-encounter flag values.
func (g *flagGuard) Saved() Flags {
	return g.saved
}

// Release restores the saved flags. Safe to call on a nil guard and more than once.
func (g *flagGuard) Release(ctx context.Context) {
	if g == nil || g.released {
		return
	}
	g.released = true

	if err := g.flags.SetFlags(ctx, g.saved); err != nil {
		slog.Error("restore global patrol flags",
			"useDangerZones", g.saved.UseDangerZones,
			"monumentCrash", g.saved.MonumentCrash,
			"error", err)
	}
}

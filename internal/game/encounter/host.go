package encounter

import (
	"context"
	"time"

	"github.com/udisondev/patrolsignal/internal/model"
)

// Spawner creates the hostile patrol entity on the host. The returned entity is
// already spawned into the world and excluded from world saves.
type Spawner interface {
	SpawnPatrol(ctx context.Context, pos model.Vector) (Patrol, error)
}

// Patrol is a live patrol helicopter on the host.
type Patrol interface {
	ID() uint64
	// Exists reports whether the entity is still alive on the host.
	Exists(ctx context.Context) bool
	InitializeHealth(ctx context.Context, health float64) error
	// Weakspots returns the entity's independently damaged sub-parts
	// (main rotor, tail rotor). May return fewer than two.
	Weakspots(ctx context.Context) ([]Weakspot, error)
	SetRocketDelay(ctx context.Context, seconds float64) error
	SetMaxCrates(ctx context.Context, n int) error
	// SetInterestZone directs the AI toward zone instead of its default patrol route.
	SetInterestZone(ctx context.Context, zone model.Vector) error
	// ExitCurrentState forces the AI out of its current state so the interest zone applies.
	ExitCurrentState(ctx context.Context) error
	// MoveTo re-issues the move directive toward pos without canceling combat.
	MoveTo(ctx context.Context, pos model.Vector) error
	// HasTarget reports whether either gun currently has an acquired target.
	HasTarget(ctx context.Context) bool
	Retire(ctx context.Context) error
	Kill(ctx context.Context) error
}

// Weakspot is a sub-part of the patrol with its own health pool.
type Weakspot interface {
	SetHealth(ctx context.Context, health float64) error
}

// Signal is the thrown supply signal entity that triggered the request.
type Signal interface {
	ID() uint64
	SkinID() uint64
	// CancelExplode cancels the native smoke/airdrop behavior.
	CancelExplode(ctx context.Context) error
	// KillAfter schedules removal of the entity on the host.
	KillAfter(ctx context.Context, d time.Duration) error
	Kill(ctx context.Context) error
}

// Flags are the process-wide patrol AI switches the encounter overrides.
type Flags struct {
	UseDangerZones bool `json:"use_danger_zones"`
	MonumentCrash  bool `json:"monument_crash"`
}

// GlobalFlags reads and writes the host's patrol AI switches.
type GlobalFlags interface {
	Flags(ctx context.Context) (Flags, error)
	SetFlags(ctx context.Context, f Flags) error
}

// CooldownRecorder records a successful activation.
type CooldownRecorder interface {
	Record(ctx context.Context, playerID uint64) error
}

// Notifier sends a localized message to a player.
type Notifier interface {
	Notify(ctx context.Context, player model.Player, key string, args ...any)
}

// SignalGiver hands a fresh patrol signal to a player.
type SignalGiver interface {
	GiveSignal(ctx context.Context, player model.Player) error
}

// Package encounter runs the single patrol helicopter encounter: warmup after a
// signal is accepted, spawn and configuration of the patrol, periodic steering
// back to the signal zone, and teardown that always restores the global flags.
package encounter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/udisondev/patrolsignal/internal/model"
	"github.com/udisondev/patrolsignal/internal/scheduler"
)

const (
	// ReconsiderInterval is how often an active patrol is steered back to its zone.
	ReconsiderInterval = 10 * time.Second
	// SpawnDistance is how far ahead (+Z) of the zone the patrol appears.
	SpawnDistance = 500.0
	// SpawnAltitude is the fixed spawn height.
	SpawnAltitude = 60.0
	// SignalKillDelay is when the host removes an accepted signal if nothing else does.
	SignalKillDelay = 30 * time.Second
)

var tracer = otel.Tracer("patrolsignal/encounter")

// State is the lifecycle state of the controller.
type State int32

const (
	StateIdle State = iota
	StateWarmup
	StateActive
	StateTearingDown
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWarmup:
		return "WARMUP"
	case StateActive:
		return "ACTIVE"
	case StateTearingDown:
		return "TEARING_DOWN"
	default:
		return "UNKNOWN"
	}
}

// Settings are the tunables read from the plugin config.
type Settings struct {
	Warmup          time.Duration
	Duration        time.Duration
	Health          float64
	MainRotorHealth float64
	TailRotorHealth float64
	RocketDelay     float64 // seconds between rockets
	CrateAmount     int
	Debug           bool
}

// Deps are the collaborators the controller drives.
type Deps struct {
	Scheduler scheduler.Scheduler
	Spawner   Spawner
	Flags     GlobalFlags
	Cooldowns CooldownRecorder
	Notifier  Notifier
	Signals   SignalGiver
	// Ended, when set, runs after every teardown.
	Ended     func(ctx context.Context, reason TeardownReason)
}

// Request is an accepted signal throw.
type Request struct {
	Player   model.Player
	Position model.Vector
	Signal   Signal
}

// Status is a snapshot of the current encounter.
type Status struct {
	ID          string
	State       State
	Player      model.Player
	Zone        model.Vector
	PatrolID    uint64
	RequestedAt time.Time
	StartedAt   time.Time // zero during warmup
	ExpiresAt   time.Time // zero during warmup
}

// TeardownReason says why an encounter ended.
type TeardownReason string

const (
	ReasonExpired  TeardownReason = "expired"
	ReasonDespawn  TeardownReason = "despawn"
	ReasonShutdown TeardownReason = "shutdown"
	ReasonGone     TeardownReason = "entity_gone"
)

// encounter is the per-activation state. Timer callbacks capture the pointer and
// compare it with Controller.cur so a late firing never acts on a newer encounter.
type encounter struct {
	id     uuid.UUID
	player model.Player
	zone   model.Vector
	signal Signal
	patrol Patrol
	guard  *flagGuard

	warmupTimer     scheduler.Timer
	reconsiderTimer scheduler.Timer
	expiryTimer     scheduler.Timer

	requestedAt time.Time
	startedAt   time.Time
	expiresAt   time.Time
}

// Controller is the single-instance encounter state machine:
// Idle → Warmup → Active → TearingDown → Idle.
//
// Not safe for concurrent use: every call and timer callback runs on the scheduler loop.
type Controller struct {
	deps     Deps
	settings Settings

	state State
	cur   *encounter
}

// NewController creates an idle controller.
func NewController(deps Deps, settings Settings) *Controller {
	return &Controller{
		deps:     deps,
		settings: settings,
		state:    StateIdle,
	}
}

// SetSettings replaces the tunables. Takes effect on the next activation.
func (c *Controller) SetSettings(s Settings) {
	c.settings = s
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Status returns a snapshot of the running encounter. ok is false when idle.
func (c *Controller) Status() (Status, bool) {
	if c.cur == nil {
		return Status{State: c.state}, false
	}
	st := Status{
		ID:          c.cur.id.String(),
		State:       c.state,
		Player:      c.cur.player,
		Zone:        c.cur.zone,
		RequestedAt: c.cur.requestedAt,
		StartedAt:   c.cur.startedAt,
		ExpiresAt:   c.cur.expiresAt,
	}
	if c.cur.patrol != nil {
		st.PatrolID = c.cur.patrol.ID()
	}
	return st, true
}

// RequestActivation starts the warmup for an accepted signal.
// While another encounter is in warmup or active, the requester is told so,
// gets a fresh signal, and ErrEncounterActive is returned.
func (c *Controller) RequestActivation(ctx context.Context, req Request) error {
	if c.state != StateIdle {
		c.debugLog("patrol signal already active", "player", req.Player.Name, "state", c.state)
		c.deps.Notifier.Notify(ctx, req.Player, "HeliSignalActive")
		c.refund(ctx, req.Player)
		if req.Signal != nil {
			if err := req.Signal.Kill(ctx); err != nil {
				slog.Error("kill rejected patrol signal", "signalID", req.Signal.ID(), "error", err)
			}
		}
		return ErrEncounterActive
	}

	enc := &encounter{
		id:          uuid.New(),
		player:      req.Player,
		zone:        req.Position,
		signal:      req.Signal,
		requestedAt: c.deps.Scheduler.Now(),
	}

	if enc.signal != nil {
		if err := enc.signal.CancelExplode(ctx); err != nil {
			slog.Error("cancel signal explosion", "signalID", enc.signal.ID(), "error", err)
		}
		if err := enc.signal.KillAfter(ctx, SignalKillDelay); err != nil {
			slog.Error("schedule signal removal", "signalID", enc.signal.ID(), "error", err)
		}
	}

	c.cur = enc
	c.state = StateWarmup
	enc.warmupTimer = c.deps.Scheduler.Once(c.settings.Warmup, func() {
		c.onWarmupElapsed(enc)
	})

	slog.Info("patrol signal accepted",
		"encounter", enc.id,
		"player", req.Player.Name,
		"playerID", req.Player.ID,
		"zone", req.Position,
		"warmup", c.settings.Warmup)
	return nil
}

// Despawn tears down the current encounter (including one still in warmup).
// Returns false when nothing was running.
func (c *Controller) Despawn(ctx context.Context) bool {
	return c.teardown(ctx, ReasonDespawn)
}

// Shutdown tears down whatever is running. Must be called before the plugin unloads.
func (c *Controller) Shutdown(ctx context.Context) {
	c.teardown(ctx, ReasonShutdown)
}

func (c *Controller) onWarmupElapsed(enc *encounter) {
	if c.cur != enc || c.state != StateWarmup {
		return
	}
	ctx, span := tracer.Start(context.Background(), "encounter.Spawn")
	defer span.End()
	span.SetAttributes(
		attribute.String("encounter.id", enc.id.String()),
		attribute.String("player.id", enc.player.IDString()),
	)

	if enc.signal != nil {
		if err := enc.signal.Kill(ctx); err != nil {
			slog.Error("kill patrol signal", "signalID", enc.signal.ID(), "error", err)
		}
		enc.signal = nil
	}

	if err := c.spawn(ctx, enc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "spawn failed")
		slog.Error("patrol helicopter spawn",
			"encounter", enc.id,
			"player", enc.player.Name,
			"error", err)

		c.cur = nil
		c.state = StateIdle
		c.deps.Notifier.Notify(ctx, enc.player, "SpawnFailed")
		c.refund(ctx, enc.player)
		return
	}

	if err := c.deps.Cooldowns.Record(ctx, enc.player.ID); err != nil {
		slog.Error("record patrol signal cooldown", "playerID", enc.player.ID, "error", err)
	}
	c.deps.Notifier.Notify(ctx, enc.player, "PatrolCalled")
}

// spawn creates and configures the patrol. On error the flags are restored and
// the encounter has no entity.
func (c *Controller) spawn(ctx context.Context, enc *encounter) error {
	c.debugLog("attempting to spawn patrol helicopter", "encounter", enc.id)

	guard, err := acquireFlags(ctx, c.deps.Flags)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	pos := enc.zone.Add(model.Forward.Scale(SpawnDistance)).WithY(SpawnAltitude)
	patrol, err := c.deps.Spawner.SpawnPatrol(ctx, pos)
	if err != nil || patrol == nil {
		guard.Release(ctx)
		if err == nil {
			return ErrSpawnFailed
		}
		return fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	enc.guard = guard
	enc.patrol = patrol
	c.configure(ctx, enc)

	now := c.deps.Scheduler.Now()
	enc.startedAt = now
	enc.expiresAt = now.Add(c.settings.Duration)
	c.state = StateActive

	enc.reconsiderTimer = c.deps.Scheduler.Repeat(ReconsiderInterval, 0, func() {
		c.reconsider(enc)
	})
	enc.expiryTimer = c.deps.Scheduler.Once(c.settings.Duration, func() {
		if c.cur != enc {
			return
		}
		c.teardown(context.Background(), ReasonExpired)
	})

	slog.Info("patrol helicopter spawned",
		"encounter", enc.id,
		"patrolID", patrol.ID(),
		"position", pos,
		"zone", enc.zone,
		"duration", c.settings.Duration)
	return nil
}

// configure applies the config to a freshly spawned patrol. Failures are logged
// and skipped; a partially configured patrol is still a valid encounter.
func (c *Controller) configure(ctx context.Context, enc *encounter) {
	p := enc.patrol
	logErr := func(step string, err error) {
		if err != nil {
			slog.Warn("configure patrol helicopter", "step", step, "patrolID", p.ID(), "error", err)
		}
	}

	logErr("health", p.InitializeHealth(ctx, c.settings.Health))

	weakspots, err := p.Weakspots(ctx)
	logErr("weakspots", err)
	rotorHealth := []float64{c.settings.MainRotorHealth, c.settings.TailRotorHealth}
	for i, ws := range weakspots {
		if i >= len(rotorHealth) {
			break
		}
		logErr("weakspot", ws.SetHealth(ctx, rotorHealth[i]))
	}

	logErr("rocket delay", p.SetRocketDelay(ctx, c.settings.RocketDelay))
	logErr("max crates", p.SetMaxCrates(ctx, c.settings.CrateAmount))
	logErr("interest zone", p.SetInterestZone(ctx, enc.zone))
	logErr("exit state", p.ExitCurrentState(ctx))
}

func (c *Controller) reconsider(enc *encounter) {
	if c.cur != enc || c.state != StateActive {
		return
	}
	ctx := context.Background()

	if !enc.patrol.Exists(ctx) {
		c.teardown(ctx, ReasonGone)
		return
	}

	if enc.patrol.HasTarget(ctx) {
		c.debugLog("patrol engaged, keeping current directive", "encounter", enc.id)
		return
	}

	if err := enc.patrol.MoveTo(ctx, enc.zone); err != nil {
		slog.Warn("steer patrol helicopter", "patrolID", enc.patrol.ID(), "error", err)
	}
}

// teardown ends the current encounter. Idempotent: returns false without side
// effects when idle or already tearing down.
func (c *Controller) teardown(ctx context.Context, reason TeardownReason) bool {
	if c.state == StateIdle || c.state == StateTearingDown || c.cur == nil {
		return false
	}
	enc := c.cur
	c.state = StateTearingDown

	ctx, span := tracer.Start(ctx, "encounter.Teardown")
	defer span.End()
	span.SetAttributes(
		attribute.String("encounter.id", enc.id.String()),
		attribute.String("reason", string(reason)),
	)

	for _, t := range []scheduler.Timer{enc.warmupTimer, enc.reconsiderTimer, enc.expiryTimer} {
		if t != nil {
			t.Stop()
		}
	}

	if enc.signal != nil {
		if err := enc.signal.Kill(ctx); err != nil {
			slog.Error("kill pending patrol signal", "signalID", enc.signal.ID(), "error", err)
		}
	}

	if enc.patrol != nil && enc.patrol.Exists(ctx) {
		if err := enc.patrol.Retire(ctx); err != nil {
			slog.Warn("retire patrol helicopter", "patrolID", enc.patrol.ID(), "error", err)
		}
		if err := enc.patrol.Kill(ctx); err != nil {
			slog.Error("kill patrol helicopter", "patrolID", enc.patrol.ID(), "error", err)
		}
	}

	enc.guard.Release(ctx)

	c.cur = nil
	c.state = StateIdle

	slog.Info("patrol helicopter leaving the area",
		"encounter", enc.id,
		"reason", reason)
	if c.deps.Ended != nil {
		c.deps.Ended(ctx, reason)
	}
	return true
}

func (c *Controller) refund(ctx context.Context, player model.Player) {
	if err := c.deps.Signals.GiveSignal(ctx, player); err != nil {
		slog.Error("refund patrol signal", "playerID", player.ID, "error", err)
	}
}

func (c *Controller) debugLog(msg string, args ...any) {
	if c.settings.Debug {
		slog.Debug(msg, args...)
	}
}

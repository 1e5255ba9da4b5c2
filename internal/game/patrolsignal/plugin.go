// Package patrolsignal is the patrol signal plugin: it owns the cooldown ledger,
// access gate, encounter controller and loot injector, and exposes the host hooks
// and commands that drive them.
package patrolsignal

import (
	"context"
	"errors"
	"log/slog"

	"github.com/udisondev/patrolsignal/internal/command"
	"github.com/udisondev/patrolsignal/internal/config"
	"github.com/udisondev/patrolsignal/internal/game/access"
	"github.com/udisondev/patrolsignal/internal/game/cooldown"
	"github.com/udisondev/patrolsignal/internal/game/encounter"
	"github.com/udisondev/patrolsignal/internal/game/loot"
	"github.com/udisondev/patrolsignal/internal/i18n"
	"github.com/udisondev/patrolsignal/internal/model"
	"github.com/udisondev/patrolsignal/internal/scheduler"
)

// Options are the collaborators of a Plugin.
type Options struct {
	Host Host
	// Blocks is the raid/combat block service. nil fails open.
	Blocks    access.BlockChecker
	Scheduler scheduler.Scheduler
	Store     cooldown.Store
	Catalog   *i18n.Catalog
	Config    config.Plugin
	// Roller overrides the loot roll source. nil uses math/rand/v2.
	Roller loot.Roller
}

// Plugin is the patrol signal plugin.
//
// Not safe for concurrent use: every hook runs on the scheduler loop.
type Plugin struct {
	host    Host
	sched   scheduler.Scheduler
	catalog *i18n.Catalog
	cfg     config.Plugin

	ledger *cooldown.Ledger
	gate   *access.Gate
	ctrl   *encounter.Controller
	loot   *loot.Injector
	cmds   *command.Handler
}

// New wires a plugin. Call Init before delivering host events.
func New(opts Options) *Plugin {
	p := &Plugin{
		host:    opts.Host,
		sched:   opts.Scheduler,
		catalog: opts.Catalog,
		cfg:     opts.Config,
		cmds:    command.NewHandler(),
	}

	p.ledger = cooldown.NewLedger(opts.Store, opts.Scheduler, windows(opts.Config))
	p.gate = access.NewGate(opts.Host, opts.Blocks, p.ledger, gateOptions(opts.Config))
	p.ctrl = encounter.NewController(encounter.Deps{
		Scheduler: opts.Scheduler,
		Spawner:   opts.Host,
		Flags:     opts.Host,
		Cooldowns: p.ledger,
		Notifier:  p,
		Signals:   p,
		Ended: func(ctx context.Context, _ encounter.TeardownReason) {
			p.announce(ctx, "DestroyingPatrol")
		},
	}, encounterSettings(opts.Config))
	p.loot = loot.NewInjector(lootSettings(opts.Config), opts.Roller)

	cmd := &heliSignalCommand{p: p}
	p.cmds.RegisterChat(cmd)
	p.cmds.RegisterConsole(&heliSignalConsoleCommand{p: p})

	return p
}

// ApplyConfig replaces the tunables of every component.
// A running encounter keeps the settings it started with.
func (p *Plugin) ApplyConfig(cfg config.Plugin) {
	p.cfg = cfg
	p.ledger.SetWindows(windows(cfg))
	p.gate.SetOptions(gateOptions(cfg))
	p.ctrl.SetSettings(encounterSettings(cfg))
	p.loot.SetSettings(lootSettings(cfg))
}

// Config returns the active configuration.
func (p *Plugin) Config() config.Plugin {
	return p.cfg
}

// Init loads the cooldown ledger. Unreadable data starts an empty ledger.
func (p *Plugin) Init(ctx context.Context) error {
	if err := p.ledger.Load(ctx); err != nil {
		return err
	}
	p.debugLog("plugin initialized", "cooldowns", p.ledger.Len())
	return nil
}

// OnServerInitialized registers permissions and commands with a freshly connected host.
func (p *Plugin) OnServerInitialized(ctx context.Context) error {
	for _, perm := range []string{access.PermissionUse, access.PermissionVIP, access.PermissionAdmin} {
		if err := p.host.RegisterPermission(ctx, perm); err != nil {
			return err
		}
	}
	if err := p.host.RegisterCommands(ctx, p.cmds.ChatNames(), p.cmds.ConsoleNames()); err != nil {
		return err
	}
	slog.Info("host initialized",
		"version", p.cfg.Version.String(),
		"activeCooldowns", p.ledger.Len())
	return nil
}

// OnExplosiveThrown handles any thrown explosive; only patrol signals are acted on.
func (p *Plugin) OnExplosiveThrown(ctx context.Context, t Throw) {
	p.debugLog("explosive thrown", "player", t.Player.Name, "shortname", t.Shortname)
	if !p.isPatrolSignal(t) {
		return
	}
	p.debugLog("patrol signal detected", "player", t.Player.Name, "signalID", t.Signal.ID())

	d := p.gate.Evaluate(ctx, t.Player)
	if !d.Allowed() {
		p.debugLog("patrol signal denied",
			"player", t.Player.Name,
			"decision", d.Kind.String(),
			"remainingMinutes", d.RemainingMinutes)
		p.Notify(ctx, t.Player, d.MessageKey(), d.MessageArgs()...)
		p.rejectSignal(ctx, t, d.Refunds())
		return
	}

	err := p.ctrl.RequestActivation(ctx, encounter.Request{
		Player:   t.Player,
		Position: t.Player.Position,
		Signal:   t.Signal,
	})
	if errors.Is(err, encounter.ErrEncounterActive) {
		p.debugLog("patrol signal rejected, encounter underway", "player", t.Player.Name)
	} else if err != nil {
		slog.Error("request patrol activation", "player", t.Player.Name, "error", err)
	}
}

// OnContainerLootable runs when a player may loot a container.
func (p *Plugin) OnContainerLootable(ctx context.Context, c loot.Container) {
	p.loot.OnContainerEvaluated(ctx, c)
}

// OnEntityKilled runs when any entity is destroyed on the host.
func (p *Plugin) OnEntityKilled(_ context.Context, entityID uint64) {
	p.loot.OnContainerDestroyed(entityID)
}

// OnServerSave prunes expired cooldowns and persists the ledger.
func (p *Plugin) OnServerSave(ctx context.Context) error {
	if _, err := p.ledger.PruneExpired(ctx); err != nil {
		return err
	}
	return p.ledger.Save(ctx)
}

// Unload tears down any running encounter and saves the ledger.
func (p *Plugin) Unload(ctx context.Context) error {
	p.ctrl.Shutdown(ctx)
	return p.ledger.Save(ctx)
}

// Commands returns the command handler for chat and console input.
func (p *Plugin) Commands() *command.Handler {
	return p.cmds
}

// Status returns the running encounter, if any.
func (p *Plugin) Status() (encounter.Status, bool) {
	return p.ctrl.Status()
}

// Notify sends a localized message to the player.
func (p *Plugin) Notify(ctx context.Context, player model.Player, key string, args ...any) {
	if key == "" {
		return
	}
	text := p.catalog.Message(player.Language, key, args...)
	if err := p.host.SendChat(ctx, player.ID, text); err != nil {
		slog.Error("send chat message",
			"playerID", player.ID,
			"key", key,
			"error", err)
	}
}

// GiveSignal hands the player one configured patrol signal.
func (p *Plugin) GiveSignal(ctx context.Context, player model.Player) error {
	return p.host.GiveItem(ctx, player.ID, p.signalItem())
}

// announce writes a localized message to the server console.
func (p *Plugin) announce(ctx context.Context, key string) {
	text := p.catalog.Message("", key)
	if err := p.host.Log(ctx, text); err != nil {
		slog.Error("write server console", "key", key, "error", err)
	}
}

func (p *Plugin) isPatrolSignal(t Throw) bool {
	if t.Signal == nil || t.Shortname != model.SignalShortname {
		return false
	}
	return t.Signal.SkinID() == p.cfg.Signal.SkinID
}

// rejectSignal removes a denied throw, handing a fresh signal back when refund is set.
func (p *Plugin) rejectSignal(ctx context.Context, t Throw, refund bool) {
	if refund {
		if err := p.GiveSignal(ctx, t.Player); err != nil {
			slog.Error("return patrol signal", "playerID", t.Player.ID, "error", err)
		}
	}
	if err := t.Signal.Kill(ctx); err != nil {
		slog.Error("kill denied patrol signal", "signalID", t.Signal.ID(), "error", err)
	}
}

func (p *Plugin) signalItem() model.ItemSpec {
	return model.NewSignalItem(p.cfg.Signal.SkinID, p.cfg.Signal.DisplayName)
}

func (p *Plugin) debugLog(msg string, args ...any) {
	if p.cfg.Debug {
		slog.Debug(msg, args...)
	}
}

func windows(cfg config.Plugin) cooldown.Windows {
	return cooldown.Windows{
		Standard: cfg.Signal.CooldownDuration(),
		VIP:      cfg.Signal.VIPCooldownDuration(),
	}
}

func gateOptions(cfg config.Plugin) access.Options {
	return access.Options{
		CheckRaidBlock:   cfg.BlockDuringRaid,
		CheckCombatBlock: cfg.BlockDuringNoEscape,
	}
}

func encounterSettings(cfg config.Plugin) encounter.Settings {
	return encounter.Settings{
		Warmup:          cfg.Signal.WarmupDuration(),
		Duration:        cfg.Patrol.DurationTime(),
		Health:          cfg.Patrol.Health,
		MainRotorHealth: cfg.Patrol.MainRotorHealth,
		TailRotorHealth: cfg.Patrol.TailRotorHealth,
		RocketDelay:     cfg.Patrol.RocketDelay,
		CrateAmount:     cfg.Patrol.CrateAmount,
		Debug:           cfg.Debug,
	}
}

func lootSettings(cfg config.Plugin) loot.Settings {
	return loot.Settings{
		Enabled: cfg.Loot.Enabled,
		Chances: cfg.Loot.Containers,
		Item:    model.NewSignalItem(cfg.Signal.SkinID, cfg.Signal.DisplayName),
	}
}

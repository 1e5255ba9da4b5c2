package patrolsignal

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/udisondev/patrolsignal/internal/game/access"
	"github.com/udisondev/patrolsignal/internal/model"
)

// CommandName is the chat and console command of the plugin.
const CommandName = "helisignal"

// heliSignalCommand handles chat "/helisignal [reset [player] | despawn | status]".
// Without arguments it gives the caller a signal; subcommands require admin permission.
type heliSignalCommand struct {
	p *Plugin
}

func (c *heliSignalCommand) Names() []string { return []string{CommandName} }

func (c *heliSignalCommand) Handle(ctx context.Context, player model.Player, args []string) error {
	p := c.p
	if len(args) == 0 {
		return p.giveSignalCommand(ctx, player)
	}

	if !p.host.HasPermission(ctx, player.ID, access.PermissionAdmin) {
		p.Notify(ctx, player, "NotAllowed")
		return nil
	}

	switch strings.ToLower(args[0]) {
	case "reset":
		return p.resetCommand(ctx, player, args[1:])
	case "despawn":
		if !p.ctrl.Despawn(ctx) {
			p.Notify(ctx, player, "NoActiveHeli")
			return nil
		}
		p.Notify(ctx, player, "HeliDespawned")
	case "status":
		p.statusCommand(ctx, player)
	default:
		p.debugLog("unknown helisignal subcommand", "player", player.Name, "sub", args[0])
	}
	return nil
}

// heliSignalConsoleCommand handles console "helisignal": gives the invoking player a signal.
// Issued from the server console itself (no player) it does nothing.
type heliSignalConsoleCommand struct {
	p *Plugin
}

func (c *heliSignalConsoleCommand) Names() []string { return []string{CommandName} }

func (c *heliSignalConsoleCommand) Handle(ctx context.Context, player model.Player, _ []string) error {
	if player.ID == 0 {
		return nil
	}
	return c.p.giveSignalCommand(ctx, player)
}

func (p *Plugin) giveSignalCommand(ctx context.Context, player model.Player) error {
	if !p.host.HasPermission(ctx, player.ID, access.PermissionUse) {
		p.Notify(ctx, player, "NotAllowed")
		return nil
	}
	if err := p.GiveSignal(ctx, player); err != nil {
		return fmt.Errorf("give patrol signal to %d: %w", player.ID, err)
	}
	p.Notify(ctx, player, "ReceivedHeliSignal")
	return nil
}

func (p *Plugin) resetCommand(ctx context.Context, player model.Player, args []string) error {
	if len(args) == 0 {
		if err := p.ledger.Reset(ctx, player.ID); err != nil {
			return fmt.Errorf("reset cooldown of %d: %w", player.ID, err)
		}
		p.Notify(ctx, player, "CooldownReset")
		return nil
	}

	target, found, err := p.host.FindPlayer(ctx, args[0])
	if err != nil {
		return fmt.Errorf("find player %q: %w", args[0], err)
	}
	if !found {
		p.Notify(ctx, player, "InvalidPlayer")
		return nil
	}
	if err := p.ledger.Reset(ctx, target.ID); err != nil {
		return fmt.Errorf("reset cooldown of %d: %w", target.ID, err)
	}
	p.Notify(ctx, player, "CooldownResetTarget", target.Name)
	return nil
}

func (p *Plugin) statusCommand(ctx context.Context, player model.Player) {
	st, ok := p.ctrl.Status()
	if !ok {
		p.Notify(ctx, player, "NoActiveHeli")
		return
	}

	leaves := "-"
	if !st.ExpiresAt.IsZero() {
		leaves = humanize.RelTime(st.ExpiresAt, p.sched.Now(), "ago", "from now")
	}
	id := st.ID
	if len(id) > 8 {
		id = id[:8]
	}
	p.Notify(ctx, player, "PatrolStatus", id, st.Player.Name, st.State.String(), leaves)
}

// Package access decides whether a player may call a patrol with a signal.
package access

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/udisondev/patrolsignal/internal/model"
)

// Permission names registered by the plugin.
const (
	PermissionUse   = "simplepatrolsignal.use"
	PermissionVIP   = "simplepatrolsignal.vip"
	PermissionAdmin = "simplepatrolsignal.admin"
)

// Permissions answers permission queries for players.
type Permissions interface {
	HasPermission(ctx context.Context, playerID uint64, perm string) bool
}

// BlockChecker is the external raid/combat block service.
// Returns ErrServiceUnavailable when the service is not loaded.
type BlockChecker interface {
	IsRaidBlocked(ctx context.Context, player model.Player) (bool, error)
	IsCombatBlocked(ctx context.Context, player model.Player) (bool, error)
}

// CooldownView is the read side of the cooldown ledger.
type CooldownView interface {
	IsOnCooldown(playerID uint64, vip bool) bool
	Remaining(playerID uint64, vip bool) float64
}

// Options toggles the optional block checks.
type Options struct {
	CheckRaidBlock   bool
	CheckCombatBlock bool
}

// Gate composes permission, block and cooldown checks into one decision.
type Gate struct {
	perms     Permissions
	blocks    BlockChecker // nil when no block service is configured
	cooldowns CooldownView
	opts      Options
}

// NewGate creates an access gate. blocks may be nil.
func NewGate(perms Permissions, blocks BlockChecker, cooldowns CooldownView, opts Options) *Gate {
	return &Gate{
		perms:     perms,
		blocks:    blocks,
		cooldowns: cooldowns,
		opts:      opts,
	}
}

// SetOptions replaces the block-check toggles (config reload).
func (g *Gate) SetOptions(opts Options) {
	g.opts = opts
}

// Evaluate runs the checks in fixed order and stops at the first denial:
// permission, raid block, combat block, cooldown.
func (g *Gate) Evaluate(ctx context.Context, player model.Player) Decision {
	ctx, span := otel.Tracer("patrolsignal/access").Start(ctx, "access.Evaluate")
	defer span.End()

	d := g.evaluate(ctx, player)
	span.SetAttributes(
		attribute.String("player.id", player.IDString()),
		attribute.String("decision", d.Kind.String()),
	)
	return d
}

func (g *Gate) evaluate(ctx context.Context, player model.Player) Decision {
	if !g.perms.HasPermission(ctx, player.ID, PermissionUse) {
		return Decision{Kind: DeniedNoPermission}
	}

	warned := false
	failOpen := func(check string, err error) {
		if warned {
			return
		}
		warned = true
		if errors.Is(err, ErrServiceUnavailable) {
			slog.Warn("block-check service is not loaded, treating player as not blocked",
				"check", check, "player", player.Name)
			return
		}
		slog.Warn("block-check service failed, treating player as not blocked",
			"check", check, "player", player.Name, "error", err)
	}

	if g.opts.CheckRaidBlock {
		if g.blocks == nil {
			failOpen("raid", ErrServiceUnavailable)
		} else if blocked, err := g.blocks.IsRaidBlocked(ctx, player); err != nil {
			failOpen("raid", err)
		} else if blocked {
			return Decision{Kind: DeniedRaidBlocked}
		}
	}

	if g.opts.CheckCombatBlock {
		if g.blocks == nil {
			failOpen("combat", ErrServiceUnavailable)
		} else if blocked, err := g.blocks.IsCombatBlocked(ctx, player); err != nil {
			failOpen("combat", err)
		} else if blocked {
			return Decision{Kind: DeniedCombatBlocked}
		}
	}

	vip := g.perms.HasPermission(ctx, player.ID, PermissionVIP)
	if g.cooldowns.IsOnCooldown(player.ID, vip) {
		remaining := g.cooldowns.Remaining(player.ID, vip)
		return Decision{
			Kind:             DeniedOnCooldown,
			RemainingMinutes: int(math.Ceil(remaining / 60.0)),
			VIP:              vip,
		}
	}

	return Decision{Kind: Allowed}
}

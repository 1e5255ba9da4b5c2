package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/patrolsignal/internal/game/access"
	"github.com/udisondev/patrolsignal/internal/game/encounter"
	"github.com/udisondev/patrolsignal/internal/game/loot"
	"github.com/udisondev/patrolsignal/internal/game/patrolsignal"
	"github.com/udisondev/patrolsignal/internal/model"
)

// Host call names.
const (
	CallPermissionRegister = "permission.register"
	CallPermissionHas      = "permission.has"
	CallCommandRegister    = "command.register"
	CallChatSend           = "chat.send"
	CallItemGive           = "item.give"
	CallPlayerFind         = "player.find"
	CallServerLog          = "server.log"

	CallPatrolSpawn            = "patrol.spawn"
	CallPatrolExists           = "patrol.exists"
	CallPatrolInitializeHealth = "patrol.initialize_health"
	CallPatrolWeakspots        = "patrol.weakspots"
	CallWeakspotSetHealth      = "patrol.weakspot.set_health"
	CallPatrolSetRocketDelay   = "patrol.set_rocket_delay"
	CallPatrolSetMaxCrates     = "patrol.set_max_crates"
	CallPatrolSetInterestZone  = "patrol.set_interest_zone"
	CallPatrolExitState        = "patrol.exit_state"
	CallPatrolMoveTo           = "patrol.move_to"
	CallPatrolHasTarget        = "patrol.has_target"
	CallPatrolRetire           = "patrol.retire"
	CallPatrolKill             = "patrol.kill"

	CallFlagsGet = "flags.get"
	CallFlagsSet = "flags.set"

	CallSignalCancelExplode = "signal.cancel_explode"
	CallSignalKillAfter     = "signal.kill_after"
	CallSignalKill          = "signal.kill"

	CallContainerAddItem = "container.add_item"

	CallRaidBlocked   = "noescape.is_raid_blocked"
	CallCombatBlocked = "noescape.is_combat_blocked"
)

type permissionArgs struct {
	PlayerID   uint64 `json:"player_id,omitempty"`
	Permission string `json:"permission"`
}

type commandsArgs struct {
	Chat    []string `json:"chat"`
	Console []string `json:"console"`
}

type chatArgs struct {
	PlayerID uint64 `json:"player_id"`
	Text     string `json:"text"`
}

type giveArgs struct {
	PlayerID uint64         `json:"player_id"`
	Item     model.ItemSpec `json:"item"`
}

type findArgs struct {
	Query string `json:"query"`
}

type findResult struct {
	Found  bool         `json:"found"`
	Player model.Player `json:"player"`
}

type logArgs struct {
	Text string `json:"text"`
}

type positionArgs struct {
	EntityID uint64       `json:"entity_id,omitempty"`
	Position model.Vector `json:"position"`
}

type entityArgs struct {
	EntityID uint64 `json:"entity_id"`
}

type entityResult struct {
	EntityID uint64 `json:"entity_id"`
}

type valueArgs struct {
	EntityID uint64  `json:"entity_id"`
	Index    int     `json:"index,omitempty"`
	Value    float64 `json:"value"`
}

type countResult struct {
	Count int `json:"count"`
}

type boolResult struct {
	Value bool `json:"value"`
}

type itemArgs struct {
	EntityID uint64         `json:"entity_id"`
	Item     model.ItemSpec `json:"item"`
}

type blockArgs struct {
	PlayerID uint64 `json:"player_id"`
}

type blockResult struct {
	Loaded  bool `json:"loaded"`
	Blocked bool `json:"blocked"`
}

var (
	_ patrolsignal.Host   = (*Remote)(nil)
	_ access.BlockChecker = (*Remote)(nil)
	_ encounter.Patrol    = (*remotePatrol)(nil)
	_ encounter.Signal    = (*remoteSignal)(nil)
	_ loot.Container      = (*remoteContainer)(nil)
)

// Remote is the connected host. Every method fails with ErrNotConnected while
// no host session is open.
type Remote struct {
	srv *Server
}

func (r *Remote) call(ctx context.Context, name string, args, result any) error {
	c := r.srv.current()
	if c == nil {
		return fmt.Errorf("%s: %w", name, ErrNotConnected)
	}
	return c.Call(ctx, name, args, result)
}

// HasPermission reports false when the lookup fails.
func (r *Remote) HasPermission(ctx context.Context, playerID uint64, perm string) bool {
	var res boolResult
	if err := r.call(ctx, CallPermissionHas, permissionArgs{PlayerID: playerID, Permission: perm}, &res); err != nil {
		slog.Error("permission lookup", "playerID", playerID, "permission", perm, "error", err)
		return false
	}
	return res.Value
}

func (r *Remote) RegisterPermission(ctx context.Context, perm string) error {
	return r.call(ctx, CallPermissionRegister, permissionArgs{Permission: perm}, nil)
}

func (r *Remote) RegisterCommands(ctx context.Context, chat, console []string) error {
	return r.call(ctx, CallCommandRegister, commandsArgs{Chat: chat, Console: console}, nil)
}

func (r *Remote) SendChat(ctx context.Context, playerID uint64, text string) error {
	return r.call(ctx, CallChatSend, chatArgs{PlayerID: playerID, Text: text}, nil)
}

func (r *Remote) GiveItem(ctx context.Context, playerID uint64, item model.ItemSpec) error {
	return r.call(ctx, CallItemGive, giveArgs{PlayerID: playerID, Item: item}, nil)
}

func (r *Remote) FindPlayer(ctx context.Context, query string) (model.Player, bool, error) {
	var res findResult
	if err := r.call(ctx, CallPlayerFind, findArgs{Query: query}, &res); err != nil {
		return model.Player{}, false, err
	}
	return res.Player, res.Found, nil
}

func (r *Remote) Log(ctx context.Context, text string) error {
	return r.call(ctx, CallServerLog, logArgs{Text: text}, nil)
}

func (r *Remote) SpawnPatrol(ctx context.Context, pos model.Vector) (encounter.Patrol, error) {
	var res entityResult
	if err := r.call(ctx, CallPatrolSpawn, positionArgs{Position: pos}, &res); err != nil {
		return nil, err
	}
	if res.EntityID == 0 {
		return nil, fmt.Errorf("%s: %w: no entity returned", CallPatrolSpawn, ErrRemote)
	}
	return &remotePatrol{r: r, id: res.EntityID}, nil
}

func (r *Remote) Flags(ctx context.Context) (encounter.Flags, error) {
	var f encounter.Flags
	err := r.call(ctx, CallFlagsGet, nil, &f)
	return f, err
}

func (r *Remote) SetFlags(ctx context.Context, f encounter.Flags) error {
	return r.call(ctx, CallFlagsSet, f, nil)
}

// IsRaidBlocked returns access.ErrServiceUnavailable when the host has no block plugin loaded.
func (r *Remote) IsRaidBlocked(ctx context.Context, player model.Player) (bool, error) {
	return r.blocked(ctx, CallRaidBlocked, player)
}

// IsCombatBlocked returns access.ErrServiceUnavailable when the host has no block plugin loaded.
func (r *Remote) IsCombatBlocked(ctx context.Context, player model.Player) (bool, error) {
	return r.blocked(ctx, CallCombatBlocked, player)
}

func (r *Remote) blocked(ctx context.Context, name string, player model.Player) (bool, error) {
	var res blockResult
	if err := r.call(ctx, name, blockArgs{PlayerID: player.ID}, &res); err != nil {
		return false, err
	}
	if !res.Loaded {
		return false, access.ErrServiceUnavailable
	}
	return res.Blocked, nil
}

func (r *Remote) signal(id, skin uint64) *remoteSignal {
	return &remoteSignal{r: r, id: id, skin: skin}
}

func (r *Remote) container(id uint64, prefab string) *remoteContainer {
	return &remoteContainer{r: r, id: id, prefab: prefab}
}

type remotePatrol struct {
	r  *Remote
	id uint64
}

func (p *remotePatrol) ID() uint64 { return p.id }

func (p *remotePatrol) Exists(ctx context.Context) bool {
	var res boolResult
	if err := p.r.call(ctx, CallPatrolExists, entityArgs{EntityID: p.id}, &res); err != nil {
		slog.Error("patrol exists", "entityID", p.id, "error", err)
		return false
	}
	return res.Value
}

func (p *remotePatrol) InitializeHealth(ctx context.Context, health float64) error {
	return p.r.call(ctx, CallPatrolInitializeHealth, valueArgs{EntityID: p.id, Value: health}, nil)
}

func (p *remotePatrol) Weakspots(ctx context.Context) ([]encounter.Weakspot, error) {
	var res countResult
	if err := p.r.call(ctx, CallPatrolWeakspots, entityArgs{EntityID: p.id}, &res); err != nil {
		return nil, err
	}
	spots := make([]encounter.Weakspot, 0, res.Count)
	for i := range res.Count {
		spots = append(spots, &remoteWeakspot{p: p, index: i})
	}
	return spots, nil
}

func (p *remotePatrol) SetRocketDelay(ctx context.Context, seconds float64) error {
	return p.r.call(ctx, CallPatrolSetRocketDelay, valueArgs{EntityID: p.id, Value: seconds}, nil)
}

func (p *remotePatrol) SetMaxCrates(ctx context.Context, n int) error {
	return p.r.call(ctx, CallPatrolSetMaxCrates, valueArgs{EntityID: p.id, Value: float64(n)}, nil)
}

func (p *remotePatrol) SetInterestZone(ctx context.Context, zone model.Vector) error {
	return p.r.call(ctx, CallPatrolSetInterestZone, positionArgs{EntityID: p.id, Position: zone}, nil)
}

func (p *remotePatrol) ExitCurrentState(ctx context.Context) error {
	return p.r.call(ctx, CallPatrolExitState, entityArgs{EntityID: p.id}, nil)
}

func (p *remotePatrol) MoveTo(ctx context.Context, pos model.Vector) error {
	return p.r.call(ctx, CallPatrolMoveTo, positionArgs{EntityID: p.id, Position: pos}, nil)
}

func (p *remotePatrol) HasTarget(ctx context.Context) bool {
	var res boolResult
	if err := p.r.call(ctx, CallPatrolHasTarget, entityArgs{EntityID: p.id}, &res); err != nil {
		slog.Error("patrol target lookup", "entityID", p.id, "error", err)
		return false
	}
	return res.Value
}

func (p *remotePatrol) Retire(ctx context.Context) error {
	return p.r.call(ctx, CallPatrolRetire, entityArgs{EntityID: p.id}, nil)
}

func (p *remotePatrol) Kill(ctx context.Context) error {
	return p.r.call(ctx, CallPatrolKill, entityArgs{EntityID: p.id}, nil)
}

type remoteWeakspot struct {
	p     *remotePatrol
	index int
}

func (w *remoteWeakspot) SetHealth(ctx context.Context, health float64) error {
	return w.p.r.call(ctx, CallWeakspotSetHealth,
		valueArgs{EntityID: w.p.id, Index: w.index, Value: health}, nil)
}

type remoteSignal struct {
	r    *Remote
	id   uint64
	skin uint64
}

func (s *remoteSignal) ID() uint64     { return s.id }
func (s *remoteSignal) SkinID() uint64 { return s.skin }

func (s *remoteSignal) CancelExplode(ctx context.Context) error {
	return s.r.call(ctx, CallSignalCancelExplode, entityArgs{EntityID: s.id}, nil)
}

func (s *remoteSignal) KillAfter(ctx context.Context, d time.Duration) error {
	return s.r.call(ctx, CallSignalKillAfter, valueArgs{EntityID: s.id, Value: d.Seconds()}, nil)
}

func (s *remoteSignal) Kill(ctx context.Context) error {
	return s.r.call(ctx, CallSignalKill, entityArgs{EntityID: s.id}, nil)
}

type remoteContainer struct {
	r      *Remote
	id     uint64
	prefab string
}

func (c *remoteContainer) ID() uint64         { return c.id }
func (c *remoteContainer) PrefabName() string { return c.prefab }

func (c *remoteContainer) AddItem(ctx context.Context, item model.ItemSpec) error {
	return c.r.call(ctx, CallContainerAddItem, itemArgs{EntityID: c.id, Item: item}, nil)
}

package patrolsignal

import (
	"context"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/patrolsignal/internal/config"
	"github.com/udisondev/patrolsignal/internal/game/access"
	"github.com/udisondev/patrolsignal/internal/game/cooldown"
	"github.com/udisondev/patrolsignal/internal/game/encounter"
	"github.com/udisondev/patrolsignal/internal/i18n"
	"github.com/udisondev/patrolsignal/internal/model"
	"github.com/udisondev/patrolsignal/internal/scheduler"
	"github.com/udisondev/patrolsignal/internal/testutil"
)

const skin = 3332447426

var (
	alice = model.Player{ID: 76561198000000001, Name: "Alice", Position: model.NewVector(100, 0, 200)}
	bob   = model.Player{ID: 76561198000000002, Name: "Bob", Position: model.NewVector(-50, 0, 10)}
	carol = model.Player{ID: 76561198000000003, Name: "Carol"}
	admin = model.Player{ID: 76561198000000004, Name: "Admin"}
	ivan  = model.Player{ID: 76561198000000005, Name: "Ivan", Language: "ru"}
)

// memStore is an in-memory cooldown.Store.
type memStore struct {
	mu      sync.Mutex
	entries map[uint64]time.Time
	saves   int
	loadErr error
}

func (s *memStore) Load(context.Context) (map[uint64]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return maps.Clone(s.entries), nil
}

func (s *memStore) Save(_ context.Context, entries map[uint64]time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = maps.Clone(entries)
	s.saves++
	return nil
}

func (s *memStore) has(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

type fixedRoller float64

func (r fixedRoller) Float64() float64 { return float64(r) }

type harness struct {
	t       *testing.T
	ctx     context.Context
	host    *testutil.FakeHost
	clock   *scheduler.Manual
	store   *memStore
	catalog *i18n.Catalog
	plugin  *Plugin
}

func newHarness(t *testing.T, mutate ...func(*config.Plugin)) *harness {
	t.Helper()

	cfg := config.DefaultPlugin()
	for _, m := range mutate {
		m(&cfg)
	}

	catalog, err := i18n.New()
	require.NoError(t, err)

	host := testutil.NewFakeHost()
	host.AddPlayer(alice, access.PermissionUse)
	host.AddPlayer(bob, access.PermissionUse, access.PermissionVIP)
	host.AddPlayer(carol)
	host.AddPlayer(admin, access.PermissionUse, access.PermissionAdmin)
	host.AddPlayer(ivan)

	h := &harness{
		t:       t,
		ctx:     testutil.Context(t),
		host:    host,
		clock:   scheduler.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		store:   &memStore{},
		catalog: catalog,
	}
	h.plugin = New(Options{
		Host:      host,
		Blocks:    host,
		Scheduler: h.clock,
		Store:     h.store,
		Catalog:   catalog,
		Config:    cfg,
		Roller:    fixedRoller(0),
	})
	require.NoError(t, h.plugin.Init(h.ctx))
	return h
}

func (h *harness) msg(key string, args ...any) string {
	return h.catalog.Message("en", key, args...)
}

func (h *harness) throw(p model.Player, signalSkin uint64) *testutil.FakeSignal {
	sig := testutil.NewFakeSignal(uint64(len(h.host.Patrols())+500), signalSkin)
	h.plugin.OnExplosiveThrown(h.ctx, Throw{Player: p, Shortname: model.SignalShortname, Signal: sig})
	return sig
}

func (h *harness) chat(p model.Player, text string) {
	require.True(h.t, h.plugin.Commands().HandleChatText(h.ctx, p, text))
}

func (h *harness) activate(p model.Player) *testutil.FakePatrol {
	h.t.Helper()
	h.throw(p, skin)
	h.clock.Advance(5 * time.Second)
	patrols := h.host.Patrols()
	require.NotEmpty(h.t, patrols)
	return patrols[len(patrols)-1]
}

func TestPlugin_ActivationScenario(t *testing.T) {
	h := newHarness(t)

	sig := h.throw(alice, skin)
	assert.True(t, sig.ExplodeCanceled)
	assert.Equal(t, 30*time.Second, sig.KillDelay)
	assert.Empty(t, h.host.Patrols(), "no spawn before warmup")

	h.clock.Advance(5 * time.Second)

	patrols := h.host.Patrols()
	require.Len(t, patrols, 1)
	patrol := patrols[0]
	assert.Equal(t, model.NewVector(100, 60, 700), patrol.Position)
	assert.Equal(t, alice.Position, patrol.InterestZone)
	assert.Equal(t, 10000.0, patrol.Health)
	assert.Equal(t, []float64{900, 500}, patrol.RotorHealth())
	assert.Equal(t, 0.25, patrol.RocketDelay)
	assert.Equal(t, 6, patrol.MaxCrates)
	assert.True(t, sig.IsKilled())

	assert.Equal(t, h.msg("PatrolCalled"), h.host.LastChat(alice.ID))
	assert.True(t, h.store.has(alice.ID), "cooldown persisted on activation")

	flags, _ := h.host.GlobalFlags()
	assert.Equal(t, encounter.Flags{}, flags, "global flags overridden while active")

	h.clock.Advance(30 * time.Minute)

	assert.True(t, patrol.Retired)
	assert.True(t, patrol.Killed)
	flags, writes := h.host.GlobalFlags()
	assert.Equal(t, encounter.Flags{UseDangerZones: true, MonumentCrash: true}, flags)
	assert.Equal(t, 2, writes)
	assert.Equal(t, []string{h.msg("DestroyingPatrol")}, h.host.ConsoleLog())
	_, running := h.plugin.Status()
	assert.False(t, running)
}

func TestPlugin_IgnoresOtherThrows(t *testing.T) {
	h := newHarness(t)

	grenade := testutil.NewFakeSignal(1, skin)
	h.plugin.OnExplosiveThrown(h.ctx, Throw{Player: alice, Shortname: "grenade.f1", Signal: grenade})
	plain := h.throw(alice, 0)
	h.plugin.OnExplosiveThrown(h.ctx, Throw{Player: alice, Shortname: model.SignalShortname})

	h.clock.Advance(time.Minute)

	assert.Empty(t, h.host.Patrols())
	assert.Empty(t, h.host.Chats(alice.ID))
	assert.False(t, grenade.IsKilled())
	assert.False(t, plain.IsKilled())
	assert.False(t, plain.ExplodeCanceled, "vanilla supply signal keeps its airdrop")
}

func TestPlugin_Denials(t *testing.T) {
	tests := []struct {
		name   string
		player model.Player
		setup  func(h *harness)
		want   string
		refund bool
	}{
		{
			name:   "no permission",
			player: carol,
			want:   "NotAllowed",
			refund: true,
		},
		{
			name:   "raid blocked",
			player: alice,
			setup:  func(h *harness) { h.host.SetBlocked(alice.ID, true, false) },
			want:   "RaidBlocked",
			refund: true,
		},
		{
			name:   "combat blocked",
			player: alice,
			setup:  func(h *harness) { h.host.SetBlocked(alice.ID, false, true) },
			want:   "NoEscapeBlocked",
			refund: true,
		},
		{
			name:   "raid wins over combat",
			player: alice,
			setup:  func(h *harness) { h.host.SetBlocked(alice.ID, true, true) },
			want:   "RaidBlocked",
			refund: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(h)
			}

			sig := h.throw(tt.player, skin)
			h.clock.Advance(time.Minute)

			assert.Equal(t, []string{h.msg(tt.want)}, h.host.Chats(tt.player.ID))
			if tt.refund {
				assert.Equal(t, []model.ItemSpec{model.NewSignalItem(skin, "Patrol Heli Signal")},
					h.host.Given(tt.player.ID), "denied signal is refunded")
			} else {
				assert.Empty(t, h.host.Given(tt.player.ID))
			}
			assert.True(t, sig.IsKilled())
			assert.False(t, sig.ExplodeCanceled)
			assert.Empty(t, h.host.Patrols())
			assert.False(t, h.store.has(tt.player.ID))
		})
	}
}

func TestPlugin_BlockChecksDisabled(t *testing.T) {
	h := newHarness(t, func(c *config.Plugin) {
		c.BlockDuringRaid = false
		c.BlockDuringNoEscape = false
	})
	h.host.SetBlocked(alice.ID, true, true)

	h.activate(alice)
	assert.Equal(t, h.msg("PatrolCalled"), h.host.LastChat(alice.ID))
}

func TestPlugin_BlockServiceDownFailsOpen(t *testing.T) {
	h := newHarness(t)
	h.host.SetBlocksError(access.ErrServiceUnavailable)

	h.activate(alice)
	assert.Equal(t, h.msg("PatrolCalled"), h.host.LastChat(alice.ID))
}

func TestPlugin_CooldownDenial(t *testing.T) {
	tests := []struct {
		name   string
		player model.Player
		want   keyArgs
	}{
		{"standard", alice, msgKey("CooldownActive", 50)},
		{"vip", bob, msgKey("VIPCooldownActive", 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.activate(tt.player)
			h.chat(admin, "helisignal despawn")

			h.clock.Advance(10 * time.Minute)
			sig := h.throw(tt.player, skin)

			assert.Equal(t, h.msg(tt.want.key, tt.want.args...), h.host.LastChat(tt.player.ID))
			assert.True(t, sig.IsKilled())
			assert.Len(t, h.host.Given(tt.player.ID), 1, "refund")
			assert.Len(t, h.host.Patrols(), 1)
		})
	}
}

type keyArgs struct {
	key  string
	args []any
}

func msgKey(key string, args ...any) keyArgs { return keyArgs{key: key, args: args} }

func TestPlugin_SecondActivationRejected(t *testing.T) {
	h := newHarness(t)
	h.activate(alice)

	sig := h.throw(bob, skin)
	h.clock.Advance(time.Minute)

	assert.Len(t, h.host.Patrols(), 1)
	assert.Equal(t, h.msg("HeliSignalActive"), h.host.LastChat(bob.ID))
	assert.Len(t, h.host.Given(bob.ID), 1)
	assert.True(t, sig.IsKilled())
	assert.False(t, h.store.has(bob.ID), "rejected request does not start a cooldown")
}

func TestPlugin_SpawnFailureRefunds(t *testing.T) {
	h := newHarness(t)
	h.host.SetSpawnError(testutil.ErrSimulated)

	h.throw(alice, skin)
	h.clock.Advance(5 * time.Second)

	assert.Equal(t, h.msg("SpawnFailed"), h.host.LastChat(alice.ID))
	assert.Len(t, h.host.Given(alice.ID), 1)
	assert.False(t, h.store.has(alice.ID))
	flags, writes := h.host.GlobalFlags()
	assert.Equal(t, encounter.Flags{UseDangerZones: true, MonumentCrash: true}, flags)
	assert.Equal(t, 2, writes)

	// A later attempt works once the host recovers.
	h.host.SetSpawnError(nil)
	h.activate(alice)
	assert.Equal(t, h.msg("PatrolCalled"), h.host.LastChat(alice.ID))
}

func TestPlugin_PatrolShotDown(t *testing.T) {
	h := newHarness(t)
	patrol := h.activate(alice)

	patrol.Destroy()
	h.clock.Advance(encounter.ReconsiderInterval)

	_, running := h.plugin.Status()
	assert.False(t, running)
	flags, _ := h.host.GlobalFlags()
	assert.Equal(t, encounter.Flags{UseDangerZones: true, MonumentCrash: true}, flags)
	assert.False(t, patrol.Killed, "a destroyed patrol is not killed again")

	h.activate(bob)
	assert.Len(t, h.host.Patrols(), 2)
}

func TestPlugin_LocalizedMessages(t *testing.T) {
	h := newHarness(t)

	h.throw(ivan, skin)

	assert.Equal(t, []string{h.catalog.Message("ru", "NotAllowed")}, h.host.Chats(ivan.ID))
	assert.NotEqual(t, h.msg("NotAllowed"), h.host.LastChat(ivan.ID))
}

func TestPlugin_Loot(t *testing.T) {
	h := newHarness(t)

	heli := testutil.NewFakeContainer(1, "heli_crate")
	tools := testutil.NewFakeContainer(2, "crate_tools")

	h.plugin.OnContainerLootable(h.ctx, heli)
	h.plugin.OnContainerLootable(h.ctx, heli)
	h.plugin.OnContainerLootable(h.ctx, tools)

	assert.Equal(t, []model.ItemSpec{model.NewSignalItem(skin, "Patrol Heli Signal")}, heli.Items())
	assert.Empty(t, tools.Items())
	assert.Equal(t, 2, h.plugin.loot.Processed())

	h.plugin.OnEntityKilled(h.ctx, 1)
	h.plugin.OnEntityKilled(h.ctx, 2)
	assert.Equal(t, 0, h.plugin.loot.Processed())
}

func TestPlugin_LootDisabled(t *testing.T) {
	h := newHarness(t, func(c *config.Plugin) { c.Loot.Enabled = false })

	heli := testutil.NewFakeContainer(1, "heli_crate")
	h.plugin.OnContainerLootable(h.ctx, heli)
	assert.Empty(t, heli.Items())
}

func TestPlugin_OnServerInitialized(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.plugin.OnServerInitialized(h.ctx))

	assert.Equal(t, []string{
		access.PermissionUse, access.PermissionVIP, access.PermissionAdmin,
	}, h.host.Registered())
	chat, console := h.host.Commands()
	assert.Equal(t, []string{CommandName}, chat)
	assert.Equal(t, []string{CommandName}, console)
}

func TestPlugin_UnloadTearsDown(t *testing.T) {
	h := newHarness(t)
	patrol := h.activate(alice)
	saves := h.store.saves

	require.NoError(t, h.plugin.Unload(h.ctx))

	assert.True(t, patrol.Killed)
	flags, _ := h.host.GlobalFlags()
	assert.Equal(t, encounter.Flags{UseDangerZones: true, MonumentCrash: true}, flags)
	assert.Greater(t, h.store.saves, saves)
	assert.Equal(t, 0, h.clock.PendingCount(), "no timers survive unload")
}

func TestPlugin_UnloadDuringWarmup(t *testing.T) {
	h := newHarness(t)
	sig := h.throw(alice, skin)

	require.NoError(t, h.plugin.Unload(h.ctx))
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.host.Patrols())
	assert.True(t, sig.IsKilled())
	_, writes := h.host.GlobalFlags()
	assert.Equal(t, 0, writes, "flags never touched before spawn")
}

func TestPlugin_ServerSavePrunes(t *testing.T) {
	h := newHarness(t)
	h.activate(alice)
	require.NoError(t, h.plugin.Unload(h.ctx))
	require.True(t, h.store.has(alice.ID))

	h.clock.Advance(2 * time.Hour)
	require.NoError(t, h.plugin.OnServerSave(h.ctx))

	assert.False(t, h.store.has(alice.ID))
}

func TestPlugin_InitWithCorruptStore(t *testing.T) {
	h := newHarness(t)
	h.store.loadErr = cooldown.ErrCorrupt

	require.NoError(t, h.plugin.Init(h.ctx))
	h.activate(alice)
	assert.Equal(t, h.msg("PatrolCalled"), h.host.LastChat(alice.ID))
}

func TestPlugin_ApplyConfig(t *testing.T) {
	h := newHarness(t)
	h.activate(alice)
	require.NoError(t, h.plugin.Unload(h.ctx))

	cfg := config.DefaultPlugin()
	cfg.Signal.Cooldown = 60
	cfg.Signal.Warmup = 1
	h.plugin.ApplyConfig(cfg)
	assert.Equal(t, 60.0, h.plugin.Config().Signal.Cooldown)

	h.clock.Advance(61 * time.Second)
	h.throw(alice, skin)
	h.clock.Advance(time.Second)
	assert.Len(t, h.host.Patrols(), 2)
}

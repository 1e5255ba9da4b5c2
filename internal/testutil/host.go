package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/udisondev/patrolsignal/internal/game/access"
	"github.com/udisondev/patrolsignal/internal/game/encounter"
	"github.com/udisondev/patrolsignal/internal/model"
)

// Chat is a message sent to a player through FakeHost.
type Chat struct {
	PlayerID uint64
	Text     string
}

// FakeHost is an in-memory game server. It satisfies every host-facing
// interface of the plugin and records what was asked of it.
// Safe for concurrent use.
type FakeHost struct {
	mu sync.Mutex

	perms       map[uint64]map[string]bool
	players     map[uint64]model.Player
	registered  []string
	chatCmds    []string
	consoleCmds []string
	chats       []Chat
	given       map[uint64][]model.ItemSpec
	consoleLog  []string

	flags      encounter.Flags
	flagWrites int

	nextID   uint64
	patrols  []*FakePatrol
	spawnErr error
	spawnPos []model.Vector

	raidBlocked   map[uint64]bool
	combatBlocked map[uint64]bool
	blocksErr     error
}

// NewFakeHost creates a host with both global flags set.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		perms:         make(map[uint64]map[string]bool),
		players:       make(map[uint64]model.Player),
		given:         make(map[uint64][]model.ItemSpec),
		flags:         encounter.Flags{UseDangerZones: true, MonumentCrash: true},
		nextID:        1000,
		raidBlocked:   make(map[uint64]bool),
		combatBlocked: make(map[uint64]bool),
	}
}

// AddPlayer makes a player findable and grants perms.
func (h *FakeHost) AddPlayer(p model.Player, perms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[p.ID] = p
	if h.perms[p.ID] == nil {
		h.perms[p.ID] = make(map[string]bool)
	}
	for _, perm := range perms {
		h.perms[p.ID][perm] = true
	}
}

// SetBlocked marks a player raid and/or combat blocked.
func (h *FakeHost) SetBlocked(playerID uint64, raid, combat bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.raidBlocked[playerID] = raid
	h.combatBlocked[playerID] = combat
}

// SetBlocksError makes block checks fail with err.
func (h *FakeHost) SetBlocksError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocksErr = err
}

// SetSpawnError makes the next spawns fail with err (nil restores).
func (h *FakeHost) SetSpawnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.spawnErr = err
}

// SetGlobalFlags overrides the current flag values.
func (h *FakeHost) SetGlobalFlags(f encounter.Flags) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flags = f
}

// --- encounter.Spawner / GlobalFlags ---

func (h *FakeHost) SpawnPatrol(_ context.Context, pos model.Vector) (encounter.Patrol, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.spawnPos = append(h.spawnPos, pos)
	if h.spawnErr != nil {
		return nil, h.spawnErr
	}
	h.nextID++
	p := &FakePatrol{id: h.nextID, alive: true, Position: pos, weakspots: []*FakeWeakspot{{}, {}}}
	h.patrols = append(h.patrols, p)
	return p, nil
}

func (h *FakeHost) Flags(context.Context) (encounter.Flags, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flags, nil
}

func (h *FakeHost) SetFlags(_ context.Context, f encounter.Flags) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flags = f
	h.flagWrites++
	return nil
}

// --- access.Permissions / BlockChecker ---

func (h *FakeHost) HasPermission(_ context.Context, playerID uint64, perm string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.perms[playerID][perm]
}

func (h *FakeHost) IsRaidBlocked(_ context.Context, p model.Player) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.blocksErr != nil {
		return false, h.blocksErr
	}
	return h.raidBlocked[p.ID], nil
}

func (h *FakeHost) IsCombatBlocked(_ context.Context, p model.Player) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.blocksErr != nil {
		return false, h.blocksErr
	}
	return h.combatBlocked[p.ID], nil
}

// --- plugin host ---

func (h *FakeHost) RegisterPermission(_ context.Context, perm string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered = append(h.registered, perm)
	return nil
}

func (h *FakeHost) RegisterCommands(_ context.Context, chat, console []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chatCmds = append([]string(nil), chat...)
	h.consoleCmds = append([]string(nil), console...)
	return nil
}

func (h *FakeHost) SendChat(_ context.Context, playerID uint64, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chats = append(h.chats, Chat{PlayerID: playerID, Text: text})
	return nil
}

func (h *FakeHost) GiveItem(_ context.Context, playerID uint64, item model.ItemSpec) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.given[playerID] = append(h.given[playerID], item)
	return nil
}

func (h *FakeHost) FindPlayer(_ context.Context, query string) (model.Player, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, err := strconv.ParseUint(query, 10, 64); err == nil {
		p, ok := h.players[id]
		return p, ok, nil
	}
	for _, p := range h.players {
		if p.Name == query {
			return p, true, nil
		}
	}
	return model.Player{}, false, nil
}

func (h *FakeHost) Log(_ context.Context, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consoleLog = append(h.consoleLog, text)
	return nil
}

// --- inspection ---

// Registered returns the permissions registered so far.
func (h *FakeHost) Registered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.registered...)
}

// Commands returns the chat and console commands registered so far.
func (h *FakeHost) Commands() (chat, console []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.chatCmds...), append([]string(nil), h.consoleCmds...)
}

// Chats returns every message sent to playerID.
func (h *FakeHost) Chats(playerID uint64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, c := range h.chats {
		if c.PlayerID == playerID {
			out = append(out, c.Text)
		}
	}
	return out
}

// LastChat returns the latest message sent to playerID, "" if none.
func (h *FakeHost) LastChat(playerID uint64) string {
	msgs := h.Chats(playerID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// Given returns the items handed to playerID.
func (h *FakeHost) Given(playerID uint64) []model.ItemSpec {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.ItemSpec(nil), h.given[playerID]...)
}

// ConsoleLog returns the lines written to the server console.
func (h *FakeHost) ConsoleLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.consoleLog...)
}

// GlobalFlags returns the current flags and how many times they were written.
func (h *FakeHost) GlobalFlags() (encounter.Flags, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flags, h.flagWrites
}

// Patrols returns every patrol spawned so far.
func (h *FakeHost) Patrols() []*FakePatrol {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*FakePatrol(nil), h.patrols...)
}

// SpawnPositions returns the requested spawn positions.
func (h *FakeHost) SpawnPositions() []model.Vector {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Vector(nil), h.spawnPos...)
}

var (
	_ access.Permissions    = (*FakeHost)(nil)
	_ access.BlockChecker   = (*FakeHost)(nil)
	_ encounter.Spawner     = (*FakeHost)(nil)
	_ encounter.GlobalFlags = (*FakeHost)(nil)
)

// FakePatrol is a patrol helicopter on FakeHost.
type FakePatrol struct {
	mu sync.Mutex

	id        uint64
	alive     bool
	target    bool
	weakspots []*FakeWeakspot

	Position     model.Vector
	Health       float64
	RocketDelay  float64
	MaxCrates    int
	InterestZone model.Vector
	Moves        int
	Retired      bool
	Killed       bool
}

func (p *FakePatrol) ID() uint64 { return p.id }

func (p *FakePatrol) Exists(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *FakePatrol) InitializeHealth(_ context.Context, health float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Health = health
	return nil
}

func (p *FakePatrol) Weakspots(context.Context) ([]encounter.Weakspot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]encounter.Weakspot, len(p.weakspots))
	for i, w := range p.weakspots {
		out[i] = w
	}
	return out, nil
}

func (p *FakePatrol) SetRocketDelay(_ context.Context, seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RocketDelay = seconds
	return nil
}

func (p *FakePatrol) SetMaxCrates(_ context.Context, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MaxCrates = n
	return nil
}

func (p *FakePatrol) SetInterestZone(_ context.Context, zone model.Vector) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.InterestZone = zone
	return nil
}

func (p *FakePatrol) ExitCurrentState(context.Context) error { return nil }

func (p *FakePatrol) MoveTo(context.Context, model.Vector) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Moves++
	return nil
}

func (p *FakePatrol) HasTarget(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *FakePatrol) Retire(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Retired = true
	return nil
}

func (p *FakePatrol) Kill(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Killed = true
	p.alive = false
	return nil
}

// Destroy simulates the patrol being shot down.
func (p *FakePatrol) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

// SetTarget simulates the patrol engaging (or losing) a target.
func (p *FakePatrol) SetTarget(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = v
}

// RotorHealth returns the health set on each weakspot.
func (p *FakePatrol) RotorHealth() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.weakspots))
	for i, w := range p.weakspots {
		out[i] = w.Health
	}
	return out
}

// FakeWeakspot is a patrol rotor.
type FakeWeakspot struct {
	Health float64
}

func (w *FakeWeakspot) SetHealth(_ context.Context, health float64) error {
	w.Health = health
	return nil
}

// FakeSignal is a thrown supply signal.
type FakeSignal struct {
	mu sync.Mutex

	id   uint64
	skin uint64

	ExplodeCanceled bool
	KillDelay       time.Duration
	Killed          bool
}

// NewFakeSignal creates a thrown signal with the given skin.
func NewFakeSignal(id, skin uint64) *FakeSignal {
	return &FakeSignal{id: id, skin: skin}
}

func (s *FakeSignal) ID() uint64     { return s.id }
func (s *FakeSignal) SkinID() uint64 { return s.skin }

func (s *FakeSignal) CancelExplode(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExplodeCanceled = true
	return nil
}

func (s *FakeSignal) KillAfter(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.KillDelay = d
	return nil
}

func (s *FakeSignal) Kill(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Killed = true
	return nil
}

// IsKilled reports whether Kill was called.
func (s *FakeSignal) IsKilled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Killed
}

// FakeContainer is a loot container.
type FakeContainer struct {
	mu sync.Mutex

	id     uint64
	prefab string
	items  []model.ItemSpec
}

// NewFakeContainer creates an empty container.
func NewFakeContainer(id uint64, prefab string) *FakeContainer {
	return &FakeContainer{id: id, prefab: prefab}
}

func (c *FakeContainer) ID() uint64         { return c.id }
func (c *FakeContainer) PrefabName() string { return c.prefab }

func (c *FakeContainer) AddItem(_ context.Context, item model.ItemSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
	return nil
}

// Items returns what was added to the container.
func (c *FakeContainer) Items() []model.ItemSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ItemSpec(nil), c.items...)
}

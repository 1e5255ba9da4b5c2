// Package loot adds patrol signals to loot containers by configured chance.
package loot

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/udisondev/patrolsignal/internal/model"
)

// Container is a lootable container on the host.
type Container interface {
	ID() uint64
	// PrefabName is the short prefab name, e.g. "crate_elite".
	PrefabName() string
	// AddItem grows the container by one slot and places the item in it.
	AddItem(ctx context.Context, item model.ItemSpec) error
}

// Roller returns uniform random values in [0, 1).
type Roller interface {
	Float64() float64
}

// globalRoller draws from math/rand/v2's global source.
type globalRoller struct{}

func (globalRoller) Float64() float64 { return rand.Float64() }

// Settings controls injection.
type Settings struct {
	Enabled bool
	// Chances maps container prefab name → drop chance in percent (0..100).
	Chances map[string]float64
	// Item is the stack placed into a winning container.
	Item model.ItemSpec
}

// Injector rolls each live container at most once.
//
// Not safe for concurrent use: all calls happen on the scheduler loop.
type Injector struct {
	settings  Settings
	roller    Roller
	processed map[uint64]struct{} // container IDs already rolled
}

// NewInjector creates an injector. roller may be nil to use math/rand/v2.
func NewInjector(settings Settings, roller Roller) *Injector {
	if roller == nil {
		roller = globalRoller{}
	}
	return &Injector{
		settings:  settings,
		roller:    roller,
		processed: make(map[uint64]struct{}, 256),
	}
}

// SetSettings replaces the injection settings (config reload).
func (inj *Injector) SetSettings(s Settings) {
	inj.settings = s
}

// OnContainerEvaluated runs when a player may loot a container. It never vetoes
// looting; it only may add one signal the first time a container is seen.
// Returns true when an item was added.
func (inj *Injector) OnContainerEvaluated(ctx context.Context, c Container) bool {
	if c == nil || !inj.settings.Enabled {
		return false
	}

	id := c.ID()
	if _, seen := inj.processed[id]; seen {
		return false
	}
	inj.processed[id] = struct{}{}

	chance, ok := inj.settings.Chances[c.PrefabName()]
	if !ok {
		return false
	}

	roll := inj.roller.Float64() * 100
	if roll > chance {
		return false
	}

	if err := c.AddItem(ctx, inj.settings.Item); err != nil {
		slog.Error("add patrol signal to container",
			"containerID", id,
			"prefab", c.PrefabName(),
			"error", err)
		return false
	}

	slog.Debug("patrol signal added to container",
		"containerID", id,
		"prefab", c.PrefabName(),
		"roll", roll,
		"chance", chance)
	return true
}

// OnContainerDestroyed forgets a container so the processed set only holds live ones.
func (inj *Injector) OnContainerDestroyed(containerID uint64) {
	delete(inj.processed, containerID)
}

// Processed returns the number of live containers already rolled.
func (inj *Injector) Processed() int {
	return len(inj.processed)
}

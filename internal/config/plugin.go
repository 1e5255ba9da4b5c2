package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed plugin.schema.json
var pluginSchemaJSON string

var pluginSchema = jsonschema.MustCompileString("plugin.schema.json", pluginSchemaJSON)

// CurrentVersion is the configuration layout version written by this build.
// Older documents are reconciled on load.
var CurrentVersion = Version{Major: 1, Minor: 2, Patch: 0}

// Version is a semantic version triple.
type Version struct {
	Major int `yaml:"major"`
	Minor int `yaml:"minor"`
	Patch int `yaml:"patch"`
}

// Less reports whether v precedes o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Plugin holds the tunables of the patrol signal plugin.
type Plugin struct {
	Version             Version        `yaml:"version"`
	Signal              SignalSettings `yaml:"signal"`
	Patrol              PatrolSettings `yaml:"patrol"`
	Loot                LootSettings   `yaml:"loot"`
	BlockDuringRaid     bool           `yaml:"block_during_raid"`
	BlockDuringNoEscape bool           `yaml:"block_during_combat_block"`
	Debug               bool           `yaml:"debug"`
}

// SignalSettings describes the signal item. Times are in seconds.
type SignalSettings struct {
	SkinID      uint64  `yaml:"skin_id"`
	DisplayName string  `yaml:"display_name"`
	Warmup      float64 `yaml:"warmup"`
	Cooldown    float64 `yaml:"cooldown"`
	VIPCooldown float64 `yaml:"vip_cooldown"`
}

// PatrolSettings configures the spawned patrol. Times are in seconds.
type PatrolSettings struct {
	Duration        float64 `yaml:"duration"`
	Health          float64 `yaml:"health"`
	MainRotorHealth float64 `yaml:"main_rotor_health"`
	TailRotorHealth float64 `yaml:"tail_rotor_health"`
	CrateAmount     int     `yaml:"crate_amount"`
	RocketDelay     float64 `yaml:"rocket_delay"`
}

// LootSettings maps container prefab names to drop chance in percent.
type LootSettings struct {
	Enabled    bool               `yaml:"enabled"`
	Containers map[string]float64 `yaml:"containers"`
}

// WarmupDuration returns the delay between throw and spawn.
func (s SignalSettings) WarmupDuration() time.Duration { return seconds(s.Warmup) }

// CooldownDuration returns the standard cooldown window.
func (s SignalSettings) CooldownDuration() time.Duration { return seconds(s.Cooldown) }

// VIPCooldownDuration returns the VIP cooldown window.
func (s SignalSettings) VIPCooldownDuration() time.Duration { return seconds(s.VIPCooldown) }

// DurationTime returns how long a patrol stays before it is torn down.
func (p PatrolSettings) DurationTime() time.Duration { return seconds(p.Duration) }

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func defaultContainers() map[string]float64 {
	return map[string]float64{
		"crate_normal":   5,
		"crate_normal_2": 5,
		"crate_elite":    10,
		"heli_crate":     15,
		"bradley_crate":  15,
	}
}

// DefaultPlugin returns the plugin config with its default values.
func DefaultPlugin() Plugin {
	return Plugin{
		Version: CurrentVersion,
		Signal: SignalSettings{
			SkinID:      3332447426,
			DisplayName: "Patrol Heli Signal",
			Warmup:      5,
			Cooldown:    3600,
			VIPCooldown: 1800,
		},
		Patrol: PatrolSettings{
			Duration:        1800,
			Health:          10000,
			MainRotorHealth: 900,
			TailRotorHealth: 500,
			CrateAmount:     6,
			RocketDelay:     0.25,
		},
		Loot: LootSettings{
			Enabled:    true,
			Containers: defaultContainers(),
		},
		BlockDuringRaid:     true,
		BlockDuringNoEscape: true,
	}
}

// LoadPlugin loads plugin config from a YAML file.
//
// A missing file is created with defaults. A document older than
// CurrentVersion gets its cooldowns and block toggles reset to defaults,
// its version bumped, and is written back.
func LoadPlugin(path string) (Plugin, error) {
	cfg := DefaultPlugin()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := SavePlugin(path, cfg); err != nil {
			return cfg, err
		}
		slog.Info("default plugin configuration created", "path", path)
		return cfg, nil
	}

	cfg, err = ParsePlugin(data)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	if cfg.Version.Less(CurrentVersion) {
		from := cfg.Version
		cfg.Reconcile()
		slog.Warn("merging new configuration keys into existing config",
			"path", path,
			"from", from.String(),
			"to", cfg.Version.String())
		if err := SavePlugin(path, cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// ParsePlugin decodes and validates a YAML plugin document.
// Keys absent from the document keep their default values, except version
// which reads as 0.0.0.
func ParsePlugin(data []byte) (Plugin, error) {
	cfg := DefaultPlugin()

	if err := validateDocument(data); err != nil {
		return cfg, err
	}

	// yaml.v3 merges into a non-nil map; start empty so the document
	// fully replaces the container table. A document without a version
	// predates versioning and is reconciled.
	cfg.Loot.Containers = nil
	cfg.Version = Version{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultPlugin(), fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if cfg.Loot.Containers == nil {
		cfg.Loot.Containers = defaultContainers()
	}
	return cfg, nil
}

// Reconcile resets the fields whose meaning changed between versions and
// stamps CurrentVersion.
func (p *Plugin) Reconcile() {
	def := DefaultPlugin()
	p.Signal.Cooldown = def.Signal.Cooldown
	p.Signal.VIPCooldown = def.Signal.VIPCooldown
	p.BlockDuringRaid = true
	p.BlockDuringNoEscape = true
	p.Version = CurrentVersion
}

// SavePlugin writes cfg as YAML, creating parent directories.
func SavePlugin(path string, cfg Plugin) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// validateDocument checks a YAML document against the embedded schema.
// The document is re-encoded as JSON so numbers reach the validator as json.Number.
func validateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if doc == nil {
		return nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := pluginSchema.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

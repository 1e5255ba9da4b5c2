package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Service holds process-level configuration of the patrol signal service.
type Service struct {
	// Host bridge listener
	BindAddress string `yaml:"bind_address" env:"PATROLSIGNAL_BIND_ADDRESS"`
	Port        int    `yaml:"port" env:"PATROLSIGNAL_PORT"`
	BridgePath  string `yaml:"bridge_path" env:"PATROLSIGNAL_BRIDGE_PATH"`
	// BridgeToken, when set, must be sent by the host in the X-Bridge-Token header.
	BridgeToken   string `yaml:"bridge_token" env:"PATROLSIGNAL_BRIDGE_TOKEN"`
	CallTimeoutMS int    `yaml:"call_timeout_ms" env:"PATROLSIGNAL_CALL_TIMEOUT_MS"`

	LogLevel     string `yaml:"log_level" env:"PATROLSIGNAL_LOG_LEVEL"`
	DataDir      string `yaml:"data_dir" env:"PATROLSIGNAL_DATA_DIR"`
	PluginConfig string `yaml:"plugin_config" env:"PATROLSIGNAL_PLUGIN_CONFIG"`
	SaveInterval int    `yaml:"save_interval" env:"PATROLSIGNAL_SAVE_INTERVAL"` // seconds

	Store StoreConfig `yaml:"store"`

	// OTelEndpoint enables OTLP/HTTP tracing when non-empty (URL, e.g. http://localhost:4318).
	OTelEndpoint string `yaml:"otel_endpoint" env:"PATROLSIGNAL_OTEL_ENDPOINT"`
}

// StoreConfig selects where the cooldown ledger is persisted.
type StoreConfig struct {
	Backend string `yaml:"backend" env:"PATROLSIGNAL_STORE_BACKEND"`
	// Compress enables zstd for the file backend.
	Compress   bool           `yaml:"compress" env:"PATROLSIGNAL_STORE_COMPRESS"`
	SQLitePath string         `yaml:"sqlite_path" env:"PATROLSIGNAL_SQLITE_PATH"`
	Database   DatabaseConfig `yaml:"database" envPrefix:"PATROLSIGNAL_DB_"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultService returns Service config with sensible defaults.
func DefaultService() Service {
	return Service{
		BindAddress:   "127.0.0.1",
		Port:          7790,
		BridgePath:    "/bridge",
		CallTimeoutMS: 5000,
		LogLevel:      "info",
		DataDir:       "data",
		PluginConfig:  "config/SimplePatrolSignal.yaml",
		SaveInterval:  300,
		Store: StoreConfig{
			Backend:    BackendFile,
			SQLitePath: "data/patrolsignal.db",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "patrolsignal",
				Password: "patrolsignal",
				DBName:   "patrolsignal",
				SSLMode:  "disable",
			},
		},
	}
}

// LoadService loads service config from a YAML file and applies
// PATROLSIGNAL_* environment overrides.
// If the file doesn't exist, defaults are used.
func LoadService(path string) (Service, error) {
	cfg := DefaultService()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (s Service) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, s.Port)
	}
	switch s.Store.Backend {
	case BackendFile, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalid, s.Store.Backend)
	}
	if s.SaveInterval <= 0 {
		return fmt.Errorf("%w: save_interval must be positive", ErrInvalid)
	}
	if _, err := parseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Addr returns the bridge listen address.
func (s Service) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// SlogLevel returns the configured log level, info when unset.
func (s Service) SlogLevel() slog.Level {
	lvl, _ := parseLevel(s.LogLevel)
	return lvl
}

// CallTimeout returns the bridge RPC timeout.
func (s Service) CallTimeout() time.Duration {
	return time.Duration(s.CallTimeoutMS) * time.Millisecond
}

// SaveEvery returns the periodic ledger save interval.
func (s Service) SaveEvery() time.Duration {
	return time.Duration(s.SaveInterval) * time.Second
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

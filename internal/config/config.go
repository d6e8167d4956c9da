// Package config loads planq settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables consulted by Load.
const (
	EnvConfigPath = "PLANQ_CONFIG"
	EnvDSN        = "PLANQ_DSN"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the top-level configuration.
type Config struct {
	// Schema is an optional path to a CUE registry document replacing the
	// built-in CRM schema.
	Schema string `toml:"schema"`

	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Engine   EngineConfig   `toml:"engine"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string        `toml:"addr"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

// EngineConfig holds executor limits. Zero values mean the engine default.
type EngineConfig struct {
	Timeout               time.Duration `toml:"timeout"`
	MaxDepth              int           `toml:"max_depth"`
	SoftLimit             int           `toml:"soft_limit"`
	HardLimit             int           `toml:"hard_limit"`
	AggregationRowCeiling int           `toml:"aggregation_row_ceiling"`

	// CaseInsensitiveFields replaces the registry default when non-nil.
	CaseInsensitiveFields []string `toml:"case_insensitive_fields"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: DriverSQLite, DSN: "planq.db"},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Engine: EngineConfig{
			Timeout:               15 * time.Second,
			MaxDepth:              5,
			SoftLimit:             100,
			HardLimit:             1000,
			AggregationRowCeiling: 10000,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration from PLANQ_CONFIG, or from DefaultPath when
// unset. A missing file yields Default.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return finish(Default())
		}
		path = p
	}

	cfg, err := LoadFrom(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return finish(Default())
	}
	return cfg, err
}

// LoadFrom reads the configuration from a specific path. Keys not known to
// Config are rejected.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(path), cfg.Schema)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns ~/.config/planq/config.toml, honoring XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "planq", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "planq", "config.toml"), nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver: unsupported driver %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn: must not be empty")
	}
	if c.Engine.Timeout < 0 {
		return errors.New("engine.timeout: must not be negative")
	}
	if c.Engine.SoftLimit < 0 || c.Engine.HardLimit < 0 {
		return errors.New("engine limits must not be negative")
	}
	if c.Engine.SoftLimit > 0 && c.Engine.HardLimit > 0 && c.Engine.SoftLimit > c.Engine.HardLimit {
		return fmt.Errorf("engine.soft_limit (%d) exceeds engine.hard_limit (%d)", c.Engine.SoftLimit, c.Engine.HardLimit)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: unsupported format %q (want text or json)", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

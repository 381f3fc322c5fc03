// Package config loads server configuration from a TOML file with
// sensible defaults and environment overrides. A missing file is not an
// error; defaults apply.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Ticker TickerConfig `toml:"ticker"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

type StoreConfig struct {
	// Path to the SQLite database file. ":memory:" runs without
	// persistence across restarts.
	DBPath string `toml:"db_path"`
	// SeedFile optionally points to a settings JSON document applied on
	// first run, before any settings exist.
	SeedFile string `toml:"seed_file"`
}

type TickerConfig struct {
	Enabled    bool `toml:"enabled"`
	IntervalMs int  `toml:"interval_ms"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Store:  StoreConfig{DBPath: "./shifts.db"},
		Ticker: TickerConfig{Enabled: true, IntervalMs: 1000},
	}
}

// Load reads the config at path. An empty path or missing file yields
// defaults (plus env overrides).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHIFT_ENGINE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SHIFT_ENGINE_DB"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("SHIFT_ENGINE_SEED"); v != "" {
		cfg.Store.SeedFile = v
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "THERMO_"
	envConfigFile = "THERMO_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if THERMO_CONFIG is set
//  3. env (prefix THERMO_)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// THERMO_SCAN_INTERVAL -> scan_interval. Keys are flat, so the delimiter
	// never appears in a variable name.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be used as given.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DataDir) == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case !oneOf(c.Role, RoleAll, RoleAPI, RoleWorker):
		return fmt.Errorf("%w: role %q is not one of all, api, worker", ErrInvalidConfig, c.Role)
	case !oneOf(c.QueueBackend, QueueMemory, QueueRedis):
		return fmt.Errorf("%w: queue_backend %q is not one of memory, redis", ErrInvalidConfig, c.QueueBackend)
	case c.Role != RoleAll && c.QueueBackend != QueueRedis:
		return fmt.Errorf("%w: role %q needs queue_backend redis", ErrInvalidConfig, c.Role)
	case !oneOf(c.DBDriver, "sqlite3", "postgres"):
		return fmt.Errorf("%w: db_driver %q is not one of sqlite3, postgres", ErrInvalidConfig, c.DBDriver)
	case !oneOf(c.LogFormat, "text", "json"):
		return fmt.Errorf("%w: log_format %q is not one of text, json", ErrInvalidConfig, c.LogFormat)
	case c.ScanInterval < 0 || c.StartupScanDelay < 0 || c.ClaimTTL < 0 || c.StatusTTL < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	case c.SchedulerEnabled && c.RunsWorkers() && c.ScanInterval < time.Second:
		return fmt.Errorf("%w: scan_interval must be at least 1s", ErrInvalidConfig)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

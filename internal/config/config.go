// Package config defines service configuration and how it is loaded.
//
// Values are layered: defaults from New, then an optional YAML file named by
// THERMO_CONFIG, then THERMO_* environment variables.
package config

import (
	"time"
)

// Process roles.
const (
	RoleAll    = "all"    // HTTP API and workers in one process
	RoleAPI    = "api"    // HTTP API only; workers run elsewhere
	RoleWorker = "worker" // workers and scheduler only
)

// Queue backends.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// Role selects which components this process runs.
	Role string `koanf:"role"`

	// DataDir is the watched directory uploads are written to.
	DataDir string `koanf:"data_dir"`
	// ScanInterval is the period of the directory scan.
	ScanInterval time.Duration `koanf:"scan_interval"`
	// StartupScanDelay delays the one-off scan made at start.
	StartupScanDelay time.Duration `koanf:"startup_scan_delay"`
	// ClaimTTL is the age after which a claimed file is enqueued again.
	// Zero disables recovery.
	ClaimTTL time.Duration `koanf:"claim_ttl"`
	// SchedulerEnabled turns the periodic scan on or off.
	SchedulerEnabled bool `koanf:"scheduler_enabled"`

	// WorkerCount sets the number of ETL workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueBackend is memory or redis.
	QueueBackend string `koanf:"queue_backend"`
	// QueueSize bounds the in-memory queue.
	QueueSize int `koanf:"queue_size"`
	// StatusTTL is how long task statuses are kept.
	StatusTTL time.Duration `koanf:"status_ttl"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"` //nolint:gosec // connection setting
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`
	// RedisConsumer names this worker's processing list. It must be stable
	// across restarts for unacknowledged tasks to be recovered; empty means
	// hostname-pid.
	RedisConsumer string `koanf:"redis_consumer"`

	// DBDriver is sqlite3 or postgres.
	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	// MaxUploadBytes caps POST /datasets bodies.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":8000",
		Role:             RoleAll,
		DataDir:          "data",
		ScanInterval:     60 * time.Second,
		StartupScanDelay: 5 * time.Second,
		ClaimTTL:         30 * time.Minute,
		SchedulerEnabled: true,
		WorkerCount:      2,
		QueueBackend:     QueueMemory,
		QueueSize:        1000,
		StatusTTL:        24 * time.Hour,
		RedisAddr:        "localhost:6379",
		RedisPrefix:      "thermo",
		DBDriver:         "sqlite3",
		DBDSN:            "thermo.db",
		MaxUploadBytes:   100 << 20,
	}
}

// RunsAPI reports whether this process serves HTTP.
func (c *Config) RunsAPI() bool { return c.Role == RoleAll || c.Role == RoleAPI }

// RunsWorkers reports whether this process runs workers and the scheduler.
func (c *Config) RunsWorkers() bool { return c.Role == RoleAll || c.Role == RoleWorker }

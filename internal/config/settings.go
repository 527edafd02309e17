package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Driver selects the remote store backend.
type Driver string

const (
	// DriverMySQL talks to a MySQL-compatible server (default).
	DriverMySQL Driver = "mysql"
	// DriverDolt opens an embedded Dolt database directory.
	DriverDolt Driver = "dolt"
	// DriverMemory keeps the remote in process. Useful for dry runs.
	DriverMemory Driver = "memory"
)

var validDrivers = map[Driver]bool{
	DriverMySQL:  true,
	DriverDolt:   true,
	DriverMemory: true,
}

// GetDriver retrieves the remote driver.
// Returns the configured driver, or DriverMySQL (default) if not set or invalid.
// Logs a warning to stderr if an invalid value is configured.
//
// Config key: remote.driver
// Valid values: mysql, dolt, memory
func GetDriver() Driver {
	value := GetString("remote.driver")
	if value == "" {
		return DriverMySQL
	}
	d := Driver(strings.ToLower(strings.TrimSpace(value)))
	if !validDrivers[d] {
		fmt.Fprintf(os.Stderr, "Warning: invalid remote.driver %q in config (valid: mysql, dolt, memory), using default 'mysql'\n", value)
		return DriverMySQL
	}
	return d
}

// LogLevel is the minimum level written by the logger.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

var validLogLevels = map[LogLevel]bool{
	LogDebug: true,
	LogInfo:  true,
	LogWarn:  true,
	LogError: true,
}

// GetLogLevel retrieves the log level, falling back to info with a warning.
//
// Config key: log.level
// Valid values: debug, info, warn, error
func GetLogLevel() LogLevel {
	value := GetString("log.level")
	if value == "" {
		return LogInfo
	}
	l := LogLevel(strings.ToLower(strings.TrimSpace(value)))
	if l == "warning" {
		l = LogWarn
	}
	if !validLogLevels[l] {
		fmt.Fprintf(os.Stderr, "Warning: invalid log.level %q in config (valid: debug, info, warn, error), using default 'info'\n", value)
		return LogInfo
	}
	return l
}

// Config is the typed view of all settings.
type Config struct {
	User    string
	Local   Local
	Remote  Remote
	Sync    Sync
	Points  Points
	Catalog Catalog
	Daemon  Daemon
	Log     Log
}

type Local struct {
	Path        string
	BusyTimeout time.Duration
}

type Remote struct {
	Driver Driver
	DSN    string
	// Path is the embedded Dolt directory when Driver is dolt.
	Path     string
	Database string
	Retry    Retry
}

type Retry struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	MaxAttempts     int
}

type Sync struct {
	Concurrency int
	PushEnabled bool
}

type Points struct {
	Daily   float64
	Cap     float64
	Floor   float64
	Ceiling float64
}

type Catalog struct {
	// Extra is an optional TOML file of additional foods.
	Extra string
}

type Daemon struct {
	Interval time.Duration
	// TriggerPath is a file whose modification starts a sync.
	TriggerPath string
	Debounce    time.Duration
}

type Log struct {
	Level LogLevel
	File  string
}

// Load returns the current settings. Initialize must have been called.
func Load() (*Config, error) {
	if v == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	cfg := &Config{
		User: strings.TrimSpace(GetString("user")),
		Local: Local{
			Path:        GetString("local.path"),
			BusyTimeout: GetDuration("local.busy-timeout"),
		},
		Remote: Remote{
			Driver:   GetDriver(),
			DSN:      GetString("remote.dsn"),
			Path:     GetString("remote.path"),
			Database: GetString("remote.database"),
			Retry: Retry{
				InitialInterval: GetDuration("remote.retry.initial-interval"),
				MaxInterval:     GetDuration("remote.retry.max-interval"),
				MaxElapsed:      GetDuration("remote.retry.max-elapsed"),
				MaxAttempts:     GetInt("remote.retry.max-attempts"),
			},
		},
		Sync: Sync{
			Concurrency: GetInt("sync.concurrency"),
			PushEnabled: GetBool("sync.push"),
		},
		Points: Points{
			Daily:   GetFloat64("points.daily"),
			Cap:     GetFloat64("points.cap"),
			Floor:   GetFloat64("points.floor"),
			Ceiling: GetFloat64("points.ceiling"),
		},
		Catalog: Catalog{Extra: GetString("catalog.extra")},
		Daemon: Daemon{
			Interval:    GetDuration("daemon.interval"),
			TriggerPath: GetString("daemon.trigger"),
			Debounce:    GetDuration("daemon.debounce"),
		},
		Log: Log{
			Level: GetLogLevel(),
			File:  GetString("log.file"),
		},
	}
	if cfg.Local.Path == "" {
		cfg.Local.Path = DefaultLocalPath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Local.Path == "" {
		return fmt.Errorf("local.path must be set")
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1, got %d", c.Sync.Concurrency)
	}
	if c.Remote.Retry.MaxAttempts < 1 {
		return fmt.Errorf("remote.retry.max-attempts must be at least 1, got %d", c.Remote.Retry.MaxAttempts)
	}
	if c.Points.Ceiling < c.Points.Floor {
		return fmt.Errorf("points.ceiling %v is below points.floor %v", c.Points.Ceiling, c.Points.Floor)
	}
	if c.Daemon.Interval <= 0 {
		return fmt.Errorf("daemon.interval must be positive")
	}
	return nil
}

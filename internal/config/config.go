// Package config loads mealsync settings from mealsync.yaml and the
// environment.
//
// Lookup order for the config file: $MEALSYNC_CONFIG, ./.mealsync/,
// $XDG_CONFIG_HOME/mealsync/ (or $HOME/.config/mealsync/). Every key can be
// overridden by an environment variable with the MEALSYNC_ prefix and dots
// replaced by underscores, e.g. MEALSYNC_REMOTE_DSN.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the base name of the config file.
const FileName = "mealsync.yaml"

var v *viper.Viper

// Initialize sets up the viper instance. It is safe to call more than once;
// each call starts from a clean state.
func Initialize() error {
	return InitializeWithFile("")
}

// InitializeWithFile is Initialize with an explicit config file, as given by
// the --config flag. An empty path searches the default locations.
func InitializeWithFile(path string) error {
	v = viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MEALSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = os.Getenv("MEALSYNC_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	for _, dir := range searchPaths() {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func searchPaths() []string {
	paths := []string{".mealsync"}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "mealsync"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mealsync"))
	}
	return paths
}

// DefaultLocalPath is where the device store lives unless configured.
func DefaultLocalPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "mealsync", "local.db")
	}
	return filepath.Join(".mealsync", "local.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user", "")
	v.SetDefault("json", false)

	v.SetDefault("local.path", DefaultLocalPath())
	v.SetDefault("local.busy-timeout", 5*time.Second)

	v.SetDefault("remote.driver", string(DriverMySQL))
	v.SetDefault("remote.dsn", "")
	v.SetDefault("remote.path", "")
	v.SetDefault("remote.database", "mealsync")
	v.SetDefault("remote.retry.initial-interval", 200*time.Millisecond)
	v.SetDefault("remote.retry.max-interval", 5*time.Second)
	v.SetDefault("remote.retry.max-elapsed", 30*time.Second)
	v.SetDefault("remote.retry.max-attempts", 5)

	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("sync.push", true)

	v.SetDefault("points.daily", 3.0)
	v.SetDefault("points.cap", 12.0)
	v.SetDefault("points.floor", 0.0)
	v.SetDefault("points.ceiling", 100.0)

	v.SetDefault("catalog.extra", "")

	v.SetDefault("daemon.interval", 15*time.Minute)
	v.SetDefault("daemon.trigger", "")
	v.SetDefault("daemon.debounce", 2*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 retrieves a float configuration value.
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a value for the rest of the process, as flags do.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

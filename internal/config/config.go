package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/fspec/internal/lockfile"
	"github.com/Iron-Ham/fspec/internal/logging"
)

// Config represents the complete fspec configuration
type Config struct {
	Locking   LockingConfig   `mapstructure:"locking"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// LockingConfig controls cross-process locking of project documents
type LockingConfig struct {
	// StaleAfterMs is how long a lock marker may go without a sign of life
	// before another process reclaims it (default: 10000)
	StaleAfterMs int `mapstructure:"stale_after_ms"`
	// RetryCount is the number of retries after the first acquisition attempt (default: 10)
	RetryCount int `mapstructure:"retry_count"`
	// MinBackoffMs is the sleep before the first retry; it doubles per retry (default: 50)
	MinBackoffMs int `mapstructure:"min_backoff_ms"`
	// MaxBackoffMs caps the sleep between retries (default: 500)
	MaxBackoffMs int `mapstructure:"max_backoff_ms"`
}

// LoggingConfig controls the debug log
type LoggingConfig struct {
	// Enabled turns on the debug log at <root>/.fspec/debug.log (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level written: debug, info, warn, error (default: info)
	Level string `mapstructure:"level"`
	// MaxSizeMB is the size at which the log is rotated (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// DashboardConfig controls the board command
type DashboardConfig struct {
	// RefreshIntervalMs is how often the board reloads without a file event (default: 2000)
	RefreshIntervalMs int `mapstructure:"refresh_interval_ms"`
	// Watch reloads the board as soon as a project document changes (default: true)
	Watch bool `mapstructure:"watch"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Locking: LockingConfig{
			StaleAfterMs: int(lockfile.DefaultStaleAfter / time.Millisecond),
			RetryCount:   lockfile.DefaultRetryCount,
			MinBackoffMs: int(lockfile.DefaultMinBackoff / time.Millisecond),
			MaxBackoffMs: int(lockfile.DefaultMaxBackoff / time.Millisecond),
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Dashboard: DashboardConfig{
			RefreshIntervalMs: 2000,
			Watch:             true,
		},
	}
}

// LockOptions converts the locking section into lock timing
func (c *LockingConfig) LockOptions() lockfile.Options {
	return lockfile.Options{
		StaleAfter: time.Duration(c.StaleAfterMs) * time.Millisecond,
		RetryCount: c.RetryCount,
		MinBackoff: time.Duration(c.MinBackoffMs) * time.Millisecond,
		MaxBackoff: time.Duration(c.MaxBackoffMs) * time.Millisecond,
	}
}

// Rotation returns the log rotation settings
func (c *LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
	}
}

// RefreshInterval returns the board refresh interval as a time.Duration
func (c *DashboardConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Locking defaults
	viper.SetDefault("locking.stale_after_ms", defaults.Locking.StaleAfterMs)
	viper.SetDefault("locking.retry_count", defaults.Locking.RetryCount)
	viper.SetDefault("locking.min_backoff_ms", defaults.Locking.MinBackoffMs)
	viper.SetDefault("locking.max_backoff_ms", defaults.Locking.MaxBackoffMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Dashboard defaults
	viper.SetDefault("dashboard.refresh_interval_ms", defaults.Dashboard.RefreshIntervalMs)
	viper.SetDefault("dashboard.watch", defaults.Dashboard.Watch)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fspec")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fspec"
	}
	return filepath.Join(home, ".config", "fspec")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "fspec.yaml")
}

// StateDir returns the per-project directory holding the debug log
func StateDir(root string) string {
	return filepath.Join(root, ".fspec")
}

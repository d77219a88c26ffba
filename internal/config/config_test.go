package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/fspec/internal/lockfile"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Locking defaults mirror the lock package
	if cfg.Locking.StaleAfterMs != 10000 {
		t.Errorf("Locking.StaleAfterMs = %d, want 10000", cfg.Locking.StaleAfterMs)
	}
	if cfg.Locking.RetryCount != 10 {
		t.Errorf("Locking.RetryCount = %d, want 10", cfg.Locking.RetryCount)
	}
	if cfg.Locking.MinBackoffMs != 50 {
		t.Errorf("Locking.MinBackoffMs = %d, want 50", cfg.Locking.MinBackoffMs)
	}
	if cfg.Locking.MaxBackoffMs != 500 {
		t.Errorf("Locking.MaxBackoffMs = %d, want 500", cfg.Locking.MaxBackoffMs)
	}

	if cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be false by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if cfg.Dashboard.RefreshIntervalMs != 2000 {
		t.Errorf("Dashboard.RefreshIntervalMs = %d, want 2000", cfg.Dashboard.RefreshIntervalMs)
	}
	if !cfg.Dashboard.Watch {
		t.Error("Dashboard.Watch should be true by default")
	}
}

func TestLockingConfig_LockOptions(t *testing.T) {
	cfg := Default()
	if got := cfg.Locking.LockOptions(); got != lockfile.DefaultOptions() {
		t.Errorf("LockOptions() = %+v, want %+v", got, lockfile.DefaultOptions())
	}

	custom := LockingConfig{StaleAfterMs: 2000, RetryCount: 4, MinBackoffMs: 5, MaxBackoffMs: 80}
	want := lockfile.Options{
		StaleAfter: 2 * time.Second,
		RetryCount: 4,
		MinBackoff: 5 * time.Millisecond,
		MaxBackoff: 80 * time.Millisecond,
	}
	if got := custom.LockOptions(); got != want {
		t.Errorf("LockOptions() = %+v, want %+v", got, want)
	}
}

func TestLoggingConfig_Rotation(t *testing.T) {
	cfg := LoggingConfig{MaxSizeMB: 25, MaxBackups: 7}
	got := cfg.Rotation()
	if got.MaxSizeMB != 25 || got.MaxBackups != 7 {
		t.Errorf("Rotation() = %+v", got)
	}
}

func TestDashboardConfig_RefreshInterval(t *testing.T) {
	tests := []struct {
		ms       int
		expected time.Duration
	}{
		{2000, 2 * time.Second},
		{250, 250 * time.Millisecond},
		{0, 0},
	}

	for _, tt := range tests {
		cfg := DashboardConfig{RefreshIntervalMs: tt.ms}
		if got := cfg.RefreshInterval(); got != tt.expected {
			t.Errorf("RefreshInterval() with %dms = %v, want %v", tt.ms, got, tt.expected)
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/fspec" {
			t.Errorf("ConfigDir() = %q, want %q", got, "/custom/config/fspec")
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "fspec")
		if got := ConfigDir(); got != expected {
			t.Errorf("ConfigDir() = %q, want %q", got, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigFile(); got != "/custom/config/fspec/fspec.yaml" {
		t.Errorf("ConfigFile() = %q", got)
	}
}

func TestStateDir(t *testing.T) {
	if got := StateDir("/repo"); got != "/repo/.fspec" {
		t.Errorf("StateDir() = %q, want /repo/.fspec", got)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		SetDefaults()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if *cfg != *Default() {
			t.Errorf("Load() = %+v, want defaults", cfg)
		}
	})

	t.Run("config file overrides", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		SetDefaults()

		path := filepath.Join(t.TempDir(), "fspec.yaml")
		content := "locking:\n  retry_count: 3\n  stale_after_ms: 4000\ndashboard:\n  watch: false\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.Locking.RetryCount != 3 || cfg.Locking.StaleAfterMs != 4000 {
			t.Errorf("Locking = %+v", cfg.Locking)
		}
		if cfg.Locking.MinBackoffMs != 50 {
			t.Errorf("unset key should keep default, got MinBackoffMs = %d", cfg.Locking.MinBackoffMs)
		}
		if cfg.Dashboard.Watch {
			t.Error("Dashboard.Watch should be overridden to false")
		}
	})

	t.Run("invalid values fail", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		SetDefaults()
		viper.Set("locking.min_backoff_ms", 900)

		_, err := Load()
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("Load() error = %v, want ValidationErrors", err)
		}
		if verrs[0].Field != "locking.min_backoff_ms" {
			t.Errorf("first error field = %q", verrs[0].Field)
		}
	})
}

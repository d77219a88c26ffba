// Package config provides CLI commands for managing fspec configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appconfig "github.com/Iron-Ham/fspec/internal/config"
)

// setting describes one configuration key accepted by set and reset.
type setting struct {
	Key         string
	Type        string // "int", "bool" or "level"
	Description string
	Default     func(*appconfig.Config) any
}

var settings = []setting{
	{"locking.stale_after_ms", "int", "Lock marker age before it is reclaimed",
		func(c *appconfig.Config) any { return c.Locking.StaleAfterMs }},
	{"locking.retry_count", "int", "Lock retries after the first attempt",
		func(c *appconfig.Config) any { return c.Locking.RetryCount }},
	{"locking.min_backoff_ms", "int", "Sleep before the first lock retry",
		func(c *appconfig.Config) any { return c.Locking.MinBackoffMs }},
	{"locking.max_backoff_ms", "int", "Cap on the sleep between lock retries",
		func(c *appconfig.Config) any { return c.Locking.MaxBackoffMs }},
	{"logging.enabled", "bool", "Write .fspec/debug.log",
		func(c *appconfig.Config) any { return c.Logging.Enabled }},
	{"logging.level", "level", "Minimum log level: debug, info, warn, error",
		func(c *appconfig.Config) any { return c.Logging.Level }},
	{"logging.max_size_mb", "int", "Rotate the debug log at this size",
		func(c *appconfig.Config) any { return c.Logging.MaxSizeMB }},
	{"logging.max_backups", "int", "Rotated debug logs to keep",
		func(c *appconfig.Config) any { return c.Logging.MaxBackups }},
	{"dashboard.refresh_interval_ms", "int", "Board reload interval",
		func(c *appconfig.Config) any { return c.Dashboard.RefreshIntervalMs }},
	{"dashboard.watch", "bool", "Reload the board when a document changes",
		func(c *appconfig.Config) any { return c.Dashboard.Watch }},
}

func lookupSetting(key string) (setting, bool) {
	for _, s := range settings {
		if s.Key == key {
			return s, true
		}
	}
	return setting{}, false
}

func settingsHelp() string {
	var b strings.Builder
	for _, s := range settings {
		fmt.Fprintf(&b, "  %-30s - %s\n", s.Key, s.Description)
	}
	return b.String()
}

// Register adds all config-related commands to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or modify fspec configuration",
		Long: `View or modify fspec configuration.

Use 'config show' to display the effective configuration.
Use subcommands to modify settings or create a config file.`,
	}
	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show current configuration",
			Args:  cobra.NoArgs,
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a configuration value",
			Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  fspec config set locking.retry_count 20
  fspec config set logging.enabled true

Valid keys:
` + settingsHelp(),
			Args: cobra.ExactArgs(2),
			RunE: runConfigSet,
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create a default config file",
			Long:  `Create a default config file at ~/.config/fspec/fspec.yaml with all available options.`,
			Args:  cobra.NoArgs,
			RunE:  runConfigInit,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the config file path",
			Args:  cobra.NoArgs,
			RunE:  runConfigPath,
		},
		&cobra.Command{
			Use:   "reset [key]",
			Short: "Reset configuration to defaults",
			Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.`,
			Args: cobra.MaximumNArgs(1),
			RunE: runConfigReset,
		},
	)
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)
	printConfig(out, cfg)
	return nil
}

func printConfig(out io.Writer, cfg *appconfig.Config) {
	fmt.Fprintln(out, "locking:")
	fmt.Fprintf(out, "  stale_after_ms: %d\n", cfg.Locking.StaleAfterMs)
	fmt.Fprintf(out, "  retry_count: %d\n", cfg.Locking.RetryCount)
	fmt.Fprintf(out, "  min_backoff_ms: %d\n", cfg.Locking.MinBackoffMs)
	fmt.Fprintf(out, "  max_backoff_ms: %d\n", cfg.Locking.MaxBackoffMs)

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(out, "  max_backups: %d\n", cfg.Logging.MaxBackups)

	fmt.Fprintln(out, "dashboard:")
	fmt.Fprintf(out, "  refresh_interval_ms: %d\n", cfg.Dashboard.RefreshIntervalMs)
	fmt.Fprintf(out, "  watch: %v\n", cfg.Dashboard.Watch)
}

// parseValue converts a command-line value to the setting's type.
func parseValue(s setting, value string) (any, error) {
	switch s.Type {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", s.Key)
		}
		return value == "true", nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", s.Key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", s.Key)
		}
		return n, nil
	case "level":
		for _, l := range appconfig.ValidLogLevels() {
			if strings.EqualFold(l, value) {
				return strings.ToLower(value), nil
			}
		}
		return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
			s.Key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	s, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'fspec config set --help' to see valid keys", key)
	}
	typed, err := parseValue(s, value)
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typed)
	// Reject combinations the loader would refuse, e.g. min_backoff > max_backoff.
	if _, err := appconfig.Load(); err != nil {
		viper.Set(key, previous)
		return err
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typed)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'fspec config set' to modify values", configFile)
	}
	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	d := appconfig.Default()
	configContent := fmt.Sprintf(`# fspec configuration

# Cross-process locking of the documents under spec/
locking:
  # A lock marker older than this is considered abandoned and reclaimed
  stale_after_ms: %d
  # Retries after the first attempt before giving up with a lock timeout
  retry_count: %d
  # Backoff between retries doubles from min to max
  min_backoff_ms: %d
  max_backoff_ms: %d

# Debug log at <project>/.fspec/debug.log
logging:
  enabled: %v
  # Options: debug, info, warn, error
  level: %s
  max_size_mb: %d
  max_backups: %d

# fspec board
dashboard:
  refresh_interval_ms: %d
  # Reload as soon as a document changes
  watch: %v
`,
		d.Locking.StaleAfterMs, d.Locking.RetryCount, d.Locking.MinBackoffMs, d.Locking.MaxBackoffMs,
		d.Logging.Enabled, d.Logging.Level, d.Logging.MaxSizeMB, d.Logging.MaxBackups,
		d.Dashboard.RefreshIntervalMs, d.Dashboard.Watch,
	)

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize fspec's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(appconfig.ConfigDir(), "fspec.yaml"))
	fmt.Fprintf(out, "  2. ./fspec.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: FSPEC_* (e.g., FSPEC_LOCKING_RETRY_COUNT)")
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	defaults := appconfig.Default()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		for _, s := range settings {
			viper.Set(s.Key, s.Default(defaults))
		}
		fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		s, ok := lookupSetting(args[0])
		if !ok {
			return fmt.Errorf("unknown configuration key: %s\nRun 'fspec config set --help' to see valid keys", args[0])
		}
		value := s.Default(defaults)
		viper.Set(s.Key, value)
		fmt.Fprintf(out, "Reset %s to default: %v\n", s.Key, value)
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

func writeConfig() (string, error) {
	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	configFile := appconfig.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

// Package cmd assembles the fspec command tree.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/fspec/internal/cmd/app"
	configcmd "github.com/Iron-Ham/fspec/internal/cmd/config"
	"github.com/Iron-Ham/fspec/internal/cmd/dashboard"
	"github.com/Iron-Ham/fspec/internal/cmd/observability"
	"github.com/Iron-Ham/fspec/internal/cmd/project"
	"github.com/Iron-Ham/fspec/internal/cmd/workunit"
	"github.com/Iron-Ham/fspec/internal/config"
)

var rootCmd = newRootCmd()

// Execute runs the root command. An interrupt cancels the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// newRootCmd builds a fresh command tree. Tests build their own so flag
// values never leak between runs.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fspec",
		Short: "Spec-driven project management for AI-assisted development",
		Long: `fspec tracks work units, epics, tags and the project foundation as JSON
documents under ./spec. Every read and write is coordinated through lock
files, so concurrent commands and the board dashboard never see a torn or
lost update.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/fspec/fspec.yaml)")
	root.PersistentFlags().String(app.RootFlag, "", "project root (default is the current directory)")

	project.Register(root)
	workunit.Register(root)
	dashboard.Register(root)
	observability.Register(root)
	configcmd.Register(root)
	return root
}

func initConfig(cmd *cobra.Command) {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fspec")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FSPEC")
	// Replace dots with underscores for nested keys in env vars
	// e.g., FSPEC_LOCKING_RETRY_COUNT for locking.retry_count
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

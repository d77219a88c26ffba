// Package workunit provides the CLI commands that create, move and list
// work units.
package workunit

import "github.com/spf13/cobra"

// Register adds all work unit commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(
		newCreateCmd(),
		newUpdateStatusCmd(),
		newShowCmd(),
		newListCmd(),
	)
}

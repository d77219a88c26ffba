// Package observability provides commands for inspecting a running project:
// lock markers held on the documents and the debug log.
package observability

import "github.com/spf13/cobra"

// Register adds all observability-related commands to the given parent command.
// This is the main entry point for integrating the observability subpackage with
// the root command.
func Register(parent *cobra.Command) {
	parent.AddCommand(newLocksCmd(), newLogsCmd())
}

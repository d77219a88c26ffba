package project

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/fspec/internal/cmd/app"
	"github.com/Iron-Ham/fspec/internal/tui/styles"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize fspec in the current project",
		Long: `Initialize fspec in the project root.
This creates the spec directory and seeds every missing document. Existing
documents are left untouched, so running init again is safe.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := app.Open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	seeded, err := a.Store.Init(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(seeded) == 0 {
		fmt.Fprintf(out, "fspec already initialized in %s\n", a.Store.SpecDir())
		return nil
	}
	fmt.Fprintln(out, styles.SuccessMsg.Render("fspec initialized successfully!"))
	fmt.Fprintf(out, "Spec directory: %s\n", a.Store.SpecDir())
	fmt.Fprintf(out, "Created: %s\n", strings.Join(seeded, ", "))
	return nil
}

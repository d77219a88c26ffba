package project

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/fspec/internal/cmd/app"
	"github.com/Iron-Ham/fspec/internal/project"
	"github.com/Iron-Ham/fspec/internal/tui/styles"
)

func newShowFoundationCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show-foundation",
		Short: "Show the project foundation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			doc, err := a.Store.Foundation(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			printFoundation(out, doc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the foundation as JSON")
	return cmd
}

func printFoundation(out io.Writer, doc *project.FoundationDoc) {
	field := func(label, value string) {
		if value == "" {
			value = styles.Muted.Render("(not set)")
		}
		fmt.Fprintf(out, "  %-14s %s\n", label+":", value)
	}

	fmt.Fprintln(out, styles.Title.Render("Project"))
	field("Name", doc.Project.Name)
	field("Vision", doc.Project.Vision)
	field("Type", doc.Project.ProjectType)

	fmt.Fprintln(out, styles.Title.Render("Problem"))
	field("Title", doc.ProblemSpace.PrimaryProblem.Title)
	field("Description", doc.ProblemSpace.PrimaryProblem.Description)
	field("Impact", doc.ProblemSpace.PrimaryProblem.Impact)

	fmt.Fprintln(out, styles.Title.Render("Solution"))
	field("Overview", doc.SolutionSpace.Overview)
	if len(doc.SolutionSpace.Capabilities) == 0 {
		field("Capabilities", "")
		return
	}
	fmt.Fprintf(out, "  %s\n", "Capabilities:")
	for _, c := range doc.SolutionSpace.Capabilities {
		fmt.Fprintf(out, "    - %s\n", c)
	}
}

func newUpdateFoundationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-foundation <field> <value>",
		Short: "Update one field of the project foundation",
		Long: `Update one field of the project foundation. Fields use dot notation.
solutionSpace.capabilities appends a capability instead of replacing.

Valid fields:
  ` + strings.Join(project.FoundationFields(), "\n  "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Store.UpdateFoundation(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessMsg.Render("✓ Updated "+args[0]))
			return nil
		},
	}
}

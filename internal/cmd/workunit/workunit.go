package workunit

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/fspec/internal/cmd/app"
	"github.com/Iron-Ham/fspec/internal/project"
	"github.com/Iron-Ham/fspec/internal/tui/styles"
	"github.com/Iron-Ham/fspec/internal/util"
)

// listTitleWidth caps titles in list-work-units output.
const listTitleWidth = 60

func newCreateCmd() *cobra.Command {
	var (
		description string
		typ         string
		epic        string
	)
	cmd := &cobra.Command{
		Use:   "create-work-unit <PREFIX> <title>",
		Short: "Create a work unit in the backlog",
		Long: `Create a work unit in the backlog. The id is the prefix followed by the
next free number, e.g. AUTH-003. The prefix must be registered first with
create-prefix.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			wu, err := a.Store.CreateWorkUnit(cmd.Context(), args[0], args[1], project.WorkUnitOptions{
				Description: description,
				Type:        project.WorkUnitType(typ),
				Epic:        epic,
			})
			if wu != nil {
				fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessMsg.Render(fmt.Sprintf("✓ Created work unit %s", wu.ID)))
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Work unit description")
	cmd.Flags().StringVarP(&typ, "type", "t", string(project.TypeStory), "Work unit type: story, task or bug")
	cmd.Flags().StringVarP(&epic, "epic", "e", "", "Epic to link the work unit to")
	return cmd
}

func newUpdateStatusCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "update-work-unit-status <ID> <status>",
		Short: "Move a work unit to another status",
		Long: `Move a work unit to another status.

Statuses: ` + statusList() + `

Moving to blocked requires --reason.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			wu, err := a.Store.UpdateWorkUnitStatus(cmd.Context(), args[0], project.Status(args[1]), reason)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessMsg.Render(fmt.Sprintf("✓ %s is now %s", wu.ID, wu.Status)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Reason for the change (required for blocked)")
	return cmd
}

func newShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show-work-unit <ID>",
		Short: "Show a work unit and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			wu, err := a.Store.WorkUnit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, wu)
			}
			printWorkUnit(out, wu)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the work unit as JSON")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		filter project.WorkUnitFilter
		status string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list-work-units",
		Short: "List work units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			filter.Status = project.Status(status)
			units, err := a.Store.WorkUnits(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if units == nil {
					units = []*project.WorkUnit{}
				}
				return writeJSON(out, units)
			}
			if len(units) == 0 {
				fmt.Fprintln(out, "No work units found.")
				return nil
			}
			for _, wu := range units {
				badge := lipgloss.NewStyle().Foreground(styles.StatusColor(wu.Status)).
					Render(fmt.Sprintf("%s %-12s", styles.StatusIcon(wu.Status), wu.Status))
				fmt.Fprintf(out, "%-10s %s %s\n", wu.ID, badge, util.Truncate(wu.Title, listTitleWidth))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only show work units with this status")
	cmd.Flags().StringVarP(&filter.Prefix, "prefix", "p", "", "Only show work units with this prefix")
	cmd.Flags().StringVarP(&filter.Epic, "epic", "e", "", "Only show work units in this epic")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the work units as JSON")
	return cmd
}

func printWorkUnit(out io.Writer, wu *project.WorkUnit) {
	fmt.Fprintln(out, styles.Title.Render(wu.ID+": "+wu.Title))
	fmt.Fprintf(out, "  Type:    %s\n", wu.Type)
	fmt.Fprintf(out, "  Status:  %s %s\n", styles.StatusIcon(wu.Status), wu.Status)
	if wu.BlockedReason != "" {
		fmt.Fprintf(out, "  Blocked: %s\n", styles.Error.Render(wu.BlockedReason))
	}
	if wu.Epic != "" {
		fmt.Fprintf(out, "  Epic:    %s\n", wu.Epic)
	}
	fmt.Fprintf(out, "  Created: %s\n", humanize.Time(wu.CreatedAt))
	fmt.Fprintf(out, "  Updated: %s\n", humanize.Time(wu.UpdatedAt))
	if wu.Description != "" {
		fmt.Fprintf(out, "\n%s\n", wu.Description)
	}

	if len(wu.StateHistory) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Muted.Render("History:"))
		for _, h := range wu.StateHistory {
			line := fmt.Sprintf("  %s  %s", h.Timestamp.Format("2006-01-02 15:04"), h.State)
			if h.Reason != "" {
				line += " (" + h.Reason + ")"
			}
			fmt.Fprintln(out, line)
		}
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusList() string {
	names := make([]string, 0, len(project.Statuses()))
	for _, s := range project.Statuses() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

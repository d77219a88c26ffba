// Package dashboard provides the board command, which shows the kanban
// dashboard in a terminal or prints a summary when output is redirected.
package dashboard

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/fspec/internal/cmd/app"
	"github.com/Iron-Ham/fspec/internal/project"
	"github.com/Iron-Ham/fspec/internal/tui"
	"github.com/Iron-Ham/fspec/internal/tui/styles"
	"github.com/Iron-Ham/fspec/internal/util"
	"github.com/Iron-Ham/fspec/internal/watch"
)

// isTerminal is swapped in tests.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// Register adds the board command to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(newBoardCmd())
}

func newBoardCmd() *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the kanban board",
		Long: `Show the kanban board of work units by status.

In a terminal this opens a live dashboard that reloads whenever a project
document changes and on a fixed interval (dashboard.refresh_interval_ms).
Press r to reload and q to quit. When output is not a terminal the board is
printed once as text.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if !isTerminal() {
				board, err := a.Store.Board(cmd.Context())
				if err != nil {
					return err
				}
				printBoard(cmd.OutOrStdout(), board)
				return nil
			}

			opts := tui.Options{RefreshInterval: a.Config.Dashboard.RefreshInterval()}
			if a.Config.Dashboard.Watch && !noWatch {
				w, err := watch.New(a.Store.SpecDir(), a.Logger)
				if err != nil {
					// The board still refreshes on its interval.
					a.Logger.Warn("file watcher unavailable", "error", err)
				} else {
					w.Start()
					defer w.Stop()
					opts.Changes = w.Events()
				}
			}
			return tui.Run(a.Store, opts)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Reload on the refresh interval only")
	return cmd
}

func printBoard(out io.Writer, board *project.Board) {
	for _, col := range board.Columns {
		fmt.Fprintf(out, "%s %s (%d)\n", styles.StatusIcon(col.Status), col.Status, len(col.Units))
		for _, wu := range col.Units {
			line := fmt.Sprintf("  %-10s %s", wu.ID, wu.Title)
			if title := board.EpicTitles[wu.Epic]; title != "" {
				line += "  [" + title + "]"
			}
			if wu.BlockedReason != "" {
				line += "  blocked: " + wu.BlockedReason
			}
			fmt.Fprintln(out, line)
		}
	}
	fmt.Fprintf(out, "\n%d work %s, %d %s\n",
		board.Total(), util.Plural(board.Total(), "unit"), board.TagCount, util.Plural(board.TagCount, "tag"))
}

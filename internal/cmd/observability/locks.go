package observability

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/fspec/internal/cmd/app"
	"github.com/Iron-Ham/fspec/internal/lockfile"
	"github.com/Iron-Ham/fspec/internal/project"
	"github.com/Iron-Ham/fspec/internal/tui/styles"
	"github.com/Iron-Ham/fspec/internal/util"
)

// Holder liveness as seen from this host.
const (
	livenessAlive   = "alive"
	livenessDead    = "dead"
	livenessUnknown = "unknown"
)

// lockRow is one marker as printed by the locks command.
type lockRow struct {
	Document string
	Info     lockfile.MarkerInfo
	Liveness string
}

func newLocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locks",
		Short: "Show lock markers held on project documents",
		Long: `Show the lock markers next to each project document: mode, owner,
process id, age, whether the marker is stale and whether the holding
process is still running on this host.

A stale marker is reclaimed automatically by the next command that needs
the document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			host, _ := os.Hostname()
			var rows []lockRow
			for _, name := range project.DocumentFiles() {
				infos, err := a.Files.Inspect(a.Store.Path(name))
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				if err != nil {
					return err
				}
				for _, info := range infos {
					rows = append(rows, lockRow{
						Document: name,
						Info:     info,
						Liveness: liveness(info.Marker, host),
					})
				}
			}
			printLocks(cmd.OutOrStdout(), rows, time.Now())
			return nil
		},
	}
}

// liveness checks the holder with signal 0. Markers from other hosts cannot
// be checked.
func liveness(m *lockfile.Marker, host string) string {
	if m == nil || m.PID <= 0 || m.Hostname != host {
		return livenessUnknown
	}
	err := unix.Kill(m.PID, 0)
	switch {
	case err == nil, errors.Is(err, unix.EPERM):
		return livenessAlive
	case errors.Is(err, unix.ESRCH):
		return livenessDead
	default:
		return livenessUnknown
	}
}

func printLocks(out io.Writer, rows []lockRow, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No locks held.")
		return
	}

	fmt.Fprintf(out, "%-18s %-9s %-8s %-20s %-14s %s\n", "DOCUMENT", "MODE", "PID", "HOST", "AGE", "STATE")
	for _, r := range rows {
		pid, host := "-", "-"
		if m := r.Info.Marker; m != nil {
			pid = fmt.Sprint(m.PID)
			host = m.Hostname
		}
		age := humanize.RelTime(r.Info.LastSeen, now, "ago", "from now")
		if r.Info.LastSeen.IsZero() {
			age = "-"
		}

		state := styles.Secondary.Render("held")
		switch {
		case r.Info.Marker == nil:
			state = styles.Warning.Render("unreadable")
		case r.Info.Stale:
			state = styles.Warning.Render("stale")
		}
		if r.Liveness == livenessDead {
			state += styles.Error.Render(" (holder exited)")
		}

		fmt.Fprintf(out, "%-18s %-9s %-8s %-20s %-14s %s\n",
			r.Document, r.Info.Mode, pid, host, age, state)
	}
	fmt.Fprintf(out, "\n%d %s in %s\n", len(rows), util.Plural(len(rows), "marker"), filepath.Dir(rows[0].Info.Path))
}

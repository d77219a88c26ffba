package cmd

import (
	"fmt"
	"io"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/tui/styles"
)

// Exit statuses, following sysexits(3) where one fits.
const (
	ExitOK = 0
	// ExitFailure covers usage mistakes and semantic errors.
	ExitFailure = 1
	// ExitDataErr means a tracked document is corrupt; rerunning will not
	// help until it is fixed by hand.
	ExitDataErr = 65
	// ExitTempFail means the command may succeed if run again.
	ExitTempFail = 75
)

// Report prints err for the user and returns the process exit status.
// Retryable errors (lock contention) exit with ExitTempFail so scripts can
// retry; critical ones exit with ExitDataErr.
func Report(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}

	severity := ferrors.GetSeverity(err)
	label := styles.ErrorMsg.Render("Error:")
	if severity <= ferrors.SeverityWarning {
		label = styles.WarningMsg.Render("Error:")
	}
	fmt.Fprintln(w, label, err)

	if hint := ferrors.Hint(err); hint != "" {
		fmt.Fprintln(w, styles.Muted.Render("Hint: "+hint))
	}
	if ferrors.IsStorageError(err) && !ferrors.Is(err, ferrors.ErrCorruptDocument) {
		fmt.Fprintln(w, styles.Muted.Render("Lock state: run `fspec locks`; lock activity is in `fspec logs` when logging is enabled."))
	}

	switch {
	case ferrors.IsRetryable(err):
		return ExitTempFail
	case severity >= ferrors.SeverityCritical:
		return ExitDataErr
	default:
		return ExitFailure
	}
}

// Package lockfile provides cross-process locks on fspec documents using
// marker files next to the document.
//
// Processes share no memory, so every fspec command and the dashboard
// coordinate through the filesystem. For a document at /repo/spec/tags.json:
//
//	/repo/spec/tags.json.lock           exclusive (writer) marker
//	/repo/spec/tags.json.rlock-<owner>  one shared (reader) marker per reader
//
// Markers are created with O_EXCL and hold a small JSON body (owner, pid,
// hostname, mode, acquired_at). Only the timestamp and the opaque owner id
// carry meaning; the other fields are informative.
//
// # Protocol
//
// A writer creates the exclusive marker, then waits for live reader markers
// to disappear. It keeps the exclusive marker while waiting, so readers that
// arrive later back off and a stream of readers cannot starve it.
//
// A reader creates its own reader marker, then looks for an exclusive
// marker. If a live one exists it deletes its reader marker and backs off.
// Because each side publishes its marker before checking for the other, at
// least one of them always sees the other.
//
// # Staleness
//
// A marker whose last sign of life (the later of its acquired_at and its
// modification time) is older than [Options.StaleAfter] is treated as
// abandoned by a crashed process and is reclaimed by the next acquirer.
// Holders refresh their marker's modification time every StaleAfter/2.
// Release only deletes a marker that still names the releasing owner.
//
// # Retry
//
// Acquisition makes one attempt plus [Options.RetryCount] retries, sleeping
// MinBackoff, 2*MinBackoff, ... capped at MaxBackoff between attempts, and
// fails with *errors.LockTimeoutError when the budget is spent.
package lockfile

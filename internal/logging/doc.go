// Package logging provides structured logging for fspec.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Short-lived CLI invocations and the dashboard append to
// the same debug log, so every entry carries the process id, which makes it
// possible to reconstruct lock contention between processes after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (component, path, arbitrary attributes)
//   - Size-based rotation via lumberjack
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/repo/.fspec", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	lockLogger := logger.WithComponent("lockfile")
//	lockLogger.Warn("stale lock reclaimed", "path", path, "age_ms", age.Milliseconds())
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"stale lock reclaimed","pid":4242,"component":"lockfile","path":"/repo/spec/tags.json","age_ms":12000}
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
package logging

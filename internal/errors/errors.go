// Package errors provides centralized error definitions and error handling utilities
// for fspec. It defines the error taxonomy of the locked file layer, semantic error
// types for the project documents, and classification helpers used by the CLI to
// decide how an error is reported.
//
// # Error Types
//
// Storage errors come from the locked file layer:
//   - LockTimeoutError: the inter-process lock was not acquired within the retry budget
//   - LockLostError: another process took over a lock marker this process held
//   - ParseError: a tracked document is not valid JSON
//   - FsError: an underlying filesystem operation failed
//
// Semantic errors come from the project document operations:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//
// # Usage
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrLockTimeout) { ... }
//
//	var parseErr *errors.ParseError
//	if errors.As(err, &parseErr) {
//		fmt.Println(parseErr.Line, parseErr.Column)
//	}
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: the command may succeed if run again (lock contention)
//   - Severity: Debug, Info, Warning, Error, Critical
//
// The CLI maps both onto its exit status.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Storage sentinel errors
var (
	// ErrLockTimeout indicates that a file lock could not be acquired in time.
	ErrLockTimeout = New("lock acquisition timed out")
	// ErrCorruptDocument indicates that a tracked document is not valid JSON.
	ErrCorruptDocument = New("document is not valid JSON")
	// ErrLockLost indicates that a held lock marker was replaced by another holder.
	ErrLockLost = New("lock marker lost")
)

// Project sentinel errors
var (
	// ErrWorkUnitNotFound indicates that a work unit id is not in the ledger.
	ErrWorkUnitNotFound = New("work unit not found")
	// ErrPrefixNotRegistered indicates that a work unit prefix was never created.
	ErrPrefixNotRegistered = New("prefix not registered")
	// ErrEpicNotFound indicates that an epic id is not in the epic index.
	ErrEpicNotFound = New("epic not found")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// FspecError is the base interface for all fspec errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type FspecError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if running the same command again may succeed.
	IsRetryable() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Storage Errors
// -----------------------------------------------------------------------------

// LockTimeoutError is returned when the inter-process lock on a document could
// not be acquired within the configured retry budget.
//
// Example:
//
//	err := errors.NewLockTimeoutError("/repo/spec/tags.json", 11)
//	err = err.WithHolder(4242, "build-host")
type LockTimeoutError struct {
	baseError
	Path     string
	Attempts int
	// HolderPID and HolderHost describe the marker that blocked the last
	// attempt, when it could be read.
	HolderPID  int
	HolderHost string
}

// NewLockTimeoutError creates a new LockTimeoutError.
func NewLockTimeoutError(path string, attempts int) *LockTimeoutError {
	return &LockTimeoutError{
		baseError: baseError{
			message:   "timed out acquiring lock",
			severity:  SeverityError,
			retryable: true,
		},
		Path:     path,
		Attempts: attempts,
	}
}

// WithHolder records which process held the lock on the last attempt.
func (e *LockTimeoutError) WithHolder(pid int, host string) *LockTimeoutError {
	e.HolderPID = pid
	e.HolderHost = host
	return e
}

// Error returns the formatted error message.
func (e *LockTimeoutError) Error() string {
	msg := fmt.Sprintf("timed out acquiring lock on %s after %d attempts", e.Path, e.Attempts)
	if e.HolderPID != 0 {
		msg += fmt.Sprintf(" (held by PID %d on %s)", e.HolderPID, e.HolderHost)
	}
	return msg + ": another fspec process is using this file, retry the command"
}

// Is checks if this error matches the target.
func (e *LockTimeoutError) Is(target error) bool {
	if _, ok := target.(*LockTimeoutError); ok {
		return true
	}
	if target == ErrLockTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// LockLostError is returned when the marker of a lock this process holds no
// longer names it, because another process judged it stale and took over.
// The guarded write is abandoned.
type LockLostError struct {
	baseError
	Path string
	// Owner is the id found in the marker, empty when the marker is gone.
	Owner string
}

// NewLockLostError creates a new LockLostError.
func NewLockLostError(path, owner string) *LockLostError {
	return &LockLostError{
		baseError: baseError{
			message:   "lock lost",
			severity:  SeverityError,
			retryable: true,
		},
		Path:  path,
		Owner: owner,
	}
}

// Error returns the formatted error message.
func (e *LockLostError) Error() string {
	if e.Owner == "" {
		return fmt.Sprintf("lock on %s was lost: its marker disappeared while held", e.Path)
	}
	return fmt.Sprintf("lock on %s was lost: its marker now belongs to %s", e.Path, e.Owner)
}

// Is checks if this error matches the target.
func (e *LockLostError) Is(target error) bool {
	if _, ok := target.(*LockLostError); ok {
		return true
	}
	if target == ErrLockLost {
		return true
	}
	return e.baseError.Is(target)
}

// ParseError is returned when a tracked document exists but does not decode.
// The decoder's position is kept so the caller can point at the broken byte.
type ParseError struct {
	baseError
	Path   string
	Line   int
	Column int
	Offset int64
}

// NewParseError creates a new ParseError. Line and column are 1-based; a zero
// line means the position is unknown.
func NewParseError(path string, line, column int, offset int64, cause error) *ParseError {
	return &ParseError{
		baseError: baseError{
			message:   "invalid JSON",
			cause:     cause,
			severity:  SeverityCritical,
			retryable: false,
		},
		Path:   path,
		Line:   line,
		Column: column,
		Offset: offset,
	}
}

// Error returns the formatted error message.
func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("failed to parse ")
	sb.WriteString(e.Path)
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(" at line %d, column %d (offset %d)", e.Line, e.Column, e.Offset))
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *ParseError) Is(target error) bool {
	if _, ok := target.(*ParseError); ok {
		return true
	}
	if target == ErrCorruptDocument {
		return true
	}
	return e.baseError.Is(target)
}

// FsError wraps a filesystem failure without hiding it. The cause is normally
// an *os.PathError, so errors.Is(err, fs.ErrNotExist) keeps working.
type FsError struct {
	baseError
	Op   string
	Path string
}

// NewFsError creates a new FsError.
func NewFsError(op, path string, cause error) *FsError {
	return &FsError{
		baseError: baseError{
			message:   op,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
		Op:   op,
		Path: path,
	}
}

// Error returns the formatted error message.
func (e *FsError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s %s failed", e.Op, e.Path)
	}
	// *os.PathError already names the path.
	if strings.Contains(e.cause.Error(), e.Path) {
		return fmt.Sprintf("%s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.cause)
}

// Is checks if this error matches the target.
func (e *FsError) Is(target error) bool {
	if _, ok := target.(*FsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("work unit", "AUTH-001").WithCause(errors.ErrWorkUnitNotFound)
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:   fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:  SeverityWarning,
			retryable: false,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds an underlying cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents an attempt to create a resource that exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:   fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:  SeverityWarning,
			retryable: false,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input.
//
// Example:
//
//	err := errors.NewValidationError("must be 2-6 upper-case letters").WithField("prefix").WithValue("auth")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			severity:  SeverityWarning,
			retryable: false,
		},
	}
}

// WithField adds the field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds an underlying cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if running the same command again may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var fspecErr FspecError
	if As(err, &fspecErr) {
		return fspecErr.IsRetryable()
	}
	return false
}

// GetSeverity returns the severity of err, defaulting to SeverityError for
// errors that do not carry one.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var fspecErr FspecError
	if As(err, &fspecErr) {
		return fspecErr.Severity()
	}
	return SeverityError
}

// IsStorageError returns true if err originated in the locked file layer.
func IsStorageError(err error) bool {
	if err == nil {
		return false
	}

	var timeoutErr *LockTimeoutError
	var lostErr *LockLostError
	var parseErr *ParseError
	var fsErr *FsError
	return As(err, &timeoutErr) || As(err, &lostErr) || As(err, &parseErr) || As(err, &fsErr)
}

// Hint returns a one-line suggestion for the user, or "" when there is none.
func Hint(err error) string {
	switch {
	case Is(err, ErrLockTimeout):
		return "another fspec command or the dashboard is writing this file; wait a moment and retry"
	case Is(err, ErrLockLost):
		return "another process treated this command's lock as stale and took it over; nothing was written, retry the command"
	case Is(err, ErrCorruptDocument):
		return "fix the JSON at the reported position; fspec never rewrites a document it cannot parse"
	default:
		return ""
	}
}

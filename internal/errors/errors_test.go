package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Storage Error Tests
// -----------------------------------------------------------------------------

func TestLockTimeoutError(t *testing.T) {
	err := NewLockTimeoutError("/repo/spec/tags.json", 11).WithHolder(4242, "build-host")

	msg := err.Error()
	for _, want := range []string{"/repo/spec/tags.json", "11 attempts", "PID 4242", "build-host", "retry"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, ErrLockTimeout) {
		t.Error("errors.Is(err, ErrLockTimeout) = false, want true")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}

	wrapped := fmt.Errorf("create work unit: %w", err)
	var timeoutErr *LockTimeoutError
	if !errors.As(wrapped, &timeoutErr) {
		t.Fatal("errors.As through wrapping failed")
	}
	if timeoutErr.Attempts != 11 {
		t.Errorf("Attempts = %d, want 11", timeoutErr.Attempts)
	}
}

func TestLockTimeoutError_NoHolder(t *testing.T) {
	err := NewLockTimeoutError("/repo/spec/tags.json", 3)
	if strings.Contains(err.Error(), "held by") {
		t.Errorf("Error() = %q, should not mention a holder", err.Error())
	}
}

func TestLockLostError(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		want  string
	}{
		{"taken over", "c0ffee", "now belongs to c0ffee"},
		{"removed", "", "disappeared"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLockLostError("/repo/spec/tags.json", tt.owner)
			if !strings.Contains(err.Error(), tt.want) || !strings.Contains(err.Error(), "/repo/spec/tags.json") {
				t.Errorf("Error() = %q, want it to mention %q and the path", err.Error(), tt.want)
			}
			wrapped := fmt.Errorf("write: %w", err)
			if !errors.Is(wrapped, ErrLockLost) {
				t.Error("errors.Is(err, ErrLockLost) = false, want true")
			}
			if errors.Is(wrapped, ErrLockTimeout) {
				t.Error("a lost lock is not a timeout")
			}
			if !IsRetryable(wrapped) || GetSeverity(wrapped) != SeverityError || !IsStorageError(wrapped) {
				t.Errorf("classification = retryable %v, severity %v, storage %v",
					IsRetryable(wrapped), GetSeverity(wrapped), IsStorageError(wrapped))
			}
		})
	}
}

func TestParseError(t *testing.T) {
	cause := errors.New("invalid character '}' looking for beginning of value")
	err := NewParseError("/repo/spec/work-units.json", 3, 14, 42, cause)

	want := "failed to parse /repo/spec/work-units.json at line 3, column 14 (offset 42): invalid character '}' looking for beginning of value"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrCorruptDocument) {
		t.Error("errors.Is(err, ErrCorruptDocument) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if IsRetryable(err) {
		t.Error("IsRetryable() = true, want false")
	}
	if GetSeverity(err) != SeverityCritical {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityCritical)
	}
}

func TestParseError_UnknownPosition(t *testing.T) {
	err := NewParseError("/repo/spec/tags.json", 0, 0, 0, errors.New("unexpected end of JSON input"))
	if strings.Contains(err.Error(), "line") {
		t.Errorf("Error() = %q, should not mention a line", err.Error())
	}
}

func TestFsError(t *testing.T) {
	path := "/repo/spec/tags.json"
	cause := &os.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	err := NewFsError("read document", path, cause)

	if err.Error() != "read document: open /repo/spec/tags.json: file does not exist" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is(err, fs.ErrNotExist) = false, want true")
	}
	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		t.Error("errors.As(err, *os.PathError) = false, want true")
	}
}

func TestFsError_CauseWithoutPath(t *testing.T) {
	err := NewFsError("rename temp file", "/repo/spec/tags.json", errors.New("disk full"))
	if err.Error() != "rename temp file /repo/spec/tags.json: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("work unit", "AUTH-001").WithCause(ErrWorkUnitNotFound)

	if err.Error() != "work unit 'AUTH-001' not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrWorkUnitNotFound) {
		t.Error("errors.Is(err, ErrWorkUnitNotFound) = false, want true")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityWarning)
	}
}

func TestAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("prefix", "AUTH")
	if err.Error() != "prefix 'AUTH' already exists" {
		t.Errorf("Error() = %q", err.Error())
	}
	var target *AlreadyExistsError
	if !errors.As(err, &target) {
		t.Error("errors.As failed")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "message only",
			err:  NewValidationError("title is required"),
			want: "validation error: title is required",
		},
		{
			name: "field and value",
			err:  NewValidationError("must be 2-6 upper-case letters").WithField("prefix").WithValue("auth"),
			want: "validation error [field=prefix, value=auth]: must be 2-6 upper-case letters",
		},
		{
			name: "with cause",
			err:  NewValidationError("document cannot be encoded as JSON").WithField("/p/tags.json").WithCause(errors.New("unsupported type")),
			want: "validation error [field=/p/tags.json]: document cannot be encoded as JSON: unsupported type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Error("errors.Is(err, ErrInvalidInput) = false, want true")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestClassification_PlainErrors(t *testing.T) {
	plain := errors.New("boom")

	if IsRetryable(plain) {
		t.Error("IsRetryable(plain) = true")
	}
	if GetSeverity(plain) != SeverityError {
		t.Errorf("GetSeverity(plain) = %v", GetSeverity(plain))
	}
	if GetSeverity(nil) != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v", GetSeverity(nil))
	}
	if IsStorageError(plain) || IsStorageError(nil) {
		t.Error("IsStorageError should be false for plain and nil errors")
	}
}

func TestIsStorageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", NewLockTimeoutError("p", 1), true},
		{"lost", NewLockLostError("p", "x"), true},
		{"parse", NewParseError("p", 1, 1, 0, nil), true},
		{"fs", fmt.Errorf("wrap: %w", NewFsError("read", "p", fs.ErrPermission)), true},
		{"not found", NewNotFoundError("epic", "x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStorageError(tt.err); got != tt.want {
				t.Errorf("IsStorageError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHint(t *testing.T) {
	if Hint(NewLockTimeoutError("p", 1)) == "" {
		t.Error("expected a hint for lock timeouts")
	}
	if Hint(NewLockLostError("p", "x")) == "" {
		t.Error("expected a hint for lost locks")
	}
	if Hint(NewParseError("p", 1, 1, 0, nil)) == "" {
		t.Error("expected a hint for parse errors")
	}
	if Hint(errors.New("boom")) != "" {
		t.Error("expected no hint for plain errors")
	}
}

// Package testutil provides helpers shared by fspec tests.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/Iron-Ham/fspec/internal/filemanager"
	"github.com/Iron-Ham/fspec/internal/lockfile"
)

// FastLockOptions returns lock settings suited to tests: short backoff and
// enough retries to ride out heavy contention from parallel goroutines.
func FastLockOptions() lockfile.Options {
	return lockfile.Options{
		StaleAfter: 5 * time.Second,
		RetryCount: 500,
		MinBackoff: time.Millisecond,
		MaxBackoff: 10 * time.Millisecond,
	}
}

// NewManager returns a file manager using FastLockOptions.
func NewManager(t *testing.T) *filemanager.Manager {
	t.Helper()
	return filemanager.New(filemanager.WithLockOptions(FastLockOptions()))
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// ReadFile returns the content of path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(data)
}

// ListDir returns the sorted entry names of dir.
func ListDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// HoldLock takes a marker of the given mode on path through a separate
// locker, the way another fspec process would. The returned function
// releases it early; otherwise it is released when the test ends.
func HoldLock(t *testing.T, path string, mode lockfile.Mode) func() {
	t.Helper()

	locker := lockfile.New(FastLockOptions(), nil)
	h, err := locker.Acquire(context.Background(), path, mode)
	if err != nil {
		t.Fatalf("failed to lock %s: %v", path, err)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := locker.Release(h); err != nil {
			t.Errorf("failed to release %s: %v", path, err)
		}
	}
	t.Cleanup(release)
	return release
}

// SkipIfNoGolangciLint skips the test if golangci-lint is not available.
func SkipIfNoGolangciLint(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}
}

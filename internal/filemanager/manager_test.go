package filemanager

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/lockfile"
	"github.com/Iron-Ham/fspec/internal/rwlock"
)

type counter struct {
	Count int      `json:"count"`
	Notes []string `json:"notes,omitempty"`
}

// testLockOptions gives contended tests a generous retry budget with short
// sleeps.
func testLockOptions() lockfile.Options {
	return lockfile.Options{
		StaleAfter: 5 * time.Second,
		RetryCount: 500,
		MinBackoff: time.Millisecond,
		MaxBackoff: 10 * time.Millisecond,
	}
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(WithLockOptions(testLockOptions())), dir
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readRaw(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// assertOnlyDocuments fails if anything besides the named documents is left
// in dir: no temp files, no lock markers.
func assertOnlyDocuments(t *testing.T, dir string, docs ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if diff := cmp.Diff(docs, got); diff != "" {
		t.Errorf("directory contents mismatch (-want +got):\n%s", diff)
	}
}

func assertIdle(t *testing.T, m *Manager, path string) {
	t.Helper()
	if got := m.locks.Snapshot(path); got != (rwlock.State{}) {
		t.Errorf("in-process lock state = %+v, want idle", got)
	}
	m.sharedMu.Lock()
	defer m.sharedMu.Unlock()
	if hold, ok := m.shared[path]; ok {
		t.Errorf("shared hold still registered with %d readers", hold.refs)
	}
}

func TestWriteJSONThenReadJSON(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "work-units.json")
	ctx := context.Background()

	want := counter{Count: 3, Notes: []string{"a", "b"}}
	if err := m.WriteJSON(ctx, path, want); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	if raw := readRaw(t, path); !strings.HasSuffix(raw, "}\n") || !strings.Contains(raw, "\n  \"count\": 3") {
		t.Errorf("file is not indented JSON with trailing newline: %q", raw)
	}

	got, err := Read[counter](ctx, m, path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Read mismatch (-want +got):\n%s", diff)
	}

	assertOnlyDocuments(t, dir, "work-units.json")
	assertIdle(t, m, path)
}

func TestReadJSON_MissingFile(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "missing.json")

	var v counter
	err := m.ReadJSON(context.Background(), path, &v)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("ReadJSON error = %v, want fs.ErrNotExist", err)
	}
	var fsErr *ferrors.FsError
	if !errors.As(err, &fsErr) {
		t.Errorf("error type = %T, want *FsError", err)
	}
	assertOnlyDocuments(t, dir)
	assertIdle(t, m, path)
}

func TestReadJSON_ParseErrorPosition(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "epics.json")
	writeRaw(t, path, "{\n  \"count\": 1,\n  oops\n}\n")

	var v counter
	err := m.ReadJSON(context.Background(), path, &v)

	var parseErr *ferrors.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("ReadJSON error = %v, want ParseError", err)
	}
	if parseErr.Path != path || parseErr.Line != 3 || parseErr.Column != 3 || parseErr.Offset != 18 {
		t.Errorf("ParseError = {Path:%s Line:%d Column:%d Offset:%d}, want line 3 column 3 offset 18",
			parseErr.Path, parseErr.Line, parseErr.Column, parseErr.Offset)
	}
	if !errors.Is(err, ferrors.ErrCorruptDocument) {
		t.Error("ParseError should match ErrCorruptDocument")
	}
	assertIdle(t, m, path)
}

func TestParseError_TypeMismatch(t *testing.T) {
	_, err := Read[counter](context.Background(), New(), writeTemp(t, `{"count": "many"}`))
	var parseErr *ferrors.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want ParseError", err)
	}
	if parseErr.Line != 1 {
		t.Errorf("Line = %d, want 1", parseErr.Line)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.json")
	writeRaw(t, path, content)
	return path
}

func TestPosition(t *testing.T) {
	tests := []struct {
		prefix    string
		line, col int
	}{
		{"", 1, 1},
		{"abc", 1, 4},
		{"a\n", 2, 1},
		{"{\n  \"x\": 1,\n  ", 3, 3},
	}
	for _, tt := range tests {
		line, col := position([]byte(tt.prefix))
		if line != tt.line || col != tt.col {
			t.Errorf("position(%q) = %d:%d, want %d:%d", tt.prefix, line, col, tt.line, tt.col)
		}
	}
}

func TestWriteJSON_EncodeFailureLeavesFileUntouched(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "tags.json")
	writeRaw(t, path, `{"count": 7}`)

	err := m.WriteJSON(context.Background(), path, map[string]any{"bad": make(chan int)})
	if err == nil {
		t.Fatal("WriteJSON should fail for an unencodable value")
	}
	var unsupported *json.UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Errorf("error = %v, want the encoder's error", err)
	}
	var invalid *ferrors.ValidationError
	if !errors.As(err, &invalid) || invalid.Field != path {
		t.Errorf("error = %v, want a validation error naming %s", err, path)
	}
	if !errors.Is(err, ferrors.ErrInvalidInput) {
		t.Error("encode failure should match ErrInvalidInput")
	}

	if got := readRaw(t, path); got != `{"count": 7}` {
		t.Errorf("file content = %q, want unchanged", got)
	}
	assertOnlyDocuments(t, dir, "tags.json")
	assertIdle(t, m, path)
}

func TestWriteJSON_WriteFailure(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "foundation.json")
	writeRaw(t, path, "{}")

	m := New(WithLockOptions(testLockOptions()), WithFs(afero.NewReadOnlyFs(afero.NewOsFs())))
	err = m.WriteJSON(context.Background(), path, counter{Count: 1})

	var fsErr *ferrors.FsError
	if !errors.As(err, &fsErr) {
		t.Fatalf("WriteJSON error = %v, want FsError", err)
	}
	if fsErr.Op != "write" || fsErr.Path != path {
		t.Errorf("FsError = {Op:%s Path:%s}", fsErr.Op, fsErr.Path)
	}
	if got := readRaw(t, path); got != "{}" {
		t.Errorf("file content = %q, want unchanged", got)
	}
	assertOnlyDocuments(t, dir, "foundation.json")
	assertIdle(t, m, path)
}

func TestTransaction_MissingFileStartsFromZero(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "prefixes.json")

	err := Transaction(context.Background(), m, path, func(c *counter) error {
		if c.Count != 0 || c.Notes != nil {
			t.Errorf("document = %+v, want zero value", c)
		}
		c.Count = 1
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	got, err := Read[counter](context.Background(), m, path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Count != 1 {
		t.Errorf("Count = %d, want 1", got.Count)
	}
}

func TestTransaction_UnchangedDocumentIsNotRewritten(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "work-units.json")
	writeRaw(t, path, `{"count":4}`)

	err := Transaction(context.Background(), m, path, func(c *counter) error {
		c.Count = 4
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if got := readRaw(t, path); got != `{"count":4}` {
		t.Errorf("file was rewritten: %q", got)
	}

	// A missing document that stays at its zero value is not created.
	missing := filepath.Join(dir, "untouched.json")
	if err := Transaction(context.Background(), m, missing, func(*counter) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Error("no-op transaction created a file")
	}
}

func TestTransaction_ParseErrorSkipsMutate(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "work-units.json")
	writeRaw(t, path, `{"count": `)

	called := false
	err := Transaction(context.Background(), m, path, func(*counter) error {
		called = true
		return nil
	})
	if !errors.Is(err, ferrors.ErrCorruptDocument) {
		t.Fatalf("Transaction error = %v, want corrupt document", err)
	}
	if called {
		t.Error("mutate ran on a malformed document")
	}
	if got := readRaw(t, path); got != `{"count": ` {
		t.Errorf("file content = %q, want unchanged", got)
	}
	assertIdle(t, m, path)
}

func TestTransaction_MutateErrorAborts(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "work-units.json")
	writeRaw(t, path, `{"count": 2}`)

	errAbort := errors.New("abort")
	err := Transaction(context.Background(), m, path, func(c *counter) error {
		c.Count = 99
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("Transaction error = %v, want abort", err)
	}
	if got := readRaw(t, path); got != `{"count": 2}` {
		t.Errorf("file content = %q, want unchanged", got)
	}
	assertOnlyDocuments(t, dir, "work-units.json")
	assertIdle(t, m, path)
}

func TestTransaction_EncodeFailureAborts(t *testing.T) {
	type withAny struct {
		Value any `json:"value"`
	}
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "foundation.json")
	writeRaw(t, path, `{"value": 1}`)

	err := Transaction(context.Background(), m, path, func(d *withAny) error {
		d.Value = func() {}
		return nil
	})
	var unsupported *json.UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Transaction error = %v, want encoder error", err)
	}
	var invalid *ferrors.ValidationError
	if !errors.As(err, &invalid) || invalid.Field != path {
		t.Errorf("Transaction error = %v, want a validation error naming %s", err, path)
	}
	if got := readRaw(t, path); got != `{"value": 1}` {
		t.Errorf("file content = %q, want unchanged", got)
	}
	assertOnlyDocuments(t, dir, "foundation.json")
}

func TestTransaction_LockLostAbortsWrite(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "work-units.json")
	writeRaw(t, path, `{"count": 1}`)
	marker := lockfile.ExclusiveMarkerPath(path)

	err := Transaction(context.Background(), m, path, func(d *counter) error {
		d.Count++
		// Another process judges our marker stale and takes it over.
		data, err := json.Marshal(lockfile.Marker{
			Owner:      "intruder",
			PID:        1,
			Hostname:   "elsewhere",
			Mode:       "exclusive",
			AcquiredAt: time.Now(),
		})
		if err != nil {
			return err
		}
		writeRaw(t, marker, string(data))
		return nil
	})

	var lost *ferrors.LockLostError
	if !errors.As(err, &lost) || lost.Owner != "intruder" {
		t.Fatalf("Transaction error = %v, want lock lost to intruder", err)
	}
	if !ferrors.IsRetryable(err) {
		t.Error("a lost lock should be retryable")
	}
	if got := readRaw(t, path); got != `{"count": 1}` {
		t.Errorf("file content = %q, want unchanged", got)
	}
	// The intruder's marker is left for its owner.
	if got := readRaw(t, marker); !strings.Contains(got, "intruder") {
		t.Errorf("marker = %q, want the intruder's", got)
	}
	if err := os.Remove(marker); err != nil {
		t.Fatal(err)
	}
	assertOnlyDocuments(t, dir, "work-units.json")
	assertIdle(t, m, path)
}

func TestTransaction_PanicReleasesLocks(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "work-units.json")
	writeRaw(t, path, `{"count": 2}`)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = Transaction(context.Background(), m, path, func(c *counter) error {
			c.Count = 3
			panic("boom")
		})
	}()

	assertOnlyDocuments(t, dir, "work-units.json")
	assertIdle(t, m, path)

	// The document is usable again straight away.
	if err := Transaction(context.Background(), m, path, func(c *counter) error {
		c.Count++
		return nil
	}); err != nil {
		t.Fatalf("Transaction after panic: %v", err)
	}
	got, _ := Read[counter](context.Background(), m, path)
	if got.Count != 3 {
		t.Errorf("Count = %d, want 3", got.Count)
	}
}

func TestTransaction_ConcurrentIncrements(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "counter.json")
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- Transaction(ctx, m, path, func(c *counter) error {
				c.Count++
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Transaction: %v", err)
		}
	}

	got, err := Read[counter](ctx, m, path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Count != workers {
		t.Errorf("Count = %d, want %d", got.Count, workers)
	}
	assertOnlyDocuments(t, dir, "counter.json")
}

func TestSymlinkedPathsShareLocks(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "counter.json")
	alias := filepath.Join(dir, "alias.json")
	writeRaw(t, path, `{"count": 0}`)
	if err := os.Symlink(path, alias); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		p := path
		if i%2 == 0 {
			p = alias
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := Transaction(ctx, m, p, func(c *counter) error {
				c.Count++
				return nil
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, _ := Read[counter](ctx, m, path)
	if got.Count != 20 {
		t.Errorf("Count = %d, want 20", got.Count)
	}
}

func TestLockTimeoutSurfaces(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "work-units.json")
	writeRaw(t, path, "{}")

	// A marker from a live holder in "another process".
	holder := lockfile.New(testLockOptions(), nil)
	h, err := holder.Acquire(context.Background(), path, lockfile.Exclusive)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = holder.Release(h) }()

	m := New(WithLockOptions(lockfile.Options{
		StaleAfter: 5 * time.Second,
		RetryCount: 2,
		MinBackoff: time.Millisecond,
		MaxBackoff: time.Millisecond,
	}))
	_, err = Read[counter](context.Background(), m, path)
	if !errors.Is(err, ferrors.ErrLockTimeout) {
		t.Fatalf("Read error = %v, want lock timeout", err)
	}
	if !ferrors.IsRetryable(err) {
		t.Error("lock timeout should be retryable")
	}
	assertIdle(t, m, path)
}

func TestInspectThroughManager(t *testing.T) {
	m, dir := newTestManager(t)
	path := filepath.Join(dir, "tags.json")
	writeRaw(t, path, "{}")

	infos, err := m.Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Inspect() = %+v, want no markers", infos)
	}
	if got := m.LockOptions(); got != testLockOptions() {
		t.Errorf("LockOptions() = %+v", got)
	}
}

func TestWithRelease(t *testing.T) {
	primary := errors.New("primary")
	release := errors.New("release")

	if got := withRelease(nil, nil); got != nil {
		t.Errorf("withRelease(nil, nil) = %v", got)
	}
	if got := withRelease(primary, nil); got != primary {
		t.Errorf("withRelease(primary, nil) = %v", got)
	}
	if got := withRelease(nil, release); got != release {
		t.Errorf("withRelease(nil, release) = %v", got)
	}
	got := withRelease(primary, release)
	if !errors.Is(got, primary) || !errors.Is(got, release) {
		t.Errorf("withRelease(primary, release) = %v, want both", got)
	}
}

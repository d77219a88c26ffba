package watch

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/fspec/internal/atomicfile"
)

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(w.Stop)
	w.Start()
	return w, dir
}

// waitFor collects events until every path in want has been reported.
func waitFor(t *testing.T, w *Watcher, want ...string) []string {
	t.Helper()
	var seen []string
	deadline := time.After(5 * time.Second)
	for {
		missing := false
		for _, p := range want {
			if !slices.Contains(seen, p) {
				missing = true
			}
		}
		if !missing {
			return seen
		}
		select {
		case ev, ok := <-w.Events():
			if !ok {
				t.Fatalf("events closed, saw %v", seen)
			}
			seen = append(seen, ev.Paths...)
		case <-deadline:
			t.Fatalf("timed out waiting for %v, saw %v", want, seen)
		}
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestNew_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(file, nil); err == nil {
		t.Fatal("expected error for a regular file")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	w.Stop()
	w.Stop()

	if _, ok := <-w.Events(); ok {
		t.Error("Events should be closed after Stop")
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Stop()
	if _, ok := <-w.Events(); ok {
		t.Error("Events should be closed after Stop")
	}
}

func TestWatcher_ReportsAtomicWrite(t *testing.T) {
	w, dir := newTestWatcher(t)
	target := filepath.Join(dir, "work-units.json")

	if err := atomicfile.NewWriter(nil).WriteFile(target, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	seen := waitFor(t, w, target)
	for _, p := range seen {
		if p != target {
			t.Errorf("unexpected path reported: %s", p)
		}
	}
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	w, dir := newTestWatcher(t)
	a := filepath.Join(dir, "epics.json")
	b := filepath.Join(dir, "tags.json")

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(a, []byte{byte('0' + i)}, 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(b, []byte{byte('0' + i)}, 0644); err != nil {
			t.Fatal(err)
		}
	}

	seen := waitFor(t, w, a, b)
	// Five writes per file cannot all land in separate batches.
	if len(seen) >= 10 {
		t.Errorf("burst was not debounced: %d paths reported", len(seen))
	}
}

func TestWatcher_IgnoresMarkersAndTempFiles(t *testing.T) {
	w, dir := newTestWatcher(t)

	noise := []string{
		"tags.json.lock",
		"tags.json.rlock-1234",
		".tags.json.99.tmp-abc",
	}
	for _, name := range noise {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// A real change afterwards proves the watcher was running while the
	// noise was written.
	doc := filepath.Join(dir, "tags.json")
	if err := os.WriteFile(doc, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	seen := waitFor(t, w, doc)
	for _, p := range seen {
		if p != doc {
			t.Errorf("ignored file reported: %s", p)
		}
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write", fsnotify.Event{Name: "/p/spec/work-units.json", Op: fsnotify.Write}, true},
		{"create", fsnotify.Event{Name: "/p/spec/epics.json", Op: fsnotify.Create}, true},
		{"remove", fsnotify.Event{Name: "/p/spec/epics.json", Op: fsnotify.Remove}, true},
		{"chmod only", fsnotify.Event{Name: "/p/spec/epics.json", Op: fsnotify.Chmod}, false},
		{"exclusive marker", fsnotify.Event{Name: "/p/spec/epics.json.lock", Op: fsnotify.Create}, false},
		{"shared marker", fsnotify.Event{Name: "/p/spec/epics.json.rlock-abc", Op: fsnotify.Create}, false},
		{"grave", fsnotify.Event{Name: "/p/spec/epics.json.lock.stale-abc", Op: fsnotify.Rename}, false},
		{"temp file", fsnotify.Event{Name: "/p/spec/.epics.json.12.tmp-x1", Op: fsnotify.Write}, false},
		{"editor backup", fsnotify.Event{Name: "/p/spec/epics.json~", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevant(tt.ev); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}

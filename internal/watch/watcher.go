// Package watch reports changes to the project documents so the dashboard
// can reload without polling.
package watch

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/lockfile"
	"github.com/Iron-Ham/fspec/internal/logging"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle. Editors and the atomic writer each produce several events per save.
const DefaultDebounce = 50 * time.Millisecond

// Event is a settled batch of document changes.
type Event struct {
	// Paths holds the changed files, sorted and deduplicated.
	Paths []string
	At    time.Time
}

// Watcher watches one directory for document changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	logger   *logging.Logger

	events   chan Event
	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	mu       sync.Mutex
}

// New creates a watcher on dir. A nil logger discards output.
func New(dir string, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, ferrors.NewFsError("watch", dir, err)
	}
	if !info.IsDir() {
		return nil, ferrors.NewValidationError("not a directory").WithField("dir").WithValue(dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.NewFsError("watch", dir, err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, ferrors.NewFsError("watch", dir, err)
	}

	return &Watcher{
		watcher:  fw,
		dir:      dir,
		debounce: DefaultDebounce,
		logger:   logger.WithComponent("watch").WithPath(dir),
		events:   make(chan Event),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Events returns the channel of settled changes. It is closed after Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins delivering events.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.loop()
}

// Stop releases the underlying watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()

		w.mu.Lock()
		started := w.started
		w.started = true
		w.mu.Unlock()
		if started {
			<-w.done
		} else {
			close(w.events)
		}
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.events)

	timer := time.NewTimer(0)
	<-timer.C

	pending := make(map[string]struct{})
	settled := make(map[string]struct{})

	for {
		// Settled paths accumulate until the consumer is ready, so a slow
		// reader gets one merged event instead of missing changes.
		var out chan<- Event
		var next Event
		if len(settled) > 0 {
			out = w.events
			next = newEvent(settled)
		}

		select {
		case <-w.stopCh:
			timer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			for p := range pending {
				settled[p] = struct{}{}
			}
			if len(pending) > 0 {
				w.logger.Debug("documents changed", "count", len(pending))
			}
			pending = make(map[string]struct{})

		case out <- next:
			settled = make(map[string]struct{})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func newEvent(paths map[string]struct{}) Event {
	ev := Event{Paths: make([]string, 0, len(paths)), At: time.Now()}
	for p := range paths {
		ev.Paths = append(ev.Paths, p)
	}
	sort.Strings(ev.Paths)
	return ev
}

// relevant reports whether ev changes a document. Lock markers, temp files
// from in-flight atomic writes and attribute-only changes are not.
func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return !ignored(filepath.Base(ev.Name))
}

func ignored(name string) bool {
	return lockfile.IsMarkerFile(name) ||
		strings.Contains(name, ".tmp-") ||
		strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~")
}

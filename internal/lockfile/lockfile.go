package lockfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/logging"
)

// Handle is an acquired cross-process lock. It is released exactly once by
// the code that acquired it; further Release calls are no-ops.
type Handle struct {
	// Target is the resolved document path the lock protects.
	Target string
	// MarkerPath is the marker file this handle owns.
	MarkerPath string
	// Owner is the opaque id written into the marker.
	Owner      string
	PID        int
	AcquiredAt time.Time
	Mode       Mode

	created bool
	held    atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// Locker acquires and releases marker locks. It is safe for concurrent use;
// it keeps no per-path state, every decision is made from what is on disk.
type Locker struct {
	opts     Options
	logger   *logging.Logger
	pid      int
	hostname string
	now      func() time.Time
}

// New creates a Locker. A nil logger discards output.
func New(opts Options, logger *logging.Logger) *Locker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Locker{
		opts:     opts.normalized(),
		logger:   logger.WithComponent("lockfile"),
		pid:      os.Getpid(),
		hostname: hostname,
		now:      time.Now,
	}
}

// Options returns the effective timing.
func (l *Locker) Options() Options {
	return l.opts
}

// ResolvePath returns the absolute, symlink-free form of path. A path that
// does not exist yet is resolved through its parent directory; if the parent
// is missing too the cleaned absolute path is returned and the first I/O on
// it reports the problem.
func ResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs, nil
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

// Acquire locks path in the given mode. Symlinks are resolved once, before
// the first attempt. It fails with *errors.LockTimeoutError when the retry
// budget is exhausted, with *errors.FsError on I/O failures, and with the
// context's error when ctx ends first. No marker is left behind on failure.
func (l *Locker) Acquire(ctx context.Context, path string, mode Mode) (*Handle, error) {
	target, err := ResolvePath(path)
	if err != nil {
		return nil, ferrors.NewFsError("resolve lock target", path, err)
	}

	h := &Handle{
		Target: target,
		Owner:  uuid.NewString(),
		PID:    l.pid,
		Mode:   mode,
	}
	if mode == Exclusive {
		h.MarkerPath = ExclusiveMarkerPath(target)
	} else {
		h.MarkerPath = sharedMarkerPath(target, h.Owner)
	}

	var blocker *observation
	attempts := 0
	for retry := 0; retry <= l.opts.RetryCount; retry++ {
		if retry > 0 {
			if err := sleep(ctx, l.opts.Backoff(retry)); err != nil {
				l.abandon(h)
				return nil, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		var ok bool
		if mode == Exclusive {
			ok, blocker, err = l.tryExclusive(h)
		} else {
			ok, blocker, err = l.tryShared(h)
		}
		if err != nil {
			l.abandon(h)
			return nil, err
		}
		if ok {
			h.held.Store(true)
			l.logger.Debug("lock acquired",
				"path", target,
				"mode", mode.String(),
				"attempts", attempts,
			)
			return h, nil
		}
	}

	l.abandon(h)
	timeoutErr := ferrors.NewLockTimeoutError(target, attempts)
	if blocker != nil && blocker.marker != nil {
		timeoutErr.WithHolder(blocker.marker.PID, blocker.marker.Hostname)
	}
	l.logger.Error("lock acquisition timed out",
		"path", target,
		"mode", mode.String(),
		"attempts", attempts,
		"holder", blocker.owner(),
	)
	return nil, timeoutErr
}

// Verify reports whether h's marker still names h's owner. It returns
// *errors.LockLostError when another process took the marker over, so a
// caller can refuse to write under a lock it no longer holds.
func (l *Locker) Verify(h *Handle) error {
	obs, err := observe(h.MarkerPath)
	if err != nil {
		return ferrors.NewFsError("read lock marker", h.MarkerPath, err)
	}
	if obs == nil || obs.owner() != h.Owner {
		l.logger.Error("lock marker lost while held",
			"marker", h.MarkerPath,
			"owner", obs.owner(),
		)
		return ferrors.NewLockLostError(h.Target, obs.owner())
	}
	return nil
}

// Release removes the handle's marker if it still names the handle's owner.
// A marker that was reclaimed and re-created by another holder is left alone.
func (l *Locker) Release(h *Handle) error {
	if h == nil || !h.held.CompareAndSwap(true, false) {
		return nil
	}
	l.stopKeepalive(h)
	if err := l.removeOwned(h); err != nil {
		return err
	}
	l.logger.Debug("lock released", "path", h.Target, "mode", h.Mode.String())
	return nil
}

// tryExclusive makes one exclusive attempt. The exclusive marker, once ours,
// is kept fresh across attempts while readers drain, and is checked to still
// be ours before the lock is reported acquired.
func (l *Locker) tryExclusive(h *Handle) (bool, *observation, error) {
	if !h.created {
		m := l.newMarker(h)
		created, blocker, err := l.claim(h.MarkerPath, m)
		if err != nil {
			return false, nil, ferrors.NewFsError("create lock marker", h.MarkerPath, err)
		}
		if !created {
			return false, blocker, nil
		}
		l.markCreated(h, m)
	}

	readers, err := l.liveReaders(h.Target)
	if err != nil {
		return false, nil, ferrors.NewFsError("list reader markers", h.Target, err)
	}
	if len(readers) > 0 {
		return false, readers[0], nil
	}
	return l.confirmOwned(h)
}

// tryShared makes one shared attempt: publish our reader marker, then back
// off if a live exclusive marker exists.
func (l *Locker) tryShared(h *Handle) (bool, *observation, error) {
	if !h.created {
		m := l.newMarker(h)
		created, err := createMarker(h.MarkerPath, m)
		if err != nil {
			return false, nil, ferrors.NewFsError("create lock marker", h.MarkerPath, err)
		}
		if !created {
			return false, nil, ferrors.NewFsError("create lock marker", h.MarkerPath, fs.ErrExist)
		}
		l.markCreated(h, m)
	}

	exclusive := ExclusiveMarkerPath(h.Target)
	obs, err := observe(exclusive)
	if err != nil {
		return false, nil, ferrors.NewFsError("read lock marker", exclusive, err)
	}

	switch classify(obs, l.now(), l.opts.StaleAfter) {
	case stateStale:
		if err := l.reclaim(exclusive, obs); err != nil {
			return false, nil, ferrors.NewFsError("reclaim stale lock", exclusive, err)
		}
		return l.confirmOwned(h)
	case stateHeld:
		l.stopKeepalive(h)
		if err := os.Remove(h.MarkerPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, nil, ferrors.NewFsError("remove lock marker", h.MarkerPath, err)
		}
		h.created = false
		return false, obs, nil
	default:
		return l.confirmOwned(h)
	}
}

// markCreated records that h's marker exists and starts refreshing it at
// once: a writer draining readers can wait longer than StaleAfter.
func (l *Locker) markCreated(h *Handle, m Marker) {
	h.created = true
	h.AcquiredAt = m.AcquiredAt
	l.startKeepalive(h)
}

// confirmOwned re-reads h's marker before an attempt succeeds. A marker that
// was reclaimed and re-created by someone else while we waited is no longer
// ours; the next attempt starts over and competes for it.
func (l *Locker) confirmOwned(h *Handle) (bool, *observation, error) {
	obs, err := observe(h.MarkerPath)
	if err != nil {
		return false, nil, ferrors.NewFsError("read lock marker", h.MarkerPath, err)
	}
	if obs != nil && obs.owner() == h.Owner {
		return true, nil, nil
	}
	l.logger.Warn("lock marker taken over during acquisition",
		"marker", h.MarkerPath,
		"owner", obs.owner(),
	)
	l.stopKeepalive(h)
	h.created = false
	return false, obs, nil
}

// claim creates the marker at path, reclaiming a stale one first. It
// returns the live marker that blocked it when creation fails.
func (l *Locker) claim(path string, m Marker) (bool, *observation, error) {
	for i := 0; i < 2; i++ {
		created, err := createMarker(path, m)
		if err != nil || created {
			return created, nil, err
		}

		obs, err := observe(path)
		if err != nil {
			return false, nil, err
		}
		switch classify(obs, l.now(), l.opts.StaleAfter) {
		case stateHeld:
			return false, obs, nil
		case stateStale:
			if err := l.reclaim(path, obs); err != nil {
				return false, nil, err
			}
		}
		// Free: the holder released between our create and observe.
	}

	obs, err := observe(path)
	return false, obs, err
}

// reclaim removes a stale marker. The marker is first renamed to a unique
// grave name so that two reclaimers cannot both delete it; if what we moved
// turns out to be a live marker created after we looked, it is linked back
// (link never overwrites) before the grave is removed.
func (l *Locker) reclaim(path string, seen *observation) error {
	grave := path + graveInfix + uuid.NewString()
	if err := os.Rename(path, grave); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = os.Remove(grave) }()

	moved, err := observe(grave)
	if err != nil {
		return err
	}
	if moved != nil && classify(moved, l.now(), l.opts.StaleAfter) != stateStale {
		// Link never overwrites, so a marker created by a third process in
		// between wins. The owner we moved detects the loss through its
		// ownership checks and does not write.
		if err := os.Link(grave, path); err != nil {
			current, _ := observe(path)
			l.logger.Error("could not restore live lock marker",
				"marker", path,
				"owner", moved.owner(),
				"current_owner", current.owner(),
				"error", err.Error(),
			)
		}
		return nil
	}

	age := l.now().Sub(seen.lastSeen())
	var pid int
	if seen.marker != nil {
		pid = seen.marker.PID
	}
	l.logger.Warn("stale lock reclaimed",
		"marker", path,
		"owner", seen.owner(),
		"old_pid", pid,
		"age_ms", age.Milliseconds(),
	)
	return nil
}

// liveReaders returns the live shared markers of target, deleting stale ones.
func (l *Locker) liveReaders(target string) ([]*observation, error) {
	paths, err := listMarkers(target)
	if err != nil {
		return nil, err
	}

	var live []*observation
	for _, p := range paths {
		if !strings.Contains(filepath.Base(p), SharedInfix) {
			continue
		}
		obs, err := observe(p)
		if err != nil {
			return nil, err
		}
		switch classify(obs, l.now(), l.opts.StaleAfter) {
		case stateHeld:
			live = append(live, obs)
		case stateStale:
			// Reader marker names are unique per acquisition, so a plain
			// remove cannot hit a newer holder.
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			l.logger.Warn("stale reader lock reclaimed",
				"marker", p,
				"owner", obs.owner(),
				"age_ms", l.now().Sub(obs.lastSeen()).Milliseconds(),
			)
		}
	}
	return live, nil
}

// abandon removes a marker created during a failed acquisition.
func (l *Locker) abandon(h *Handle) {
	l.stopKeepalive(h)
	if !h.created {
		return
	}
	if err := l.removeOwned(h); err != nil {
		l.logger.Warn("failed to remove lock marker after failed acquisition",
			"marker", h.MarkerPath,
			"error", err.Error(),
		)
	}
	h.created = false
}

// removeOwned deletes h's marker only if it still carries h's owner id.
func (l *Locker) removeOwned(h *Handle) error {
	obs, err := observe(h.MarkerPath)
	if err != nil {
		return ferrors.NewFsError("read lock marker", h.MarkerPath, err)
	}
	if obs == nil {
		l.logger.Warn("lock marker already removed", "marker", h.MarkerPath)
		return nil
	}
	if obs.owner() != h.Owner {
		l.logger.Warn("lock marker now belongs to another holder, leaving it",
			"marker", h.MarkerPath,
			"owner", obs.owner(),
		)
		return nil
	}
	if err := os.Remove(h.MarkerPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ferrors.NewFsError("remove lock marker", h.MarkerPath, err)
	}
	return nil
}

func (l *Locker) newMarker(h *Handle) Marker {
	return Marker{
		Owner:      h.Owner,
		PID:        l.pid,
		Hostname:   l.hostname,
		Mode:       h.Mode.String(),
		AcquiredAt: l.now(),
	}
}

// startKeepalive refreshes the marker's modification time from creation
// until release, so slow acquisitions and critical sections are not mistaken
// for crashed ones. Refreshing stops once the marker names another owner.
func (l *Locker) startKeepalive(h *Handle) {
	interval := l.opts.keepaliveInterval()
	if interval <= 0 || h.stop != nil {
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	h.stop, h.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if obs, err := observe(h.MarkerPath); err == nil && obs.owner() != h.Owner {
					l.logger.Warn("lock marker lost, no longer refreshing it",
						"marker", h.MarkerPath,
						"owner", obs.owner(),
					)
					return
				}
				now := time.Now()
				if err := os.Chtimes(h.MarkerPath, now, now); err != nil {
					l.logger.Warn("failed to refresh lock marker",
						"marker", h.MarkerPath,
						"error", err.Error(),
					)
				}
			}
		}
	}()
}

func (l *Locker) stopKeepalive(h *Handle) {
	if h.stop == nil {
		return
	}
	close(h.stop)
	<-h.done
	h.stop, h.done = nil, nil
}

// Inspect reports the markers currently present next to path, for
// diagnostics. It never modifies them.
func (l *Locker) Inspect(path string) ([]MarkerInfo, error) {
	target, err := ResolvePath(path)
	if err != nil {
		return nil, ferrors.NewFsError("resolve lock target", path, err)
	}
	paths, err := listMarkers(target)
	if err != nil {
		return nil, ferrors.NewFsError("list lock markers", target, err)
	}

	infos := make([]MarkerInfo, 0, len(paths))
	now := l.now()
	for _, p := range paths {
		obs, err := observe(p)
		if err != nil {
			return nil, ferrors.NewFsError("read lock marker", p, err)
		}
		if obs == nil {
			continue
		}
		mode := Shared
		if strings.HasSuffix(p, ExclusiveSuffix) {
			mode = Exclusive
		}
		infos = append(infos, MarkerInfo{
			Path:     p,
			Mode:     mode,
			Marker:   obs.marker,
			LastSeen: obs.lastSeen(),
			Stale:    classify(obs, now, l.opts.StaleAfter) == stateStale,
		})
	}
	return infos, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

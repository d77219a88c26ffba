package filemanager

import (
	"context"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/lockfile"
)

// sharedHold is the one cross-process reader marker that every in-process
// reader of a path shares. The first reader acquires it and the last one out
// releases it; readers joining a live hold do not touch the disk.
type sharedHold struct {
	refs int
	// ready is closed once the first reader's acquisition finished; handle
	// and err are fixed from then on.
	ready  chan struct{}
	handle *lockfile.Handle
	err    error
}

// acquireShared returns the shared hold for target, acquiring its marker if
// no in-process reader holds one. The caller must already hold target's
// in-process read lock, so no writer of this process is active.
func (m *Manager) acquireShared(ctx context.Context, target string) (*sharedHold, error) {
	for {
		m.sharedMu.Lock()
		hold, joined := m.shared[target]
		if joined {
			hold.refs++
		} else {
			hold = &sharedHold{refs: 1, ready: make(chan struct{})}
			m.shared[target] = hold
		}
		m.sharedMu.Unlock()

		if !joined {
			h, err := m.locker.Acquire(ctx, target, lockfile.Shared)
			m.sharedMu.Lock()
			hold.handle, hold.err = h, err
			if err != nil && m.shared[target] == hold {
				delete(m.shared, target)
			}
			m.sharedMu.Unlock()
			close(hold.ready)

			if err != nil {
				_ = m.releaseShared(target, hold)
				return nil, err
			}
			return hold, nil
		}

		select {
		case <-hold.ready:
		case <-ctx.Done():
			_ = m.releaseShared(target, hold)
			return nil, ctx.Err()
		}
		if hold.err == nil {
			m.logger.Debug("joined shared lock", "path", target)
			return hold, nil
		}
		_ = m.releaseShared(target, hold)

		// The first reader gave up because its own context ended; ours may
		// still be live, so start a fresh hold.
		if isContextErr(hold.err) && ctx.Err() == nil {
			continue
		}
		return nil, hold.err
	}
}

// releaseShared drops one reference to hold and releases the marker when the
// last reader leaves.
func (m *Manager) releaseShared(target string, hold *sharedHold) error {
	m.sharedMu.Lock()
	hold.refs--
	if hold.refs > 0 {
		m.sharedMu.Unlock()
		return nil
	}
	if m.shared[target] == hold {
		delete(m.shared, target)
	}
	h := hold.handle
	m.sharedMu.Unlock()

	return m.locker.Release(h)
}

func isContextErr(err error) bool {
	return ferrors.Is(err, context.Canceled) || ferrors.Is(err, context.DeadlineExceeded)
}

// Package rwlock provides path-scoped readers-writer locks for goroutines
// inside one fspec process.
//
// A [Table] holds one lock state per path, created on first use and never
// evicted (fspec tracks a handful of documents per project). Waiters are kept
// in a single FIFO queue so the fairness policy is a property of this package
// rather than of sync.RWMutex:
//
//   - a reader is admitted immediately only if no writer holds the path and
//     nobody is queued, so a queued writer is never overtaken by new readers;
//   - a writer is admitted immediately only if the path is idle and nobody is
//     queued;
//   - on release the head of the queue is granted: a writer alone, or a run
//     of consecutive readers up to the next queued writer.
//
// Acquisition blocks until granted. The only error is cancellation of the
// caller's context.
package rwlock

import (
	"context"
	"fmt"
	"sync"
)

type waiterKind int

const (
	readWaiter waiterKind = iota
	writeWaiter
)

// waiter is one blocked caller. granted is guarded by Table.mu; ready is
// closed exactly once, when the waiter is granted.
type waiter struct {
	kind    waiterKind
	ready   chan struct{}
	granted bool
}

// pathState is the lock state of a single path. All fields are guarded by
// Table.mu.
type pathState struct {
	readers int
	writer  bool
	queue   []*waiter
}

// State is a point-in-time copy of a path's lock state.
type State struct {
	Readers        int
	WriterActive   bool
	PendingReaders int
	PendingWriters int
}

// Table is a process-wide set of per-path readers-writer locks.
// The zero value is not usable; create one with NewTable.
type Table struct {
	mu    sync.Mutex
	paths map[string]*pathState
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{paths: make(map[string]*pathState)}
}

// stateLocked returns the state for path, creating it on first use.
// The caller must hold t.mu.
func (t *Table) stateLocked(path string) *pathState {
	s, ok := t.paths[path]
	if !ok {
		s = &pathState{}
		t.paths[path] = s
	}
	return s
}

// AcquireRead blocks until the caller may read path.
func (t *Table) AcquireRead(ctx context.Context, path string) error {
	return t.acquire(ctx, path, readWaiter)
}

// AcquireWrite blocks until the caller holds path exclusively.
func (t *Table) AcquireWrite(ctx context.Context, path string) error {
	return t.acquire(ctx, path, writeWaiter)
}

func (t *Table) acquire(ctx context.Context, path string, kind waiterKind) error {
	t.mu.Lock()
	s := t.stateLocked(path)
	if len(s.queue) == 0 && !s.writer && (kind == readWaiter || s.readers == 0) {
		if kind == readWaiter {
			s.readers++
		} else {
			s.writer = true
		}
		t.mu.Unlock()
		return nil
	}

	w := &waiter{kind: kind, ready: make(chan struct{})}
	s.queue = append(s.queue, w)
	t.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
	}

	t.mu.Lock()
	if w.granted {
		// Granted while we were giving up; hand the lock back.
		t.mu.Unlock()
		if kind == readWaiter {
			t.ReleaseRead(path)
		} else {
			t.ReleaseWrite(path)
		}
		return ctx.Err()
	}
	for i, q := range s.queue {
		if q == w {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	// A departing writer at the head may have been holding back readers.
	s.grantLocked()
	t.mu.Unlock()
	return ctx.Err()
}

// ReleaseRead releases one read hold on path. It panics if path is not
// read-locked, like sync.RWMutex.RUnlock.
func (t *Table) ReleaseRead(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.paths[path]
	if !ok || s.readers == 0 {
		panic(fmt.Sprintf("rwlock: ReleaseRead of %s without a read lock", path))
	}
	s.readers--
	if s.readers == 0 {
		s.grantLocked()
	}
}

// ReleaseWrite releases the write hold on path. It panics if path is not
// write-locked, like sync.RWMutex.Unlock.
func (t *Table) ReleaseWrite(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.paths[path]
	if !ok || !s.writer {
		panic(fmt.Sprintf("rwlock: ReleaseWrite of %s without the write lock", path))
	}
	s.writer = false
	s.grantLocked()
}

// grantLocked wakes the next eligible waiters in FIFO order.
// The caller must hold Table.mu.
func (s *pathState) grantLocked() {
	for len(s.queue) > 0 && !s.writer {
		head := s.queue[0]
		if head.kind == writeWaiter {
			if s.readers > 0 {
				return
			}
			s.writer = true
			s.popLocked()
			return
		}
		s.readers++
		s.popLocked()
	}
}

func (s *pathState) popLocked() {
	w := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	w.granted = true
	close(w.ready)
}

// Snapshot returns the current lock state of path. Paths never touched
// report the zero State.
func (t *Table) Snapshot(path string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.paths[path]
	if !ok {
		return State{}
	}
	st := State{Readers: s.readers, WriterActive: s.writer}
	for _, w := range s.queue {
		if w.kind == writeWaiter {
			st.PendingWriters++
		} else {
			st.PendingReaders++
		}
	}
	return st
}

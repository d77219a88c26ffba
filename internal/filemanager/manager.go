// Package filemanager is the single entry point for reading and writing
// fspec's JSON documents. Every operation takes the in-process
// readers-writer lock for the document's resolved path, then the
// cross-process marker lock, then does its I/O; both are released on every
// exit path, including panics in caller code.
package filemanager

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/fspec/internal/atomicfile"
	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/lockfile"
	"github.com/Iron-Ham/fspec/internal/logging"
	"github.com/Iron-Ham/fspec/internal/rwlock"
)

// Manager serializes access to JSON documents within and across processes.
// Build one per process and share it; it holds no open files at rest.
type Manager struct {
	fs       afero.Fs
	writer   *atomicfile.Writer
	locks    *rwlock.Table
	locker   *lockfile.Locker
	lockOpts lockfile.Options
	logger   *logging.Logger

	// shared holds one reader marker per path for all in-process readers.
	sharedMu sync.Mutex
	shared   map[string]*sharedHold
}

// Option configures a Manager.
type Option func(*Manager)

// WithLockOptions sets the cross-process lock timing.
func WithLockOptions(opts lockfile.Options) Option {
	return func(m *Manager) {
		m.lockOpts = opts
	}
}

// WithFs sets the filesystem used for document reads and writes. Lock
// markers always live on the OS filesystem, where other processes see them.
func WithFs(fsys afero.Fs) Option {
	return func(m *Manager) {
		m.fs = fsys
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		fs:       afero.NewOsFs(),
		lockOpts: lockfile.DefaultOptions(),
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("filemanager")
	m.writer = atomicfile.NewWriter(m.fs)
	m.locks = rwlock.NewTable()
	m.locker = lockfile.New(m.lockOpts, m.logger)
	m.shared = make(map[string]*sharedHold)
	return m
}

// LockOptions returns the effective cross-process lock timing.
func (m *Manager) LockOptions() lockfile.Options {
	return m.locker.Options()
}

// Inspect lists the lock markers currently present next to path.
func (m *Manager) Inspect(path string) ([]lockfile.MarkerInfo, error) {
	return m.locker.Inspect(path)
}

// ReadJSON decodes the document at path into v under a shared lock. The
// file is read fresh on every call. A missing file is an *errors.FsError
// matching fs.ErrNotExist; malformed content is an *errors.ParseError.
func (m *Manager) ReadJSON(ctx context.Context, path string, v any) (err error) {
	l, err := m.lock(ctx, path, lockfile.Shared)
	if err != nil {
		return err
	}
	defer func() { err = withRelease(err, l.release()) }()

	data, err := afero.ReadFile(m.fs, l.target)
	if err != nil {
		return ferrors.NewFsError("read", l.target, err)
	}
	return decode(l.target, data, v)
}

// WriteJSON replaces the document at path with v, encoded as indented JSON
// with a trailing newline. v is encoded before any lock is taken, so an
// encoding failure (an *errors.ValidationError) leaves the document and the
// lock state untouched. A lock taken over by another process while held
// fails with *errors.LockLostError and nothing is written.
func (m *Manager) WriteJSON(ctx context.Context, path string, v any) (err error) {
	data, err := encode(v)
	if err != nil {
		return encodeError(path, err)
	}

	l, err := m.lock(ctx, path, lockfile.Exclusive)
	if err != nil {
		return err
	}
	defer func() { err = withRelease(err, l.release()) }()

	if err := m.commit(l, data); err != nil {
		return err
	}
	m.logger.Debug("document written", "path", l.target, "bytes", len(data))
	return nil
}

// Transaction runs a read-modify-write of the document at path under an
// exclusive lock held from the read through the write.
//
// A missing document starts as the zero T. A malformed one fails with
// *errors.ParseError before mutate runs. If mutate returns an error nothing
// is written and that error is returned. The document is written back only
// when mutate changed its encoded form, and only if the lock marker is still
// ours; otherwise it fails with *errors.LockLostError.
func Transaction[T any](ctx context.Context, m *Manager, path string, mutate func(*T) error) (err error) {
	l, err := m.lock(ctx, path, lockfile.Exclusive)
	if err != nil {
		return err
	}
	defer func() { err = withRelease(err, l.release()) }()
	target := l.target

	var doc T
	data, err := afero.ReadFile(m.fs, target)
	switch {
	case err == nil:
		if err := decode(target, data, &doc); err != nil {
			return err
		}
	case ferrors.Is(err, fs.ErrNotExist):
	default:
		return ferrors.NewFsError("read", target, err)
	}

	// The baseline is the document's canonical encoding, so formatting
	// differences alone never cause a rewrite.
	before, baseErr := encode(&doc)

	if err := mutate(&doc); err != nil {
		return err
	}

	after, err := encode(&doc)
	if err != nil {
		return encodeError(target, err)
	}
	if baseErr == nil && bytes.Equal(before, after) {
		m.logger.Debug("transaction made no changes", "path", target)
		return nil
	}

	if err := m.commit(l, after); err != nil {
		return err
	}
	m.logger.Debug("transaction committed", "path", target, "bytes", len(after))
	return nil
}

// Read is a typed form of ReadJSON.
func Read[T any](ctx context.Context, m *Manager, path string) (T, error) {
	var v T
	err := m.ReadJSON(ctx, path, &v)
	return v, err
}

// lease is a document lock held by one operation.
type lease struct {
	target string
	// handle is the cross-process lock; shared leases of a path share one.
	handle  *lockfile.Handle
	release func() error
}

// lock takes the in-process lock, then the cross-process lock, for the
// resolved form of path. The lease's release undoes both in reverse order.
func (m *Manager) lock(ctx context.Context, path string, mode lockfile.Mode) (*lease, error) {
	target, err := lockfile.ResolvePath(path)
	if err != nil {
		return nil, ferrors.NewFsError("resolve", path, err)
	}

	start := time.Now()
	if mode == lockfile.Exclusive {
		err = m.locks.AcquireWrite(ctx, target)
	} else {
		err = m.locks.AcquireRead(ctx, target)
	}
	if err != nil {
		return nil, err
	}

	unlock := func() {
		if mode == lockfile.Exclusive {
			m.locks.ReleaseWrite(target)
		} else {
			m.locks.ReleaseRead(target)
		}
	}

	l := &lease{target: target}
	var release func() error
	if mode == lockfile.Exclusive {
		l.handle, err = m.locker.Acquire(ctx, target, mode)
		release = func() error { return m.locker.Release(l.handle) }
	} else {
		var hold *sharedHold
		hold, err = m.acquireShared(ctx, target)
		if hold != nil {
			l.handle = hold.handle
		}
		release = func() error { return m.releaseShared(target, hold) }
	}
	if err != nil {
		unlock()
		return nil, err
	}

	if waited := time.Since(start); waited > m.locker.Options().MinBackoff {
		m.logger.Debug("lock contended", "path", target, "mode", mode.String(), "waited_ms", waited.Milliseconds())
	}

	l.release = func() error {
		defer unlock()
		return release()
	}
	return l, nil
}

// commit writes data to the leased document after confirming that the lock
// marker is still ours.
func (m *Manager) commit(l *lease, data []byte) error {
	if err := m.locker.Verify(l.handle); err != nil {
		return err
	}
	if err := m.writer.WriteFile(l.target, data); err != nil {
		return ferrors.NewFsError("write", l.target, err)
	}
	return nil
}

// withRelease folds a release failure into the operation's result without
// hiding the primary error.
func withRelease(err, releaseErr error) error {
	if releaseErr == nil {
		return err
	}
	if err == nil {
		return releaseErr
	}
	return multierror.Append(err, releaseErr)
}

func encodeError(path string, err error) error {
	return ferrors.NewValidationError("document cannot be encoded as JSON").WithField(path).WithCause(err)
}

func encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decode(path string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return parseError(path, data, err)
	}
	return nil
}

// parseError locates the failing byte of a decoder error. Errors that carry
// no offset produce a ParseError without a position.
func parseError(path string, data []byte, err error) *ferrors.ParseError {
	var (
		offset    int64 = -1
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case ferrors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case ferrors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 {
		return ferrors.NewParseError(path, 0, 0, 0, err)
	}

	// The decoder reports how many bytes it consumed, so the culprit is the
	// byte before that.
	pos := offset - 1
	if pos < 0 {
		pos = 0
	}
	if pos > int64(len(data)) {
		pos = int64(len(data))
	}
	line, column := position(data[:pos])
	return ferrors.NewParseError(path, line, column, pos, err)
}

// position returns the 1-based line and column just past prefix.
func position(prefix []byte) (int, int) {
	line, column := 1, 1
	for _, b := range prefix {
		if b == '\n' {
			line++
			column = 1
			continue
		}
		column++
	}
	return line, column
}

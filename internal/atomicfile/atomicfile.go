// Package atomicfile replaces files all-or-nothing: readers of the target see
// either the previous content or the new content, never a partial write.
package atomicfile

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
)

// DefaultPerm is the mode given to files that did not exist before.
const DefaultPerm fs.FileMode = 0644

// Writer performs atomic replaces on an afero filesystem.
type Writer struct {
	fs afero.Fs
}

// NewWriter returns a Writer backed by fsys. A nil fsys means the OS
// filesystem.
func NewWriter(fsys afero.Fs) *Writer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Writer{fs: fsys}
}

// TempPattern returns the temp file pattern used for target. The pid in the
// name lets an operator tell which process left a temp file behind.
func TempPattern(target string) string {
	return "." + filepath.Base(target) + "." + strconv.Itoa(os.Getpid()) + ".tmp-*"
}

// WriteFile writes data to a temp file in path's directory, syncs it, gives
// it the target's current mode (DefaultPerm for new files) and renames it
// over path. The temp file is removed on failure and the underlying error is
// returned as is.
func (w *Writer) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	perm := DefaultPerm
	if info, err := w.fs.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := afero.TempFile(w.fs, dir, TempPattern(path))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = w.fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := w.fs.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := w.fs.Rename(tmpPath, path); err != nil {
		return err
	}
	success = true

	w.syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform allows it. Failures
// are ignored: the rename already happened.
func (w *Writer) syncDir(dir string) {
	d, err := w.fs.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

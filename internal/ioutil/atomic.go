// Package ioutil provides the storage layer's only path to disk: safe
// path composition, atomic write-via-temp+rename, line-addressed reads,
// and recursive removal. Every write in the store funnels through
// AtomicWrite so that a reader never observes a partially written file.
package ioutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"fdb/internal/ferrors"
)

// tempPath builds the "<path>.wal.<uuid>" temp name used for atomic
// writes.
func tempPath(path string) string {
	return path + ".wal." + uuid.NewString()
}

// AtomicWrite writes data to path such that a concurrent reader sees
// either the previous content or the complete new content, never a
// partial write. It writes to a temp file in the same directory,
// acquires an exclusive advisory lock on it, writes and flushes, releases
// the lock, then renames over the target. On any failure after the temp
// file was created, the temp file is removed.
func AtomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.AtomicWrite", "create parent directory", err)
	}

	tmp := tempPath(path)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.AtomicWrite", "create temp file", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if lockErr := unix.Flock(int(f.Fd()), unix.LOCK_EX); lockErr != nil {
		f.Close()
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.AtomicWrite", "lock temp file", lockErr)
	}

	if _, werr := f.Write(data); werr != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.AtomicWrite", "write temp file", werr)
	}
	if serr := f.Sync(); serr != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.AtomicWrite", "flush temp file", serr)
	}

	if uerr := unix.Flock(int(f.Fd()), unix.LOCK_UN); uerr != nil {
		f.Close()
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.AtomicWrite", "unlock temp file", uerr)
	}
	if cerr := f.Close(); cerr != nil {
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.AtomicWrite", "close temp file", cerr)
	}

	if rerr := os.Rename(tmp, path); rerr != nil {
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.AtomicWrite", "rename temp file into place", rerr)
	}

	return nil
}

// ReadAll reads the full content of path.
func ReadAll(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.Wrap(ferrors.NotFound, "ioutil.ReadAll", path, err)
		}
		return nil, ferrors.Wrap(ferrors.IOFailure, "ioutil.ReadAll", path, err)
	}
	return data, nil
}

// Join composes path elements the way the rest of the store expects,
// always relative to a storage root.
func Join(elem ...string) string {
	return filepath.Join(elem...)
}

// RemoveTree recursively removes dir and everything under it.
func RemoveTree(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.RemoveTree", dir, err)
	}
	return nil
}

// Remove unlinks a single file at path.
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ferrors.Wrap(ferrors.NotFound, "ioutil.Remove", path, err)
		}
		return ferrors.Wrap(ferrors.IOFailure, "ioutil.Remove", path, err)
	}
	return nil
}

// Exists reports whether path exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Tombstone renames dir to a sibling ".deleted_<name>" path and returns
// the tombstone path, the first half of the table/database delete
// sequence (rename-to-tombstone, then RemoveTree).
func Tombstone(dir string) (string, error) {
	tomb := filepath.Join(filepath.Dir(dir), ".deleted_"+filepath.Base(dir))
	if err := os.Rename(dir, tomb); err != nil {
		if os.IsNotExist(err) {
			return "", ferrors.Wrap(ferrors.NotFound, "ioutil.Tombstone", dir, err)
		}
		return "", ferrors.Wrap(ferrors.IOFailure, "ioutil.Tombstone", dir, err)
	}
	return tomb, nil
}

// SweepStaleTemp unlinks leftover "*.wal.*" files under dir older than
// maxAge. A cancelled AtomicWrite leaves its temp file on disk forever
// otherwise; callers run this once at startup.
func SweepStaleTemp(dir string, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.Contains(d.Name(), ".wal.") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr != nil {
				return fmt.Errorf("ioutil.SweepStaleTemp: remove %s: %w", path, rmErr)
			}
		}
		return nil
	})
}

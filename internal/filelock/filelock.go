// Package filelock provides cross-process file locks and atomic writes for
// the generated workspace.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when a lock could not be acquired before the deadline.
var ErrLocked = errors.New("lock held by another process")

// FileLock wraps a flock file lock for coordinating access to a directory or file.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a new file lock backed by the file at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// Acquire takes the exclusive lock, polling every retryDelay until ctx is done.
// Returns ErrLocked (wrapped) if the lock is still held when ctx expires.
func (fl *FileLock) Acquire(ctx context.Context, retryDelay time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(fl.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	locked, err := fl.flock.TryLockContext(ctx, retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrLocked, fl.path)
		}
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, fl.path)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if another holder has it.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// Locked reports whether this handle currently holds the lock.
func (fl *FileLock) Locked() bool {
	return fl.flock.Locked()
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// AtomicWrite writes data to path through a temp file in the same directory
// followed by a rename, so readers never observe a partial file. The parent
// directory must already exist; a missing directory is reported as an error.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}

// Write is one file to be written by LockAndWrite.
type Write struct {
	Path string
	Data []byte
}

// LockAndWrite holds the lock at lockPath while writing each file atomically,
// in order. It stops at the first failure; files written before it keep their
// new content.
func LockAndWrite(lockPath string, writes ...Write) error {
	lock := NewFileLock(lockPath)
	if err := lock.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", lockPath, err)
	}
	defer lock.Unlock()

	for _, w := range writes {
		if err := AtomicWrite(w.Path, w.Data); err != nil {
			return err
		}
	}
	return nil
}

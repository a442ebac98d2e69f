// Package filelock writes coordination artifacts (result files, exports)
// atomically under an advisory lock so concurrent runs targeting the same
// path never interleave or leave partial files behind.
package filelock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultRetryDelay is how often a blocked Acquire polls the lock.
const DefaultRetryDelay = 50 * time.Millisecond

// ErrLockTimeout is returned when the context ends before the lock is acquired.
var ErrLockTimeout = errors.New("timed out waiting for file lock")

// FileLock is an exclusive advisory lock backed by a lock file.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock returns an unlocked lock on path. The file is created on first acquire.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Path returns the lock file location.
func (fl *FileLock) Path() string {
	return fl.path
}

// Acquire blocks until the lock is held or ctx is done.
func (fl *FileLock) Acquire(ctx context.Context) error {
	locked, err := fl.flock.TryLockContext(ctx, DefaultRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrLockTimeout, fl.path)
		}
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLockTimeout, fl.path)
	}
	return nil
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (fl *FileLock) TryAcquire() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// Release drops the lock.
func (fl *FileLock) Release() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// AtomicWrite replaces path with data via a temp file in the same directory
// and a rename, so readers see either the old or the new content.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	committed = true
	return nil
}

// LockAndWrite holds "<path>.lock" for the duration of an AtomicWrite. The
// lock file is left in place; removing it would let a waiter holding the old
// inode run alongside a newcomer.
func LockAndWrite(ctx context.Context, path string, data []byte) error {
	lock := NewFileLock(path + ".lock")
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	defer lock.Release()

	return AtomicWrite(path, data)
}

// WriteJSON writes v as indented JSON to path using LockAndWrite.
func WriteJSON(ctx context.Context, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return LockAndWrite(ctx, path, append(data, '\n'))
}

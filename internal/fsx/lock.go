// Package fsx provides a small real-filesystem locking helper: the one
// capability the content-addressed store needs from the filesystem
// beyond os, an advisory exclusive lock on a real file.
package fsx

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by TryLock when another process already
// holds the lock.
var ErrWouldBlock = errors.New("fsx: lock held by another process")

// FileLock is an advisory, exclusive, whole-file lock acquired via
// flock(2). It is released by Close.
type FileLock struct {
	f *os.File
}

// TryLock opens (creating if necessary) a lockfile alongside path,
// named path+".lock", and attempts to acquire an exclusive,
// non-blocking flock on it. It returns ErrWouldBlock if the lock is
// already held.
//
// A separate lockfile, rather than flocking the data file itself, is
// used so that the lock's lifetime is independent of any truncate or
// reopen of the data file.
func TryLock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("fsx: open lockfile: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrWouldBlock
		}
		return nil, fmt.Errorf("fsx: flock: %w", err)
	}

	return &FileLock{f: f}, nil
}

// Close releases the lock.
func (l *FileLock) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("fsx: unlock: %w", err)
	}
	return cerr
}

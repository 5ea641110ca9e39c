package caslog

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marc-casperlabs/stuffer-shack/internal/fsx"
)

// Locking architecture. Two layers guard against more than one writer
// touching a file at once:
//
//  1. An in-process registry, keyed by device+inode, so that two
//     Open calls in the same process on the same path (however they
//     spelled it) are detected even before any syscall-level lock is
//     attempted.
//  2. A cross-process advisory flock, held for the lifetime of the DB
//     handle, so that a second process opening the same file is
//     rejected rather than silently corrupting it.
//
// This mirrors the teacher cache's registry-plus-flock design, trimmed
// to this package's single-handle-per-Open shape: there is no
// reader/writer split to track, only "is a writer already active for
// this file".
type fileIdentity struct {
	dev, ino uint64
}

type registryEntry struct {
	writerActive atomic.Bool
}

var (
	registryMu sync.Mutex
	registry   = map[fileIdentity]*registryEntry{}
)

func getOrCreateRegistryEntry(id fileIdentity) *registryEntry {
	registryMu.Lock()
	defer registryMu.Unlock()
	e, ok := registry[id]
	if !ok {
		e = &registryEntry{}
		registry[id] = e
	}
	return e
}

// acquireProcessLock claims the in-process writer slot for id,
// returning ErrBusy if another DB handle in this process already
// holds it.
func acquireProcessLock(id fileIdentity) (*registryEntry, error) {
	e := getOrCreateRegistryEntry(id)
	if !e.writerActive.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return e, nil
}

func releaseProcessLock(e *registryEntry) {
	e.writerActive.Store(false)
}

// acquireFileLock claims the cross-process advisory lock on path,
// returning ErrBusy if another process already holds it.
func acquireFileLock(path string) (*fsx.FileLock, error) {
	lock, err := fsx.TryLock(path)
	if err != nil {
		if err == fsx.ErrWouldBlock {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("caslog: acquire lock: %w", err)
	}
	return lock, nil
}

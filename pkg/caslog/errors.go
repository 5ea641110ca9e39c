package caslog

import "errors"

// ErrInvalidArgument is returned when a caller-supplied key or value
// violates the store's configuration: a key whose length does not
// match the store's key size, or a value longer than 2^32-1 bytes.
//
// Recovery: fix the call site. No state was mutated.
var ErrInvalidArgument = errors.New("caslog: invalid argument")

// ErrCapacityExhausted is returned when a write would advance the
// committed insertion offset past the mapping's capacity.
//
// Recovery: the store remains usable for reads and for writes of
// values small enough to still fit. The committed watermark is left
// exactly as it was before the failing write (spec invariant I5).
var ErrCapacityExhausted = errors.New("caslog: capacity exhausted")

// ErrCorrupt is returned by Open when the recovery scan encounters a
// length prefix that would advance the cursor past the committed
// watermark, or any other state the invariants say cannot occur.
//
// Recovery: none within this package. The file is not opened.
var ErrCorrupt = errors.New("caslog: corrupt log")

// ErrIncompatible is returned by Open when an existing file's header
// does not match the format this build writes, or when the requested
// key size or capacity disagrees with what the file was created with.
//
// Recovery: open with matching parameters, or treat the file as
// foreign and do not attempt to read it with this package.
var ErrIncompatible = errors.New("caslog: incompatible file")

// ErrBusy is returned by Open when another writer already holds the
// file's exclusive write lock, either in this process or another.
//
// Recovery: retry later, or open read-only access is not offered by
// this package independent of a writer — callers needing concurrent
// readers across processes should keep one long-lived writer handle.
var ErrBusy = errors.New("caslog: writer lock held")

// ErrClosed is returned by Write and ScanKeys when called on a DB
// after Close. Read and Stat do not check for a closed store.
var ErrClosed = errors.New("caslog: use of closed store")

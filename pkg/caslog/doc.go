// Package caslog implements an embedded, append-only key/value store
// for content-addressed workloads: fixed-size keys, opaque values up
// to 4 GiB, written once and rarely overwritten, never deleted.
//
// All data lives in a single memory-mapped file: a small header
// followed by a log of length-prefixed records. Lookups go through an
// in-memory index rebuilt at open time by scanning the log. A single
// writer appends records and commits them by advancing one atomic
// header word; any number of readers may look up keys concurrently
// without ever acquiring a lock owned by the store.
//
// Usage:
//
//	db, err := caslog.Create("data.caslog", caslog.Options{KeySize: 32, Capacity: 1 << 30})
//	if err != nil { ... }
//	defer db.Close()
//
//	if err := db.Write(key, value); err != nil { ... }
//	v, ok := db.Read(key)
//
// A store is either Create'd (fresh file, new header, empty log) or Open'd
// (existing file, recovered by scanning the log up to its committed
// watermark). Reopening requires the same key size and a capacity no
// smaller than the one the file was created or last grown with.
//
// Concurrency: Read is safe from any number of goroutines. Concurrent
// Write calls on one DB are serialized by an internal mutex. A second
// DB handle on the same file, in this process or another, is rejected
// with ErrBusy (see Open).
package caslog

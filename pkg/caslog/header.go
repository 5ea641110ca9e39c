package caslog

import (
	"sync/atomic"
	"unsafe"
)

// watermarkPtr returns the committed insertion offset field as an
// *atomic.Uint32 aliasing the mapping's bytes, so that stores and
// loads against it carry the acquire/release ordering spec.md §9
// requires. m.data[offWatermark:] is guaranteed 4-byte aligned: it is
// the first field of the header, and the header itself begins at
// mapping offset 0.
func (m *mapping) watermarkPtr() *atomic.Uint32 {
	return (*atomic.Uint32)(unsafe.Pointer(&m.data[offWatermark]))
}

// loadWatermark performs an acquire-load of the committed insertion
// offset. Used by recovery and diagnostics; the reader hot path does
// not call this (spec.md §4.4: readers route through the index).
func (m *mapping) loadWatermark() uint32 {
	return m.watermarkPtr().Load()
}

// storeWatermark performs a release-store of the committed insertion
// offset. This is the single commit fence described in spec.md §4.3
// step 5: once it is visible, every byte below it is a fully written
// record.
func (m *mapping) storeWatermark(w uint32) {
	m.watermarkPtr().Store(w)
}

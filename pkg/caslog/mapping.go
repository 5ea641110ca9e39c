package caslog

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func init() {
	if !is64Bit() {
		panic("caslog requires a 64-bit architecture")
	}
	if !isLittleEndian() {
		panic("caslog requires a little-endian CPU")
	}
}

func is64Bit() bool {
	return unsafe.Sizeof(uintptr(0)) == 8
}

func isLittleEndian() bool {
	var x uint16 = 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}

// mapping owns a file handle's memory-mapped bytes. It is not
// goroutine-safe on its own beyond the safety unix.Mmap's resulting
// slice already gives concurrent readers; callers (db.go) serialize
// writes themselves.
type mapping struct {
	data []byte // mmap'd region, length == capacity
}

// createMapping creates a new sparse file of the given capacity,
// zero-length-extended via ftruncate, and maps it read-write.
func createMapping(path string, capacity uint64) (*mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("caslog: create %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(capacity)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("caslog: truncate %s: %w", path, err)
	}

	return mmapFile(f, capacity)
}

// openMapping maps an existing file, first growing it to capacity
// bytes if it is smaller (the caller has validated the header by this
// point).
func openMapping(path string, capacity uint64) (*mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("caslog: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("caslog: stat %s: %w", path, err)
	}
	if uint64(info.Size()) < capacity {
		if err := f.Truncate(int64(capacity)); err != nil {
			return nil, fmt.Errorf("caslog: grow %s: %w", path, err)
		}
	}

	return mmapFile(f, capacity)
}

func mmapFile(f *os.File, capacity uint64) (*mapping, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(capacity), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("caslog: mmap: %w", err)
	}
	// The fd is not needed once mapped; the OS keeps the mapping alive
	// independent of the file descriptor on every target this package
	// builds for (open question (c) in spec.md §9).
	return &mapping{data: data}, nil
}

// read returns a slice referencing the mapping directly, valid for
// the lifetime of the mapping. No copy is made.
func (m *mapping) read(offset, length uint64) []byte {
	return m.data[offset : offset+length]
}

// write copies src into the mapping at offset. The caller is
// responsible for ensuring offset+len(src) <= capacity.
func (m *mapping) write(offset uint64, src []byte) {
	copy(m.data[offset:], src)
}

// capacity returns the size of the mapped region.
func (m *mapping) capacity() uint64 {
	return uint64(len(m.data))
}

// flushHeader forces the header bytes to durable storage. Payload
// flushes are implicit: this package relies on the header flush being
// ordered after payload writes reach the mapping, per spec.md §4.3.
func (m *mapping) flushHeader() error {
	if err := unix.Msync(m.data[:headerSize], unix.MS_SYNC); err != nil {
		return fmt.Errorf("caslog: msync header: %w", err)
	}
	return nil
}

// close unmaps the region. It does not close any file descriptor; the
// descriptor used to create the mapping was already closed.
func (m *mapping) close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if err != nil {
		return fmt.Errorf("caslog: munmap: %w", err)
	}
	return nil
}

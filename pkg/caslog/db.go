package caslog

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/marc-casperlabs/stuffer-shack/internal/fsx"
	"github.com/marc-casperlabs/stuffer-shack/pkg/logging"
)

// Options configures Create and Open.
type Options struct {
	// KeySize is the compile/open-time constant size, in bytes, of
	// every key this store will hold. Required.
	KeySize uint32

	// Capacity is the size, in bytes, the backing file is created or
	// grown to. On Open, it must be at least the capacity the file was
	// last created or grown with.
	Capacity uint64

	// Logger receives structured diagnostics for recovery and writes.
	// Optional; defaults to a no-op logger, so leaving it nil costs
	// nothing on the hot path.
	Logger *zap.SugaredLogger

	// DisableLocking skips the cross-process flock, leaving only the
	// in-process registry guard, which still rejects a second handle
	// on the same file within this process with ErrBusy.
	DisableLocking bool
}

// DB is an open content-addressed store. The zero value is not
// usable; obtain one via Create or Open.
type DB struct {
	path     string
	keySize  uint32
	m        *mapping
	idx      *index
	log      *zap.SugaredLogger
	fileLock *fsx.FileLock
	regEntry *registryEntry

	mu     sync.Mutex // serializes Write and Close against each other
	closed bool
}

func validateOptions(opts Options) error {
	if opts.KeySize == 0 || opts.KeySize > maxKeySize {
		return fmt.Errorf("%w: key size %d out of range", ErrInvalidArgument, opts.KeySize)
	}
	if opts.Capacity <= headerSize || opts.Capacity > maxCapacity {
		return fmt.Errorf("%w: capacity %d out of range", ErrInvalidArgument, opts.Capacity)
	}
	return nil
}

// Create creates a new store at path. The file must not already
// exist.
func Create(path string, opts Options) (*DB, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	m, err := createMapping(path, opts.Capacity)
	if err != nil {
		return nil, err
	}

	header := make([]byte, headerSize)
	encodeHeader(header, opts.KeySize, opts.Capacity)
	m.write(0, header)
	if err := m.flushHeader(); err != nil {
		m.close()
		os.Remove(path)
		return nil, err
	}

	db, err := newDB(path, m, opts)
	if err != nil {
		m.close()
		os.Remove(path)
		return nil, err
	}

	db.log.Infow("created store", "path", path, "keySize", opts.KeySize, "capacity", opts.Capacity)
	return db, nil
}

// Open opens an existing store at path, validating its header and
// recovering the in-memory index by scanning the log up to the
// persisted committed watermark.
func Open(path string, opts Options) (*DB, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("caslog: open %s: %w", path, err)
	}
	headerBuf := make([]byte, headerSize)
	_, err = f.ReadAt(headerBuf, 0)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorrupt, err)
	}

	decoded := decodeHeader(headerBuf)
	if decoded.magic != fileMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrIncompatible)
	}
	if decoded.version != formatVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrIncompatible, decoded.version, formatVersion)
	}
	if decoded.keySize != opts.KeySize {
		return nil, fmt.Errorf("%w: key size %d, want %d", ErrIncompatible, decoded.keySize, opts.KeySize)
	}
	if opts.Capacity < decoded.capacity {
		return nil, fmt.Errorf("%w: capacity %d smaller than stored %d", ErrIncompatible, opts.Capacity, decoded.capacity)
	}

	m, err := openMapping(path, opts.Capacity)
	if err != nil {
		return nil, err
	}

	if opts.Capacity > decoded.capacity {
		// Persist the grown capacity so a future Open sees it.
		hostEndian.PutUint64(m.data[offCapacity:], opts.Capacity)
		if err := m.flushHeader(); err != nil {
			m.close()
			return nil, err
		}
	}

	db, err := newDB(path, m, opts)
	if err != nil {
		m.close()
		return nil, err
	}

	if err := recoverIndex(m, opts.KeySize, db.idx); err != nil {
		db.log.Errorw("recovery failed", "path", path, "error", err)
		db.releaseLocks()
		m.close()
		return nil, err
	}

	db.log.Infow("opened store", "path", path, "keySize", opts.KeySize,
		"capacity", opts.Capacity, "watermark", m.loadWatermark(), "keys", db.idx.len())
	return db, nil
}

// newDB acquires the write locks and constructs the DB shell common to
// Create and Open. The caller fills in the index (empty for Create,
// recovered for Open).
func newDB(path string, m *mapping, opts Options) (*DB, error) {
	db := &DB{
		path:    path,
		keySize: opts.KeySize,
		m:       m,
		idx:     newIndex(),
		log:     logging.OrNop(opts.Logger),
	}

	id, err := statIdentity(path)
	if err != nil {
		return nil, err
	}

	regEntry, err := acquireProcessLock(id)
	if err != nil {
		return nil, err
	}
	db.regEntry = regEntry

	if !opts.DisableLocking {
		lock, err := acquireFileLock(path)
		if err != nil {
			releaseProcessLock(regEntry)
			return nil, err
		}
		db.fileLock = lock
	}

	return db, nil
}

func statIdentity(path string) (fileIdentity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileIdentity{}, fmt.Errorf("caslog: stat %s: %w", path, err)
	}
	return statToIdentity(info), nil
}

// Read resolves key to its committed value bytes, returning (nil,
// false) if key is not present. The returned slice aliases the
// mapping directly and is valid until Close; it must not be mutated.
func (db *DB) Read(key []byte) ([]byte, bool) {
	if uint32(len(key)) != db.keySize {
		return nil, false
	}
	offset, ok := db.idx.lookup(key)
	if !ok {
		return nil, false
	}
	lengthPrefix := db.m.read(offset-uint64(db.keySize)-recordLengthSize, recordLengthSize)
	valueLen := hostEndian.Uint32(lengthPrefix)
	return db.m.read(offset, uint64(valueLen)), true
}

// Stat reports point-in-time diagnostics about the store.
type Stat struct {
	KeySize   uint32
	Capacity  uint64
	Watermark uint32
	Keys      int
}

// ScanKeys returns a snapshot of every key currently present in db's
// index, in no particular order. It is a diagnostics helper for
// tooling (export, REPL scan-log); it is not on the hot read/write
// path and never looks at the log itself.
func ScanKeys(db *DB) ([][]byte, error) {
	if db.closed {
		return nil, ErrClosed
	}
	return db.idx.keys(), nil
}

func (db *DB) Stat() Stat {
	return Stat{
		KeySize:   db.keySize,
		Capacity:  db.m.capacity(),
		Watermark: db.m.loadWatermark(),
		Keys:      db.idx.len(),
	}
}

func (db *DB) releaseLocks() {
	if db.fileLock != nil {
		db.fileLock.Close()
	}
	if db.regEntry != nil {
		releaseProcessLock(db.regEntry)
	}
}

// Close unmaps the file and releases the writer locks. It is safe to
// call more than once.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	db.releaseLocks()
	return db.m.close()
}

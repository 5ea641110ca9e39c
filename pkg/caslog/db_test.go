package caslog

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "store.caslog")
}

func key4(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// TestScenario1Through4 walks through the exact sequence from spec.md
// §8's concrete scenarios 1-4.
func TestScenario1Through4(t *testing.T) {
	path := tempPath(t)

	db, err := Create(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)

	// Scenario 1.
	require.NoError(t, db.Write(key4(1), []byte("hello")))
	v, ok := db.Read(key4(1))
	require.True(t, ok)
	require.Equal(t, "hello", string(v))
	require.EqualValues(t, 13, db.Stat().Watermark)

	// Scenario 2.
	require.NoError(t, db.Write(key4(2), []byte{}))
	v, ok = db.Read(key4(2))
	require.True(t, ok)
	require.Empty(t, v)
	require.EqualValues(t, 21, db.Stat().Watermark)

	// Scenario 3.
	require.NoError(t, db.Write(key4(1), []byte("world")))
	v, ok = db.Read(key4(1))
	require.True(t, ok)
	require.Equal(t, "world", string(v))
	require.EqualValues(t, 34, db.Stat().Watermark)

	require.NoError(t, db.Close())

	// Scenario 4: close and reopen, same outcomes.
	db2, err := Open(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)
	defer db2.Close()

	v, ok = db2.Read(key4(1))
	require.True(t, ok)
	require.Equal(t, "world", string(v))

	v, ok = db2.Read(key4(2))
	require.True(t, ok)
	require.Empty(t, v)
}

// TestCapacityExhausted follows spec.md §8 scenario 5.
func TestCapacityExhausted(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 4, Capacity: headerSize + 32})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Write(key4(1), make([]byte, 16)))
	require.EqualValues(t, 24, db.Stat().Watermark)

	err = db.Write(key4(2), make([]byte, 16))
	require.ErrorIs(t, err, ErrCapacityExhausted)
	require.EqualValues(t, 24, db.Stat().Watermark, "watermark must be unchanged after a failed write")

	v, ok := db.Read(key4(1))
	require.True(t, ok)
	require.Len(t, v, 16)
}

// TestOverwriteDoesNotShrinkOrRemoveOldRecord follows the invariant in
// spec.md §8: overwriting a key leaves the old record's bytes in
// place; only the index is updated.
func TestOverwriteDoesNotShrinkOrRemoveOldRecord(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)

	require.NoError(t, db.Write(key4(1), []byte("hello")))
	require.NoError(t, db.Write(key4(1), []byte("world")))
	watermarkBefore := db.Stat().Watermark
	require.NoError(t, db.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 4096, info.Size()) // capacity unchanged, not shrunk

	db2, err := Open(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)
	defer db2.Close()
	require.Equal(t, watermarkBefore, db2.Stat().Watermark)

	v, ok := db2.Read(key4(1))
	require.True(t, ok)
	require.Equal(t, "world", string(v))
}

func TestReadMissingKey(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)
	defer db.Close()

	_, ok := db.Read(key4(99))
	require.False(t, ok)
}

func TestInvalidArguments(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)
	defer db.Close()

	err = db.Write([]byte{1, 2, 3}, []byte("x"))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Create(path+"-bad", Options{KeySize: 0, Capacity: 4096})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOpenRejectsIncompatibleKeySize(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, Options{KeySize: 8, Capacity: 4096})
	require.ErrorIs(t, err, ErrIncompatible)
}

func TestOpenRejectsSmallerCapacity(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 4, Capacity: 8192})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, Options{KeySize: 4, Capacity: 4096})
	require.ErrorIs(t, err, ErrIncompatible)
}

func TestSecondWriterRejected(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)
	defer db.Close()

	_, err = Open(path, Options{KeySize: 4, Capacity: 4096})
	require.ErrorIs(t, err, ErrBusy)
}

func TestConcurrentReadersSeeIdenticalSlices(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Write(key4(1), []byte("payload")))

	const readers = 32
	results := make(chan string, readers)
	for i := 0; i < readers; i++ {
		go func() {
			v, ok := db.Read(key4(1))
			if !ok {
				results <- ""
				return
			}
			results <- string(v)
		}()
	}
	for i := 0; i < readers; i++ {
		require.Equal(t, "payload", <-results)
	}
}

// TestReadWithLargeKeyReturnsFullValue guards against reading the
// length prefix at the wrong offset: a key long enough that the
// prefix and the tail of a short key would overlap if the offset math
// regressed to offset-recordLengthSize instead of
// offset-keySize-recordLengthSize.
func TestReadWithLargeKeyReturnsFullValue(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 32, Capacity: 4096})
	require.NoError(t, err)
	defer db.Close()

	key := make([]byte, 32)
	key[0] = 1
	require.NoError(t, db.Write(key, []byte("hello world")))

	v, ok := db.Read(key)
	require.True(t, ok)
	require.Equal(t, "hello world", string(v))
}

func TestCreateRejectsCapacityAboveWatermarkRange(t *testing.T) {
	path := tempPath(t)
	_, err := Create(path, Options{KeySize: 4, Capacity: maxCapacity + 1})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

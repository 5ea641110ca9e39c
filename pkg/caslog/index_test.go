package caslog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexInsertAndLookup(t *testing.T) {
	idx := newIndex()
	k := key4(1)

	_, ok := idx.lookup(k)
	require.False(t, ok)

	idx.insert(k, 100)
	off, ok := idx.lookup(k)
	require.True(t, ok)
	require.EqualValues(t, 100, off)

	idx.insert(k, 200)
	off, ok = idx.lookup(k)
	require.True(t, ok)
	require.EqualValues(t, 200, off, "insert must replace, not add, an entry for an existing key")
	require.Equal(t, 1, idx.len())
}

func TestIndexConcurrentLookupsDuringInsert(t *testing.T) {
	idx := newIndex()
	for i := uint32(0); i < 1000; i++ {
		idx.insert(key4(i), uint64(i))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					idx.lookup(key4(42))
				}
			}
		}()
	}

	for i := uint32(1000); i < 2000; i++ {
		idx.insert(key4(i), uint64(i))
	}
	close(stop)
	wg.Wait()

	require.Equal(t, 2000, idx.len())
}

func TestScanKeysSnapshotsCurrentIndex(t *testing.T) {
	path := tempPath(t)
	db, err := Create(path, Options{KeySize: 4, Capacity: 4096})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Write(key4(1), []byte("a")))
	require.NoError(t, db.Write(key4(2), []byte("b")))

	keys, err := ScanKeys(db)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	require.NoError(t, db.Close())
	_, err = ScanKeys(db)
	require.ErrorIs(t, err, ErrClosed)
}

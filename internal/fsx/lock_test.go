package fsx_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marc-casperlabs/stuffer-shack/internal/fsx"
)

func TestTryLock_SecondAttemptWouldBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	first, err := fsx.TryLock(path)
	require.NoError(t, err)
	defer first.Close()

	_, err = fsx.TryLock(path)
	require.ErrorIs(t, err, fsx.ErrWouldBlock)
}

func TestTryLock_ReacquirableAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	first, err := fsx.TryLock(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := fsx.TryLock(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestFileLock_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	lock, err := fsx.TryLock(path)
	require.NoError(t, err)
	require.NoError(t, lock.Close())
	require.NoError(t, lock.Close())
}

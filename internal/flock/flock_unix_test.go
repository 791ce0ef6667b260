//go:build unix

package flock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kliewerdaniel/News02/errors"
)

func TestRelease_KeepsLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_execution.lock")

	lock, err := TryLock(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

// A descriptor opened while the lock was held must still contend with
// later TryLock callers after the holder releases.
func TestTryLock_OpenedDuringHoldStillExcludes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_execution.lock")

	holder, err := TryLock(path)
	require.NoError(t, err)

	waiter, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer waiter.Close()

	require.NoError(t, holder.Release())

	require.NoError(t, unix.Flock(int(waiter.Fd()), unix.LOCK_EX|unix.LOCK_NB))

	_, err = TryLock(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, unix.Flock(int(waiter.Fd()), unix.LOCK_UN))

	next, err := TryLock(path)
	require.NoError(t, err)
	require.NoError(t, next.Release())
}

package flock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kliewerdaniel/News02/errors"
)

func TestTryLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "job_execution.lock")

	first, err := TryLock(path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())

	_, err = TryLock(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))
	assert.True(t, errors.IsConflictError(err))

	require.NoError(t, first.Release())

	second, err := TryLock(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestRelease_Idempotent(t *testing.T) {
	lock, err := TryLock(filepath.Join(t.TempDir(), "run.lock"))
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	assert.NoError(t, lock.Release())
}

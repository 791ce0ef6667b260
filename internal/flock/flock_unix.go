//go:build unix

package flock

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/kliewerdaniel/News02/errors"
)

// TryLock opens (creating if needed) path and takes an exclusive flock
// without waiting. Returns ErrLocked when the lock is held elsewhere,
// including by another descriptor in this process.
//
// The file is never removed: unlinking it would let a process that opened
// the old inode and a process that creates a new one both hold "the" lock.
func TryLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create lock directory for %s", path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open lock file %s", path)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, errors.Wrapf(err, "failed to lock %s", path)
	}

	return &Lock{path: path, file: file}, nil
}

func unlock(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}

func cleanup(string) error {
	return nil
}

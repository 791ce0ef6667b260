//go:build !unix

package flock

import (
	"os"
	"path/filepath"

	"github.com/kliewerdaniel/News02/errors"
)

// TryLock creates path exclusively. An existing file means the lock is held.
// A crashed holder leaves the file behind and it must be removed by hand.
func TryLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create lock directory for %s", path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, errors.Wrapf(err, "failed to create lock file %s", path)
	}
	return &Lock{path: path, file: file}, nil
}

func unlock(*os.File) error {
	return nil
}

// cleanup removes the lock file; its existence is the lock
func cleanup(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove lock file %s", path)
	}
	return nil
}

// Package flock provides a non-blocking, cross-process exclusive lock on a file.
package flock

import (
	"os"

	"github.com/kliewerdaniel/News02/errors"
)

// ErrLocked is returned by TryLock when another holder owns the lock
var ErrLocked = errors.Mark(errors.New("lock held by another process"), errors.ErrConflict)

// Lock is a held lock file
type Lock struct {
	path string
	file *os.File
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks the file. Safe to call more than once.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil

	if err := cleanup(l.path); err != nil {
		return err
	}
	if unlockErr != nil {
		return errors.Wrapf(unlockErr, "failed to unlock %s", l.path)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "failed to close %s", l.path)
	}
	return nil
}

package db

import (
	"strings"

	"github.com/kliewerdaniel/News02/errors"
)

// ErrDatabaseClosed is returned when an operation races shutdown.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err means the connection pool was closed.
// The sqlite driver returns its own error values, so the message is checked
// as a fallback.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

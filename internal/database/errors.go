package database

import "errors"

var (
	// ErrDatabaseNotFound is returned when a read-only open finds no database file.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrNegativeDepth is returned when a link is inserted with a negative depth.
	ErrNegativeDepth = errors.New("depth must be non-negative")

	// ErrUnsupportedDatabaseURL is returned when a database URL is not a PostgreSQL URL.
	ErrUnsupportedDatabaseURL = errors.New("unsupported database URL scheme (want postgres:// or postgresql://)")
)

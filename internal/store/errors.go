package store

import "errors"

var (
	// ErrNotFound is returned by Load when no database has been saved yet.
	ErrNotFound = errors.New("database not found")

	// ErrCorrupt is returned by Load when the stored document is malformed.
	ErrCorrupt = errors.New("database is corrupt")

	// ErrUnavailable is returned when the storage backend fails.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrInvalidDSN is returned when a store DSN cannot be parsed.
	ErrInvalidDSN = errors.New("invalid store DSN")

	// ErrUnsupportedScheme is returned for DSN schemes no backend handles.
	ErrUnsupportedScheme = errors.New("unsupported store scheme")
)

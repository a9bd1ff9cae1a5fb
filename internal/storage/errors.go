package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Trade records are append-only, so a
	// duplicate external signature is an idempotency rejection.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a compare-and-swap guarded write finds
	// the token's reserves changed since they were read. Not a fault: the
	// caller re-reads and retries.
	ErrConflict = errors.New("reserve state changed since read")

	// ErrTradingDisabled is returned when a write targets a token whose
	// trading flag is off (migrating or graduated).
	ErrTradingDisabled = errors.New("trading disabled for token")
)

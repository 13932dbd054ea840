package valuestore

import "errors"

// Error classification. Mutations never panic on bad input; failures are
// reported through these sentinels (classify with errors.Is) and leave the
// store unchanged.
var (
	// ErrWrongKind indicates an operation was attempted against a value of
	// the wrong kind (e.g. indexing into a non-array, keying into a
	// non-table).
	ErrWrongKind = errors.New("valuestore: wrong kind")

	// ErrOutOfRange indicates an array index or slot index was out of
	// bounds for the target container.
	ErrOutOfRange = errors.New("valuestore: index out of range")

	// ErrTooLarge indicates an array would grow past the maximum length
	// (2^20 - 1 elements). Handle-table growth is not checked against the
	// 24-bit index space and does not return this error.
	ErrTooLarge = errors.New("valuestore: value too large")

	// ErrStaleHandle indicates a [Handle] whose generation no longer
	// matches the live entry at its index: the referent was freed and the
	// slot reused.
	ErrStaleHandle = errors.New("valuestore: stale handle")

	// ErrInvalidHandle indicates a [Handle] whose index is out of bounds
	// for the handle table, or whose slot is marked free.
	ErrInvalidHandle = errors.New("valuestore: invalid handle")

	// ErrCorruptContainer indicates a container header failed a basic
	// structural check (count > capacity, offset out of heap bounds, ...).
	// Surfaced by [Store.VerifyIntegrity] and by defensive checks inside
	// mutators that read existing container headers.
	ErrCorruptContainer = errors.New("valuestore: corrupt container")
)

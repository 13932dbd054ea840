package cook

import "errors"

// Error classification, mirroring pkg/valuestore/errors.go and
// pkg/mddb's sentinel-error style: callers classify with errors.Is, never
// by inspecting error text.
var (
	// ErrClosed indicates an operation was attempted on a closed Database.
	ErrClosed = errors.New("cook: closed")

	// ErrUnknownType indicates a path's extension does not map to any
	// configured [FileType].
	ErrUnknownType = errors.New("cook: unknown file type")

	// ErrNoSource indicates a one-to-one artifact's source could not be
	// resolved (no [Options.ResolveSource] hook, or the hook returned false).
	ErrNoSource = errors.New("cook: source not resolved")

	// ErrCorruptSidecar indicates a sidecar metadata file failed to parse
	// or did not have the expected table/array shape. Missing fields are
	// not reported; they decode as zero values.
	ErrCorruptSidecar = errors.New("cook: corrupt sidecar")

	// ErrIncompatible indicates the on-disk SQLite index's schema
	// fingerprint does not match this build's schema. Nothing in this
	// package returns it: Open drops and rebuilds a mismatched index itself.
	ErrIncompatible = errors.New("cook: index schema incompatible")
)

package cook

import (
	"time"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// FileType identifies a cookable file kind. It is [valuestore.FileKind]
// directly (spec §9's open question is resolved this way in DESIGN.md: one
// enumeration, shared by the value store's FilePath classification and the
// cook database's one-to-one/many-to-one and texture-family rules, so the
// two can never drift apart).
type FileType = valuestore.FileKind

// VersionRecord is one entry of the cooker-versions file (spec §6):
// content://version_data.dat, a flat array of (data_version, cooker_version)
// pairs in FileType enumeration order.
type VersionRecord struct {
	DataVersion   uint32
	CookerVersion uint32
}

// SourceRef is one entry of a sidecar's Sources or Siblings array (spec
// §4.8/§6).
type SourceRef struct {
	Source    string `json:"Source"`
	Timestamp uint64 `json:"Timestamp"`
}

// DirSourceRef is one entry of a sidecar's DirectorySources array (spec
// §4.8/§6): a directory plus the recursive, extension-filtered file count
// recorded at cook time.
type DirSourceRef struct {
	Source    string `json:"Source"`
	FileCount uint32 `json:"FileCount"`
}

// Metadata is the sidecar JSON/YAML shape for a many-to-one cooked artifact
// (spec §6): `{CookedTimestamp, CookerVersion, DataVersion, Sources,
// Siblings, DirectorySources}`. Siblings and DirectorySources are optional
// and may be nil.
type Metadata struct {
	CookedTimestamp  uint64         `json:"CookedTimestamp"`
	CookerVersion    uint32         `json:"CookerVersion"`
	DataVersion      uint32         `json:"DataVersion"`
	Sources          []SourceRef    `json:"Sources"`
	Siblings         []SourceRef    `json:"Siblings,omitempty"`
	DirectorySources []DirSourceRef `json:"DirectorySources,omitempty"`
}

// unixNS converts a [time.Time] to the uint64 nanosecond timestamp spec §6
// uses for every recorded mtime field.
func unixNS(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}

	return uint64(t.UnixNano())
}

// timeFromUnixNS is the inverse of unixNS, used when stamping a cooked
// artifact's mtime to a recorded sidecar timestamp.
func timeFromUnixNS(ns uint64) time.Time {
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, int64(ns))
}

// Options configures [Open]. Mirrors pkg/mddb's Config[T] shape (spec
// SPEC_FULL.md AMBIENT STACK: "a plain struct with a validating New/Open
// constructor that fills in defaults for zero-valued fields").
type Options struct {
	// BaseDir is the directory the cook database's own state (SQLite index,
	// lock file, cooker-versions file) lives under. Required.
	BaseDir string

	// Versions lists the current (cooker_version, data_version) pair this
	// build expects for every [FileType] it cares about. A stored version
	// that differs from the configured one triggers the one-to-one
	// invalidation sweep described in spec §4.8 on the next [Open].
	Versions map[FileType]VersionRecord

	// ResolveSource maps a one-to-one cooked artifact's path to its single
	// declared source path. Required for [Database.CheckUpToDate] to do
	// anything useful with one-to-one types; path resolution itself is an
	// external collaborator (spec §1's "platform and path utilities" are
	// out of scope for this package).
	ResolveSource func(cookedPath string) (sourcePath string, ok bool)

	// LockTimeout bounds how long Open waits to acquire the cross-process
	// flock. Open releases the flock before it returns; later methods do
	// not take it. Defaults to 10s, matching pkg/mddb's
	// defaultWalLockTimeout.
	LockTimeout time.Duration

	// Stat, if non-nil, replaces os.Stat for every up-to-date comparison.
	// A caller can substitute a fake clock; nil uses os.Stat.
	Stat func(path string) (time.Time, error)
}

// Package cook implements the cook database (spec §4.8, §6): a dependency
// tracker that decides whether a derived ("cooked") artifact is stale given
// the modification times of its declared sources, sibling cooked outputs,
// and directory listings, tied together by per-file-type versioned
// metadata.
//
// Two regimes are supported, selected by [valuestore.FileKind.IsManyToOne]:
//
//   - One-to-one types carry no sidecar: up-to-date means the cooked file's
//     mtime equals its single source's mtime, gated by a global per-type
//     cooker/data version recorded in the cooker-versions file.
//   - Many-to-one types (Effect, ScriptProject, SoundProject, UIMovie) carry
//     a JSON (or, for hand-maintained fixtures, YAML) sidecar recording the
//     cooker/data version, the cooked timestamp, and the recorded
//     timestamps/counts of every source, sibling, and source directory.
//
// Unlike [valuestore.Store], a [Database] is safe for concurrent use: every
// exported method takes a single mutex for its duration (spec §5). A
// dependency graph, persisted to SQLite and rebuilt from sidecar files on
// every [Open], lets a single file- or
// directory-change notification invalidate every transitively dependent
// artifact without rescanning the tree.
package cook

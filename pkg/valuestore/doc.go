// Package valuestore implements a dynamically typed hierarchical value
// store ("DataStore"): a compact, pointer-tagged 32-bit value
// representation backed by two contiguous arenas (a handle-offset table and
// a payload heap), with mutation, garbage collection, and compaction.
//
// Values ([DataNode]) are never pointers into the heap. Every by-reference
// kind (Array, Table, String, and the wide scalar types) stores a 27-bit
// [Handle] that must be resolved through a [Store] on every access. This
// indirection is what makes garbage collection and compaction possible
// without invalidating values held by callers across a mutation.
//
// The store is single-owner, single-threaded: all mutation methods assume
// exclusive access. See [Store.SuppressGC] for the one reentrancy hazard
// mutators must guard against (a DataNode argument that itself lives in a
// heap region about to be reclaimed or moved).
package valuestore

// Package canon implements the store-independent operations that compare
// and recombine values across two [valuestore.Store] instances: a
// canonical, order-independent hash; deep equality; deep copy; and a
// structural diff/patch pair used to persist only what changed between two
// saves of the same root (spec §4.6, §4.7).
//
// Table entries are unordered by definition (spec §3.3), so Hash and Equal
// both sort a table's keys before walking it, the same way the reference
// history-encoding example in the retrieval pack sorts a state diff's slot
// hashes before hashing them: two tables that differ only in insertion
// order must hash and compare identically.
package canon

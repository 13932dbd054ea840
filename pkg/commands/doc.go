// Package commands evaluates the small table-building DSL described in
// spec §4.6: a JSON root array of commands (`$include`, `$object`,
// `$append`, `$erase`, `$set`) that build up a value by reference to an
// "active object" selected by `$object` and mutated through a navigable
// path.
//
// Grounded on pkg/mddb's load-then-rebuild style (a small interpreter
// walking a parsed tree rather than text) and on this module's own
// pkg/valuestore/canon for the deep-copy semantics `$include` and
// `$object ... parent` both rely on.
package commands

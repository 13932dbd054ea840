// Package hints implements the parallel "hint tree" that
// [github.com/vnstone/datastore/pkg/extjson] builds alongside a parsed
// value tree, and that [github.com/vnstone/datastore/pkg/printer] consumes
// to pretty-print a [valuestore.Store] while preserving source order and
// comments across a parse/print round trip (spec §4.7, §9 "Hint tree
// lifetime").
//
// Hint nodes may carry byte-pointer spans into the source buffer that was
// parsed; callers that do not keep that buffer alive must use [Node.Freeze]
// to copy every span into an owned string first.
package hints

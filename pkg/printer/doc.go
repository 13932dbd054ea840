// Package printer pretty-prints a [valuestore.Store] back to JSON text,
// combining it with a [hints.Node] tree so that source order and comments
// survive a parse/print round trip (spec §4.7).
//
// The single-line/multi-line layout heuristic is specified in spec §4.7;
// array elements are matched to their hints by position only, not by
// hash. This package implements the layout itself rather than reaching for a generic
// pretty-printing library, since none of the retrieval pack's dependencies
// implements this exact "inline short containers, preserve comments"
// policy. Column-width estimation for the §4.7 budget uses
// github.com/mattn/go-runewidth, exactly as it is pulled in (indirectly,
// through github.com/peterh/liner) by the teacher's go.mod.
package printer

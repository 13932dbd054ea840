// Package extjson parses JSON-with-extensions (comments, trailing commas,
// NaN/Infinity literals, a FilePath scheme convention) directly into a
// [valuestore.Store], and produces a parallel [hints.Tree] so the result can
// be pretty-printed back out with its original order and comments preserved
// (spec §4.5, §4.7).
//
// The tokenizer's comment/trailing-comma tolerance is grounded on the shape
// of github.com/tailscale/hujson's scanner (a teacher dependency). String
// values are copied out of the source buffer; none of them alias it.
package extjson

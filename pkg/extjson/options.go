package extjson

import "github.com/vnstone/datastore/pkg/valuestore"

// Options mirrors the flag set spec §4.5 requires the parser to accept.
type Options struct {
	// LogErrors is accepted for parity with the source format's flag set.
	// extjson itself never logs, it only returns errors, and nothing in
	// this package reads the flag.
	LogErrors bool

	// AllowDuplicateKeys disables the duplicate-table-key parse failure.
	// The last occurrence wins, matching plain encoding/json's behavior.
	AllowDuplicateKeys bool

	// NullAsSpecialErase makes a bare `null` literal parse to
	// [valuestore.SpecialEraseNode] instead of [valuestore.Null] — used
	// when parsing a diff/patch document (spec §4.3's SpecialErase
	// tombstone) rather than an ordinary value tree.
	NullAsSpecialErase bool

	// LeaveFilePathAsString disables the config://-style scheme
	// classification, for tool use cases that want every string literal to
	// stay a String value (spec §4.5).
	LeaveFilePathAsString bool

	// Schema, if non-nil, validates the parsed document once parsing has
	// completed (spec §4.5's schema validation layer); validation is not
	// interleaved with parsing.
	Schema *Schema
}

// filePathSchemes are the recognized scheme prefixes a string literal must
// start with, followed by a syntactically valid relative path, to be
// classified as a FilePath instead of a String (spec §4.5, §6).
var filePathSchemes = []string{"config", "content", "log", "save", "tools", "video"}

func classifyFilePath(s string) (dir valuestore.GameDirectory, rel string, ok bool) {
	return valuestore.ParseFilePathURL(s)
}

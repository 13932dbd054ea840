package extjson

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey is returned when a table key repeats inside one object
// literal and [Options.AllowDuplicateKeys] is not set.
var ErrDuplicateKey = errors.New("extjson: duplicate key")

// ErrUnexpectedToken is returned for any structurally invalid input
// (unterminated string, bad escape, stray token, ...).
var ErrUnexpectedToken = errors.New("extjson: unexpected token")

// ErrSchemaViolation is returned when a [Schema] rejects a parsed value.
var ErrSchemaViolation = errors.New("extjson: schema violation")

// ParseError carries source position context for a parse or schema
// failure, reported the way spec §4.5/§7 requires: line/column, and for
// schema failures the offending rule's location.
type ParseError struct {
	Line, Col int
	Rule      string // non-empty only for schema violations
	Err       error
}

func (e *ParseError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("extjson:%d:%d: %v (rule %s)", e.Line, e.Col, e.Err, e.Rule)
	}

	return fmt.Sprintf("extjson:%d:%d: %v", e.Line, e.Col, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

package extjson

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// Schema is a small subset of JSON Schema sufficient for the validation
// layer spec §4.5 describes: object/array/string/number/boolean/null
// `type`, `required` properties, `properties` (recursive), and `items`
// (recursive, single-schema form). It is deliberately not a general JSON
// Schema engine — the spec only asks for "a streaming validator layered
// over the parser", not full draft compliance.
type Schema struct {
	raw *schemaNode
}

type schemaNode struct {
	Type       string                 `json:"type,omitempty"`
	Required   []string               `json:"required,omitempty"`
	Properties map[string]*schemaNode `json:"properties,omitempty"`
	Items      *schemaNode            `json:"items,omitempty"`
}

// ParseSchema loads a JSON Schema document from raw bytes. Schema documents
// are standardized through hujson first (same library the teacher's config
// loader uses), so authors may write `//`/`/* */` comments and trailing
// commas in a hand-maintained schema file the same way they do in a config
// file; plain JSON passes through standardization unchanged.
func ParseSchema(raw []byte) (*Schema, error) {
	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("extjson: parse schema: %w", err)
	}

	var n schemaNode
	if err := json.Unmarshal(standardized, &n); err != nil {
		return nil, fmt.Errorf("extjson: parse schema: %w", err)
	}

	return &Schema{raw: &n}, nil
}

// Validate checks a parsed value against s, reporting the first violation
// with its path and the schema rule that rejected it (spec §4.5, §7).
func (s *Schema) Validate(store *valuestore.Store, n valuestore.DataNode) error {
	return validateNode(store, n, s.raw, "$")
}

func validateNode(store *valuestore.Store, n valuestore.DataNode, sch *schemaNode, path string) error {
	if sch == nil {
		return nil
	}

	if sch.Type != "" && !typeMatches(sch.Type, n.Type()) {
		return &ParseError{Rule: path + ":type", Err: fmt.Errorf("%w: expected %s, got %s", ErrSchemaViolation, sch.Type, n.Type())}
	}

	switch n.Type() {
	case valuestore.TypeTable:
		for _, key := range sch.Required {
			idx := store.Symbols().Intern(key)

			if _, found, err := store.TableGet(n, idx); err != nil {
				return err
			} else if !found {
				return &ParseError{Rule: path + ":required", Err: fmt.Errorf("%w: missing required property %q", ErrSchemaViolation, key)}
			}
		}

		for propName, propSchema := range sch.Properties {
			idx := store.Symbols().Intern(propName)

			v, found, err := store.TableGet(n, idx)
			if err != nil {
				return err
			}

			if !found {
				continue
			}

			if err := validateNode(store, v, propSchema, path+"."+propName); err != nil {
				return err
			}
		}
	case valuestore.TypeArray:
		if sch.Items == nil {
			return nil
		}

		length, err := store.ArrayLen(n)
		if err != nil {
			return err
		}

		for i := 0; i < length; i++ {
			v, err := store.ArrayGet(n, i)
			if err != nil {
				return err
			}

			if err := validateNode(store, v, sch.Items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}

	return nil
}

func typeMatches(want string, t valuestore.Type) bool {
	switch want {
	case "object":
		return t == valuestore.TypeTable
	case "array":
		return t == valuestore.TypeArray
	case "string":
		return t == valuestore.TypeString || t == valuestore.TypeFilePath
	case "number":
		switch t {
		case valuestore.TypeInt32Small, valuestore.TypeInt32Big, valuestore.TypeUInt32,
			valuestore.TypeInt64, valuestore.TypeUInt64, valuestore.TypeFloat31, valuestore.TypeFloat32:
			return true
		default:
			return false
		}
	case "boolean":
		return t == valuestore.TypeBoolean
	case "null":
		return t == valuestore.TypeNull || t == valuestore.TypeSpecialErase
	default:
		return true
	}
}

// Lookup maps a wildcard pattern of a content-relative path (e.g.
// "config/**/*.json") to a schema file path, the way spec §4.5's "schema
// lookup file" does.
type Lookup struct {
	entries []lookupEntry
}

type lookupEntry struct {
	pattern    string
	schemaPath string
}

// ParseLookup parses a lookup file: a JSON object mapping glob-style
// wildcard patterns to schema file paths.
func ParseLookup(raw []byte) (*Lookup, error) {
	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("extjson: parse schema lookup: %w", err)
	}

	var m map[string]string
	if err := json.Unmarshal(standardized, &m); err != nil {
		return nil, fmt.Errorf("extjson: parse schema lookup: %w", err)
	}

	l := &Lookup{}
	for pattern, schemaPath := range m {
		l.entries = append(l.entries, lookupEntry{pattern: pattern, schemaPath: schemaPath})
	}

	return l, nil
}

// Match returns the schema file path whose pattern matches relPath, and
// true, or ("", false) if none match. Patterns are matched with
// [path.Match] segment-by-segment against relPath's "/"-joined segments, a
// "**" segment matching any number of path segments.
func (l *Lookup) Match(relPath string) (string, bool) {
	for _, e := range l.entries {
		if wildcardMatch(e.pattern, relPath) {
			return e.schemaPath, true
		}
	}

	return "", false
}

func wildcardMatch(pattern, name string) bool {
	if strings.Contains(pattern, "**") {
		prefix, suffix, _ := strings.Cut(pattern, "**")
		prefix = strings.TrimSuffix(prefix, "/")
		suffix = strings.TrimPrefix(suffix, "/")

		segs := strings.Split(name, "/")
		start := 0

		if prefix != "" {
			start = strings.Count(prefix, "/") + 1
			if start > len(segs) || !wildcardMatch(prefix, strings.Join(segs[:start], "/")) {
				return false
			}
		}

		for i := start; i <= len(segs); i++ {
			if wildcardMatch(suffix, strings.Join(segs[i:], "/")) {
				return true
			}
		}

		return false
	}

	ok, err := path.Match(pattern, name)

	return err == nil && ok
}

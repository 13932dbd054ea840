package cook

import (
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/vnstone/datastore/pkg/extjson"
	"github.com/vnstone/datastore/pkg/printer"
	"github.com/vnstone/datastore/pkg/valuestore"
)

// sidecarPath returns the metadata sidecar path for a cooked artifact (spec
// §6: "cooked-path + .json extension, metadata lives alongside its
// artifact, with the original extension included in the stem").
func sidecarPath(cookedPath string) string {
	return cookedPath + ".json"
}

// yamlSidecarPath is the alternate hand-maintained-fixture encoding this
// module adds on top of spec §6 (SPEC_FULL.md C8 "Added" section).
func yamlSidecarPath(cookedPath string) string {
	return cookedPath + ".yaml"
}

// readMetadata loads the sidecar for cookedPath, preferring the YAML
// fixture form if present (it is meant for hand edits and always takes
// precedence so a developer's override is never shadowed by a stale
// generated JSON sidecar), otherwise the JSON form produced by cooking.
func readMetadata(cookedPath string) (Metadata, error) {
	if data, err := os.ReadFile(yamlSidecarPath(cookedPath)); err == nil {
		var m Metadata

		if err := yaml.Unmarshal(data, &m); err != nil {
			return Metadata{}, fmt.Errorf("%w: %s: %w", ErrCorruptSidecar, yamlSidecarPath(cookedPath), err)
		}

		return m, nil
	}

	data, err := os.ReadFile(sidecarPath(cookedPath))
	if err != nil {
		return Metadata{}, err
	}

	return decodeMetadataJSON(data)
}

// writeMetadata saves m as the JSON sidecar for cookedPath, through the
// same extjson/valuestore/printer pipeline the rest of the module uses for
// every other JSON document on disk (spec §4.8: "C8 is independent but
// consumes the same parser and value store for its metadata files").
func writeMetadata(cookedPath string, m Metadata) error {
	data, err := encodeMetadataJSON(m)
	if err != nil {
		return err
	}

	return atomic.WriteFile(sidecarPath(cookedPath), strings.NewReader(string(data)))
}

// DecodeMetadataJSON parses a standalone sidecar-shaped JSON document (for
// example one a caller composed by hand, such as cmd/cook's "record"
// subcommand) into a [Metadata]. Identical to the decoding used when a
// JSON sidecar is read back from disk.
func DecodeMetadataJSON(data []byte) (Metadata, error) {
	return decodeMetadataJSON(data)
}

// decodeMetadataJSON parses sidecar JSON bytes into a Metadata by routing
// them through [extjson.Parse] into a scratch [valuestore.Store] and then
// reading fields back out of the resulting table, instead of a second,
// independent JSON decoder.
func decodeMetadataJSON(data []byte) (Metadata, error) {
	store := valuestore.New(valuestore.NewSymbols())

	result, err := extjson.Parse(store, data, extjson.Options{})
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrCorruptSidecar, err)
	}

	return metadataFromNode(store, result.Root)
}

// encodeMetadataJSON is the inverse of decodeMetadataJSON: builds m as a
// value tree in a scratch store and pretty-prints it with [printer.Print].
func encodeMetadataJSON(m Metadata) ([]byte, error) {
	store := valuestore.New(valuestore.NewSymbols())

	root := metadataToNode(store, m)
	store.SetRoot(root)

	return printer.Print(store, root, nil, printer.Options{})
}

func sym(s *valuestore.Store, key string) uint32 { return s.Symbols().Intern(key) }

func metadataToNode(s *valuestore.Store, m Metadata) valuestore.DataNode {
	root := s.NewTable()

	_ = s.TableSet(root, sym(s, "CookedTimestamp"), s.NewUInt64(m.CookedTimestamp))
	_ = s.TableSet(root, sym(s, "CookerVersion"), s.NewUInt32(m.CookerVersion))
	_ = s.TableSet(root, sym(s, "DataVersion"), s.NewUInt32(m.DataVersion))
	_ = s.TableSet(root, sym(s, "Sources"), sourceRefsToNode(s, m.Sources))

	if m.Siblings != nil {
		_ = s.TableSet(root, sym(s, "Siblings"), sourceRefsToNode(s, m.Siblings))
	}

	if m.DirectorySources != nil {
		arr := s.NewArray()

		for i, d := range m.DirectorySources {
			entry := s.NewTable()
			_ = s.TableSet(entry, sym(s, "Source"), s.NewString(d.Source))
			_ = s.TableSet(entry, sym(s, "FileCount"), s.NewUInt32(d.FileCount))
			_ = s.ArraySet(arr, i, entry)
		}

		_ = s.TableSet(root, sym(s, "DirectorySources"), arr)
	}

	return root
}

func sourceRefsToNode(s *valuestore.Store, refs []SourceRef) valuestore.DataNode {
	arr := s.NewArray()

	for i, r := range refs {
		entry := s.NewTable()
		_ = s.TableSet(entry, sym(s, "Source"), s.NewString(r.Source))
		_ = s.TableSet(entry, sym(s, "Timestamp"), s.NewUInt64(r.Timestamp))
		_ = s.ArraySet(arr, i, entry)
	}

	return arr
}

func metadataFromNode(s *valuestore.Store, root valuestore.DataNode) (Metadata, error) {
	if root.Type() != valuestore.TypeTable {
		return Metadata{}, fmt.Errorf("%w: root is not a table", ErrCorruptSidecar)
	}

	var m Metadata

	if v, ok, err := s.TableGet(root, sym(s, "CookedTimestamp")); err == nil && ok {
		m.CookedTimestamp, _ = s.UIntValue(v)
	}

	if v, ok, err := s.TableGet(root, sym(s, "CookerVersion")); err == nil && ok {
		u, _ := s.UIntValue(v)
		m.CookerVersion = uint32(u)
	}

	if v, ok, err := s.TableGet(root, sym(s, "DataVersion")); err == nil && ok {
		u, _ := s.UIntValue(v)
		m.DataVersion = uint32(u)
	}

	if v, ok, err := s.TableGet(root, sym(s, "Sources")); err == nil && ok {
		refs, err := sourceRefsFromNode(s, v)
		if err != nil {
			return Metadata{}, err
		}

		m.Sources = refs
	}

	if v, ok, err := s.TableGet(root, sym(s, "Siblings")); err == nil && ok {
		refs, err := sourceRefsFromNode(s, v)
		if err != nil {
			return Metadata{}, err
		}

		m.Siblings = refs
	}

	if v, ok, err := s.TableGet(root, sym(s, "DirectorySources")); err == nil && ok {
		n, err := s.ArrayLen(v)
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: DirectorySources: %w", ErrCorruptSidecar, err)
		}

		out := make([]DirSourceRef, 0, n)

		for i := 0; i < n; i++ {
			entry, err := s.ArrayGet(v, i)
			if err != nil {
				return Metadata{}, err
			}

			src, _, _ := s.TableGet(entry, sym(s, "Source"))
			name, _ := s.StringValue(src)

			cnt, _, _ := s.TableGet(entry, sym(s, "FileCount"))
			u, _ := s.UIntValue(cnt)

			out = append(out, DirSourceRef{Source: name, FileCount: uint32(u)})
		}

		m.DirectorySources = out
	}

	return m, nil
}

func sourceRefsFromNode(s *valuestore.Store, n valuestore.DataNode) ([]SourceRef, error) {
	count, err := s.ArrayLen(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSidecar, err)
	}

	out := make([]SourceRef, 0, count)

	for i := 0; i < count; i++ {
		entry, err := s.ArrayGet(n, i)
		if err != nil {
			return nil, err
		}

		src, _, _ := s.TableGet(entry, sym(s, "Source"))
		name, _ := s.StringValue(src)

		ts, _, _ := s.TableGet(entry, sym(s, "Timestamp"))
		u, _ := s.UIntValue(ts)

		out = append(out, SourceRef{Source: name, Timestamp: u})
	}

	return out, nil
}

package hints

import (
	"hash/fnv"
	"sort"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// ResolveHash computes the "resolve-hash" of a live value used to match it
// back to a hint node (spec §4.7). An array folds in only its kind and
// length; a table folds in its kind, length and keys, sorted by key string
// so insertion order does not matter. Neither folds in its children's
// values, so a hint's stored hash stays meaningful even after a
// descendant is edited (spec §4.7: "Container nodes do not contribute
// their children's hashes to their parent's aggregate").
func ResolveHash(s *valuestore.Store, n valuestore.DataNode) (uint64, error) {
	h := fnv.New64a()

	t := n.Type()
	writeByte(h, byte(t))

	switch t {
	case valuestore.TypeNull, valuestore.TypeSpecialErase:
		// no payload
	case valuestore.TypeBoolean:
		writeByte(h, boolByte(n.Bool()))
	case valuestore.TypeInt32Small:
		writeU64(h, uint64(uint32(n.Int32Small())))
	case valuestore.TypeFloat31:
		writeU64(h, uint64(valuestore.NewFloat31Bits(uint32(n)).Float32Value()))
	case valuestore.TypeFilePath:
		url, err := n.URL(s.Symbols())
		if err != nil {
			return 0, err
		}

		_, _ = h.Write([]byte(url))
	case valuestore.TypeString:
		str, err := s.StringValue(n)
		if err != nil {
			return 0, err
		}

		_, _ = h.Write([]byte(str))
	case valuestore.TypeArray:
		length, err := s.ArrayLen(n)
		if err != nil {
			return 0, err
		}

		writeU64(h, uint64(length))
	case valuestore.TypeTable:
		length, err := s.TableLen(n)
		if err != nil {
			return 0, err
		}

		keys, err := sortedTableKeys(s, n)
		if err != nil {
			return 0, err
		}

		writeU64(h, uint64(length))

		for _, k := range keys {
			writeU64(h, uint64(k))
		}
	default:
		// Wide scalar handle types (Int32Big/UInt32/Int64/UInt64/Float32):
		// fold in the underlying numeric value so edits to them change the
		// resolve-hash.
		if iv, err := s.IntValue(n); err == nil {
			writeU64(h, uint64(iv))
		} else if uv, err := s.UIntValue(n); err == nil {
			writeU64(h, uv)
		} else if fv, err := s.FloatValue(n); err == nil {
			writeU64(h, uint64(fv))
		}
	}

	return h.Sum64(), nil
}

func sortedTableKeys(s *valuestore.Store, n valuestore.DataNode) ([]uint32, error) {
	var keys []uint32

	err := s.TableIterate(n, func(e valuestore.TableEntry) bool {
		keys = append(keys, e.Key)
		return true
	})
	if err != nil {
		return nil, err
	}

	sym := s.Symbols()
	sort.Slice(keys, func(i, j int) bool {
		si, _ := sym.Lookup(keys[i])
		sj, _ := sym.Lookup(keys[j])

		return si < sj
	})

	return keys, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}

func writeByte(h interface{ Write([]byte) (int, error) }, b byte) {
	_, _ = h.Write([]byte{b})
}

func writeU64(h interface{ Write([]byte) (int, error) }, v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}

	_, _ = h.Write(buf[:])
}

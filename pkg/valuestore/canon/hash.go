package canon

import (
	"crypto/md5"
	"encoding/binary"
	"math"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// Hash computes the canonical, order-independent MD5 digest of n as stored
// in s. Two values that are [Equal] always hash identically; two values
// that hash identically are not guaranteed equal (MD5 collisions aside,
// NaN hashes the same everywhere but is unequal to itself when Equal is
// called with nanEqual false).
//
// crypto/md5 is used directly rather than through a third-party hashing
// library: the algorithm is fixed by spec (no alternate hash is offered
// anywhere else in this corpus), so there is nothing a library would add
// beyond what the standard package already provides.
func Hash(s *valuestore.Store, n valuestore.DataNode) ([16]byte, error) {
	h := md5.New()
	if err := writeNode(h, s, n); err != nil {
		return [16]byte{}, err
	}

	var out [16]byte
	copy(out[:], h.Sum(nil))

	return out, nil
}

type hasher interface {
	Write(p []byte) (int, error)
}

// typeTag collapses the small/big integer and float encodings onto a
// single wire tag each, so that e.g. an Int32Small and an Int32Big holding
// the same value hash (and compare, see Equal) identically: the split
// between inline and by-reference encoding is a storage detail, not part
// of the value's identity (spec §3.1, §4.6).
func typeTag(t valuestore.Type) byte {
	switch t {
	case valuestore.TypeInt32Small, valuestore.TypeInt32Big:
		return 1
	case valuestore.TypeUInt32, valuestore.TypeUInt64:
		return 2
	case valuestore.TypeInt64:
		return 3
	case valuestore.TypeFloat31, valuestore.TypeFloat32:
		return 4
	default:
		return byte(10 + t)
	}
}

func writeNode(w hasher, s *valuestore.Store, n valuestore.DataNode) error {
	var buf [8]byte

	t := n.Type()
	buf[0] = typeTag(t)
	w.Write(buf[:1])

	switch t {
	case valuestore.TypeNull, valuestore.TypeSpecialErase:
		return nil

	case valuestore.TypeBoolean:
		if n.Bool() {
			buf[0] = 1
		} else {
			buf[0] = 0
		}

		w.Write(buf[:1])

		return nil

	case valuestore.TypeFilePath:
		url, err := n.URL(s.Symbols())
		if err != nil {
			return err
		}

		w.Write([]byte(url))

		return nil

	case valuestore.TypeInt32Small, valuestore.TypeInt32Big, valuestore.TypeInt64:
		v, err := s.IntValue(n)
		if err != nil {
			return err
		}

		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		w.Write(buf[:])

		return nil

	case valuestore.TypeUInt32, valuestore.TypeUInt64:
		v, err := s.UIntValue(n)
		if err != nil {
			return err
		}

		binary.LittleEndian.PutUint64(buf[:], v)
		w.Write(buf[:])

		return nil

	case valuestore.TypeFloat31, valuestore.TypeFloat32:
		f, err := s.FloatValue(n)
		if err != nil {
			return err
		}
		// NaN payloads are not canonicalized bit-for-bit across every
		// producer, but valuestore.NewFloat already folds every NaN onto
		// one sentinel on the way in, so a plain bit hash is safe here.
		// -0 compares equal to +0, so it is folded onto +0 first.
		if f == 0 {
			f = 0
		}

		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(f))
		w.Write(buf[:4])

		return nil

	case valuestore.TypeString:
		str, err := s.StringValue(n)
		if err != nil {
			return err
		}

		binary.LittleEndian.PutUint64(buf[:], uint64(len(str)))
		w.Write(buf[:])
		w.Write([]byte(str))

		return nil

	case valuestore.TypeArray:
		length, err := s.ArrayLen(n)
		if err != nil {
			return err
		}

		binary.LittleEndian.PutUint64(buf[:], uint64(length))
		w.Write(buf[:])

		for i := 0; i < length; i++ {
			el, err := s.ArrayGet(n, i)
			if err != nil {
				return err
			}

			if err := writeNode(w, s, el); err != nil {
				return err
			}
		}

		return nil

	case valuestore.TypeTable:
		return writeTable(w, s, n)

	default:
		return valuestore.ErrWrongKind
	}
}

// writeTable hashes a table's entries sorted by the key's underlying
// string, so that insertion order, the table's physical slot layout, and
// which numeric symbol index a given key happens to have in this store's
// Symbols never affect the result (spec §3.3: "tables are unordered";
// §4.3: keys compare by their underlying string, not by index).
func writeTable(w hasher, s *valuestore.Store, n valuestore.DataNode) error {
	entries, err := sortedEntries(s, n)
	if err != nil {
		return err
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(entries)))
	w.Write(buf[:])

	for _, e := range entries {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(e.key)))
		w.Write(buf[:])
		w.Write([]byte(e.key))

		if err := writeNode(w, s, e.value); err != nil {
			return err
		}
	}

	return nil
}

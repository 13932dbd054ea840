package canon

import (
	"fmt"
	"sort"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// Equal reports whether na (in sa) and nb (in sb) are deeply equal: same
// type family (collapsing inline/by-reference integer and float encodings,
// see typeTag), same scalar payload, and for containers, same length and
// recursively equal elements (table comparison ignores key order).
//
// sa and sb may be the same store or different stores with entirely
// independent [valuestore.Symbols] instances: table keys and FilePath
// names are always resolved to their underlying string before comparison
// (spec §4.3), never compared by raw numeric index, so two stores loaded
// separately (e.g. via two pkg/binfmt.Load calls) still compare correctly.
// When nanEqual is true, two NaN floats compare equal to each other
// (matching the diff/patch use case, where a value that round-trips
// through the same bit pattern must count as unchanged); when false, NaN
// never equals anything, including itself, matching ordinary float
// semantics.
func Equal(sa *valuestore.Store, na valuestore.DataNode, sb *valuestore.Store, nb valuestore.DataNode, nanEqual bool) (bool, error) {
	ta, tb := na.Type(), nb.Type()
	if typeTag(ta) != typeTag(tb) {
		return false, nil
	}

	switch ta {
	case valuestore.TypeNull, valuestore.TypeSpecialErase:
		return true, nil

	case valuestore.TypeBoolean:
		return na.Bool() == nb.Bool(), nil

	case valuestore.TypeFilePath:
		ua, err := na.URL(sa.Symbols())
		if err != nil {
			return false, err
		}

		ub, err := nb.URL(sb.Symbols())
		if err != nil {
			return false, err
		}

		return ua == ub, nil

	case valuestore.TypeInt32Small, valuestore.TypeInt32Big, valuestore.TypeInt64:
		va, err := sa.IntValue(na)
		if err != nil {
			return false, err
		}

		vb, err := sb.IntValue(nb)
		if err != nil {
			return false, err
		}

		return va == vb, nil

	case valuestore.TypeUInt32, valuestore.TypeUInt64:
		va, err := sa.UIntValue(na)
		if err != nil {
			return false, err
		}

		vb, err := sb.UIntValue(nb)
		if err != nil {
			return false, err
		}

		return va == vb, nil

	case valuestore.TypeFloat31, valuestore.TypeFloat32:
		fa, err := sa.FloatValue(na)
		if err != nil {
			return false, err
		}

		fb, err := sb.FloatValue(nb)
		if err != nil {
			return false, err
		}

		if fa != fa || fb != fb { // either is NaN
			return nanEqual && fa != fa && fb != fb, nil
		}

		return fa == fb, nil

	case valuestore.TypeString:
		va, err := sa.StringValue(na)
		if err != nil {
			return false, err
		}

		vb, err := sb.StringValue(nb)
		if err != nil {
			return false, err
		}

		return va == vb, nil

	case valuestore.TypeArray:
		return equalArrays(sa, na, sb, nb, nanEqual)

	case valuestore.TypeTable:
		return equalTables(sa, na, sb, nb, nanEqual)

	default:
		return false, valuestore.ErrWrongKind
	}
}

func equalArrays(sa *valuestore.Store, na valuestore.DataNode, sb *valuestore.Store, nb valuestore.DataNode, nanEqual bool) (bool, error) {
	la, err := sa.ArrayLen(na)
	if err != nil {
		return false, err
	}

	lb, err := sb.ArrayLen(nb)
	if err != nil {
		return false, err
	}

	if la != lb {
		return false, nil
	}

	for i := 0; i < la; i++ {
		ea, err := sa.ArrayGet(na, i)
		if err != nil {
			return false, err
		}

		eb, err := sb.ArrayGet(nb, i)
		if err != nil {
			return false, err
		}

		eq, err := Equal(sa, ea, sb, eb, nanEqual)
		if err != nil {
			return false, err
		}

		if !eq {
			return false, nil
		}
	}

	return true, nil
}

func equalTables(sa *valuestore.Store, na valuestore.DataNode, sb *valuestore.Store, nb valuestore.DataNode, nanEqual bool) (bool, error) {
	ea, err := sortedEntries(sa, na)
	if err != nil {
		return false, err
	}

	eb, err := sortedEntries(sb, nb)
	if err != nil {
		return false, err
	}

	if len(ea) != len(eb) {
		return false, nil
	}

	for i := range ea {
		if ea[i].key != eb[i].key {
			return false, nil
		}

		eq, err := Equal(sa, ea[i].value, sb, eb[i].value, nanEqual)
		if err != nil {
			return false, err
		}

		if !eq {
			return false, nil
		}
	}

	return true, nil
}

// keyedEntry pairs a table entry's value with its key's underlying
// string, resolved through the owning store's Symbols. Sorting and
// comparing table entries by this string, rather than by raw numeric
// symbol index, is required by spec §4.3's "byte comparison of the key's
// underlying string": two stores with independently-ordered symbol
// tables (the normal case once each has gone through its own
// pkg/binfmt.Load) assign different indices to the same string, so a
// raw-index comparison only happens to work when both stores share one
// Symbols instance.
type keyedEntry struct {
	key   string
	value valuestore.DataNode
}

func sortedEntries(s *valuestore.Store, n valuestore.DataNode) ([]keyedEntry, error) {
	var entries []keyedEntry

	var lookupErr error

	err := s.TableIterate(n, func(e valuestore.TableEntry) bool {
		key, ok := s.Symbols().Lookup(e.Key)
		if !ok {
			lookupErr = fmt.Errorf("canon: table key symbol %d not found", e.Key)
			return false
		}

		entries = append(entries, keyedEntry{key: key, value: e.Value})

		return true
	})
	if err != nil {
		return nil, err
	}

	if lookupErr != nil {
		return nil, lookupErr
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	return entries, nil
}

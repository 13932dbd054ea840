package canon

import "github.com/vnstone/datastore/pkg/valuestore"

// Copy deep-copies n out of src and into dst, returning the equivalent
// value rooted in dst. src and dst may be the same store (cloning a
// subtree) or different ones (splicing a value pulled from one save into
// another, as pkg/commands' $include does).
//
// The copy happens under a single [valuestore.Store.SuppressGC] scope on
// dst: freshly copied children are only reachable through Go-level
// variables until Copy links them into their parent, so a garbage
// collection triggered mid-copy would reclaim them out from under it.
func Copy(dst *valuestore.Store, src *valuestore.Store, n valuestore.DataNode) (valuestore.DataNode, error) {
	release := dst.SuppressGC()
	defer release()

	return copyNode(dst, src, n)
}

func copyNode(dst *valuestore.Store, src *valuestore.Store, n valuestore.DataNode) (valuestore.DataNode, error) {
	switch n.Type() {
	case valuestore.TypeNull, valuestore.TypeSpecialErase, valuestore.TypeBoolean, valuestore.TypeInt32Small, valuestore.TypeFloat31:
		return n, nil

	case valuestore.TypeFilePath:
		return copyFilePath(dst, src, n)

	case valuestore.TypeInt32Big:
		v, err := src.Int32BigValue(n)
		if err != nil {
			return 0, err
		}

		return dst.NewInt32(v), nil

	case valuestore.TypeUInt32:
		v, err := src.UInt32Value(n)
		if err != nil {
			return 0, err
		}

		return dst.NewUInt32(v), nil

	case valuestore.TypeInt64:
		v, err := src.Int64Value(n)
		if err != nil {
			return 0, err
		}

		return dst.NewInt64(v), nil

	case valuestore.TypeUInt64:
		v, err := src.UInt64Value(n)
		if err != nil {
			return 0, err
		}

		return dst.NewUInt64(v), nil

	case valuestore.TypeFloat32:
		f, err := src.Float32HandleValue(n)
		if err != nil {
			return 0, err
		}

		return dst.NewFloat32(f), nil

	case valuestore.TypeString:
		str, err := src.StringValue(n)
		if err != nil {
			return 0, err
		}

		return dst.NewString(str), nil

	case valuestore.TypeArray:
		return copyArray(dst, src, n)

	case valuestore.TypeTable:
		return copyTable(dst, src, n)

	default:
		return 0, valuestore.ErrWrongKind
	}
}

// copyFilePath re-resolves the source FilePath's symbol through src's
// Symbols and re-interns it through dst's, so a copy across stores with
// independently numbered symbol tables still lands on the right name.
func copyFilePath(dst *valuestore.Store, src *valuestore.Store, n valuestore.DataNode) (valuestore.DataNode, error) {
	dir, kind, sym := n.FilePathParts()

	if dst.Symbols() == src.Symbols() {
		return valuestore.NewFilePath(dir, kind, sym), nil
	}

	name, ok := src.Symbols().Lookup(sym)
	if !ok {
		return 0, valuestore.ErrCorruptContainer
	}

	return valuestore.NewFilePath(dir, kind, dst.Symbols().Intern(name)), nil
}

func copyArray(dst *valuestore.Store, src *valuestore.Store, n valuestore.DataNode) (valuestore.DataNode, error) {
	length, err := src.ArrayLen(n)
	if err != nil {
		return 0, err
	}

	result := dst.NewArray()

	for i := 0; i < length; i++ {
		el, err := src.ArrayGet(n, i)
		if err != nil {
			return 0, err
		}

		copied, err := copyNode(dst, src, el)
		if err != nil {
			return 0, err
		}

		if err := dst.ArraySet(result, i, copied); err != nil {
			return 0, err
		}
	}

	return result, nil
}

func copyTable(dst *valuestore.Store, src *valuestore.Store, n valuestore.DataNode) (valuestore.DataNode, error) {
	result := dst.NewTable()

	var iterErr error

	err := src.TableIterate(n, func(e valuestore.TableEntry) bool {
		copied, err := copyNode(dst, src, e.Value)
		if err != nil {
			iterErr = err
			return false
		}

		if err := dst.TableSet(result, e.Key, copied); err != nil {
			iterErr = err
			return false
		}

		return true
	})
	if err != nil {
		return 0, err
	}

	if iterErr != nil {
		return 0, iterErr
	}

	return result, nil
}

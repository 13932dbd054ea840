package canon

import "github.com/vnstone/datastore/pkg/valuestore"

// Diff computes a patch, rooted in patchStore, that ApplyDiff can later
// replay against oldN to reconstruct (a value [Equal] to) newN. oldN lives
// in oldStore, newN in newStore; patchStore may be either, or a third
// store set aside to hold nothing but patches (spec §4.7's incremental-save
// use case: only the patch, not the whole tree, needs to be written out
// again).
//
// When both sides are tables, the patch is itself a table holding only the
// keys that changed: an added or changed key maps to a (possibly nested)
// patch of the new value, and a removed key maps to
// [valuestore.SpecialEraseNode]. For any other pair of types, or where the
// two sides' types disagree, the patch is simply a deep copy of newN: there
// is no meaningful partial patch for a scalar or array replacement.
func Diff(patchStore *valuestore.Store, oldStore *valuestore.Store, oldN valuestore.DataNode, newStore *valuestore.Store, newN valuestore.DataNode) (valuestore.DataNode, error) {
	release := patchStore.SuppressGC()
	defer release()

	return diffNode(patchStore, oldStore, oldN, newStore, newN)
}

func diffNode(patchStore *valuestore.Store, oldStore *valuestore.Store, oldN valuestore.DataNode, newStore *valuestore.Store, newN valuestore.DataNode) (valuestore.DataNode, error) {
	if oldN.Type() == valuestore.TypeTable && newN.Type() == valuestore.TypeTable {
		return diffTables(patchStore, oldStore, oldN, newStore, newN)
	}

	return Copy(patchStore, newStore, newN)
}

// tableEntries returns a table's entries in whatever order TableIterate
// visits them, keyed by raw numeric symbol index. diffTables matches keys
// between oldStore and newStore by that raw index rather than by resolved
// string (unlike [Equal] and [Hash]): Diff/ApplyDiff are only ever used
// with a patch built from stores that share one [valuestore.Symbols]
// instance (spec §4.7's incremental-save pipeline keeps one store open
// across saves), so there is no independently-ordered symbol table to
// reconcile here.
func tableEntries(s *valuestore.Store, n valuestore.DataNode) ([]valuestore.TableEntry, error) {
	var entries []valuestore.TableEntry

	err := s.TableIterate(n, func(e valuestore.TableEntry) bool {
		entries = append(entries, e)
		return true
	})

	return entries, err
}

func diffTables(patchStore *valuestore.Store, oldStore *valuestore.Store, oldN valuestore.DataNode, newStore *valuestore.Store, newN valuestore.DataNode) (valuestore.DataNode, error) {
	result := patchStore.NewTable()

	oldEntries, err := tableEntries(oldStore, oldN)
	if err != nil {
		return 0, err
	}

	oldByKey := make(map[uint32]valuestore.DataNode, len(oldEntries))
	for _, e := range oldEntries {
		oldByKey[e.Key] = e.Value
	}

	var iterErr error

	err = newStore.TableIterate(newN, func(e valuestore.TableEntry) bool {
		oldVal, existed := oldByKey[e.Key]
		if existed {
			eq, eqErr := Equal(oldStore, oldVal, newStore, e.Value, true)
			if eqErr != nil {
				iterErr = eqErr
				return false
			}

			if eq {
				delete(oldByKey, e.Key)
				return true
			}
		}

		patched, diffErr := diffNode(patchStore, oldStore, oldVal, newStore, e.Value)
		if diffErr != nil {
			iterErr = diffErr
			return false
		}

		if setErr := patchStore.TableSet(result, e.Key, patched); setErr != nil {
			iterErr = setErr
			return false
		}

		delete(oldByKey, e.Key)

		return true
	})
	if err != nil {
		return 0, err
	}

	if iterErr != nil {
		return 0, iterErr
	}

	// Every key left in oldByKey existed in the old table but not the new
	// one: it must be erased on patch.
	for key := range oldByKey {
		if err := patchStore.TableSet(result, key, valuestore.SpecialEraseNode); err != nil {
			return 0, err
		}
	}

	return result, nil
}

// ApplyDiff replays a patch produced by Diff against base (in baseStore),
// returning the reconstructed value rooted in dstStore. dstStore may be
// baseStore itself (patching in place conceptually, though the result is
// still a freshly allocated value) or a separate destination.
func ApplyDiff(dstStore *valuestore.Store, baseStore *valuestore.Store, base valuestore.DataNode, patchStore *valuestore.Store, patch valuestore.DataNode) (valuestore.DataNode, error) {
	release := dstStore.SuppressGC()
	defer release()

	return applyDiffNode(dstStore, baseStore, base, patchStore, patch)
}

func applyDiffNode(dstStore *valuestore.Store, baseStore *valuestore.Store, base valuestore.DataNode, patchStore *valuestore.Store, patch valuestore.DataNode) (valuestore.DataNode, error) {
	if base.Type() != valuestore.TypeTable || patch.Type() != valuestore.TypeTable {
		return Copy(dstStore, patchStore, patch)
	}

	result := dstStore.NewTable()

	var iterErr error

	err := baseStore.TableIterate(base, func(e valuestore.TableEntry) bool {
		_, overridden, findErr := patchStore.TableGet(patch, e.Key)
		if findErr != nil {
			iterErr = findErr
			return false
		}

		if overridden {
			// Handled by the patch-side pass below, which sees every key
			// the patch mentions (including re-copies and erasures).
			return true
		}

		copied, copyErr := Copy(dstStore, baseStore, e.Value)
		if copyErr != nil {
			iterErr = copyErr
			return false
		}

		if setErr := dstStore.TableSet(result, e.Key, copied); setErr != nil {
			iterErr = setErr
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

	err = patchStore.TableIterate(patch, func(e valuestore.TableEntry) bool {
		if e.Value.Type() == valuestore.TypeSpecialErase {
			return true
		}

		baseVal, existed, findErr := baseStore.TableGet(base, e.Key)
		if findErr != nil {
			iterErr = findErr
			return false
		}

		var merged valuestore.DataNode

		var mergeErr error

		if existed {
			merged, mergeErr = applyDiffNode(dstStore, baseStore, baseVal, patchStore, e.Value)
		} else {
			merged, mergeErr = Copy(dstStore, patchStore, e.Value)
		}

		if mergeErr != nil {
			iterErr = mergeErr
			return false
		}

		if setErr := dstStore.TableSet(result, e.Key, merged); setErr != nil {
			iterErr = setErr
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

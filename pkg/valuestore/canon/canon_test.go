package canon_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vnstone/datastore/pkg/valuestore"
	"github.com/vnstone/datastore/pkg/valuestore/canon"
)

// snapshot walks n into a plain Go value (map/slice/scalar) so tests can
// compare trees across stores with cmp.Diff instead of poking at opaque
// DataNode handles directly.
func snapshot(t *testing.T, s *valuestore.Store, n valuestore.DataNode) any {
	t.Helper()

	switch n.Type() {
	case valuestore.TypeNull:
		return nil
	case valuestore.TypeSpecialErase:
		return "<erase>"
	case valuestore.TypeBoolean:
		return n.Bool()
	case valuestore.TypeInt32Small, valuestore.TypeInt32Big, valuestore.TypeUInt32, valuestore.TypeInt64, valuestore.TypeUInt64:
		v, err := s.IntValue(n)
		if err != nil {
			t.Fatalf("IntValue: %v", err)
		}

		return v
	case valuestore.TypeFloat31, valuestore.TypeFloat32:
		v, err := s.FloatValue(n)
		if err != nil {
			t.Fatalf("FloatValue: %v", err)
		}

		return v
	case valuestore.TypeString:
		v, err := s.StringValue(n)
		if err != nil {
			t.Fatalf("StringValue: %v", err)
		}

		return v
	case valuestore.TypeArray:
		length, err := s.ArrayLen(n)
		if err != nil {
			t.Fatalf("ArrayLen: %v", err)
		}

		out := make([]any, length)

		for i := 0; i < length; i++ {
			v, err := s.ArrayGet(n, i)
			if err != nil {
				t.Fatalf("ArrayGet(%d): %v", i, err)
			}

			out[i] = snapshot(t, s, v)
		}

		return out
	case valuestore.TypeTable:
		out := map[string]any{}

		err := s.TableIterate(n, func(e valuestore.TableEntry) bool {
			key, _ := s.Symbols().Lookup(e.Key)
			out[key] = snapshot(t, s, e.Value)

			return true
		})
		if err != nil {
			t.Fatalf("TableIterate: %v", err)
		}

		return out
	default:
		t.Fatalf("snapshot: unhandled type %v", n.Type())

		return nil
	}
}

func buildTable(t *testing.T, s *valuestore.Store, fields map[string]valuestore.DataNode) valuestore.DataNode {
	t.Helper()

	tbl := s.NewTable()

	for k, v := range fields {
		if err := s.TableSet(tbl, s.Symbols().Intern(k), v); err != nil {
			t.Fatalf("TableSet(%q): %v", k, err)
		}
	}

	return tbl
}

func TestHashOrderIndependent(t *testing.T) {
	syms := valuestore.NewSymbols()
	sa := valuestore.New(syms)
	sb := valuestore.New(syms)

	a := buildTable(t, sa, map[string]valuestore.DataNode{
		"a": valuestore.NewInt32Small(1),
		"b": valuestore.NewInt32Small(2),
	})
	b := buildTable(t, sb, map[string]valuestore.DataNode{
		"b": valuestore.NewInt32Small(2),
		"a": valuestore.NewInt32Small(1),
	})

	ha, err := canon.Hash(sa, a)
	if err != nil {
		t.Fatalf("Hash(a): %v", err)
	}

	hb, err := canon.Hash(sb, b)
	if err != nil {
		t.Fatalf("Hash(b): %v", err)
	}

	if ha != hb {
		t.Fatalf("Hash mismatch for differently-ordered identical tables: %x != %x", ha, hb)
	}

	c := buildTable(t, sa, map[string]valuestore.DataNode{
		"a": valuestore.NewInt32Small(1),
		"b": valuestore.NewInt32Small(3),
	})

	hc, err := canon.Hash(sa, c)
	if err != nil {
		t.Fatalf("Hash(c): %v", err)
	}

	if ha == hc {
		t.Fatalf("Hash collided for distinguishable tables")
	}
}

func TestHashEqualityConsistency(t *testing.T) {
	syms := valuestore.NewSymbols()
	sa := valuestore.New(syms)
	sb := valuestore.New(syms)

	a := buildTable(t, sa, map[string]valuestore.DataNode{
		"x": valuestore.NewInt32Small(7),
		"y": sa.NewString("hi"),
	})
	b := buildTable(t, sb, map[string]valuestore.DataNode{
		"y": sb.NewString("hi"),
		"x": valuestore.NewInt32Small(7),
	})

	eq, err := canon.Equal(sa, a, sb, b, false)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}

	if !eq {
		t.Fatalf("expected Equal(a, b) == true")
	}

	ha, _ := canon.Hash(sa, a)
	hb, _ := canon.Hash(sb, b)

	if ha != hb {
		t.Fatalf("Equal values hashed differently: %x != %x", ha, hb)
	}
}

func TestEqualNaNModes(t *testing.T) {
	s := valuestore.New(nil)

	nanA, ok := valuestore.NewFloat(float32(nan()))
	if !ok {
		t.Fatalf("NewFloat(NaN) should always encode inline as the canonical Float31 NaN")
	}

	nanB, ok := valuestore.NewFloat(float32(nan()))
	if !ok {
		t.Fatalf("NewFloat(NaN) should always encode inline as the canonical Float31 NaN")
	}

	_ = s

	eqTrue, err := canon.Equal(s, nanA, s, nanB, true)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}

	if !eqTrue {
		t.Fatalf("expected NaN == NaN under nanEqual=true")
	}

	eqFalse, err := canon.Equal(s, nanA, s, nanB, false)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}

	if eqFalse {
		t.Fatalf("expected NaN != NaN under nanEqual=false")
	}
}

func TestCopyAcrossStores(t *testing.T) {
	syms := valuestore.NewSymbols()
	src := valuestore.New(syms)
	dst := valuestore.New(syms)

	inner := src.NewArray()

	if err := src.ArraySet(inner, 0, valuestore.NewInt32Small(1)); err != nil {
		t.Fatalf("ArraySet: %v", err)
	}

	if err := src.ArraySet(inner, 1, src.NewString("leaf")); err != nil {
		t.Fatalf("ArraySet: %v", err)
	}

	root := buildTable(t, src, map[string]valuestore.DataNode{
		"list": inner,
		"n":    valuestore.NewInt32Small(42),
	})

	copied, err := canon.Copy(dst, src, root)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}

	want := snapshot(t, src, root)
	got := snapshot(t, dst, copied)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("copied tree mismatch (-want +got):\n%s", diff)
	}

	eq, err := canon.Equal(src, root, dst, copied, false)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}

	if !eq {
		t.Fatalf("Copy result not Equal to source")
	}
}

func TestDiffApplyDiffRoundTrip(t *testing.T) {
	syms := valuestore.NewSymbols()
	sa := valuestore.New(syms)
	sb := valuestore.New(syms)

	nested := sa.NewTable()

	if err := sa.TableSet(nested, sa.Symbols().Intern("p"), valuestore.NewInt32Small(1)); err != nil {
		t.Fatalf("TableSet: %v", err)
	}

	if err := sa.TableSet(nested, sa.Symbols().Intern("q"), valuestore.NewInt32Small(2)); err != nil {
		t.Fatalf("TableSet: %v", err)
	}

	a := buildTable(t, sa, map[string]valuestore.DataNode{
		"x": valuestore.NewInt32Small(1),
		"y": nested,
	})

	nestedB := sb.NewTable()
	if err := sb.TableSet(nestedB, sb.Symbols().Intern("p"), valuestore.NewInt32Small(1)); err != nil {
		t.Fatalf("TableSet: %v", err)
	}

	b := buildTable(t, sb, map[string]valuestore.DataNode{
		"x": valuestore.NewInt32Small(2),
		"y": nestedB,
	})

	patchStore := valuestore.New(syms)

	patch, err := canon.Diff(patchStore, sa, a, sb, b)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	patchSnap := snapshot(t, patchStore, patch)
	want := map[string]any{
		"x": int64(2),
		"y": map[string]any{"q": "<erase>"},
	}

	if diff := cmp.Diff(want, patchSnap); diff != "" {
		t.Fatalf("patch mismatch (-want +got):\n%s", diff)
	}

	dst := valuestore.New(syms)

	applied, err := canon.ApplyDiff(dst, sa, a, patchStore, patch)
	if err != nil {
		t.Fatalf("ApplyDiff: %v", err)
	}

	eq, err := canon.Equal(dst, applied, sb, b, false)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}

	if !eq {
		t.Fatalf("apply_diff(diff(a, b))(a) != b")
	}

	if diff := cmp.Diff(snapshot(t, sb, b), snapshot(t, dst, applied)); diff != "" {
		t.Fatalf("applied tree mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffNullBase(t *testing.T) {
	syms := valuestore.NewSymbols()
	sa := valuestore.New(syms)
	sb := valuestore.New(syms)

	b := buildTable(t, sb, map[string]valuestore.DataNode{
		"k": valuestore.NewInt32Small(9),
	})

	patch, err := canon.Diff(sa, sa, valuestore.Null, sb, b)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	eq, err := canon.Equal(sa, patch, sb, b, false)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}

	if !eq {
		t.Fatalf("Diff(Null, b) must equal b outright")
	}
}

// TestHashEqualIndependentSymbolTables is the realistic case after two
// files are each loaded through pkg/binfmt.Load: the resulting stores
// have their own Symbols instances, interned in whatever order each
// file's string table happened to list them, so the same key string ends
// up at different numeric indices in each store. Hash and Equal must
// still agree, since spec §4.3 defines table-key comparison by the key's
// underlying string, not by its index.
func TestHashEqualIndependentSymbolTables(t *testing.T) {
	sa := valuestore.New(valuestore.NewSymbols())
	sb := valuestore.New(valuestore.NewSymbols())

	// Intern in reverse order on each side so "a" and "b" land on
	// different indices in sa.Symbols() vs sb.Symbols().
	sa.Symbols().Intern("b")
	sa.Symbols().Intern("a")

	sb.Symbols().Intern("a")
	sb.Symbols().Intern("b")

	a := buildTable(t, sa, map[string]valuestore.DataNode{
		"a": valuestore.NewInt32Small(1),
		"b": sa.NewString("two"),
	})
	b := buildTable(t, sb, map[string]valuestore.DataNode{
		"a": valuestore.NewInt32Small(1),
		"b": sb.NewString("two"),
	})

	eq, err := canon.Equal(sa, a, sb, b, false)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}

	if !eq {
		t.Fatalf("expected Equal across independently-ordered symbol tables")
	}

	ha, err := canon.Hash(sa, a)
	if err != nil {
		t.Fatalf("Hash(a): %v", err)
	}

	hb, err := canon.Hash(sb, b)
	if err != nil {
		t.Fatalf("Hash(b): %v", err)
	}

	if ha != hb {
		t.Fatalf("Hash mismatch across independently-ordered symbol tables: %x != %x", ha, hb)
	}

	c := buildTable(t, sb, map[string]valuestore.DataNode{
		"a": valuestore.NewInt32Small(1),
		"b": sb.NewString("three"),
	})

	eqC, err := canon.Equal(sa, a, sb, c, false)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}

	if eqC {
		t.Fatalf("Equal should distinguish tables whose values differ, independent symbol tables or not")
	}
}

func nan() float64 {
	var zero float64

	return zero / zero
}

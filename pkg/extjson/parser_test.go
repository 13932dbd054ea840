package extjson_test

import (
	"math"
	"testing"

	"github.com/vnstone/datastore/pkg/extjson"
	"github.com/vnstone/datastore/pkg/valuestore"
)

// TestParseScenario1 is spec §8 scenario 1, literally.
func TestParseScenario1(t *testing.T) {
	s := valuestore.New(nil)

	res, err := extjson.Parse(s, []byte(`{"a": 1, "b": [2, 3.5, "content://ui/main.png"]}`), extjson.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	root := res.Root
	if root.Type() != valuestore.TypeTable {
		t.Fatalf("root type = %v, want Table", root.Type())
	}

	syms := s.Symbols()

	a, found, err := s.TableGet(root, syms.Intern("a"))
	if err != nil || !found {
		t.Fatalf("TableGet(a): %v %v", found, err)
	}

	if a.Type() != valuestore.TypeInt32Small || a.Int32Small() != 1 {
		t.Fatalf("a = %v, want Int32Small(1)", a)
	}

	b, found, err := s.TableGet(root, syms.Intern("b"))
	if err != nil || !found {
		t.Fatalf("TableGet(b): %v %v", found, err)
	}

	length, err := s.ArrayLen(b)
	if err != nil || length != 3 {
		t.Fatalf("ArrayLen(b) = %d, %v, want 3", length, err)
	}

	e0, _ := s.ArrayGet(b, 0)
	if e0.Type() != valuestore.TypeInt32Small || e0.Int32Small() != 2 {
		t.Fatalf("b[0] = %v, want Int32Small(2)", e0)
	}

	e1, _ := s.ArrayGet(b, 1)
	if e1.Type() != valuestore.TypeFloat31 || e1.Float32Value() != 3.5 {
		t.Fatalf("b[1] = %v, want Float31(3.5)", e1)
	}

	e2, _ := s.ArrayGet(b, 2)
	if e2.Type() != valuestore.TypeFilePath {
		t.Fatalf("b[2] type = %v, want FilePath", e2.Type())
	}

	dir, kind, _ := e2.FilePathParts()
	if dir != valuestore.DirContent || kind != valuestore.KindImage {
		t.Fatalf("b[2] parts = %v %v, want Content/Image", dir, kind)
	}

	url, err := e2.URL(syms)
	if err != nil || url != "content://ui/main.png" {
		t.Fatalf("URL = %q, %v", url, err)
	}
}

func TestParseCommentsAndTrailingCommas(t *testing.T) {
	s := valuestore.New(nil)

	src := `{
		// a leading comment
		"a": 1, /* trailing block */
		"b": [1, 2, 3,],
	}`

	res, err := extjson.Parse(s, []byte(src), extjson.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	length, err := s.TableLen(res.Root)
	if err != nil || length != 2 {
		t.Fatalf("TableLen = %d, %v, want 2", length, err)
	}

	if res.Hints.Kind.String() != "Table" {
		t.Fatalf("root hint kind = %v, want Table", res.Hints.Kind)
	}
}

func TestParseDuplicateKeyRejected(t *testing.T) {
	s := valuestore.New(nil)

	_, err := extjson.Parse(s, []byte(`{"a": 1, "a": 2}`), extjson.Options{})
	if err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestParseDuplicateKeyAllowedLastWins(t *testing.T) {
	s := valuestore.New(nil)

	res, err := extjson.Parse(s, []byte(`{"a": 1, "a": 2}`), extjson.Options{AllowDuplicateKeys: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	v, _, err := s.TableGet(res.Root, s.Symbols().Intern("a"))
	if err != nil {
		t.Fatalf("TableGet: %v", err)
	}

	if v.Int32Small() != 2 {
		t.Fatalf("a = %v, want 2 (last wins)", v.Int32Small())
	}
}

func TestParseNaNInfinity(t *testing.T) {
	s := valuestore.New(nil)

	res, err := extjson.Parse(s, []byte(`[NaN, Infinity, -Infinity]`), extjson.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	e0, _ := s.ArrayGet(res.Root, 0)

	v0 := e0.Float32Value()
	if v0 == v0 {
		t.Fatalf("expected NaN at index 0")
	}

	e1, _ := s.ArrayGet(res.Root, 1)
	if e1.Float32Value() != float32(math.Inf(1)) {
		t.Fatalf("expected +Inf at index 1")
	}
}

func TestParseIntegerDowncast(t *testing.T) {
	s := valuestore.New(nil)

	res, err := extjson.Parse(s, []byte(`[3.0, 3]`), extjson.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	e0, _ := s.ArrayGet(res.Root, 0)
	e1, _ := s.ArrayGet(res.Root, 1)

	if e0 != e1 {
		t.Fatalf("3.0 (%v) and 3 (%v) should produce identical DataNodes", e0, e1)
	}
}

func TestLeaveFilePathAsString(t *testing.T) {
	s := valuestore.New(nil)

	res, err := extjson.Parse(s, []byte(`"content://ui/main.png"`), extjson.Options{LeaveFilePathAsString: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if res.Root.Type() != valuestore.TypeString {
		t.Fatalf("root type = %v, want String", res.Root.Type())
	}
}

package printer_test

import (
	"strings"
	"testing"

	"github.com/vnstone/datastore/pkg/extjson"
	"github.com/vnstone/datastore/pkg/printer"
	"github.com/vnstone/datastore/pkg/valuestore"
	"github.com/vnstone/datastore/pkg/valuestore/canon"
)

func TestPrintRoundTrip(t *testing.T) {
	s := valuestore.New(nil)

	src := `{
		// a leading comment
		"a": 1,
		"b": [2, 3.5, "content://ui/main.png"],
		"c": {"nested": true},
	}`

	res, err := extjson.Parse(s, []byte(src), extjson.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	out, err := printer.Print(s, res.Root, res.Hints, printer.Options{})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}

	if !strings.Contains(string(out), "a leading comment") {
		t.Fatalf("printed output dropped the comment:\n%s", out)
	}

	s2 := valuestore.New(s.Symbols())

	res2, err := extjson.Parse(s2, out, extjson.Options{})
	if err != nil {
		t.Fatalf("re-parse of printed output: %v\noutput was:\n%s", err, out)
	}

	eq, err := canon.Equal(s, res.Root, s2, res2.Root, true)
	if err != nil {
		t.Fatalf("canon.Equal: %v", err)
	}

	if !eq {
		t.Fatalf("round trip changed the value:\nbefore print: %#v\nafter reparse: %#v", res.Root, res2.Root)
	}
}

func TestPrintEmptyContainers(t *testing.T) {
	s := valuestore.New(nil)

	arr := s.NewArray()
	tbl := s.NewTable()

	out, err := printer.Print(s, arr, nil, printer.Options{})
	if err != nil {
		t.Fatalf("Print(array): %v", err)
	}

	if strings.TrimSpace(string(out)) != "[]" {
		t.Fatalf("Print(empty array) = %q, want []", out)
	}

	out, err = printer.Print(s, tbl, nil, printer.Options{})
	if err != nil {
		t.Fatalf("Print(table): %v", err)
	}

	if strings.TrimSpace(string(out)) != "{}" {
		t.Fatalf("Print(empty table) = %q, want {}", out)
	}
}

func TestPrintFloatSpecials(t *testing.T) {
	s := valuestore.New(nil)

	res, err := extjson.Parse(s, []byte(`[NaN, Infinity, -Infinity]`), extjson.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	out, err := printer.Print(s, res.Root, res.Hints, printer.Options{})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}

	for _, want := range []string{`"NaN"`, `"Infinity"`, `"-Infinity"`} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("printed output missing %s:\n%s", want, out)
		}
	}
}

func TestPrintWithoutHints(t *testing.T) {
	s := valuestore.New(nil)

	tbl := s.NewTable()
	syms := s.Symbols()

	if err := s.TableSet(tbl, syms.Intern("x"), s.NewInt32(42)); err != nil {
		t.Fatalf("TableSet: %v", err)
	}

	out, err := printer.Print(s, tbl, nil, printer.Options{})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}

	if !strings.Contains(string(out), `"x"`) {
		t.Fatalf("printed output missing key x:\n%s", out)
	}
}

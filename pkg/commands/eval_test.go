package commands_test

import (
	"testing"

	"github.com/vnstone/datastore/pkg/commands"
	"github.com/vnstone/datastore/pkg/valuestore"
)

// files implements commands.Resolver over an in-memory map, standing in
// for a real content-tree resolver in tests.
type files map[string]string

func (f files) Resolve(relativePath string) ([]byte, error) {
	src, ok := f[relativePath]
	if !ok {
		return nil, &fileNotFoundError{relativePath}
	}

	return []byte(src), nil
}

type fileNotFoundError struct{ path string }

func (e *fileNotFoundError) Error() string { return "no such file: " + e.path }

// TestEvalScenario4 is spec §8 scenario 4, literally.
func TestEvalScenario4(t *testing.T) {
	s := valuestore.New(nil)

	fs := files{
		"base.json": `[["$object","Thing"], ["$set","color","red"]]`,
	}

	derived := `[["$include","base.json"], ["$object","Thing"], ["$set","color","blue"]]`

	ev := commands.New(s, fs)

	root, err := ev.Eval([]byte(derived))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}

	syms := s.Symbols()

	thing, found, err := s.TableGet(root, syms.Intern("Thing"))
	if err != nil || !found {
		t.Fatalf("TableGet(Thing): found=%v err=%v", found, err)
	}

	color, found, err := s.TableGet(thing, syms.Intern("color"))
	if err != nil || !found {
		t.Fatalf("TableGet(color): found=%v err=%v", found, err)
	}

	str, err := s.StringValue(color)
	if err != nil || str != "blue" {
		t.Fatalf("color = %q, %v, want %q", str, err, "blue")
	}
}

func TestEvalAppendCreatesArray(t *testing.T) {
	s := valuestore.New(nil)

	ev := commands.New(s, files{})

	root, err := ev.Eval([]byte(`[["$object","Thing"], ["$append","tags","a"], ["$append","tags","b"]]`))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}

	syms := s.Symbols()

	thing, _, _ := s.TableGet(root, syms.Intern("Thing"))
	tags, found, err := s.TableGet(thing, syms.Intern("tags"))
	if err != nil || !found {
		t.Fatalf("TableGet(tags): found=%v err=%v", found, err)
	}

	length, err := s.ArrayLen(tags)
	if err != nil || length != 2 {
		t.Fatalf("ArrayLen(tags) = %d, %v, want 2", length, err)
	}

	e0, _ := s.ArrayGet(tags, 0)
	v0, _ := s.StringValue(e0)

	e1, _ := s.ArrayGet(tags, 1)
	v1, _ := s.StringValue(e1)

	if v0 != "a" || v1 != "b" {
		t.Fatalf("tags = [%q, %q], want [a, b]", v0, v1)
	}
}

func TestEvalEraseRemovesKey(t *testing.T) {
	s := valuestore.New(nil)

	ev := commands.New(s, files{})

	root, err := ev.Eval([]byte(`[["$object","Thing"], ["$set","color","red"], ["$erase","color"]]`))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}

	syms := s.Symbols()

	thing, _, _ := s.TableGet(root, syms.Intern("Thing"))

	_, found, err := s.TableGet(thing, syms.Intern("color"))
	if err != nil {
		t.Fatalf("TableGet(color): %v", err)
	}

	if found {
		t.Fatalf("color still present after $erase")
	}
}

func TestEvalObjectParentClonesValue(t *testing.T) {
	s := valuestore.New(nil)

	ev := commands.New(s, files{})

	src := `[
		["$object", "Base"], ["$set", "color", "red"],
		["$object", "Derived", "Base"], ["$set", "color", "blue"]
	]`

	root, err := ev.Eval([]byte(src))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}

	syms := s.Symbols()

	base, _, _ := s.TableGet(root, syms.Intern("Base"))
	baseColor, _, _ := s.TableGet(base, syms.Intern("color"))

	baseStr, _ := s.StringValue(baseColor)
	if baseStr != "red" {
		t.Fatalf("Base.color = %q, want red (should be unaffected by Derived's $set)", baseStr)
	}

	derived, _, _ := s.TableGet(root, syms.Intern("Derived"))
	derivedColor, _, _ := s.TableGet(derived, syms.Intern("color"))

	derivedStr, _ := s.StringValue(derivedColor)
	if derivedStr != "blue" {
		t.Fatalf("Derived.color = %q, want blue", derivedStr)
	}
}

func TestIsCommandFileDuckTyping(t *testing.T) {
	s := valuestore.New(nil)

	ev := commands.New(s, files{})

	res, err := ev.Eval([]byte(`{"plain": "object"}`))
	if err == nil {
		t.Fatalf("Eval of a non-array root unexpectedly succeeded: %v", res)
	}
}

func TestEvalSearchStep(t *testing.T) {
	s := valuestore.New(nil)

	ev := commands.New(s, files{})

	src := `[
		["$object", "Thing"],
		["$set", "items", []],
		["$append", "items", {"id": "a", "n": 1}],
		["$append", "items", {"id": "b", "n": 2}],
		["$set", "items", ["$search", "id", "b"], "n", 42]
	]`

	root, err := ev.Eval([]byte(src))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}

	syms := s.Symbols()

	thing, _, _ := s.TableGet(root, syms.Intern("Thing"))
	items, _, _ := s.TableGet(thing, syms.Intern("items"))

	b, err := s.ArrayGet(items, 1)
	if err != nil {
		t.Fatalf("ArrayGet(items, 1): %v", err)
	}

	n, _, err := s.TableGet(b, syms.Intern("n"))
	if err != nil {
		t.Fatalf("TableGet(n): %v", err)
	}

	if n.Int32Small() != 42 {
		t.Fatalf("items[1].n = %v, want 42", n.Int32Small())
	}
}

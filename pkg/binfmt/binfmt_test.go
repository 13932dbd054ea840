package binfmt_test

import (
	"path/filepath"
	"testing"

	"github.com/vnstone/datastore/pkg/binfmt"
	"github.com/vnstone/datastore/pkg/valuestore"
	"github.com/vnstone/datastore/pkg/valuestore/canon"
)

func buildSampleStore() *valuestore.Store {
	s := valuestore.New(nil)
	tbl := s.MakeTable()
	syms := s.Symbols()

	release := s.SuppressGC()
	_ = s.TableSet(tbl, syms.Intern("name"), s.NewString("arena"))
	_ = s.TableSet(tbl, syms.Intern("count"), valuestore.NewInt32Small(7))
	_ = s.TableSet(tbl, syms.Intern("path"), valuestore.NewFilePath(valuestore.DirContent, valuestore.KindImage, syms.Intern("textures\\hero.png")))
	release()

	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := buildSampleStore()

	path := filepath.Join(t.TempDir(), "store.dvs")
	if err := binfmt.Save(path, s, binfmt.PlatformPOSIX); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := binfmt.Load(path, binfmt.PlatformPOSIX)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	eq, err := canon.Equal(s, s.Root(), loaded, loaded.Root(), false)
	if err != nil {
		t.Fatalf("canon.Equal: %v", err)
	}

	if !eq {
		t.Fatalf("round-tripped store is not canon.Equal to the original")
	}

	tbl := loaded.Root()
	if tbl.Type() != valuestore.TypeTable {
		t.Fatalf("loaded root type = %v, want Table", tbl.Type())
	}

	syms := loaded.Symbols()

	v, found, err := loaded.TableGet(tbl, syms.Intern("name"))
	if err != nil || !found {
		t.Fatalf("TableGet(name): found=%v err=%v", found, err)
	}

	str, err := loaded.StringValue(v)
	if err != nil || str != "arena" {
		t.Fatalf("StringValue = %q, %v, want %q", str, err, "arena")
	}

	v, found, err = loaded.TableGet(tbl, syms.Intern("path"))
	if err != nil || !found {
		t.Fatalf("TableGet(path): found=%v err=%v", found, err)
	}

	url, err := v.URL(syms)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}

	if want := "content://textures/hero.png"; url != want {
		t.Fatalf("URL = %q, want %q (separators must normalize)", url, want)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	if _, err := binfmt.Decode([]byte("not a real file at all"), binfmt.PlatformPOSIX); err == nil {
		t.Fatalf("Decode of garbage should fail")
	}
}

package cook_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vnstone/datastore/pkg/cook"
	"github.com/vnstone/datastore/pkg/valuestore"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func Test_CheckUpToDate_OneToOne_True_When_Mtimes_Match(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "x.png")
	cooked := filepath.Join(dir, "x.tex0")

	ts := time.Unix(1700000000, 0)
	touch(t, src, ts)
	touch(t, cooked, ts)

	db, err := cook.Open(context.Background(), cook.Options{
		BaseDir:       dir,
		ResolveSource: func(p string) (string, bool) { return src, p == cooked },
	})
	require.NoError(t, err)
	defer db.Close()

	ok, err := db.CheckUpToDate(context.Background(), cooked)
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_CheckUpToDate_OneToOne_False_When_Source_Changed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "x.png")
	cooked := filepath.Join(dir, "x.tex0")

	touch(t, src, time.Unix(1700000000, 0))
	touch(t, cooked, time.Unix(1700000000, 0))

	db, err := cook.Open(context.Background(), cook.Options{
		BaseDir:       dir,
		ResolveSource: func(p string) (string, bool) { return src, p == cooked },
	})
	require.NoError(t, err)
	defer db.Close()

	touch(t, src, time.Unix(1700000500, 0))
	require.NoError(t, db.OnFileChanged(context.Background(), src))

	ok, err := db.CheckUpToDate(context.Background(), cooked)
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_CheckUpToDate_ManyToOne_Sidecar_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scene.lua")
	cooked := filepath.Join(dir, "scene.script")

	touch(t, src, time.Unix(1700000000, 0))
	touch(t, cooked, time.Unix(1700000100, 0))

	db, err := cook.Open(context.Background(), cook.Options{BaseDir: dir})
	require.NoError(t, err)
	defer db.Close()

	meta := cook.Metadata{
		CookedTimestamp: uint64(time.Unix(1700000100, 0).UnixNano()),
		CookerVersion:   3,
		DataVersion:     1,
		Sources:         []cook.SourceRef{{Source: src, Timestamp: uint64(time.Unix(1700000000, 0).UnixNano())}},
	}

	require.NoError(t, db.RecordCooked(context.Background(), cooked, meta))

	ok, err := db.CheckUpToDate(context.Background(), cooked)
	require.NoError(t, err)
	require.True(t, ok)

	touch(t, src, time.Unix(1700000999, 0))
	require.NoError(t, db.OnFileChanged(context.Background(), src))

	ok, err = db.CheckUpToDate(context.Background(), cooked)
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_CheckUpToDate_ManyToOne_False_When_Directory_Source_Count_Changes(t *testing.T) {
	dir := t.TempDir()
	assetsDir := filepath.Join(dir, "assets")
	require.NoError(t, os.Mkdir(assetsDir, 0o750))

	src := filepath.Join(dir, "scene.lua")
	cooked := filepath.Join(dir, "scene.script")

	touch(t, src, time.Unix(1700000000, 0))
	touch(t, filepath.Join(assetsDir, "a.lua"), time.Unix(1700000000, 0))
	touch(t, cooked, time.Unix(1700000100, 0))

	db, err := cook.Open(context.Background(), cook.Options{BaseDir: dir})
	require.NoError(t, err)
	defer db.Close()

	meta := cook.Metadata{
		CookedTimestamp:  uint64(time.Unix(1700000100, 0).UnixNano()),
		Sources:          []cook.SourceRef{{Source: src, Timestamp: uint64(time.Unix(1700000000, 0).UnixNano())}},
		DirectorySources: []cook.DirSourceRef{{Source: assetsDir, FileCount: 1}},
	}
	require.NoError(t, db.RecordCooked(context.Background(), cooked, meta))

	ok, err := db.CheckUpToDate(context.Background(), cooked)
	require.NoError(t, err)
	require.True(t, ok)

	touch(t, filepath.Join(assetsDir, "b.lua"), time.Unix(1700000200, 0))
	require.NoError(t, db.OnDirectoryChanged(context.Background(), assetsDir))

	ok, err = db.CheckUpToDate(context.Background(), cooked)
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_Open_Deletes_Stale_Artifacts_When_Cooker_Version_Bumps(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "x.png")
	cooked := filepath.Join(dir, "x.tex0")

	touch(t, src, time.Unix(1700000000, 0))
	touch(t, cooked, time.Unix(1700000000, 0))

	// cooked's ".tex0" extension is unrecognized and classifies as
	// valuestore.KindUnknown, same as every other file the gate hasn't been
	// told about explicitly.
	versions := map[cook.FileType]cook.VersionRecord{
		valuestore.KindUnknown: {CookerVersion: 1, DataVersion: 1},
	}

	db, err := cook.Open(context.Background(), cook.Options{
		BaseDir:       dir,
		Versions:      versions,
		ResolveSource: func(p string) (string, bool) { return src, p == cooked },
	})
	require.NoError(t, err)

	ok, err := db.CheckUpToDate(context.Background(), cooked)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, db.Close())

	// Bump the configured cooker version for this file type; reopening must
	// sweep every existing .tex0 file and rewrite the versions file (spec
	// §4.8, §8 scenario 6).
	bumped := map[cook.FileType]cook.VersionRecord{
		valuestore.KindUnknown: {CookerVersion: 2, DataVersion: 1},
	}
	db2, err := cook.Open(context.Background(), cook.Options{
		BaseDir:       dir,
		Versions:      bumped,
		ResolveSource: func(p string) (string, bool) { return src, p == cooked },
	})
	require.NoError(t, err)
	defer db2.Close()

	_, statErr := os.Stat(cooked)
	require.True(t, os.IsNotExist(statErr), "expected stale cooked artifact to be removed")

	ok, err = db2.CheckUpToDate(context.Background(), cooked)
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_OnFileChanged_Invalidates_Texture_Family_Siblings(t *testing.T) {
	dir := t.TempDir()
	diffuseSrc := filepath.Join(dir, "wall_diffuse.png")
	normalSrc := filepath.Join(dir, "wall_normal.png")
	diffuse := filepath.Join(dir, "wall.dds")
	normal := filepath.Join(dir, "wall.nrm")

	ts := time.Unix(1700000000, 0)
	touch(t, diffuseSrc, ts)
	touch(t, normalSrc, ts)
	touch(t, diffuse, ts)
	touch(t, normal, ts)

	resolve := func(p string) (string, bool) {
		switch p {
		case diffuse:
			return diffuseSrc, true
		case normal:
			return normalSrc, true
		default:
			return "", false
		}
	}

	db, err := cook.Open(context.Background(), cook.Options{
		BaseDir:       dir,
		ResolveSource: resolve,
	})
	require.NoError(t, err)
	defer db.Close()

	okDiffuse, err := db.CheckUpToDate(context.Background(), diffuse)
	require.NoError(t, err)
	require.True(t, okDiffuse)

	// Prime normal's cache while it is still genuinely up to date.
	okNormal, err := db.CheckUpToDate(context.Background(), normal)
	require.NoError(t, err)
	require.True(t, okNormal)

	// normalSrc changes, but nothing notifies the database of that change
	// directly, so the cached (now stale) "up to date" verdict for normal
	// would otherwise persist.
	require.NoError(t, os.Chtimes(normalSrc, ts.Add(time.Minute), ts.Add(time.Minute)))

	okNormal, err = db.CheckUpToDate(context.Background(), normal)
	require.NoError(t, err)
	require.True(t, okNormal, "cached verdict should still read stale-true before any invalidation")

	// The diffuse variant is recooked; since diffuse and normal belong to
	// the same texture family, this must also drop normal's cached verdict
	// (spec §4.8/§9: "a change to any variant invalidates all variants"),
	// exposing the real, now-stale state on the next check.
	require.NoError(t, os.Chtimes(diffuse, ts.Add(time.Second), ts.Add(time.Second)))
	require.NoError(t, db.OnFileChanged(context.Background(), diffuse))

	okNormal, err = db.CheckUpToDate(context.Background(), normal)
	require.NoError(t, err)
	require.False(t, okNormal)
}

package cook

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// CheckUpToDate reports whether the cooked artifact at cookedPath is
// current relative to its declared sources (spec §4.8, §8 scenario 6).
// Results are cached under mu; a cache miss reads and parses the sidecar
// (many-to-one types) synchronously.
func (d *Database) CheckUpToDate(ctx context.Context, cookedPath string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false, ErrClosed
	}

	if v, ok := d.upToDate[cookedPath]; ok {
		return v, nil
	}

	ok, err := d.computeUpToDate(ctx, cookedPath)
	if err != nil {
		return false, err
	}

	d.upToDate[cookedPath] = ok

	return ok, nil
}

func (d *Database) computeUpToDate(ctx context.Context, cookedPath string) (bool, error) {
	ext := strings.TrimPrefix(filepath.Ext(cookedPath), ".")
	ft := valuestore.ClassifyExtension(ext)

	cookedMTime, err := d.stat(cookedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	if ft.IsManyToOne() {
		return d.checkManyToOne(ctx, cookedPath, cookedMTime)
	}

	return d.checkOneToOne(cookedPath, cookedMTime)
}

func (d *Database) checkOneToOne(cookedPath string, cookedMTime time.Time) (bool, error) {
	if d.opts.ResolveSource == nil {
		return false, fmt.Errorf("%w: %s", ErrNoSource, cookedPath)
	}

	source, ok := d.opts.ResolveSource(cookedPath)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNoSource, cookedPath)
	}

	sourceMTime, err := d.stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	return cookedMTime.Equal(sourceMTime), nil
}

func (d *Database) checkManyToOne(ctx context.Context, cookedPath string, cookedMTime time.Time) (bool, error) {
	meta, ok := d.metaOf[cookedPath]
	if !ok {
		m, err := readMetadata(cookedPath)
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}

			return false, fmt.Errorf("cook: %s: %w", cookedPath, err)
		}

		meta = m
		d.metaOf[cookedPath] = meta

		if err := d.recordDependencyEdges(ctx, cookedPath, meta); err != nil {
			return false, err
		}
	}

	ext := strings.TrimPrefix(filepath.Ext(cookedPath), ".")
	ft := valuestore.ClassifyExtension(ext)

	if want, wantOK := d.opts.Versions[ft]; wantOK {
		if meta.CookerVersion != want.CookerVersion || meta.DataVersion != want.DataVersion {
			return false, nil
		}
	}

	if meta.CookedTimestamp != unixNS(cookedMTime) {
		return false, nil
	}

	for _, src := range meta.Sources {
		mt, err := d.stat(src.Source)
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}

			return false, err
		}

		if unixNS(mt) != src.Timestamp {
			return false, nil
		}
	}

	for _, sib := range meta.Siblings {
		mt, err := d.stat(sib.Source)
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}

			return false, err
		}

		if unixNS(mt) != sib.Timestamp {
			return false, nil
		}
	}

	for _, dirSrc := range meta.DirectorySources {
		count, err := countDirFiles(dirSrc.Source, representativeExt(meta))
		if err != nil {
			return false, err
		}

		if count != dirSrc.FileCount {
			return false, nil
		}
	}

	return true, nil
}

// representativeExt picks the extension of the first declared source as the
// filter for a directory source's recursive file count (DESIGN.md: spec §9
// leaves the directory-source extension filter unspecified; this module
// derives it from the sidecar's own Sources rather than inventing a second,
// parallel extension table).
func representativeExt(meta Metadata) string {
	if len(meta.Sources) == 0 {
		return ""
	}

	return strings.TrimPrefix(filepath.Ext(meta.Sources[0].Source), ".")
}

// countDirFiles recursively counts regular files under dir whose extension
// matches ext (case-insensitive); ext == "" counts every regular file.
func countDirFiles(dir, ext string) (uint32, error) {
	var count uint32

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if entry.IsDir() {
			return nil
		}

		if ext != "" && !strings.EqualFold(strings.TrimPrefix(filepath.Ext(path), "."), ext) {
			return nil
		}

		count++

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("cook: counting %s: %w", dir, err)
	}

	return count, nil
}

// RecordCooked stamps cookedPath as freshly cooked: for many-to-one types it
// writes meta as the JSON sidecar and records the dependency graph edges it
// declares; for one-to-one types it only sets the cooked file's mtime to
// meta.CookedTimestamp (no sidecar, per spec §4.8). Either way the cached
// up-to-date result for cookedPath is reset to true.
func (d *Database) RecordCooked(ctx context.Context, cookedPath string, meta Metadata) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	ext := strings.TrimPrefix(filepath.Ext(cookedPath), ".")
	ft := valuestore.ClassifyExtension(ext)

	ts := timeFromUnixNS(meta.CookedTimestamp)
	if err := os.Chtimes(cookedPath, ts, ts); err != nil {
		return fmt.Errorf("cook: stamping %s: %w", cookedPath, err)
	}

	if ft.IsManyToOne() {
		if err := writeMetadata(cookedPath, meta); err != nil {
			return fmt.Errorf("cook: writing sidecar for %s: %w", cookedPath, err)
		}

		d.metaOf[cookedPath] = meta

		if err := d.recordDependencyEdges(ctx, cookedPath, meta); err != nil {
			return err
		}
	}

	d.upToDate[cookedPath] = true

	return nil
}

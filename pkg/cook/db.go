package cook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vnstone/datastore/pkg/valuestore"
)

const defaultLockTimeout = 10 * time.Second

// Database is the cook database (spec §4.8): up-to-date decisions for
// cooked artifacts, backed by per-file-type sidecar metadata (many-to-one
// types) or bare modification times (one-to-one types), with a reverse-
// dependency graph that lets a single file/directory change invalidate
// every transitively dependent artifact.
//
// Safe for concurrent use: every method takes mu for its duration (spec
// §5's "multi-reader multi-writer... every public method takes a single
// lock").
type Database struct {
	opts Options

	lock *fileLock
	db   *sql.DB

	mu       sync.Mutex
	closed   bool
	upToDate map[string]bool
	metaOf   map[string]Metadata
}

// Open creates or opens the cook database rooted at opts.BaseDir. Whenever
// opts.Versions disagrees with the stored cooker-versions file, it deletes
// every cooked file of a mismatched type and rewrites the versions file
// (spec §4.8); on first open, when no versions file exists yet, it only
// writes the file and deletes nothing. It then rebuilds the dependency graph from the
// many-to-one sidecar files found under opts.BaseDir (spec §4.8's "Reindex"
// analogue, grounded on pkg/mddb.reindexLocked).
func Open(ctx context.Context, opts Options) (*Database, error) {
	if opts.BaseDir == "" {
		return nil, errors.New("cook: Options.BaseDir is required")
	}

	if opts.LockTimeout == 0 {
		opts.LockTimeout = defaultLockTimeout
	}

	if err := ensureDir(opts.BaseDir); err != nil {
		return nil, err
	}

	if err := ensureDir(filepath.Join(opts.BaseDir, ".cook")); err != nil {
		return nil, err
	}

	lock := newFileLock(filepath.Join(opts.BaseDir, ".cook", "lock"))

	lockCtx, cancel := context.WithTimeout(ctx, opts.LockTimeout)
	defer cancel()

	sessionID := uuid.NewString()

	if err := lock.lock(lockCtx, true, fmt.Sprintf("pid=%d session=%s\n", os.Getpid(), sessionID)); err != nil {
		return nil, fmt.Errorf("cook: open: %w", err)
	}

	sqlDB, err := openIndex(ctx, opts.BaseDir)
	if err != nil {
		_ = lock.unlock()
		return nil, err
	}

	d := &Database{
		opts:     opts,
		lock:     lock,
		db:       sqlDB,
		upToDate: make(map[string]bool),
		metaOf:   make(map[string]Metadata),
	}

	if err := d.processVersionGate(); err != nil {
		_ = d.Close()
		return nil, err
	}

	if err := d.reindexLocked(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}

	_ = lock.unlock()

	return d, nil
}

// Close releases the SQLite handle and the cross-process lock. Safe on a
// nil receiver and idempotent.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	d.closed = true

	var errs []error

	if d.db != nil {
		if err := d.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cook: sqlite: %w", err))
		}
	}

	if d.lock != nil {
		if err := d.lock.unlock(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// processVersionGate compares opts.Versions against the stored cooker-
// versions file and, for every mismatched type, deletes all cooked files
// of that type under opts.BaseDir before rewriting the versions file (spec
// §4.8's global version gate; spec §8 scenario 6).
func (d *Database) processVersionGate() error {
	stored, err := loadVersions(d.opts.BaseDir)
	if err != nil {
		return fmt.Errorf("cook: loading versions: %w", err)
	}

	mismatched := diffVersions(stored, d.opts.Versions)

	// A missing versions file records nothing to be stale against: the
	// current versions are written below, but no cooked file is deleted.
	if len(stored) > 0 {
		for _, ft := range mismatched {
			if err := deleteCookedOfType(d.opts.BaseDir, ft); err != nil {
				return fmt.Errorf("cook: clearing stale %s artifacts: %w", ft, err)
			}
		}
	}

	if len(mismatched) > 0 {
		if err := saveVersions(d.opts.BaseDir, d.opts.Versions); err != nil {
			return fmt.Errorf("cook: saving versions: %w", err)
		}
	}

	return nil
}

// deleteCookedOfType removes every file under baseDir whose extension
// classifies (via [valuestore.ClassifyExtension]) as ft, plus its sidecar
// if one exists, so the type is recooked from scratch. The database's own
// files (the .cook directory and the versions file) are never removed.
func deleteCookedOfType(baseDir string, ft FileType) error {
	return filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() && d.Name() == ".cook" {
			return filepath.SkipDir
		}

		if d.IsDir() || path == versionsPath(baseDir) || strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".yaml") {
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if valuestore.ClassifyExtension(ext) != ft {
			return nil
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}

		_ = os.Remove(sidecarPath(path))
		_ = os.Remove(yamlSidecarPath(path))

		return nil
	})
}

// reindexLocked walks opts.BaseDir for many-to-one sidecar files and
// rebuilds the dependency graph from their declared Sources/Siblings/
// DirectorySources (spec §4.8: "metadata, when loaded, adds reverse
// edges"). Grounded on pkg/mddb/reindex.go's tree walk, substituting cook
// sidecars for markdown+frontmatter documents.
func (d *Database) reindexLocked(ctx context.Context) error {
	return filepath.WalkDir(d.opts.BaseDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		cooked := strings.TrimSuffix(path, ".json")

		ext := strings.TrimPrefix(filepath.Ext(cooked), ".")
		if !valuestore.ClassifyExtension(ext).IsManyToOne() {
			return nil
		}

		meta, err := readMetadata(cooked)
		if err != nil {
			return fmt.Errorf("cook: reading sidecar %s: %w", path, err)
		}

		d.metaOf[cooked] = meta

		return d.recordDependencyEdges(ctx, cooked, meta)
	})
}

func (d *Database) recordDependencyEdges(ctx context.Context, cooked string, meta Metadata) error {
	if err := clearDependents(ctx, d.db, cooked); err != nil {
		return err
	}

	for _, src := range meta.Sources {
		if err := addDependent(ctx, d.db, "file", src.Source, cooked); err != nil {
			return err
		}
	}

	for _, sib := range meta.Siblings {
		if err := addDependent(ctx, d.db, "file", sib.Source, cooked); err != nil {
			return err
		}
	}

	for _, dirSrc := range meta.DirectorySources {
		if err := addDependent(ctx, d.db, "dir", dirSrc.Source, cooked); err != nil {
			return err
		}
	}

	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("cook: %w", err)
	}

	return nil
}

func (d *Database) stat(path string) (time.Time, error) {
	if d.opts.Stat != nil {
		return d.opts.Stat(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}

	return info.ModTime(), nil
}

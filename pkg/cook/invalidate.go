package cook

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// textureExtensions lists the on-disk extensions belonging to the texture
// family (spec §9's open question: "implemented as a property of the
// file-type schema", resolved via [valuestore.FileKind.IsTexture]).
var textureExtensions = []string{"dds", "nrm", "spec"}

// OnFileChanged is the entry point the external file-change notifier calls
// (spec §1: out of scope collaborator) whenever path is created, modified,
// or removed. It invalidates path's own cached state, then cascades through
// the reverse-dependency graph to every cooked artifact that declared path
// as a source or sibling, transitively (spec §4.8).
//
// If path is a texture-family file, every sibling variant sharing its base
// name is invalidated alongside it (spec §4.8/§9: "a change to any variant
// invalidates all variants").
func (d *Database) OnFileChanged(ctx context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	if err := d.invalidateFileLocked(ctx, path, make(map[string]bool)); err != nil {
		return err
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if valuestore.ClassifyExtension(ext).IsTexture() {
		for _, sibling := range textureSiblings(path) {
			if err := d.invalidateFileLocked(ctx, sibling, make(map[string]bool)); err != nil {
				return err
			}
		}
	}

	return nil
}

// OnDirectoryChanged is the directory-source analogue of OnFileChanged
// (spec §4.8: a directory's recorded file count going stale invalidates
// every cooked artifact that declared it as a DirectorySources entry).
func (d *Database) OnDirectoryChanged(ctx context.Context, dir string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	delete(d.upToDate, dir)

	children, err := dependentsOf(ctx, d.db, "dir", dir)
	if err != nil {
		return err
	}

	for _, child := range children {
		if err := d.invalidateFileLocked(ctx, child, make(map[string]bool)); err != nil {
			return err
		}
	}

	return nil
}

// Invalidate drops any cached up-to-date result and metadata for path
// without walking the dependency graph. Exported for callers that already
// know they need a synchronous recheck and don't want the cascade (e.g. a
// forced re-cook).
func (d *Database) Invalidate(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.upToDate, path)
	delete(d.metaOf, path)
}

// invalidateFileLocked must be called with mu held. seen guards against
// revisiting a node already invalidated this call (the dependency graph is
// a DAG in practice, but nothing enforces it, and the recursion must
// terminate regardless).
func (d *Database) invalidateFileLocked(ctx context.Context, path string, seen map[string]bool) error {
	if seen[path] {
		return nil
	}

	seen[path] = true

	delete(d.upToDate, path)
	delete(d.metaOf, path)

	children, err := dependentsOf(ctx, d.db, "file", path)
	if err != nil {
		return fmt.Errorf("cook: invalidating %s: %w", path, err)
	}

	for _, child := range children {
		if err := d.invalidateFileLocked(ctx, child, seen); err != nil {
			return err
		}
	}

	return nil
}

// textureSiblings returns the other texture-family file paths sharing
// path's directory and base name (stem before the extension), for every
// extension other than path's own.
func textureSiblings(path string) []string {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ownExt := strings.TrimPrefix(filepath.Ext(path), ".")

	var out []string

	for _, ext := range textureExtensions {
		if strings.EqualFold(ext, ownExt) {
			continue
		}

		out = append(out, filepath.Join(dir, stem+"."+ext))
	}

	return out
}

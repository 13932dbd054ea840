package cook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// schemaFingerprint pins the dependency-graph table shape. Bumping it forces
// every open database to drop and rebuild its derived index from sidecar
// files on next [Open] — the same "fingerprint mismatch triggers Reindex"
// idiom as pkg/mddb/schema.go's SQLSchema.fingerprint, but fixed here since
// this package has exactly one schema rather than a caller-supplied one.
const schemaFingerprint = 1

// openIndex opens (creating if absent) the SQLite-backed dependency graph
// at baseDir/.cook/index.sqlite, matching pkg/mddb.openSqlite's single-
// connection, WAL-journal-mode setup so SQLite's own write-ahead log
// provides crash safety (DESIGN.md: a bespoke WAL-replay layer on top of
// SQLite, as pkg/mddb hand-rolls for its markdown documents, would just
// reimplement what SQLite's WAL mode already guarantees for a plain
// single-table index).
func openIndex(ctx context.Context, baseDir string) (*sql.DB, error) {
	dir := filepath.Join(baseDir, ".cook")
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "index.sqlite"))
	if err != nil {
		return nil, fmt.Errorf("cook: sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cook: sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cook: sqlite: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	var fp int64

	err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&fp)
	if err != nil {
		return fmt.Errorf("cook: sqlite: %w", err)
	}

	if fp == schemaFingerprint {
		return nil
	}

	stmts := []string{
		`DROP TABLE IF EXISTS dependents;`,
		`CREATE TABLE dependents (
			parent_kind TEXT NOT NULL,
			parent      TEXT NOT NULL,
			child       TEXT NOT NULL,
			PRIMARY KEY (parent_kind, parent, child)
		);`,
		`CREATE INDEX idx_dependents_parent ON dependents(parent_kind, parent);`,
		fmt.Sprintf(`PRAGMA user_version = %d;`, schemaFingerprint),
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("cook: sqlite: %w", err)
		}
	}

	return nil
}

// addDependent records that child (a cooked artifact) depends on parent (a
// source file or directory), so a future change to parent invalidates
// child (spec §4.8's reverse-edge dependency graph).
func addDependent(ctx context.Context, db *sql.DB, parentKind, parent, child string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dependents (parent_kind, parent, child) VALUES (?, ?, ?);`,
		parentKind, parent, child)
	if err != nil {
		return fmt.Errorf("cook: sqlite: %w", err)
	}

	return nil
}

// clearDependents removes every edge with child as the dependent, before
// re-adding the current set from freshly read metadata (spec §4.8: a
// sidecar's declared sources/siblings/directories are authoritative as of
// its last cook, so stale edges from a prior cook must not linger).
func clearDependents(ctx context.Context, db *sql.DB, child string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM dependents WHERE child = ?;`, child)
	if err != nil {
		return fmt.Errorf("cook: sqlite: %w", err)
	}

	return nil
}

// dependentsOf returns every child recorded against parent under kind
// ("file" or "dir").
func dependentsOf(ctx context.Context, db *sql.DB, parentKind, parent string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT child FROM dependents WHERE parent_kind = ? AND parent = ?;`, parentKind, parent)
	if err != nil {
		return nil, fmt.Errorf("cook: sqlite: %w", err)
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("cook: sqlite: %w", err)
		}

		out = append(out, child)
	}

	return out, errors.Join(rows.Err(), nil)
}

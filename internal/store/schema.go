package store

import (
	"database/sql"
	"fmt"
)

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS files (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    file_path         TEXT NOT NULL UNIQUE,
    file_name         TEXT NOT NULL,
    file_extension    TEXT NOT NULL DEFAULT '',
    file_size         INTEGER NOT NULL DEFAULT 0,
    mime_type         TEXT NOT NULL DEFAULT '',
    category          TEXT NOT NULL DEFAULT 'Misc',
    created_date      TEXT NOT NULL DEFAULT '',
    modified_date     TEXT NOT NULL DEFAULT '',
    indexed_date      TEXT NOT NULL DEFAULT '',
    has_ocr           INTEGER NOT NULL DEFAULT 0,
    ocr_text          TEXT,
    label             TEXT,
    tags              TEXT,
    caption           TEXT,
    vision_confidence REAL,
    content_hash      TEXT,
    last_indexed_at   TEXT,
    ai_source         TEXT,
    user_tags         TEXT,
    metadata          TEXT
);

CREATE TABLE IF NOT EXISTS embeddings (
    file_id    INTEGER PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
    model      TEXT NOT NULL,
    dim        INTEGER NOT NULL,
    vector     BLOB NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    query         TEXT NOT NULL,
    timestamp     TEXT NOT NULL,
    results_count INTEGER NOT NULL DEFAULT 0
);
`

// ftsDDL recreates the shadow text index. It is a rebuildable cache
// over canonical columns, so dropping it on schema change is safe.
const ftsDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
    file_name,
    file_path,
    category,
    ocr_text,
    caption,
    tags
);
`

// lateColumns are additions to the files table since its first shape.
// Existing databases are upgraded in place; canonical data is never
// migrated destructively.
var lateColumns = []struct {
	name string
	ddl  string
}{
	{"label", "ALTER TABLE files ADD COLUMN label TEXT"},
	{"tags", "ALTER TABLE files ADD COLUMN tags TEXT"},
	{"caption", "ALTER TABLE files ADD COLUMN caption TEXT"},
	{"vision_confidence", "ALTER TABLE files ADD COLUMN vision_confidence REAL"},
	{"content_hash", "ALTER TABLE files ADD COLUMN content_hash TEXT"},
	{"last_indexed_at", "ALTER TABLE files ADD COLUMN last_indexed_at TEXT"},
	{"ai_source", "ALTER TABLE files ADD COLUMN ai_source TEXT"},
	{"user_tags", "ALTER TABLE files ADD COLUMN user_tags TEXT"},
	{"metadata", "ALTER TABLE files ADD COLUMN metadata TEXT"},
}

// Init creates the schema and applies additive migrations.
func Init(db *sql.DB) error {
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err := migrateFiles(db); err != nil {
		return fmt.Errorf("migrate files table: %w", err)
	}
	if _, err := db.Exec(ftsDDL); err != nil {
		return fmt.Errorf("create fts table: %w", err)
	}
	return nil
}

// migrateFiles adds any column missing from an older files table.
func migrateFiles(db *sql.DB) error {
	rows, err := db.Query("PRAGMA table_info(files)")
	if err != nil {
		return err
	}
	present := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		present[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, col := range lateColumns {
		if present[col.name] {
			continue
		}
		if _, err := db.Exec(col.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	return nil
}

// Package index maintains the SQLite full-text search index of a knowledge base.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aidanlsb/kb/internal/entry"
	"github.com/aidanlsb/kb/internal/paths"
	"github.com/aidanlsb/kb/internal/sqlutil"
)

// FileName is the index database file inside the KB data directory.
const FileName = "index.db"

// Database is the SQLite database handle.
type Database struct {
	db  *sql.DB
	now func() time.Time
}

// ErrIndexLocked indicates another process is rebuilding the index.
var ErrIndexLocked = errors.New("index is locked for rebuild")

// DB returns the underlying sql.DB for advanced queries.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Open opens or creates the index for the KB at root.
func Open(root string) (*Database, error) {
	dbDir := filepath.Join(root, paths.DataDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", paths.DataDir, err)
	}

	db, err := sql.Open(sqlutil.Driver, filepath.Join(dbDir, FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{db: db, now: time.Now}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenWithRebuild opens the index, recreating it when the schema is incompatible.
// Returns (database, wasRebuilt, error).
func OpenWithRebuild(root string) (*Database, bool, error) {
	dbDir := filepath.Join(root, paths.DataDir)
	dbPath := filepath.Join(dbDir, FileName)

	lock, err := acquireIndexLock(dbDir)
	if err != nil {
		return nil, false, err
	}
	defer lock.Release()

	if _, err := os.Stat(dbPath); err == nil {
		db, err := sql.Open(sqlutil.Driver, dbPath)
		if err == nil {
			compatible := isSchemaCompatible(db)
			db.Close()
			if !compatible {
				if err := removeDatabaseFiles(dbPath); err != nil {
					return nil, false, err
				}
				fresh, err := Open(root)
				return fresh, true, err
			}
		}
	}

	d, err := Open(root)
	return d, false, err
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory() (*Database, error) {
	db, err := sql.Open(sqlutil.Driver, ":memory:")
	if err != nil {
		return nil, err
	}
	// Every pooled connection would get its own empty in-memory database.
	db.SetMaxOpenConns(1)

	d := &Database{db: db, now: time.Now}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

type indexLock struct {
	file *os.File
}

func acquireIndexLock(dbDir string) (*indexLock, error) {
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", paths.DataDir, err)
	}

	lockFile, err := os.OpenFile(filepath.Join(dbDir, "index.lock"), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open index lock: %w", err)
	}

	if err := lockFileExclusiveNonBlocking(lockFile); err != nil {
		lockFile.Close()
		if isWouldBlockError(err) {
			return nil, ErrIndexLocked
		}
		return nil, fmt.Errorf("failed to acquire index lock: %w", err)
	}
	return &indexLock{file: lockFile}, nil
}

func (l *indexLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

func removeDatabaseFiles(dbPath string) error {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// CurrentDBVersion is the current index schema version.
const CurrentDBVersion = 1

// isSchemaCompatible reports whether the stored schema version matches CurrentDBVersion.
func isSchemaCompatible(db *sql.DB) bool {
	var version string
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'version'").Scan(&version)
	if err != nil {
		return false
	}
	return version == strconv.Itoa(CurrentDBVersion)
}

func (d *Database) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;
		PRAGMA busy_timeout = 2000;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entries (
			file_path TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			fields TEXT NOT NULL DEFAULT '{}',
			word_count INTEGER NOT NULL DEFAULT 0,
			file_mtime INTEGER,         -- File modification time (Unix timestamp)
			indexed_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tags (
			file_path TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (file_path, tag)
		);

		CREATE TABLE IF NOT EXISTS links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path TEXT NOT NULL,
			target TEXT NOT NULL,
			display_text TEXT,
			line_number INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(type);
		CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);
		CREATE INDEX IF NOT EXISTS idx_links_file ON links(file_path);
		CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);

		CREATE VIRTUAL TABLE IF NOT EXISTS fts_entries USING fts5(
			file_path UNINDEXED,
			title,
			body,
			tags,
			tokenize='porter unicode61'
		);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	_, err := d.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		strconv.Itoa(CurrentDBVersion))
	if err != nil {
		return fmt.Errorf("failed to set database version: %w", err)
	}
	return nil
}

// IndexEntry replaces all indexed data for e.Path with e.
func (d *Database) IndexEntry(ctx context.Context, e *entry.Entry) error {
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("encode fields for %s: %w", e.Path, err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteByFilePath(tx, e.Path); err != nil {
		return err
	}

	now := d.now().Unix()
	mtime := e.Mtime
	if mtime == 0 {
		mtime = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (file_path, id, title, type, fields, word_count, file_mtime, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Path, e.ID, e.Title, e.Type, string(fields), e.WordCount, mtime, now)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.Path, err)
	}

	for _, tag := range e.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tags (file_path, tag) VALUES (?, ?)`, e.Path, tag); err != nil {
			return fmt.Errorf("insert tag for %s: %w", e.Path, err)
		}
	}

	for _, l := range e.Links {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO links (file_path, target, display_text, line_number) VALUES (?, ?, ?, ?)
		`, e.Path, l.Target, nullIfEmpty(l.DisplayText), l.Line)
		if err != nil {
			return fmt.Errorf("insert link for %s: %w", e.Path, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fts_entries (file_path, title, body, tags) VALUES (?, ?, ?, ?)
	`, e.Path, e.Title, e.PlainText, joinTags(e.Tags))
	if err != nil {
		return fmt.Errorf("insert search text for %s: %w", e.Path, err)
	}

	return tx.Commit()
}

// RemoveFile removes all data for a file.
func (d *Database) RemoveFile(filePath string) error {
	return deleteByFilePath(d.db, filePath)
}

// RemoveFiles removes all data for several files in one transaction.
func (d *Database) RemoveFiles(filePaths []string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteByFilePaths(tx, filePaths); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearAllData removes all indexed data for a full rebuild.
func (d *Database) ClearAllData() error {
	for _, table := range filePathTables {
		if _, err := d.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// MarkIndexed records the time of the last completed index run.
func (d *Database) MarkIndexed() error {
	_, err := d.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('last_indexed', ?)`,
		strconv.FormatInt(d.now().Unix(), 10))
	return err
}

// Analyze runs SQLite's ANALYZE command after bulk indexing.
func (d *Database) Analyze() error {
	_, err := d.db.Exec("ANALYZE")
	return err
}

// AllIndexedFilePaths returns every file path currently in the index.
func (d *Database) AllIndexedFilePaths() ([]string, error) {
	return sqlutil.QueryAll(context.Background(), d.db, sqlutil.ScanString,
		`SELECT file_path FROM entries ORDER BY file_path`)
}

// GetFileMtime returns the indexed mtime for a file, or 0 if not found.
func (d *Database) GetFileMtime(filePath string) (int64, error) {
	var mtime sql.NullInt64
	err := d.db.QueryRow(`SELECT file_mtime FROM entries WHERE file_path = ?`, filePath).Scan(&mtime)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !mtime.Valid {
		return 0, nil
	}
	return mtime.Int64, nil
}

// RefreshPlan lists the files that must be (re)indexed or removed to bring the
// index in line with the working tree.
type RefreshPlan struct {
	Stale   []string
	Removed []string
}

// Empty reports whether the index is already current.
func (p *RefreshPlan) Empty() bool {
	return len(p.Stale) == 0 && len(p.Removed) == 0
}

// PlanRefresh compares the current entry paths of the KB at root against the
// index. A file is stale when it is not indexed or its mtime is newer than the
// indexed one; an indexed file absent from current is removed.
func (d *Database) PlanRefresh(root string, current []string) (*RefreshPlan, error) {
	type row struct {
		path  string
		mtime sql.NullInt64
	}
	rows, err := d.db.Query(`SELECT file_path, file_mtime FROM entries`)
	if err != nil {
		return nil, err
	}
	indexed, err := sqlutil.ScanRows(rows, func(r *sql.Rows) (row, error) {
		var x row
		err := r.Scan(&x.path, &x.mtime)
		return x, err
	})
	if err != nil {
		return nil, err
	}

	known := make(map[string]sql.NullInt64, len(indexed))
	for _, r := range indexed {
		known[r.path] = r.mtime
	}

	plan := &RefreshPlan{}
	present := make(map[string]struct{}, len(current))
	for _, rel := range current {
		present[rel] = struct{}{}
		mtime, ok := known[rel]
		if !ok || !mtime.Valid {
			plan.Stale = append(plan.Stale, rel)
			continue
		}
		stat, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				plan.Removed = append(plan.Removed, rel)
				continue
			}
			return nil, err
		}
		if stat.ModTime().Unix() > mtime.Int64 {
			plan.Stale = append(plan.Stale, rel)
		}
	}
	for _, r := range indexed {
		if _, ok := present[r.path]; !ok {
			plan.Removed = append(plan.Removed, r.path)
		}
	}
	return plan, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func joinTags(tags []string) string {
	return strings.Join(tags, " ")
}

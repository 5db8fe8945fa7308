// Package kbusage records command activity for a knowledge base in a small
// SQLite event log at .kb/usage.db.
//
// The database is opened for each call and closed before it returns.
package kbusage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aidanlsb/kb/internal/paths"
	"github.com/aidanlsb/kb/internal/sqlutil"
)

// FileName is the usage database file inside the KB data directory.
const FileName = "usage.db"

// Event kinds recorded by the CLI.
const (
	KindSearch   = "search"
	KindIndex    = "index"
	KindSync     = "auto-sync"
	KindStats    = "stats"
	KindValidate = "validate"
	KindExport   = "export"
)

// Event is one recorded activity.
type Event struct {
	Kind    string
	Subject string
	Count   int
	At      time.Time
}

// QueryCount is a search query and how often it was run.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// Summary aggregates the event log.
type Summary struct {
	Totals       map[string]int `json:"totals"`
	TopQueries   []QueryCount   `json:"top_queries,omitempty"`
	LastActivity *time.Time     `json:"last_activity,omitempty"`
}

// Tracker is the usage tracker for one KB.
type Tracker struct {
	dbPath string
	now    func() time.Time
}

// New binds a Tracker for root. It fails when the data directory cannot be created.
func New(root string) (*Tracker, error) {
	dir := filepath.Join(root, paths.DataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", paths.DataDir, err)
	}
	return &Tracker{dbPath: filepath.Join(dir, FileName), now: time.Now}, nil
}

func (t *Tracker) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(sqlutil.Driver, t.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		PRAGMA busy_timeout = 2000;
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			count INTEGER NOT NULL DEFAULT 0,
			at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize usage database: %w", err)
	}
	return db, nil
}

// Record appends ev to the log. A zero At is stamped with the current time.
func (t *Tracker) Record(ctx context.Context, ev Event) error {
	if strings.TrimSpace(ev.Kind) == "" {
		return fmt.Errorf("usage event has no kind")
	}
	if ev.At.IsZero() {
		ev.At = t.now()
	}

	db, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx,
		`INSERT INTO events (kind, subject, count, at) VALUES (?, ?, ?, ?)`,
		ev.Kind, ev.Subject, ev.Count, ev.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Summary returns per-kind totals, the limit most frequent search queries and
// the time of the most recent event.
func (t *Tracker) Summary(ctx context.Context, limit int) (*Summary, error) {
	if limit <= 0 {
		limit = 5
	}

	db, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	s := &Summary{Totals: make(map[string]int)}

	rows, err := db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	type kindCount struct {
		kind  string
		count int
	}
	counts, err := sqlutil.ScanRows(rows, func(r *sql.Rows) (kindCount, error) {
		var kc kindCount
		err := r.Scan(&kc.kind, &kc.count)
		return kc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	for _, kc := range counts {
		s.Totals[kc.kind] = kc.count
	}

	s.TopQueries, err = sqlutil.QueryAll(ctx, db, func(r *sql.Rows) (QueryCount, error) {
		var qc QueryCount
		err := r.Scan(&qc.Query, &qc.Count)
		return qc, err
	}, `SELECT subject, COUNT(*) AS n FROM events
		WHERE kind = ? AND subject != ''
		GROUP BY subject ORDER BY n DESC, subject ASC LIMIT ?`, KindSearch, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize queries: %w", err)
	}

	var last sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(at) FROM events`).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to read last activity: %w", err)
	}
	if last.Valid {
		at := time.UnixMilli(last.Int64)
		s.LastActivity = &at
	}

	return s, nil
}

package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aidanlsb/kb/internal/sqlutil"
)

// SearchResult is one ranked full-text hit.
type SearchResult struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	FilePath string  `json:"file_path"`
	Snippet  string  `json:"snippet"`
	Rank     float64 `json:"rank"`
}

// ErrInvalidQuery is returned when SQLite rejects the MATCH expression.
var ErrInvalidQuery = errors.New("invalid search query")

// DefaultSearchLimit is used when Search is called with a non-positive limit.
const DefaultSearchLimit = 20

// Search performs a full-text search over title, body and tags using BM25 ranking.
func (d *Database) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT 
			e.id,
			e.title,
			f.file_path,
			snippet(fts_entries, 2, '»', '«', '...', 32) AS snippet,
			bm25(fts_entries) AS rank
		FROM fts_entries f
		JOIN entries e ON e.file_path = f.file_path
		WHERE fts_entries MATCH ?
		ORDER BY rank
		LIMIT ?
	`, BuildFTSQuery(query), limit)
	if err != nil {
		return nil, searchError(err)
	}

	results, err := sqlutil.ScanRows(rows, func(r *sql.Rows) (SearchResult, error) {
		var res SearchResult
		err := r.Scan(&res.ID, &res.Title, &res.FilePath, &res.Snippet, &res.Rank)
		return res, err
	})
	if err != nil {
		return nil, searchError(err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// searchError separates FTS5 parse failures from other database errors.
// SQLite may report them when the statement is prepared or on the first step.
func searchError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "fts5:") || strings.Contains(msg, "unterminated string") {
		return fmt.Errorf("%w: %s", ErrInvalidQuery, ftsMessage(msg))
	}
	return fmt.Errorf("search failed: %w", err)
}

// ftsMessage trims the driver prefix ("SQL logic error: ") off an FTS5 error.
func ftsMessage(msg string) string {
	if i := strings.Index(msg, "fts5: "); i >= 0 {
		return msg[i+len("fts5: "):]
	}
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

// TagCount is a tag and the number of entries carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// IndexStats contains index statistics.
type IndexStats struct {
	EntryCount  int            `json:"entries"`
	WordCount   int            `json:"words"`
	TagCount    int            `json:"tags"`
	LinkCount   int            `json:"links"`
	Types       map[string]int `json:"types"`
	TopTags     []TagCount     `json:"top_tags,omitempty"`
	LastIndexed *time.Time     `json:"last_indexed,omitempty"`
}

// Stats returns statistics about the index.
func (d *Database) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{Types: make(map[string]int)}

	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(word_count), 0) FROM entries").
		Scan(&stats.EntryCount, &stats.WordCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT tag) FROM tags").Scan(&stats.TagCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links").Scan(&stats.LinkCount); err != nil {
		return nil, err
	}

	type typeCount struct {
		name  string
		count int
	}
	types, err := sqlutil.QueryAll(ctx, d.db, func(r *sql.Rows) (typeCount, error) {
		var tc typeCount
		err := r.Scan(&tc.name, &tc.count)
		return tc, err
	}, "SELECT type, COUNT(*) FROM entries WHERE type != '' GROUP BY type")
	if err != nil {
		return nil, err
	}
	for _, tc := range types {
		stats.Types[tc.name] = tc.count
	}

	stats.TopTags, err = sqlutil.QueryAll(ctx, d.db, func(r *sql.Rows) (TagCount, error) {
		var tc TagCount
		err := r.Scan(&tc.Tag, &tc.Count)
		return tc, err
	}, "SELECT tag, COUNT(*) AS n FROM tags GROUP BY tag ORDER BY n DESC, tag ASC LIMIT 10")
	if err != nil {
		return nil, err
	}

	var last string
	err = d.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'last_indexed'").Scan(&last)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, err
	default:
		if secs, perr := strconv.ParseInt(last, 10, 64); perr == nil {
			t := time.Unix(secs, 0)
			stats.LastIndexed = &t
		}
	}

	return stats, nil
}

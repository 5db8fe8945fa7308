package index

import (
	"database/sql"
	"fmt"

	"github.com/aidanlsb/kb/internal/sqlutil"
)

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

var filePathTables = []string{"entries", "tags", "links", "fts_entries"}

func deleteByFilePath(e execer, filePath string) error {
	for _, table := range filePathTables {
		if _, err := e.Exec("DELETE FROM "+table+" WHERE file_path = ?", filePath); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

func deleteByFilePaths(e execer, filePaths []string) error {
	if len(filePaths) == 0 {
		return nil
	}
	inClause, args := sqlutil.InClauseArgs(filePaths)
	for _, table := range filePathTables {
		if _, err := e.Exec("DELETE FROM "+table+" WHERE file_path IN ("+inClause+")", args...); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aidanlsb/kb/internal/capability"
	"github.com/aidanlsb/kb/internal/index"
)

// openIndex opens the KB index, rebuilding an incompatible schema. A rebuild
// is reported as a warning on inv.
func openIndex(inv *Invocation) (*index.Database, bool, error) {
	db, rebuilt, err := index.OpenWithRebuild(inv.KB.Root)
	if err != nil {
		if errors.Is(err, index.ErrIndexLocked) {
			return nil, false, handlerError(ErrDatabaseError, err, "Another kb process is rebuilding the index; retry shortly")
		}
		return nil, false, handlerError(ErrDatabaseError, err, "Delete .kb/index.db and run 'kb index'")
	}
	if rebuilt {
		inv.Warn(WarnIndexRebuilt, "index schema was incompatible and has been rebuilt", "")
	}
	return db, rebuilt, nil
}

// indexPaths re-indexes toIndex and removes removals. An entry that fails to
// parse is dropped from the index and reported; its path is returned in skipped.
func indexPaths(ctx context.Context, inv *Invocation, db *index.Database, meta capability.MetadataManager, toIndex, removals []string) (indexed int, skipped map[string]bool, err error) {
	skipped = make(map[string]bool)

	if err := db.RemoveFiles(removals); err != nil {
		return indexed, skipped, handlerError(ErrDatabaseError, fmt.Errorf("remove deleted entries: %w", err), "")
	}

	for _, rel := range toIndex {
		if err := ctx.Err(); err != nil {
			return indexed, skipped, err
		}
		e, readErr := meta.Read(rel)
		if readErr != nil {
			skipped[rel] = true
			inv.Warn(WarnEntrySkipped, readErr.Error(), rel)
			if err := db.RemoveFile(rel); err != nil {
				return indexed, skipped, handlerError(ErrDatabaseError, err, "")
			}
			continue
		}
		if err := db.IndexEntry(ctx, e); err != nil {
			return indexed, skipped, handlerError(ErrDatabaseError, err, "")
		}
		indexed++
	}
	return indexed, skipped, nil
}

// refreshIndex brings stale rows in line with the working tree before a query.
func refreshIndex(ctx context.Context, inv *Invocation, db *index.Database, meta capability.MetadataManager) error {
	current, err := meta.EntryPaths(ctx)
	if err != nil {
		return handlerError(ErrInternal, err, "")
	}
	plan, err := db.PlanRefresh(meta.Root(), current)
	if err != nil {
		return handlerError(ErrDatabaseError, err, "Run 'kb index' to rebuild the index")
	}
	if plan.Empty() {
		return nil
	}
	if _, _, err := indexPaths(ctx, inv, db, meta, plan.Stale, plan.Removed); err != nil {
		return err
	}
	return db.MarkIndexed()
}

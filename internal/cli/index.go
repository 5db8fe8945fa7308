package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aidanlsb/kb/internal/kbchanges"
	"github.com/aidanlsb/kb/internal/ui"
)

// IndexResult is the data payload of `kb index --json`.
type IndexResult struct {
	Mode      string   `json:"mode"`
	Indexed   int      `json:"indexed"`
	Removed   int      `json:"removed"`
	Unchanged int      `json:"unchanged"`
	Skipped   []string `json:"skipped,omitempty"`
	Rebuilt   bool     `json:"rebuilt,omitempty"`
}

const (
	indexModeFull        = "full"
	indexModeIncremental = "incremental"
)

func runIndex(ctx context.Context, inv *Invocation) error {
	meta := inv.Caps.MetadataManager()
	changes := inv.Caps.ChangeDetector()

	db, rebuilt, err := openIndex(inv)
	if err != nil {
		return err
	}
	defer db.Close()

	if !inv.JSON {
		fmt.Fprintf(inv.Out, "Indexing knowledge base: %s\n", ui.FilePath(meta.Root()))
	}
	spinner := ui.NewSpinner(inv.Err, "Indexing entries")
	if !inv.JSON {
		spinner.Start()
	}
	defer spinner.Stop()

	current, err := meta.EntryPaths(ctx)
	if err != nil {
		return handlerError(ErrInternal, err, "")
	}

	result := IndexResult{Mode: indexModeIncremental, Rebuilt: rebuilt}
	var (
		cs       *kbchanges.ChangeSet
		toIndex  []string
		removals []string
	)

	if changes == nil || rebuilt {
		result.Mode = indexModeFull
		if err := db.ClearAllData(); err != nil {
			return handlerError(ErrDatabaseError, err, "")
		}
		toIndex = current
	} else {
		cs, err = changes.Detect(ctx, kbchanges.ScopeIndex, current)
		if err != nil {
			return changeStoreError(err)
		}
		plan, err := db.PlanRefresh(meta.Root(), current)
		if err != nil {
			return handlerError(ErrDatabaseError, err, "")
		}
		toIndex = union(cs.Changed(), plan.Stale)
		removals = union(cs.Deleted, plan.Removed)
	}

	indexed, skipped, err := indexPaths(ctx, inv, db, meta, toIndex, removals)
	if err != nil {
		return err
	}
	if err := db.MarkIndexed(); err != nil {
		return handlerError(ErrDatabaseError, err, "")
	}
	if err := db.Analyze(); err != nil {
		return handlerError(ErrDatabaseError, err, "")
	}

	if changes != nil {
		if cs == nil {
			if cs, err = changes.Detect(ctx, kbchanges.ScopeIndex, current); err != nil {
				return changeStoreError(err)
			}
		}
		for rel := range skipped {
			delete(cs.Hashes, rel)
		}
		if err := changes.Commit(ctx, kbchanges.ScopeIndex, cs); err != nil {
			return changeStoreError(err)
		}
	}
	spinner.Stop()

	result.Indexed = indexed
	result.Removed = len(removals)
	result.Unchanged = len(current) - len(toIndex)
	for rel := range skipped {
		result.Skipped = append(result.Skipped, rel)
	}
	sort.Strings(result.Skipped)
	inv.RecordUsage(result.Mode, indexed)

	if inv.JSON {
		inv.outputSuccess(result, &Meta{Count: indexed, QueryTimeMs: inv.Elapsed()})
		return nil
	}

	fmt.Fprintln(inv.Out, ui.Successf("Indexed %s (%s)", ui.Quantity(indexed, "entry", "entries"), result.Mode))
	if result.Removed > 0 {
		fmt.Fprintln(inv.Out, ui.Infof("Removed %d deleted entries from the index", result.Removed))
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintln(inv.Out, ui.Warningf("Skipped %d entries that could not be parsed", len(result.Skipped)))
	}
	return nil
}

func changeStoreError(err error) error {
	if errors.Is(err, kbchanges.ErrLocked) {
		return handlerError(ErrDatabaseError, err, "Another kb process holds .kb/changes.db; retry shortly")
	}
	return handlerError(ErrDatabaseError, err, "")
}

// union returns the sorted, de-duplicated union of a and b.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aidanlsb/kb/internal/capability"
	"github.com/aidanlsb/kb/internal/index"
	"github.com/aidanlsb/kb/internal/kbchanges"
	"github.com/aidanlsb/kb/internal/kbfs"
	"github.com/aidanlsb/kb/internal/kbusage"
	"github.com/aidanlsb/kb/internal/paths"
	"github.com/aidanlsb/kb/internal/ui"
)

// StatsResult is the data payload of `kb stats --json`.
type StatsResult struct {
	Root           string              `json:"root"`
	Indexed        bool                `json:"indexed"`
	Index          *index.IndexStats   `json:"index"`
	Usage          *kbusage.Summary    `json:"usage,omitempty"`
	PendingChanges *int                `json:"pending_changes,omitempty"`
	Capabilities   []capability.Status `json:"capabilities"`
}

func runStats(ctx context.Context, inv *Invocation) error {
	root := inv.KB.Root
	if err := requireDir(root); err != nil {
		return handlerError(ErrKBNotFound, err, "Pass --kb-path or set KB_PATH")
	}

	result := StatsResult{
		Root:         root,
		Index:        &index.IndexStats{Types: map[string]int{}},
		Capabilities: inv.Caps.Status(),
	}

	if _, err := os.Stat(filepath.Join(root, paths.DataDir, index.FileName)); err == nil {
		db, _, err := openIndex(inv)
		if err != nil {
			return err
		}
		stats, err := db.Stats(ctx)
		db.Close()
		if err != nil {
			return handlerError(ErrDatabaseError, err, "Run 'kb index' to rebuild the index")
		}
		result.Indexed = true
		result.Index = stats
	}

	if tracker := inv.Caps.UsageTracker(); tracker != nil {
		summary, err := tracker.Summary(ctx, 5)
		if err != nil {
			inv.Warn(WarnUsageNotRecorded, "usage summary unavailable: "+err.Error(), "")
		} else {
			result.Usage = summary
		}
	}

	if changes := inv.Caps.ChangeDetector(); changes != nil {
		current, err := kbfs.ListEntryPaths(ctx, root)
		if err != nil {
			return handlerError(ErrInternal, err, "")
		}
		pending, err := changes.Pending(ctx, kbchanges.ScopeIndex, current)
		if err != nil {
			return changeStoreError(err)
		}
		result.PendingChanges = &pending
	}
	inv.RecordUsage("", result.Index.EntryCount)

	if inv.JSON {
		inv.outputSuccess(result, &Meta{QueryTimeMs: inv.Elapsed()})
		return nil
	}

	printStats(inv, &result)
	return nil
}

func printStats(inv *Invocation, r *StatsResult) {
	w := inv.Out
	fmt.Fprintln(w, ui.Header("Knowledge Base Statistics"))
	printField(w, "Root", r.Root)
	if !r.Indexed {
		fmt.Fprintln(w, ui.Hint("Not indexed yet; run 'kb index'"))
	}
	s := r.Index
	printField(w, "Entries", s.EntryCount)
	printField(w, "Words", s.WordCount)
	printField(w, "Tags", s.TagCount)
	printField(w, "Links", s.LinkCount)
	if s.LastIndexed != nil {
		printField(w, "Last indexed", s.LastIndexed.Format(time.RFC3339))
	}
	if r.PendingChanges != nil {
		printField(w, "Pending", *r.PendingChanges)
	}

	if len(s.Types) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.Header("Types"))
		names := make([]string, 0, len(s.Types))
		for name := range s.Types {
			names = append(names, name)
		}
		sort.Strings(names)
		t := ui.NewTable(2)
		for _, name := range names {
			t.AddRow(name, fmt.Sprint(s.Types[name]))
		}
		fmt.Fprint(w, t.String())
	}

	if len(s.TopTags) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.Header("Top tags"))
		t := ui.NewTable(2)
		for _, tc := range s.TopTags {
			t.AddRow(tc.Tag, fmt.Sprint(tc.Count))
		}
		fmt.Fprint(w, t.String())
	}

	if r.Usage != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.Header("Usage"))
		kinds := make([]string, 0, len(r.Usage.Totals))
		for k := range r.Usage.Totals {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			printField(w, k, r.Usage.Totals[k])
		}
		for _, q := range r.Usage.TopQueries {
			fmt.Fprintf(w, "  %s %s\n", q.Query, ui.Hint(fmt.Sprintf("×%d", q.Count)))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Header("Capabilities"))
	for _, st := range r.Capabilities {
		if st.Available {
			fmt.Fprintln(w, ui.Success(string(st.Name)))
		} else {
			fmt.Fprintln(w, ui.Error(string(st.Name))+" "+ui.Hint(st.Reason))
		}
	}
}

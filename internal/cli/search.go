package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aidanlsb/kb/internal/config"
	"github.com/aidanlsb/kb/internal/index"
	"github.com/aidanlsb/kb/internal/ui"
)

// SearchResultJSON is the data payload of `kb search --json`.
type SearchResultJSON struct {
	Query   string               `json:"query"`
	Results []index.SearchResult `json:"results"`
}

func runSearch(ctx context.Context, inv *Invocation) error {
	meta := inv.Caps.MetadataManager()
	query := strings.TrimSpace(strings.Join(inv.Args, " "))

	db, _, err := openIndex(inv)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := refreshIndex(ctx, inv, db, meta); err != nil {
		return err
	}

	limit := config.DefaultSearchLimit
	if inv.KB != nil && inv.KB.Config != nil {
		limit = inv.KB.Config.SearchLimit()
	}

	results := []index.SearchResult{}
	if query != "" {
		results, err = db.Search(ctx, query, limit)
		if errors.Is(err, index.ErrInvalidQuery) {
			return handlerError(ErrInvalidQuery, err, "Quote phrases and balance parentheses")
		}
		if err != nil {
			return handlerError(ErrDatabaseError, err, "Run 'kb index' to rebuild the index")
		}
	}
	inv.RecordUsage(query, len(results))

	if inv.JSON {
		inv.outputSuccess(SearchResultJSON{Query: query, Results: results}, &Meta{Count: len(results), QueryTimeMs: inv.Elapsed()})
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(inv.Out, ui.Info(fmt.Sprintf("No results for %q", query)))
		return nil
	}

	width := ui.NewDisplayContext().AvailableWidth(4)
	fmt.Fprintf(inv.Out, "%s %s\n\n", ui.Header(fmt.Sprintf("Results for %q", query)), ui.Count(len(results), "result", "results"))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		fmt.Fprintf(inv.Out, "%2d. %s  %s\n", i+1, ui.Bold.Render(title), ui.Muted.Render(r.FilePath))
		if snippet := highlightSnippet(ui.Truncate(r.Snippet, width)); snippet != "" {
			fmt.Fprintf(inv.Out, "    %s\n", snippet)
		}
	}
	return nil
}

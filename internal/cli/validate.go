package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aidanlsb/kb/internal/entry"
	"github.com/aidanlsb/kb/internal/kbmeta"
	"github.com/aidanlsb/kb/internal/paths"
	"github.com/aidanlsb/kb/internal/ui"
)

// ValidateResult is the data payload of `kb validate --json`.
type ValidateResult struct {
	File     string         `json:"file"`
	Valid    bool           `json:"valid"`
	Errors   int            `json:"errors"`
	Warnings int            `json:"warnings"`
	Issues   []kbmeta.Issue `json:"issues"`
}

func runValidate(_ context.Context, inv *Invocation) error {
	meta := inv.Caps.MetadataManager()
	arg := inv.Args[0]

	absPath, rel, err := paths.ResolveEntryPath(meta.Root(), arg)
	if err != nil {
		if errors.Is(err, paths.ErrPathOutsideKB) {
			return handlerError(ErrFileOutsideKB, fmt.Errorf("%s is outside the knowledge base", arg), "")
		}
		return handlerError(ErrFileNotFound, err, "")
	}
	if _, err := os.Stat(absPath); err != nil {
		return handlerError(ErrFileNotFound, fmt.Errorf("%s: %w", rel, err), "")
	}
	if !entry.IsEntryPath(rel) {
		return handlerErrorf(ErrFileNotFound, "", "%s is not a KB entry (%s)", rel, entry.Extension)
	}

	result := ValidateResult{File: rel, Issues: []kbmeta.Issue{}}
	e, err := meta.Read(rel)
	if err != nil {
		result.Issues = append(result.Issues, kbmeta.Issue{Level: kbmeta.LevelError, Message: err.Error()})
	} else {
		result.Issues = append(result.Issues, meta.Validate(e)...)
	}
	for _, issue := range result.Issues {
		if issue.Level == kbmeta.LevelError {
			result.Errors++
		} else {
			result.Warnings++
		}
	}
	result.Valid = result.Errors == 0
	inv.RecordUsage(rel, len(result.Issues))

	if !result.Valid {
		if !inv.JSON {
			printIssues(inv, &result)
		}
		return &Error{
			Kind:    KindHandler,
			Code:    ErrValidationFailed,
			Message: fmt.Sprintf("%s failed validation %s", rel, ui.Count(result.Errors, "error", "errors")),
			Details: result,
		}
	}

	if inv.JSON {
		inv.outputSuccess(result, &Meta{Count: len(result.Issues), QueryTimeMs: inv.Elapsed()})
		return nil
	}
	printIssues(inv, &result)
	return nil
}

func printIssues(inv *Invocation, r *ValidateResult) {
	for _, issue := range r.Issues {
		loc := r.File
		if issue.Line > 0 {
			loc = fmt.Sprintf("%s:%d", r.File, issue.Line)
		}
		if issue.Level == kbmeta.LevelError {
			fmt.Fprintln(inv.Out, ui.Errorf("%s  %s", ui.FilePath(loc), issue.Message))
		} else {
			fmt.Fprintln(inv.Out, ui.Warningf("%s  %s", ui.FilePath(loc), issue.Message))
		}
	}
	if r.Valid {
		line := r.File + " is valid"
		if counts := ui.IssueCounts(r.Errors, r.Warnings); counts != "" {
			line += " " + counts
		}
		fmt.Fprintln(inv.Out, ui.Success(line))
	}
}

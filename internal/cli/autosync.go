package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aidanlsb/kb/internal/config"
	"github.com/aidanlsb/kb/internal/entry"
	"github.com/aidanlsb/kb/internal/kbchanges"
	"github.com/aidanlsb/kb/internal/kbmeta"
	"github.com/aidanlsb/kb/internal/kbsync"
	"github.com/aidanlsb/kb/internal/paths"
	"github.com/aidanlsb/kb/internal/ui"
)

// AutoSyncResult is the data payload of `kb auto-sync --json`.
type AutoSyncResult struct {
	File        string         `json:"file"`
	Target      string         `json:"target"`
	Destination string         `json:"destination"`
	Changed     bool           `json:"changed"`
	Copied      bool           `json:"copied"`
	Committed   bool           `json:"committed"`
	Commit      string         `json:"commit,omitempty"`
	Issues      []kbmeta.Issue `json:"issues,omitempty"`
}

func runAutoSync(ctx context.Context, inv *Invocation) error {
	meta := inv.Caps.MetadataManager()
	changes := inv.Caps.ChangeDetector()
	root := meta.Root()

	absPath, rel, err := paths.ResolveEntryPath(root, inv.StringFlag("file"))
	if err != nil {
		if errors.Is(err, paths.ErrPathOutsideKB) {
			return handlerError(ErrFileOutsideKB, fmt.Errorf("%s is outside the knowledge base", inv.StringFlag("file")), "Pass a path inside "+root)
		}
		return handlerError(ErrFileNotFound, err, "")
	}
	if !entry.IsEntryPath(rel) {
		return handlerErrorf(ErrFileNotFound, "Only "+entry.Extension+" entries are synced", "%s is not a KB entry", rel)
	}
	if _, err := os.Stat(absPath); err != nil {
		return handlerError(ErrFileNotFound, fmt.Errorf("%s: %w", rel, err), "")
	}

	e, err := meta.Read(rel)
	if err != nil {
		return handlerError(ErrValidationFailed, err, "Fix the front-matter and try again")
	}
	issues := meta.Validate(e)
	if kbmeta.HasErrors(issues) {
		return &Error{
			Kind:       KindHandler,
			Code:       ErrValidationFailed,
			Message:    fmt.Sprintf("%s failed validation; not synced", rel),
			Suggestion: "Run 'kb validate " + rel + "' for details",
			Details:    issues,
		}
	}
	for _, issue := range issues {
		inv.Warn(WarnValidation, issue.String(), rel)
	}

	kbCfg, err := config.LoadKBConfig(root)
	if err != nil {
		return handlerError(ErrConfigInvalid, err, "Fix "+config.KBConfigFile)
	}
	var globalCfg *config.Config
	if inv.KB != nil {
		globalCfg = inv.KB.Config
	}
	target := config.ResolveSyncTarget(globalCfg, kbCfg, root)
	if err := kbsync.CheckTarget(root, target); err != nil {
		return handlerError(ErrConfigInvalid, err, "Set [sync] target in config.toml, sync_target in kb.yaml, or "+config.EnvSyncTarget)
	}

	result := AutoSyncResult{
		File:        rel,
		Target:      target,
		Destination: kbsync.Destination(target, rel),
		Issues:      issues,
	}

	changed, err := changes.Changed(ctx, kbchanges.ScopeSync, rel)
	if err != nil {
		return changeStoreError(err)
	}
	if _, statErr := os.Stat(result.Destination); statErr != nil {
		changed = true
	}
	result.Changed = changed

	if changed {
		if _, err := kbsync.Copy(absPath, target, rel); err != nil {
			return handlerError(ErrSyncFailed, err, "")
		}
		result.Copied = true

		if globalCfg == nil || globalCfg.SyncCommit() {
			if kbsync.IsGitWorkTree(ctx, target) {
				head, err := kbsync.CommitFile(ctx, target, rel, "kb: sync "+rel)
				if err != nil {
					return handlerError(ErrSyncFailed, err, "The entry was copied; commit it manually in "+target)
				}
				result.Committed = head != ""
				result.Commit = head
			}
		}

		cs, err := changes.Detect(ctx, kbchanges.ScopeSync, []string{rel})
		if err != nil {
			return changeStoreError(err)
		}
		if err := changes.Commit(ctx, kbchanges.ScopeSync, cs); err != nil {
			return changeStoreError(err)
		}
	}
	inv.RecordUsage(rel, boolCount(result.Copied))

	if inv.JSON {
		inv.outputSuccess(result, &Meta{QueryTimeMs: inv.Elapsed()})
		return nil
	}

	if !result.Copied {
		fmt.Fprintln(inv.Out, ui.Info(rel+" is unchanged since the last sync"))
		return nil
	}
	fmt.Fprintln(inv.Out, ui.Successf("Synced %s to %s", ui.FilePath(rel), ui.FilePath(result.Destination)))
	if result.Committed {
		fmt.Fprintln(inv.Out, ui.Hint("commit "+shortHash(result.Commit)))
	}
	return nil
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}

func shortHash(h string) string {
	h = strings.TrimSpace(h)
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/kb/internal/capability"
	"github.com/aidanlsb/kb/internal/commands"
	"github.com/aidanlsb/kb/internal/kbusage"
)

// Invocation is everything a handler receives for one command run.
type Invocation struct {
	Command string
	Args    []string
	Flags   map[string]interface{}

	KB   *KB
	Caps *capability.Set

	Out  io.Writer
	Err  io.Writer
	JSON bool

	Started time.Time

	warnings []Warning

	usageSubject string
	usageCount   int
}

// Handler runs one command.
type Handler func(ctx context.Context, inv *Invocation) error

// DefaultHandlers returns the production handler table.
func DefaultHandlers() map[string]Handler {
	return map[string]Handler{
		"search":    runSearch,
		"index":     runIndex,
		"auto-sync": runAutoSync,
		"stats":     runStats,
		"validate":  runValidate,
		"export":    runExport,
		"version":   runVersion,
	}
}

// StringFlag returns a string flag value ("" when unset).
func (inv *Invocation) StringFlag(name string) string {
	v, _ := inv.Flags[name].(string)
	return v
}

// Warn adds a non-fatal warning to the JSON envelope, and prints it in text mode.
func (inv *Invocation) Warn(code, message, ref string) {
	inv.warnings = append(inv.warnings, Warning{Code: code, Message: message, Ref: ref})
	if !inv.JSON {
		fmt.Fprintln(inv.Err, warningLine(message, ref))
	}
}

// RecordUsage sets the subject and count of the usage event recorded after
// the handler succeeds.
func (inv *Invocation) RecordUsage(subject string, count int) {
	inv.usageSubject = subject
	inv.usageCount = count
}

// Elapsed returns milliseconds since the invocation started.
func (inv *Invocation) Elapsed() int64 {
	return time.Since(inv.Started).Milliseconds()
}

// checkFlags reports missing required flags and values outside a flag's choices.
func checkFlags(cmd *cobra.Command, meta commands.Meta, flags map[string]interface{}) error {
	if missing := commands.MissingRequiredFlags(cmd, meta); len(missing) > 0 {
		return usageErrorf("required flag(s) %s not set", quoteAll(missing))
	}
	if name, value, bad := commands.InvalidChoice(meta, flags); bad {
		return usageErrorf("invalid value %q for --%s", value, name)
	}
	return nil
}

// dispatch is the RunFunc every generated subcommand calls.
func (a *App) dispatch(cmd *cobra.Command, meta commands.Meta, args []string, flags map[string]interface{}) error {
	caps := a.caps
	if caps == nil {
		caps = capability.Empty()
	}
	inv := &Invocation{
		Command: meta.Name,
		Args:    args,
		Flags:   flags,
		KB:      a.kb,
		Caps:    caps,
		Out:     a.Stdout,
		Err:     a.Stderr,
		JSON:    a.jsonOutput,
		Started: time.Now(),
	}

	if err := checkFlags(cmd, meta, flags); err != nil {
		return err
	}

	if err := caps.Require(meta.Requires...); err != nil {
		return classify(err)
	}

	handler, ok := a.handlers()[meta.Name]
	if !ok {
		return handlerErrorf(ErrInternal, "", "no handler registered for %s", meta.Name)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := handler(ctx, inv); err != nil {
		return asHandlerError(err)
	}

	a.recordUsage(ctx, meta, inv)
	return nil
}

func (a *App) handlers() map[string]Handler {
	if a.Handlers != nil {
		return a.Handlers
	}
	return DefaultHandlers()
}

// recordUsage logs a usage event for commands that use the tracker. A failed
// write never fails the command.
func (a *App) recordUsage(ctx context.Context, meta commands.Meta, inv *Invocation) {
	if !uses(meta, capability.Usage) {
		return
	}
	tracker := inv.Caps.UsageTracker()
	if tracker == nil {
		return
	}
	ev := kbusage.Event{Kind: meta.Name, Subject: inv.usageSubject, Count: inv.usageCount}
	if err := tracker.Record(ctx, ev); err != nil {
		slog.Warn("usage event not recorded", "command", meta.Name, "error", err)
	}
}

func uses(meta commands.Meta, name capability.Name) bool {
	for _, n := range meta.Uses {
		if n == name {
			return true
		}
	}
	return false
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	return strings.Join(quoted, ", ")
}

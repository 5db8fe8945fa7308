package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/aidanlsb/kb/internal/capability"
	"github.com/aidanlsb/kb/internal/entry"
	"github.com/aidanlsb/kb/internal/kbchanges"
	"github.com/aidanlsb/kb/internal/kbmeta"
	"github.com/aidanlsb/kb/internal/kbusage"
)

type stubMetadata struct{ root string }

func (s *stubMetadata) Root() string {
	return s.root
}

func (s *stubMetadata) Read(string) (*entry.Entry, error) {
	return nil, os.ErrNotExist
}

func (s *stubMetadata) EntryPaths(context.Context) ([]string, error) {
	return nil, nil
}

func (s *stubMetadata) Walk(context.Context, func(*entry.Entry, error) error) error {
	return nil
}

func (s *stubMetadata) Validate(*entry.Entry) []kbmeta.Issue {
	return nil
}

type stubUsage struct{ events []kbusage.Event }

func (s *stubUsage) Record(_ context.Context, ev kbusage.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *stubUsage) Summary(context.Context, int) (*kbusage.Summary, error) {
	return &kbusage.Summary{Totals: map[string]int{}}, nil
}

type stubChanges struct{}

func (stubChanges) Detect(context.Context, string, []string) (*kbchanges.ChangeSet, error) {
	return &kbchanges.ChangeSet{}, nil
}

func (stubChanges) Changed(context.Context, string, string) (bool, error) {
	return false, nil
}

func (stubChanges) Commit(context.Context, string, *kbchanges.ChangeSet) error {
	return nil
}

func (stubChanges) Pending(context.Context, string, []string) (int, error) {
	return 0, nil
}

func allStubBinders(usage *stubUsage) BinderFunc {
	return func(kb *KB) capability.Binders {
		return capability.Binders{
			Metadata: func(context.Context) (capability.MetadataManager, error) {
				return &stubMetadata{root: kb.Root}, nil
			},
			Usage: func(context.Context) (capability.UsageTracker, error) {
				return usage, nil
			},
			Changes: func(context.Context) (capability.ChangeDetector, error) {
				return stubChanges{}, nil
			},
		}
	}
}

func noBinders(*KB) capability.Binders { return capability.Binders{} }

type call struct {
	command string
	args    []string
	flags   map[string]interface{}
}

// recordingHandlers returns a handler table that records every call.
func recordingHandlers(calls *[]call) map[string]Handler {
	handlers := make(map[string]Handler)
	for name := range DefaultHandlers() {
		handlers[name] = func(_ context.Context, inv *Invocation) error {
			*calls = append(*calls, call{command: inv.Command, args: inv.Args, flags: inv.Flags})
			return nil
		}
	}
	return handlers
}

type harness struct {
	t      *testing.T
	app    *App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	kbRoot string
	config string
}

func newHarness(t *testing.T, binders BinderFunc, handlers map[string]Handler) *harness {
	t.Helper()
	t.Setenv("KB_LOG_LEVEL", "")
	t.Setenv("KB_PATH", "")

	config := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(config, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	h := &harness{t: t, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, kbRoot: t.TempDir(), config: config}
	h.app = New(h.stdout, h.stderr)
	h.app.Binders = binders
	if handlers != nil {
		h.app.Handlers = handlers
	}
	return h
}

// run executes args against the harness KB and returns the exit code.
func (h *harness) run(args ...string) int {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	full := append([]string{"--kb-path", h.kbRoot, "--config", h.config}, args...)
	return ExitCode(h.app.Run(context.Background(), full))
}

// runBare executes args without the harness global flags.
func (h *harness) runBare(args ...string) int {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	return ExitCode(h.app.Run(context.Background(), args))
}

func TestNoArgumentsIsUsageError(t *testing.T) {
	var calls []call
	h := newHarness(t, allStubBinders(&stubUsage{}), recordingHandlers(&calls))

	if code := h.runBare(); code != ExitUsage {
		t.Fatalf("exit code = %d, want %d", code, ExitUsage)
	}
	if !strings.Contains(h.stderr.String(), "Usage:") {
		t.Fatalf("expected usage on stderr, got %q", h.stderr.String())
	}
	if len(calls) != 0 {
		t.Fatalf("no handler should run, got %+v", calls)
	}
}

func TestUnknownSubcommandIsUsageError(t *testing.T) {
	var calls []call
	h := newHarness(t, allStubBinders(&stubUsage{}), recordingHandlers(&calls))

	if code := h.run("frobnicate"); code != ExitUsage {
		t.Fatalf("exit code = %d, want %d", code, ExitUsage)
	}
	if !strings.Contains(h.stderr.String(), "Usage:") {
		t.Fatalf("expected usage on stderr, got %q", h.stderr.String())
	}
	if len(calls) != 0 {
		t.Fatalf("no handler should run, got %+v", calls)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "auto-sync without --file", args: []string{"auto-sync"}},
		{name: "auto-sync with empty --file", args: []string{"auto-sync", "--file", " "}},
		{name: "search without query", args: []string{"search"}},
		{name: "validate with two files", args: []string{"validate", "a.md", "b.md"}},
		{name: "index with positional", args: []string{"index", "extra"}},
		{name: "unknown flag", args: []string{"stats", "--nope"}},
		{name: "unsupported export format", args: []string{"export", "--format", "csv"}},
		{name: "completion is not a command", args: []string{"completion", "bash"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []call
			h := newHarness(t, allStubBinders(&stubUsage{}), recordingHandlers(&calls))

			if code := h.run(tt.args...); code != ExitUsage {
				t.Fatalf("exit code = %d, want %d (stderr=%s)", code, ExitUsage, h.stderr.String())
			}
			if len(calls) != 0 {
				t.Fatalf("handler ran for a usage error: %+v", calls)
			}
			if !strings.Contains(h.stderr.String(), "Usage:") {
				t.Fatalf("expected usage text on stderr, got %q", h.stderr.String())
			}
		})
	}
}

func TestMissingCapabilitiesFailWithoutCrashing(t *testing.T) {
	var calls []call
	h := newHarness(t, noBinders, recordingHandlers(&calls))

	if code := h.run("search", "foo"); code != ExitCapability {
		t.Fatalf("exit code = %d, want %d", code, ExitCapability)
	}
	if !strings.Contains(h.stderr.String(), "feature unavailable: metadata") {
		t.Fatalf("expected missing collaborator on stderr, got %q", h.stderr.String())
	}
	if len(calls) != 0 {
		t.Fatalf("handler ran without its capability: %+v", calls)
	}

	// stats requires nothing and still runs.
	if code := h.run("stats"); code != ExitOK {
		t.Fatalf("stats exit code = %d, want %d (stderr=%s)", code, ExitOK, h.stderr.String())
	}
	if len(calls) != 1 || calls[0].command != "stats" {
		t.Fatalf("expected one stats call, got %+v", calls)
	}
}

func TestCapabilityPolicy(t *testing.T) {
	metadataOnly := func(kb *KB) capability.Binders {
		return capability.Binders{
			Metadata: func(context.Context) (capability.MetadataManager, error) {
				return &stubMetadata{root: kb.Root}, nil
			},
		}
	}

	tests := []struct {
		args []string
		want int
	}{
		{args: []string{"search", "foo"}, want: ExitOK},
		{args: []string{"index"}, want: ExitOK},
		{args: []string{"auto-sync", "--file", "a.md"}, want: ExitCapability},
		{args: []string{"stats"}, want: ExitOK},
		{args: []string{"validate", "a.md"}, want: ExitOK},
		{args: []string{"export"}, want: ExitOK},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			var calls []call
			h := newHarness(t, metadataOnly, recordingHandlers(&calls))
			if code := h.run(tt.args...); code != tt.want {
				t.Fatalf("exit code = %d, want %d (stderr=%s)", code, tt.want, h.stderr.String())
			}
		})
	}
}

func TestPanickingBinderIsNotFatal(t *testing.T) {
	var calls []call
	binders := func(kb *KB) capability.Binders {
		return capability.Binders{
			Metadata: func(context.Context) (capability.MetadataManager, error) {
				panic("metadata exploded")
			},
			Changes: func(context.Context) (capability.ChangeDetector, error) {
				return nil, errors.New("snapshot store unreadable")
			},
		}
	}
	h := newHarness(t, binders, recordingHandlers(&calls))

	if code := h.run("--debug", "validate", "a.md"); code != ExitCapability {
		t.Fatalf("exit code = %d, want %d", code, ExitCapability)
	}
	if !strings.Contains(h.stderr.String(), "metadata exploded") {
		t.Fatalf("expected bind cause with --debug, got %q", h.stderr.String())
	}
}

func TestAllCapabilitiesDispatchExactlyOnce(t *testing.T) {
	tests := []struct {
		args      []string
		command   string
		wantArgs  []string
		wantFlags map[string]interface{}
	}{
		{args: []string{"search", "foo bar"}, command: "search", wantArgs: []string{"foo bar"}, wantFlags: map[string]interface{}{}},
		{args: []string{"index"}, command: "index", wantArgs: []string{}, wantFlags: map[string]interface{}{}},
		{args: []string{"auto-sync", "--file", "notes/a.md"}, command: "auto-sync", wantArgs: []string{}, wantFlags: map[string]interface{}{"file": "notes/a.md"}},
		{args: []string{"auto-sync", "-f", "notes/b.md"}, command: "auto-sync", wantArgs: []string{}, wantFlags: map[string]interface{}{"file": "notes/b.md"}},
		{args: []string{"stats"}, command: "stats", wantArgs: []string{}, wantFlags: map[string]interface{}{}},
		{args: []string{"validate", "notes/a.md"}, command: "validate", wantArgs: []string{"notes/a.md"}, wantFlags: map[string]interface{}{}},
		{args: []string{"export", "--format", "json"}, command: "export", wantArgs: []string{}, wantFlags: map[string]interface{}{"format": "json"}},
		{args: []string{"export"}, command: "export", wantArgs: []string{}, wantFlags: map[string]interface{}{"format": "json"}},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			var calls []call
			h := newHarness(t, allStubBinders(&stubUsage{}), recordingHandlers(&calls))

			if code := h.run(tt.args...); code != ExitOK {
				t.Fatalf("exit code = %d, want 0 (stderr=%s)", code, h.stderr.String())
			}
			if len(calls) != 1 {
				t.Fatalf("expected exactly one dispatch, got %d", len(calls))
			}
			got := calls[0]
			if got.command != tt.command {
				t.Fatalf("command = %q, want %q", got.command, tt.command)
			}
			if len(got.args) != len(tt.wantArgs) || (len(got.args) > 0 && !reflect.DeepEqual(got.args, tt.wantArgs)) {
				t.Fatalf("args = %#v, want %#v", got.args, tt.wantArgs)
			}
			if !reflect.DeepEqual(got.flags, tt.wantFlags) {
				t.Fatalf("flags = %#v, want %#v", got.flags, tt.wantFlags)
			}
		})
	}
}

func TestRepeatedInvocationsGiveIdenticalExitCodes(t *testing.T) {
	invocations := [][]string{
		{"search", "foo"},
		{"auto-sync"},
		{"frobnicate"},
		{"stats"},
	}

	for _, binders := range []BinderFunc{noBinders, allStubBinders(&stubUsage{})} {
		var calls []call
		h := newHarness(t, binders, recordingHandlers(&calls))
		for _, args := range invocations {
			first := h.run(args...)
			for i := 0; i < 3; i++ {
				if code := h.run(args...); code != first {
					t.Fatalf("%v: run %d exit code = %d, first was %d", args, i+2, code, first)
				}
			}
			fresh := newHarness(t, binders, recordingHandlers(&calls))
			if code := fresh.run(args...); code != first {
				t.Fatalf("%v: fresh app exit code = %d, want %d", args, code, first)
			}
		}
	}
}

func TestJSONModeKeepsExitCodes(t *testing.T) {
	var calls []call
	h := newHarness(t, noBinders, recordingHandlers(&calls))

	if code := h.run("--json", "search", "foo"); code != ExitCapability {
		t.Fatalf("exit code = %d, want %d", code, ExitCapability)
	}
	var resp Response
	if err := json.Unmarshal(h.stdout.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON envelope on stdout: %v (%s)", err, h.stdout.String())
	}
	if resp.OK || resp.Error == nil || resp.Error.Code != ErrFeatureUnavailable {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	details, _ := resp.Error.Details.(map[string]interface{})
	if details["capability"] != "metadata" {
		t.Fatalf("details = %#v, want capability=metadata", resp.Error.Details)
	}

	if code := h.run("--json", "auto-sync"); code != ExitUsage {
		t.Fatalf("exit code = %d, want %d", code, ExitUsage)
	}
	if err := json.Unmarshal(h.stdout.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON envelope on stdout: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != ErrUsage {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestHandlerErrorsExitOne(t *testing.T) {
	handlers := DefaultHandlers()
	handlers["stats"] = func(context.Context, *Invocation) error {
		return errors.New("boom")
	}
	handlers["validate"] = func(context.Context, *Invocation) error {
		return handlerErrorf(ErrValidationFailed, "", "a.md failed validation")
	}
	h := newHarness(t, allStubBinders(&stubUsage{}), handlers)

	if code := h.run("--json", "stats"); code != ExitHandler {
		t.Fatalf("exit code = %d, want %d", code, ExitHandler)
	}
	var resp Response
	if err := json.Unmarshal(h.stdout.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != ErrInternal || resp.Error.Message != "boom" {
		t.Fatalf("unexpected envelope: %+v", resp.Error)
	}

	if code := h.run("validate", "a.md"); code != ExitHandler {
		t.Fatalf("exit code = %d, want %d", code, ExitHandler)
	}
	if strings.Contains(h.stderr.String(), "Usage:") {
		t.Fatalf("handler errors should not print usage: %q", h.stderr.String())
	}
}

func TestUsageEventRecordedAfterSuccess(t *testing.T) {
	usage := &stubUsage{}
	handlers := DefaultHandlers()
	handlers["search"] = func(_ context.Context, inv *Invocation) error {
		inv.RecordUsage(inv.Args[0], 2)
		return nil
	}
	handlers["export"] = func(context.Context, *Invocation) error {
		return errors.New("failed")
	}
	h := newHarness(t, allStubBinders(usage), handlers)

	if code := h.run("search", "fts"); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if code := h.run("export"); code != ExitHandler {
		t.Fatalf("exit code = %d", code)
	}

	if len(usage.events) != 1 {
		t.Fatalf("expected one usage event, got %+v", usage.events)
	}
	if ev := usage.events[0]; ev.Kind != kbusage.KindSearch || ev.Subject != "fts" || ev.Count != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestNamedKBMissingFromConfig(t *testing.T) {
	var calls []call
	h := newHarness(t, allStubBinders(&stubUsage{}), recordingHandlers(&calls))

	code := h.runBare("--config", h.config, "--kb", "work", "stats")
	if code != ExitHandler {
		t.Fatalf("exit code = %d, want %d", code, ExitHandler)
	}
	if !strings.Contains(h.stderr.String(), "work") {
		t.Fatalf("expected KB name in error, got %q", h.stderr.String())
	}
}

func TestResolveKBRootPrecedence(t *testing.T) {
	named := t.TempDir()
	def := t.TempDir()
	env := t.TempDir()

	config := filepath.Join(t.TempDir(), "config.toml")
	content := "default_kb = \"default\"\n[kbs]\nnamed = \"" + filepath.ToSlash(named) + "\"\ndefault = \"" + filepath.ToSlash(def) + "\"\n"
	if err := os.WriteFile(config, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var roots []string
	handlers := DefaultHandlers()
	handlers["stats"] = func(_ context.Context, inv *Invocation) error {
		roots = append(roots, inv.KB.Root)
		return nil
	}

	run := func(args ...string) {
		t.Helper()
		app := New(&bytes.Buffer{}, &bytes.Buffer{})
		app.Binders = noBinders
		app.Handlers = handlers
		if err := app.Run(context.Background(), append([]string{"--config", config}, args...)); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	t.Setenv("KB_PATH", env)
	run("--kb-path", named, "--kb", "default", "stats")
	run("--kb", "named", "stats")
	run("stats")
	t.Setenv("KB_PATH", "")
	run("stats")

	want := []string{named, named, env, def}
	for i := range want {
		w, _ := filepath.Abs(filepath.FromSlash(want[i]))
		if roots[i] != w {
			t.Errorf("run %d root = %q, want %q", i, roots[i], w)
		}
	}
}

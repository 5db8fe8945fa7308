// Package commands provides a central registry of kb CLI commands.
// This registry is the single source of truth for command metadata: the
// cobra tree, the help text and the capability policy are generated from it.
package commands

import (
	"sort"
	"strings"

	"github.com/aidanlsb/kb/internal/capability"
)

// Meta defines metadata for a CLI command.
type Meta struct {
	Name        string     // Command name (e.g., "search", "auto-sync")
	Description string     // Short description
	LongDesc    string     // Long description (for --help)
	Args        []ArgMeta  // Positional arguments
	Flags       []FlagMeta // Command flags
	Examples    []string   // Usage examples

	// Requires lists capabilities the handler cannot run without.
	Requires []capability.Name
	// Uses lists capabilities the handler uses when they are bound.
	Uses []capability.Name

	// NeedsKB is false for commands that run without a resolved KB root.
	NeedsKB bool
}

// ArgMeta defines a positional argument.
type ArgMeta struct {
	Name        string   // Argument name
	Description string   // Description
	Required    bool     // Is this argument required?
	Completions []string // Static completions (if any)
	DynamicComp string   // Dynamic completion type: "files"
}

// FlagMeta defines a command flag.
type FlagMeta struct {
	Name        string   // Flag name (e.g., "file", "format")
	Short       string   // Short flag (e.g., "f" for -f)
	Description string   // Description
	Type        FlagType // Type of flag
	Default     string   // Default value
	Required    bool     // Must be set explicitly
	Choices     []string // Accepted values (empty accepts anything)
	Examples    []string // Example values
}

// FlagType represents the type of a flag.
type FlagType string

const (
	FlagTypeString FlagType = "string"
	FlagTypeBool   FlagType = "bool"
	FlagTypeInt    FlagType = "int"
)

// Registry holds all registered commands.
var Registry = map[string]Meta{
	"search": {
		Name:        "search",
		Description: "Query the KB index",
		LongDesc: `Full-text search over entry titles, bodies and tags.

Stale index rows (new, changed or deleted files) are refreshed before the
query runs, so results always reflect the working tree. Quoted phrases,
AND/OR/NOT and trailing '*' prefix matches are supported.`,
		Args: []ArgMeta{
			{Name: "query", Description: "Search terms", Required: true},
		},
		Examples: []string{
			`kb search "sqlite fts5"`,
			`kb search "go-modules OR vendoring" --json`,
		},
		Requires: []capability.Name{capability.Metadata},
		Uses:     []capability.Name{capability.Usage},
		NeedsKB:  true,
	},
	"index": {
		Name:        "index",
		Description: "Build or rebuild the search index",
		LongDesc: `Walks every entry in the KB and writes the search index to .kb/index.db.

With change detection available only added and modified entries are
re-indexed; otherwise the index is rebuilt from scratch. An index written by
an incompatible version is always rebuilt.`,
		Examples: []string{
			"kb index",
			"kb index --json",
		},
		Requires: []capability.Name{capability.Metadata},
		Uses:     []capability.Name{capability.Changes, capability.Usage},
		NeedsKB:  true,
	},
	"auto-sync": {
		Name:        "auto-sync",
		Description: "Sync a KB entry to a shared repository",
		LongDesc: `Validates one entry and copies it into the configured sync target when it
changed since the last sync. When the target is a git work tree the copy is
committed (disable with [sync] commit = false).

The target comes from KB_SYNC_TARGET, kb.yaml sync_target, or [sync] target
in config.toml, in that order.`,
		Flags: []FlagMeta{
			{Name: "file", Short: "f", Description: "Entry to sync (path inside the KB)", Type: FlagTypeString, Required: true, Examples: []string{"notes/go-modules.md"}},
		},
		Examples: []string{
			"kb auto-sync --file notes/go-modules.md",
		},
		Requires: []capability.Name{capability.Metadata, capability.Changes},
		Uses:     []capability.Name{capability.Usage},
		NeedsKB:  true,
	},
	"stats": {
		Name:        "stats",
		Description: "Emit KB statistics",
		LongDesc: `Shows index statistics (entries, words, tags, types, links) together
with capability availability, a usage summary and the number of entries
changed since the last index run when those capabilities are bound.`,
		Examples: []string{
			"kb stats",
			"kb stats --json",
		},
		Uses:    []capability.Name{capability.Usage, capability.Changes},
		NeedsKB: true,
	},
	"validate": {
		Name:        "validate",
		Description: "Validate a KB entry",
		LongDesc: `Checks one entry against the KB rules: required fields, tag and date
formats, allowed types, empty bodies and unresolved wiki-links.

Exits non-zero when any error-level issue is found; warnings are reported
but do not fail.`,
		Args: []ArgMeta{
			{Name: "file", Description: "Entry path (relative to the KB or the working directory)", Required: true, DynamicComp: "files"},
		},
		Examples: []string{
			"kb validate notes/go-modules.md",
		},
		Requires: []capability.Name{capability.Metadata},
		Uses:     []capability.Name{capability.Usage},
		NeedsKB:  true,
	},
	"export": {
		Name:        "export",
		Description: "Emit the KB in a machine-readable form",
		LongDesc: `Writes every entry (path, title, type, tags, fields, links, word count
and body) to stdout.`,
		Flags: []FlagMeta{
			{Name: "format", Description: "Output format", Type: FlagTypeString, Default: "json", Choices: []string{"json", "yaml"}},
		},
		Examples: []string{
			"kb export --format json > kb.json",
			"kb export --format yaml",
		},
		Requires: []capability.Name{capability.Metadata},
		Uses:     []capability.Name{capability.Usage},
		NeedsKB:  true,
	},
	"version": {
		Name:        "version",
		Description: "Show version information",
		Examples: []string{
			"kb version",
			"kb version --json",
		},
	},
}

// GetCommandMeta returns the metadata for a command.
func GetCommandMeta(name string) (Meta, bool) {
	meta, ok := Registry[name]
	return meta, ok
}

// AllCommandNames returns all registered command names, sorted.
func AllCommandNames() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveCommandID resolves a CLI command path to a registry command ID.
// Example: "kb auto-sync" -> "auto-sync"
func ResolveCommandID(path string) (string, bool) {
	fields := strings.Fields(path)
	if len(fields) == 0 {
		return "", false
	}
	last := fields[len(fields)-1]
	if _, ok := Registry[last]; ok {
		return last, true
	}
	return "", false
}

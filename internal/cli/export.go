package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/kb/internal/entry"
)

// ExportedEntry is one entry in `kb export` output.
type ExportedEntry struct {
	Path      string                 `json:"path" yaml:"path"`
	ID        string                 `json:"id" yaml:"id"`
	Title     string                 `json:"title" yaml:"title"`
	Type      string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Tags      []string               `json:"tags" yaml:"tags"`
	Fields    map[string]interface{} `json:"fields" yaml:"fields"`
	Links     []string               `json:"links" yaml:"links"`
	WordCount int                    `json:"word_count" yaml:"word_count"`
	Modified  string                 `json:"modified,omitempty" yaml:"modified,omitempty"`
	Body      string                 `json:"body" yaml:"body"`
}

// ExportResult is the document `kb export` emits.
type ExportResult struct {
	Root    string          `json:"root" yaml:"root"`
	Count   int             `json:"count" yaml:"count"`
	Entries []ExportedEntry `json:"entries" yaml:"entries"`
}

const (
	exportFormatJSON = "json"
	exportFormatYAML = "yaml"
)

func runExport(ctx context.Context, inv *Invocation) error {
	meta := inv.Caps.MetadataManager()
	format := strings.ToLower(inv.StringFlag("format"))
	if format == "" {
		format = exportFormatJSON
	}

	result := ExportResult{Root: meta.Root(), Entries: []ExportedEntry{}}
	err := meta.Walk(ctx, func(e *entry.Entry, err error) error {
		if err != nil {
			inv.Warn(WarnEntrySkipped, err.Error(), "")
			return nil
		}
		result.Entries = append(result.Entries, exportEntry(e))
		return nil
	})
	if err != nil {
		return handlerError(ErrInternal, err, "")
	}
	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Path < result.Entries[j].Path
	})
	result.Count = len(result.Entries)
	inv.RecordUsage(format, result.Count)

	if inv.JSON {
		inv.outputSuccess(result, &Meta{Count: result.Count, QueryTimeMs: inv.Elapsed()})
		return nil
	}

	switch format {
	case exportFormatYAML:
		enc := yaml.NewEncoder(inv.Out)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return handlerError(ErrInternal, fmt.Errorf("encode yaml: %w", err), "")
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(inv.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return handlerError(ErrInternal, fmt.Errorf("encode json: %w", err), "")
		}
		return nil
	}
}

func exportEntry(e *entry.Entry) ExportedEntry {
	out := ExportedEntry{
		Path:      e.Path,
		ID:        e.ID,
		Title:     e.Title,
		Type:      e.Type,
		Tags:      e.Tags,
		Fields:    exportFields(e.Fields),
		Links:     e.LinkTargets(),
		WordCount: e.WordCount,
		Body:      e.Body,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Links == nil {
		out.Links = []string{}
	}
	if e.Mtime > 0 {
		out.Modified = time.Unix(e.Mtime, 0).UTC().Format(time.RFC3339)
	}
	return out
}

// exportFields renders YAML timestamps the way they were written so both
// encoders emit the same value.
func exportFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if t, ok := v.(time.Time); ok {
			if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
				out[k] = t.Format(entry.DateLayout)
			} else {
				out[k] = t.Format(time.RFC3339)
			}
			continue
		}
		out[k] = v
	}
	return out
}

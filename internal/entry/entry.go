package entry

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// DateLayout is the canonical date format for front-matter dates.
const DateLayout = "2006-01-02"

// Extension is the file extension of KB entries.
const Extension = ".md"

// ErrUnclosedFrontmatter indicates a front-matter block with no closing delimiter.
var ErrUnclosedFrontmatter = errors.New("front-matter is not closed with '---'")

// Entry is a parsed knowledge-base entry.
type Entry struct {
	// Path is the KB-relative slash path, e.g. "notes/go-modules.md".
	Path string

	// ID is Path without the extension; wiki-links resolve against it.
	ID string

	Title string
	Type  string
	Tags  []string

	// Fields holds all front-matter keys, including title/type/tags.
	Fields map[string]interface{}

	// HasFrontmatter reports whether a front-matter block was present.
	HasFrontmatter bool

	Body      string
	PlainText string
	Headings  []Heading
	Links     []Link
	WordCount int

	// Mtime is the file modification time as a Unix timestamp (0 when unknown).
	Mtime int64
}

// Parse parses raw entry content. relPath is the KB-relative path of the file.
func Parse(content, relPath string) (*Entry, error) {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))

	fm, err := ParseFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", relPath, err)
	}

	e := &Entry{
		Path:   relPath,
		ID:     strings.TrimSuffix(relPath, Extension),
		Fields: map[string]interface{}{},
		Body:   content,
	}

	bodyStartLine := 1
	if fm != nil {
		e.HasFrontmatter = true
		e.Fields = fm.Fields
		lines := strings.Split(content, "\n")
		e.Body = strings.Join(lines[fm.EndLine:], "\n")
		bodyStartLine = fm.EndLine + 1
	}

	info := analyzeBody(e.Body)
	e.Headings = info.Headings
	e.PlainText = info.PlainText
	e.WordCount = countWords(info.PlainText)
	e.Links = FindLinks(e.Body, bodyStartLine)

	if s, ok := e.Fields["type"].(string); ok {
		e.Type = strings.TrimSpace(s)
	}
	e.Tags = tagsFromField(e.Fields["tags"])
	e.Title = deriveTitle(e)

	return e, nil
}

// deriveTitle prefers the front-matter title, then the first level-1 heading,
// then the first heading of any level, then the file name.
func deriveTitle(e *Entry) string {
	if s, ok := e.Fields["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	for _, h := range e.Headings {
		if h.Level == 1 {
			return h.Text
		}
	}
	if len(e.Headings) > 0 {
		return e.Headings[0].Text
	}
	return strings.TrimSuffix(path.Base(e.Path), Extension)
}

// tagsFromField accepts a YAML list of strings or a comma-separated string.
// Tags are lowercased, trimmed, de-duplicated and sorted.
func tagsFromField(v interface{}) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, ",")
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// LinkTargets returns the distinct wiki-link targets in first-seen order.
func (e *Entry) LinkTargets() []string {
	seen := make(map[string]struct{}, len(e.Links))
	var out []string
	for _, l := range e.Links {
		if _, ok := seen[l.Target]; ok {
			continue
		}
		seen[l.Target] = struct{}{}
		out = append(out, l.Target)
	}
	return out
}

// IsEntryPath reports whether p names a KB entry file.
func IsEntryPath(p string) bool {
	return strings.HasSuffix(p, Extension)
}

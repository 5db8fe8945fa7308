// Package entry parses knowledge-base entries: markdown files with YAML front-matter.
package entry

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Frontmatter represents parsed front-matter data.
type Frontmatter struct {
	// Fields holds every key from the YAML block, normalized by NormalizeValue.
	Fields map[string]interface{}

	// Raw is the raw front-matter content between the delimiters.
	Raw string

	// EndLine is the line of the closing delimiter (1-indexed).
	EndLine int
}

// FrontmatterBounds returns the opening and closing front-matter line indices.
// It only detects front-matter when the first line is '---'.
// If front-matter is present but unclosed, endLine is -1.
func FrontmatterBounds(lines []string) (startLine int, endLine int, ok bool) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0, -1, false
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return 0, i, true
		}
	}

	return 0, -1, true
}

// ParseFrontmatter parses YAML front-matter from markdown content.
// Returns nil if no front-matter is found.
func ParseFrontmatter(content string) (*Frontmatter, error) {
	lines := strings.Split(content, "\n")

	_, endLine, ok := FrontmatterBounds(lines)
	if !ok {
		return nil, nil
	}
	if endLine == -1 {
		return nil, ErrUnclosedFrontmatter
	}

	raw := strings.Join(lines[1:endLine], "\n")

	var data map[string]interface{}
	if err := yaml.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to parse front-matter as YAML: %w", err)
	}

	// An empty YAML document decodes to a nil map; the block still counts as present.
	if data == nil {
		data = map[string]interface{}{}
	}

	fm := &Frontmatter{
		Raw:     raw,
		EndLine: endLine + 1,
		Fields:  make(map[string]interface{}, len(data)),
	}
	for key, value := range data {
		fm.Fields[key] = NormalizeValue(value)
	}

	return fm, nil
}

// NormalizeValue converts YAML-decoded values into JSON-friendly ones.
// Dates become "YYYY-MM-DD" (or RFC 3339 when a time component is present),
// nested maps get string keys.
func NormalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(DateLayout)
		}
		return v.Format(time.RFC3339)
	case []interface{}:
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = NormalizeValue(item)
		}
		return items
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = NormalizeValue(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = NormalizeValue(item)
		}
		return out
	default:
		return v
	}
}

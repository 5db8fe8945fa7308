package kbmeta

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aidanlsb/kb/internal/entry"
)

// Level indicates the severity of an issue.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Level   Level  `json:"level"`
	Field   string `json:"field,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", i.Level, i.Line, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Level, i.Message)
}

// HasErrors reports whether any issue is error-level.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Level == LevelError {
			return true
		}
	}
	return false
}

// Validate checks e against the KB rule set. Link resolution uses the KB's
// current entry list; when the KB cannot be listed links are not checked.
func (m *Manager) Validate(e *entry.Entry) []Issue {
	var resolver *Resolver
	if len(e.Links) > 0 {
		if relPaths, err := m.EntryPaths(context.Background()); err == nil {
			ids := make([]string, 0, len(relPaths))
			for _, p := range relPaths {
				ids = append(ids, strings.TrimSuffix(p, entry.Extension))
			}
			resolver = NewResolver(ids)
		}
	}
	return m.validate(e, resolver)
}

func (m *Manager) validate(e *entry.Entry, resolver *Resolver) []Issue {
	var issues []Issue

	if !e.HasFrontmatter {
		issues = append(issues, Issue{Level: LevelWarning, Message: "entry has no front-matter"})
	}

	for _, field := range m.cfg.GetRequiredFields() {
		v, ok := e.Fields[field]
		if !ok || isBlank(v) {
			issues = append(issues, Issue{
				Level:   LevelError,
				Field:   field,
				Message: fmt.Sprintf("missing required field '%s'", field),
			})
		}
	}

	if v, ok := e.Fields["tags"]; ok && v != nil {
		if !isStringList(v) {
			issues = append(issues, Issue{
				Level:   LevelError,
				Field:   "tags",
				Message: "field 'tags' must be a list of strings",
			})
		}
	}

	for _, field := range m.cfg.GetDateFields() {
		v, ok := e.Fields[field]
		if !ok || v == nil {
			continue
		}
		if !isDate(v) {
			issues = append(issues, Issue{
				Level:   LevelError,
				Field:   field,
				Message: fmt.Sprintf("field '%s' must be a date (YYYY-MM-DD or RFC 3339), got %v", field, v),
			})
		}
	}

	if v, ok := e.Fields["type"]; ok && v != nil {
		if _, isString := v.(string); !isString {
			issues = append(issues, Issue{Level: LevelError, Field: "type", Message: "field 'type' must be a string"})
		} else if !m.cfg.AllowsType(e.Type) {
			issues = append(issues, Issue{
				Level:   LevelError,
				Field:   "type",
				Message: fmt.Sprintf("unknown type '%s' (allowed: %s)", e.Type, strings.Join(m.cfg.Types, ", ")),
			})
		}
	}

	if strings.TrimSpace(e.Body) == "" {
		issues = append(issues, Issue{Level: LevelWarning, Message: "entry body is empty"})
	}

	if resolver != nil {
		for _, l := range e.Links {
			if _, ok := resolver.Resolve(l.Target); !ok {
				issues = append(issues, Issue{
					Level:   LevelWarning,
					Line:    l.Line,
					Message: fmt.Sprintf("unresolved link [[%s]]", l.Target),
				})
			}
		}
	}

	return issues
}

func isBlank(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	}
	return false
}

func isStringList(v interface{}) bool {
	list, ok := v.([]interface{})
	if !ok {
		return false
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

func isDate(v interface{}) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case string:
		s := strings.TrimSpace(t)
		if _, err := time.Parse(entry.DateLayout, s); err == nil {
			return true
		}
		if _, err := time.Parse(time.RFC3339, s); err == nil {
			return true
		}
	}
	return false
}

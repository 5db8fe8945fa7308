package entry

import (
	"errors"
	"testing"
)

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantNil     bool
		wantErr     error
		wantEndLine int
		wantFields  int
	}{
		{
			name: "basic front-matter",
			content: `---
title: Go modules
tags: [go, tooling]
---

# Go modules`,
			wantEndLine: 4,
			wantFields:  2,
		},
		{
			name:    "no front-matter",
			content: "# Just a heading\n\nSome content",
			wantNil: true,
		},
		{
			name:        "empty front-matter still counts",
			content:     "---\n---\nbody",
			wantEndLine: 2,
			wantFields:  0,
		},
		{
			name:    "unclosed front-matter",
			content: "---\ntitle: x\nbody",
			wantErr: ErrUnclosedFrontmatter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, err := ParseFrontmatter(tt.content)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrontmatter() error = %v", err)
			}
			if tt.wantNil {
				if fm != nil {
					t.Fatalf("expected nil front-matter, got %+v", fm)
				}
				return
			}
			if fm == nil {
				t.Fatal("expected front-matter, got nil")
			}
			if fm.EndLine != tt.wantEndLine {
				t.Errorf("EndLine = %d, want %d", fm.EndLine, tt.wantEndLine)
			}
			if len(fm.Fields) != tt.wantFields {
				t.Errorf("len(Fields) = %d, want %d", len(fm.Fields), tt.wantFields)
			}
		})
	}
}

func TestParseFrontmatterInvalidYAML(t *testing.T) {
	_, err := ParseFrontmatter("---\ntitle: [unclosed\n---\n")
	if err == nil {
		t.Fatal("expected YAML error")
	}
}

func TestNormalizeValueDates(t *testing.T) {
	fm, err := ParseFrontmatter("---\ndate: 2026-03-01\nat: 2026-03-01T10:30:00Z\n---\n")
	if err != nil {
		t.Fatalf("ParseFrontmatter() error = %v", err)
	}
	if got := fm.Fields["date"]; got != "2026-03-01" {
		t.Errorf("date = %v, want 2026-03-01", got)
	}
	if got := fm.Fields["at"]; got != "2026-03-01T10:30:00Z" {
		t.Errorf("at = %v, want 2026-03-01T10:30:00Z", got)
	}
}

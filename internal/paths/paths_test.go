package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeRelPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"notes/a.md", "notes/a.md"},
		{"./notes/a.md", "notes/a.md"},
		{"/notes/a.md", "notes/a.md"},
		{"notes//a.md", "notes/a.md"},
		{"././a.md", "a.md"},
	}
	for _, tc := range tests {
		if got := NormalizeRelPath(tc.in); got != tc.want {
			t.Fatalf("NormalizeRelPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEntryID(t *testing.T) {
	if got := EntryID("./notes/a.md"); got != "notes/a" {
		t.Fatalf("EntryID() = %q, want notes/a", got)
	}
}

func TestCandidateFilePaths(t *testing.T) {
	got := CandidateFilePaths("notes/a")
	if len(got) != 1 || got[0] != "notes/a.md" {
		t.Fatalf("CandidateFilePaths() = %v", got)
	}
	if got := CandidateFilePaths(""); got != nil {
		t.Fatalf("expected nil for empty ref, got %v", got)
	}
}

func TestValidateWithinKB(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "notes", "a.md")

	if err := ValidateWithinKB(root, inside); err != nil {
		t.Fatalf("expected inside path to validate, got %v", err)
	}
	if err := ValidateWithinKB(root, filepath.Join(root, "..", "elsewhere.md")); !errors.Is(err, ErrPathOutsideKB) {
		t.Fatalf("expected ErrPathOutsideKB, got %v", err)
	}
}

func TestResolveEntryPath(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "notes"), 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(root, "notes", "a.md")
	if err := os.WriteFile(file, []byte("# A\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("kb relative", func(t *testing.T) {
		_, rel, err := ResolveEntryPath(root, "notes/a.md")
		if err != nil {
			t.Fatalf("ResolveEntryPath() error = %v", err)
		}
		if rel != "notes/a.md" {
			t.Fatalf("rel = %q, want notes/a.md", rel)
		}
	})

	t.Run("absolute", func(t *testing.T) {
		_, rel, err := ResolveEntryPath(root, file)
		if err != nil {
			t.Fatalf("ResolveEntryPath() error = %v", err)
		}
		if rel != "notes/a.md" {
			t.Fatalf("rel = %q, want notes/a.md", rel)
		}
	})

	t.Run("outside", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "b.md")
		if _, _, err := ResolveEntryPath(root, outside); !errors.Is(err, ErrPathOutsideKB) {
			t.Fatalf("expected ErrPathOutsideKB, got %v", err)
		}
	})
}

func TestIsIgnoredDir(t *testing.T) {
	for _, name := range []string{".kb", ".git", "node_modules"} {
		if !IsIgnoredDir(name) {
			t.Errorf("expected %q to be ignored", name)
		}
	}
	if IsIgnoredDir("notes") {
		t.Error("notes should not be ignored")
	}
}

package index

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", `""`},
		{"golang", "golang"},
		{"go-modules", `"go-modules"`},
		{"foo AND bar", "foo AND bar"},
		{`"exact phrase" other`, `"exact phrase" other`},
		{"title:search", "title:search"},
		{"http://example.com", `"http://example.com"`},
		{"data*", "data*"},
		{"c++", `"c++"`},
		{"pre-fix*", `"pre-fix"*`},
		{"(a OR b)", "(a OR b)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := BuildFTSQuery(tt.in); got != tt.want {
				t.Fatalf("BuildFTSQuery(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSearchRanksAndSnippets(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	docs := map[string]string{
		"a.md": "---\ntitle: Bolt storage\ntags: [storage]\n---\nbbolt is an embedded key value store.\n",
		"b.md": "---\ntitle: Unrelated\n---\nNothing to see here.\n",
		"c.md": "---\ntitle: Hyphen test\n---\nThe go-modules guide.\n",
	}
	for p, c := range docs {
		if err := db.IndexEntry(ctx, mustParse(t, c, p)); err != nil {
			t.Fatal(err)
		}
	}

	res, err := db.Search(ctx, "embedded", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res) != 1 || res[0].FilePath != "a.md" || res[0].Title != "Bolt storage" || res[0].ID != "a" {
		t.Fatalf("Search(embedded) = %+v", res)
	}
	if res[0].Snippet == "" {
		t.Error("expected snippet")
	}

	res, err = db.Search(ctx, "storage", 10)
	if err != nil || len(res) != 1 {
		t.Fatalf("Search(tag) = %+v, %v", res, err)
	}

	res, err = db.Search(ctx, "go-modules", 10)
	if err != nil {
		t.Fatalf("Search(hyphen) error = %v", err)
	}
	if len(res) != 1 || res[0].FilePath != "c.md" {
		t.Errorf("Search(hyphen) = %+v", res)
	}

	res, err = db.Search(ctx, "", 10)
	if err != nil || len(res) != 0 {
		t.Errorf("Search(empty) = %+v, %v", res, err)
	}

	res, err = db.Search(ctx, "nonexistentword", 10)
	if err != nil {
		t.Fatalf("Search(no hits) error = %v", err)
	}
	if res == nil || len(res) != 0 {
		t.Errorf("Search(no hits) = %#v, want empty non-nil slice", res)
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.IndexEntry(ctx, mustParse(t, "---\ntitle: One\n---\nbody text\n", "one.md")); err != nil {
		t.Fatal(err)
	}

	for _, q := range []string{`"unbalanced`, "(", "AND", "*"} {
		t.Run(q, func(t *testing.T) {
			_, err := db.Search(ctx, q, 10)
			if !errors.Is(err, ErrInvalidQuery) {
				t.Fatalf("Search(%q) error = %v, want ErrInvalidQuery", q, err)
			}
			if strings.Contains(err.Error(), "SQL logic error") {
				t.Errorf("driver prefix leaked into %q", err.Error())
			}
		})
	}
}

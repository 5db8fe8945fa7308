package kbusage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndSummary(t *testing.T) {
	root := t.TempDir()
	tr, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Kind: KindSearch, Subject: "golang", Count: 3, At: base},
		{Kind: KindSearch, Subject: "golang", Count: 1, At: base.Add(time.Minute)},
		{Kind: KindSearch, Subject: "sqlite", Count: 0, At: base.Add(2 * time.Minute)},
		{Kind: KindIndex, Count: 12, At: base.Add(3 * time.Minute)},
	}
	for _, ev := range events {
		if err := tr.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	s, err := tr.Summary(ctx, 10)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if s.Totals[KindSearch] != 3 || s.Totals[KindIndex] != 1 {
		t.Errorf("Totals = %v", s.Totals)
	}
	if len(s.TopQueries) != 2 || s.TopQueries[0].Query != "golang" || s.TopQueries[0].Count != 2 {
		t.Errorf("TopQueries = %+v", s.TopQueries)
	}
	if s.LastActivity == nil || !s.LastActivity.Equal(base.Add(3*time.Minute)) {
		t.Errorf("LastActivity = %v", s.LastActivity)
	}

	if _, err := os.Stat(filepath.Join(root, ".kb", FileName)); err != nil {
		t.Errorf("usage database not created: %v", err)
	}
}

func TestSummaryEmpty(t *testing.T) {
	tr, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s, err := tr.Summary(context.Background(), 0)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(s.Totals) != 0 || s.LastActivity != nil {
		t.Errorf("Summary() = %+v, want empty", s)
	}
}

func TestRecordRequiresKind(t *testing.T) {
	tr, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := tr.Record(context.Background(), Event{}); err == nil {
		t.Fatal("expected error for event without kind")
	}
}

func TestNewFailsWhenDataDirBlocked(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".kb"), []byte("file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(root); err == nil {
		t.Fatal("expected error when .kb is a file")
	}
}

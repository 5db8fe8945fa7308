package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AssertFileExists fails the test if the file does not exist.
func (k *TestKB) AssertFileExists(relPath string) {
	k.t.Helper()
	if _, err := os.Stat(filepath.Join(k.Path, relPath)); os.IsNotExist(err) {
		k.t.Errorf("expected file to exist: %s", relPath)
	}
}

// AssertFileContains fails the test if the file does not contain the substring.
func (k *TestKB) AssertFileContains(relPath, substr string) {
	k.t.Helper()
	content := k.ReadFile(relPath)
	if !strings.Contains(content, substr) {
		k.t.Errorf("expected file %s to contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertSearchCount runs a search and verifies the number of results.
func (k *TestKB) AssertSearchCount(query string, expected int) {
	k.t.Helper()
	result := k.RunCLI("search", query)
	result.MustSucceed(k.t)

	if got := len(result.DataList("results")); got != expected {
		k.t.Errorf("search %q: expected %d results, got %d\nRaw: %s", query, expected, got, result.RawJSON)
	}
}

// AssertExitCode checks the process exit status.
func (r *CLIResult) AssertExitCode(t *testing.T, expected int) {
	t.Helper()
	if r.ExitCode != expected {
		t.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s", expected, r.ExitCode, r.RawJSON, r.Stderr)
	}
}

// AssertHasWarning checks that the result contains a warning with the given code.
func (r *CLIResult) AssertHasWarning(t *testing.T, code string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Code == code {
			return
		}
	}
	t.Errorf("expected warning with code %s, got warnings: %+v", code, r.Warnings)
}

// AssertNoWarnings checks that the result has no warnings.
func (r *CLIResult) AssertNoWarnings(t *testing.T) {
	t.Helper()
	if len(r.Warnings) > 0 {
		t.Errorf("expected no warnings, got: %+v", r.Warnings)
	}
}

// AssertResultCount checks that a list in Data has the expected length.
func (r *CLIResult) AssertResultCount(t *testing.T, key string, expected int) {
	t.Helper()
	if got := len(r.DataList(key)); got != expected {
		t.Errorf("expected %d %s, got %d\nRaw: %s", expected, key, got, r.RawJSON)
	}
}

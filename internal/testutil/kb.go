// Package testutil provides reusable test utilities for kb integration tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestKB represents a temporary knowledge base for testing.
type TestKB struct {
	Path string

	// ConfigPath is an isolated config.toml passed with --config, so tests
	// never read the developer's global configuration.
	ConfigPath string

	t      *testing.T
	config string
	files  map[string]string
	env    []string
}

// NewTestKB creates a new test KB builder.
// Call Build() to create the actual directory.
func NewTestKB(t *testing.T) *TestKB {
	t.Helper()
	return &TestKB{
		t:     t,
		files: make(map[string]string),
	}
}

// WithFile adds a file to the KB. The path is relative to the KB root.
func (k *TestKB) WithFile(path, content string) *TestKB {
	k.files[path] = content
	return k
}

// WithEntry adds a markdown entry with a title front-matter block.
func (k *TestKB) WithEntry(path, title, body string) *TestKB {
	return k.WithFile(path, "---\ntitle: "+title+"\n---\n"+body)
}

// WithKBYAML sets the kb.yaml content.
func (k *TestKB) WithKBYAML(yaml string) *TestKB {
	k.files["kb.yaml"] = yaml
	return k
}

// WithConfig sets the global config.toml content used by RunCLI.
func (k *TestKB) WithConfig(toml string) *TestKB {
	k.config = toml
	return k
}

// WithEnv adds KEY=VALUE pairs to the environment of RunCLI.
func (k *TestKB) WithEnv(kv ...string) *TestKB {
	k.env = append(k.env, kv...)
	return k
}

// Build creates the KB directory and all configured files.
func (k *TestKB) Build() *TestKB {
	k.t.Helper()

	k.Path = k.t.TempDir()
	for path, content := range k.files {
		k.WriteFile(path, content)
	}

	k.ConfigPath = filepath.Join(k.t.TempDir(), "config.toml")
	if err := os.WriteFile(k.ConfigPath, []byte(k.config), 0o644); err != nil {
		k.t.Fatalf("failed to write config: %v", err)
	}
	return k
}

// WriteFile writes a file into the KB, creating directories as needed.
func (k *TestKB) WriteFile(relPath, content string) {
	k.t.Helper()
	fullPath := filepath.Join(k.Path, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		k.t.Fatalf("failed to create directory for %s: %v", relPath, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		k.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}
}

// RemoveFile deletes a file from the KB.
func (k *TestKB) RemoveFile(relPath string) {
	k.t.Helper()
	if err := os.Remove(filepath.Join(k.Path, relPath)); err != nil {
		k.t.Fatalf("failed to remove %s: %v", relPath, err)
	}
}

// ReadFile reads a file from the KB.
func (k *TestKB) ReadFile(relPath string) string {
	k.t.Helper()
	content, err := os.ReadFile(filepath.Join(k.Path, relPath))
	if err != nil {
		k.t.Fatalf("failed to read file %s: %v", relPath, err)
	}
	return string(content)
}

// FileExists checks if a file exists in the KB.
func (k *TestKB) FileExists(relPath string) bool {
	_, err := os.Stat(filepath.Join(k.Path, relPath))
	return err == nil
}

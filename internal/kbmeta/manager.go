// Package kbmeta reads, walks and validates the entries of one knowledge base.
package kbmeta

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aidanlsb/kb/internal/config"
	"github.com/aidanlsb/kb/internal/entry"
	"github.com/aidanlsb/kb/internal/kbfs"
	"github.com/aidanlsb/kb/internal/paths"
)

// ErrKBNotFound indicates the KB root does not exist or is not a directory.
var ErrKBNotFound = errors.New("knowledge base not found")

// Manager is the metadata manager for a KB root.
type Manager struct {
	root string
	cfg  *config.KBConfig
}

// New binds a Manager to root. It fails when root is missing or kb.yaml is invalid.
func New(root string) (*Manager, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve kb root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrKBNotFound, absRoot)
	}

	cfg, err := config.LoadKBConfig(absRoot)
	if err != nil {
		return nil, err
	}
	return &Manager{root: absRoot, cfg: cfg}, nil
}

// Root returns the absolute KB root.
func (m *Manager) Root() string { return m.root }

// Config returns the per-KB configuration.
func (m *Manager) Config() *config.KBConfig { return m.cfg }

// Read reads and parses the entry at the KB-relative path relPath.
func (m *Manager) Read(relPath string) (*entry.Entry, error) {
	relPath = paths.NormalizeRelPath(relPath)
	abs := filepath.Join(m.root, filepath.FromSlash(relPath))
	if err := paths.ValidateWithinKB(m.root, abs); err != nil {
		return nil, err
	}
	e, _, err := kbfs.ReadEntry(abs, relPath)
	return e, err
}

// Walk calls fn for every entry in the KB. Per-file read or parse failures are
// passed to fn with a nil entry; fn decides whether to stop.
func (m *Manager) Walk(ctx context.Context, fn func(e *entry.Entry, err error) error) error {
	return kbfs.WalkEntries(ctx, m.root, func(r kbfs.WalkResult) error {
		if r.Error != nil {
			return fn(nil, fmt.Errorf("%s: %w", r.RelativePath, r.Error))
		}
		return fn(r.Entry, nil)
	})
}

// EntryPaths lists the KB-relative path of every entry.
func (m *Manager) EntryPaths(ctx context.Context) ([]string, error) {
	return kbfs.ListEntryPaths(ctx, m.root)
}

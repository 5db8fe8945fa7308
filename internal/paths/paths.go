// Package paths provides canonical helpers for converting between
// KB-relative entry paths (e.g. "notes/go-modules.md"), entry IDs
// (e.g. "notes/go-modules") and absolute filesystem paths.
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DataDir is the KB-local directory holding the index, usage log and change snapshots.
const DataDir = ".kb"

// ErrPathOutsideKB indicates that a path resolves outside the KB root.
var ErrPathOutsideKB = errors.New("path is outside the knowledge base")

// NormalizeRelPath normalizes a KB-relative path-like value:
// - converts OS separators to '/'
// - trims leading "./" and leading "/"
// - collapses repeated '/'
func NormalizeRelPath(p string) string {
	p = filepath.ToSlash(p)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	p = strings.TrimPrefix(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// EntryID converts a KB-relative file path to an entry ID by stripping ".md".
func EntryID(relPath string) string {
	return strings.TrimSuffix(NormalizeRelPath(relPath), ".md")
}

// CandidateFilePaths returns the KB-relative paths to try for a wiki-link target.
func CandidateFilePaths(ref string) []string {
	ref = strings.TrimSuffix(NormalizeRelPath(ref), ".md")
	if ref == "" {
		return nil
	}
	return []string{ref + ".md"}
}

// ValidateWithinKB returns ErrPathOutsideKB when target does not live under root.
// Symlinks are resolved when both paths exist.
func ValidateWithinKB(root, target string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve kb root: %w", err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	if resolved, err := filepath.EvalSymlinks(absTarget); err == nil {
		absTarget = resolved
	}

	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil {
		return ErrPathOutsideKB
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrPathOutsideKB
	}
	return nil
}

// ResolveEntryPath resolves a user-supplied entry path (absolute, relative to the
// working directory, or relative to the KB root) to an absolute path and a
// KB-relative slash path. The result must live inside root.
func ResolveEntryPath(root, p string) (abs string, rel string, err error) {
	if strings.TrimSpace(p) == "" {
		return "", "", fmt.Errorf("empty path")
	}

	candidates := []string{p}
	if !filepath.IsAbs(p) {
		candidates = []string{filepath.Join(root, p), p}
	}

	var lastErr error
	for _, c := range candidates {
		a, err := filepath.Abs(c)
		if err != nil {
			lastErr = err
			continue
		}
		if err := ValidateWithinKB(root, a); err != nil {
			lastErr = err
			continue
		}
		absRoot, _ := filepath.Abs(root)
		if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
			absRoot = resolved
		}
		resolvedA := a
		if r, err := filepath.EvalSymlinks(a); err == nil {
			resolvedA = r
		}
		r, err := filepath.Rel(absRoot, resolvedA)
		if err != nil {
			lastErr = err
			continue
		}
		return a, NormalizeRelPath(r), nil
	}
	if lastErr == nil {
		lastErr = ErrPathOutsideKB
	}
	return "", "", lastErr
}

// IsIgnoredDir reports whether a directory name is never part of a KB.
func IsIgnoredDir(name string) bool {
	switch name {
	case DataDir, ".git", ".trash", "node_modules":
		return true
	}
	return false
}

// Package kbfs walks the entry files of a knowledge base on disk.
package kbfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/aidanlsb/kb/internal/entry"
	"github.com/aidanlsb/kb/internal/paths"
)

// IgnoreFile holds gitignore-style patterns excluding paths from the KB.
const IgnoreFile = ".kbignore"

// WalkResult contains the result of reading one entry file.
type WalkResult struct {
	Path         string
	RelativePath string
	Entry        *entry.Entry
	FileMtime    int64 // Unix timestamp
	Error        error
}

// Matcher decides whether a KB-relative path is excluded.
type Matcher struct {
	matchers []*ignore.GitIgnore
}

// LoadMatcher compiles .kbignore and .gitignore at the KB root when present.
func LoadMatcher(root string) *Matcher {
	m := &Matcher{}
	for _, name := range []string{IgnoreFile, ".gitignore"} {
		gi, err := ignore.CompileIgnoreFile(filepath.Join(root, name))
		if err == nil {
			m.matchers = append(m.matchers, gi)
		}
	}
	return m
}

// Ignored reports whether relPath (slash separated) is excluded.
func (m *Matcher) Ignored(relPath string) bool {
	if m == nil {
		return false
	}
	for _, gi := range m.matchers {
		if gi.MatchesPath(relPath) {
			return true
		}
	}
	return false
}

// WalkEntries walks every entry under root and calls handler for each.
// It skips the .kb data directory and ignored paths, only processes .md files,
// and parses each entry. Per-file failures are reported through WalkResult.Error;
// returning an error from handler stops the walk.
func WalkEntries(ctx context.Context, root string, handler func(result WalkResult) error) error {
	matcher := LoadMatcher(root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		relPath, _ := filepath.Rel(root, path)
		relPath = filepath.ToSlash(relPath)

		if err != nil {
			if relPath == "." {
				return err
			}
			return handler(WalkResult{Path: path, RelativePath: relPath, Error: err})
		}

		if d.IsDir() {
			if relPath == "." {
				return nil
			}
			if paths.IsIgnoredDir(d.Name()) || matcher.Ignored(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !entry.IsEntryPath(path) || matcher.Ignored(relPath) {
			return nil
		}

		if err := paths.ValidateWithinKB(root, path); err != nil {
			if errors.Is(err, paths.ErrPathOutsideKB) {
				return nil
			}
			return handler(WalkResult{Path: path, RelativePath: relPath, Error: err})
		}

		e, mtime, err := ReadEntry(path, relPath)
		if err != nil {
			return handler(WalkResult{Path: path, RelativePath: relPath, Error: err})
		}

		return handler(WalkResult{
			Path:         path,
			RelativePath: relPath,
			Entry:        e,
			FileMtime:    mtime,
		})
	})
}

// ReadEntry reads and parses one entry file.
func ReadEntry(absPath, relPath string) (*entry.Entry, int64, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%s is a directory", relPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, 0, err
	}

	e, err := entry.Parse(string(content), relPath)
	if err != nil {
		return nil, 0, err
	}
	e.Mtime = info.ModTime().Unix()
	return e, e.Mtime, nil
}

// ListEntryPaths returns the KB-relative paths of every entry without parsing them.
func ListEntryPaths(ctx context.Context, root string) ([]string, error) {
	matcher := LoadMatcher(root)
	var out []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil //nolint:nilerr
		}
		relPath, _ := filepath.Rel(root, path)
		relPath = filepath.ToSlash(relPath)
		if d.IsDir() {
			if relPath != "." && (paths.IsIgnoredDir(d.Name()) || matcher.Ignored(relPath+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsEntryPath(path) && !matcher.Ignored(relPath) && !strings.HasPrefix(relPath, "../") {
			out = append(out, relPath)
		}
		return nil
	})
	return out, err
}

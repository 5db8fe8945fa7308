// Package kbchanges fingerprints KB entries and compares them against
// snapshots stored per scope in a bbolt database at .kb/changes.db.
//
// Each call opens the database with a lock timeout and closes it before
// returning, so no handle outlives a command.
package kbchanges

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/aidanlsb/kb/internal/paths"
)

// FileName is the snapshot database file inside the KB data directory.
const FileName = "changes.db"

// Snapshot scopes.
const (
	ScopeIndex = "index"
	ScopeSync  = "sync"
)

// ErrLocked indicates another process holds the snapshot database.
var ErrLocked = errors.New("change snapshot database is locked")

const lockTimeout = 2 * time.Second

// ChangeSet is the difference between the working tree and a scope snapshot.
type ChangeSet struct {
	Scope     string   `json:"scope"`
	Added     []string `json:"added"`
	Modified  []string `json:"modified"`
	Deleted   []string `json:"deleted"`
	Unchanged []string `json:"-"`

	// Hashes holds the current fingerprint of every present path that was examined.
	Hashes map[string]string `json:"-"`
}

// Pending returns the number of paths that differ from the snapshot.
func (cs *ChangeSet) Pending() int {
	if cs == nil {
		return 0
	}
	return len(cs.Added) + len(cs.Modified) + len(cs.Deleted)
}

// Changed returns added and modified paths.
func (cs *ChangeSet) Changed() []string {
	out := make([]string, 0, len(cs.Added)+len(cs.Modified))
	out = append(out, cs.Added...)
	out = append(out, cs.Modified...)
	sort.Strings(out)
	return out
}

// Detector is the change detector for one KB.
type Detector struct {
	root   string
	dbPath string
}

// New binds a Detector for root. It fails when the snapshot database cannot be opened.
func New(root string) (*Detector, error) {
	dir := filepath.Join(root, paths.DataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", paths.DataDir, err)
	}
	d := &Detector{root: root, dbPath: filepath.Join(dir, FileName)}

	db, err := d.open(false)
	if err != nil {
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Detector) open(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(d.dbPath, 0o644, &bolt.Options{Timeout: lockTimeout, ReadOnly: readOnly})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to open change snapshots: %w", err)
	}
	return db, nil
}

// Fingerprint returns the hex SHA-256 of the file at relPath.
func (d *Detector) Fingerprint(relPath string) (string, error) {
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(relPath)))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// snapshot loads the stored fingerprints of scope.
func (d *Detector) snapshot(scope string) (map[string]string, error) {
	db, err := d.open(true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	stored := make(map[string]string)
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			stored[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s snapshot: %w", scope, err)
	}
	return stored, nil
}

// Detect compares relPaths against the scope snapshot. A snapshot path that is
// not in relPaths is reported deleted only when it no longer exists on disk.
func (d *Detector) Detect(ctx context.Context, scope string, relPaths []string) (*ChangeSet, error) {
	stored, err := d.snapshot(scope)
	if err != nil {
		return nil, err
	}

	cs := &ChangeSet{Scope: scope, Hashes: make(map[string]string, len(relPaths))}
	seen := make(map[string]struct{}, len(relPaths))

	for _, rel := range relPaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel = paths.NormalizeRelPath(rel)
		if _, dup := seen[rel]; dup {
			continue
		}
		seen[rel] = struct{}{}

		sum, err := d.Fingerprint(rel)
		if errors.Is(err, os.ErrNotExist) {
			if _, ok := stored[rel]; ok {
				cs.Deleted = append(cs.Deleted, rel)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint %s: %w", rel, err)
		}
		cs.Hashes[rel] = sum

		prev, ok := stored[rel]
		switch {
		case !ok:
			cs.Added = append(cs.Added, rel)
		case prev != sum:
			cs.Modified = append(cs.Modified, rel)
		default:
			cs.Unchanged = append(cs.Unchanged, rel)
		}
	}

	for rel := range stored {
		if _, ok := seen[rel]; ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(d.root, filepath.FromSlash(rel))); errors.Is(err, os.ErrNotExist) {
			cs.Deleted = append(cs.Deleted, rel)
		}
	}

	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)
	sort.Strings(cs.Unchanged)
	return cs, nil
}

// Changed reports whether relPath differs from its scope snapshot.
func (d *Detector) Changed(ctx context.Context, scope, relPath string) (bool, error) {
	cs, err := d.Detect(ctx, scope, []string{relPath})
	if err != nil {
		return false, err
	}
	rel := paths.NormalizeRelPath(relPath)
	for _, p := range cs.Added {
		if p == rel {
			return true, nil
		}
	}
	for _, p := range cs.Modified {
		if p == rel {
			return true, nil
		}
	}
	for _, p := range cs.Deleted {
		if p == rel {
			return true, nil
		}
	}
	return false, nil
}

// Pending counts the paths in relPaths (plus vanished snapshot paths) that differ
// from the scope snapshot.
func (d *Detector) Pending(ctx context.Context, scope string, relPaths []string) (int, error) {
	cs, err := d.Detect(ctx, scope, relPaths)
	if err != nil {
		return 0, err
	}
	return cs.Pending(), nil
}

// Commit stores the fingerprints in cs into the scope snapshot and drops the
// deleted paths. Paths not mentioned in cs are left untouched.
func (d *Detector) Commit(ctx context.Context, scope string, cs *ChangeSet) error {
	if cs == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	db, err := d.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(scope))
		if err != nil {
			return err
		}
		for rel, sum := range cs.Hashes {
			if err := b.Put([]byte(rel), []byte(sum)); err != nil {
				return err
			}
		}
		for _, rel := range cs.Deleted {
			if err := b.Delete([]byte(rel)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit %s snapshot: %w", scope, err)
	}
	return nil
}

// Reset drops the scope snapshot entirely.
func (d *Detector) Reset(ctx context.Context, scope string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := d.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(scope)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(scope))
	})
}

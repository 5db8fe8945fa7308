// Package capability binds the optional collaborators (metadata manager,
// usage tracker, change detector) once at startup.
//
// Binding is fail-soft: a binder that returns an error or panics leaves its
// slot empty and records the cause. Handlers that need an empty slot fail with
// an *UnavailableError; everything else keeps working.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aidanlsb/kb/internal/entry"
	"github.com/aidanlsb/kb/internal/kbchanges"
	"github.com/aidanlsb/kb/internal/kbmeta"
	"github.com/aidanlsb/kb/internal/kbusage"
)

// Name identifies a capability.
type Name string

const (
	Metadata Name = "metadata"
	Usage    Name = "usage"
	Changes  Name = "changes"
)

// All lists every capability in reporting order.
var All = []Name{Metadata, Usage, Changes}

// ErrDisabled is returned by binders for capabilities turned off in config.
var ErrDisabled = errors.New("disabled in configuration")

// MetadataManager reads, walks and validates KB entries.
type MetadataManager interface {
	Root() string
	Read(relPath string) (*entry.Entry, error)
	EntryPaths(ctx context.Context) ([]string, error)
	Walk(ctx context.Context, fn func(e *entry.Entry, err error) error) error
	Validate(e *entry.Entry) []kbmeta.Issue
}

// UsageTracker records and summarizes command activity.
type UsageTracker interface {
	Record(ctx context.Context, ev kbusage.Event) error
	Summary(ctx context.Context, limit int) (*kbusage.Summary, error)
}

// ChangeDetector fingerprints entries and compares them to stored snapshots.
type ChangeDetector interface {
	Detect(ctx context.Context, scope string, relPaths []string) (*kbchanges.ChangeSet, error)
	Changed(ctx context.Context, scope, relPath string) (bool, error)
	Commit(ctx context.Context, scope string, cs *kbchanges.ChangeSet) error
	Pending(ctx context.Context, scope string, relPaths []string) (int, error)
}

// Binders construct each collaborator. A nil binder means "not installed".
type Binders struct {
	Metadata func(ctx context.Context) (MetadataManager, error)
	Usage    func(ctx context.Context) (UsageTracker, error)
	Changes  func(ctx context.Context) (ChangeDetector, error)
}

// Set is the capability record. It is populated once by Bind and has no setters.
type Set struct {
	metadata MetadataManager
	usage    UsageTracker
	changes  ChangeDetector
	causes   map[Name]error
}

// ErrNotInstalled is the cause recorded for a slot with no binder.
var ErrNotInstalled = errors.New("not installed")

// Bind runs every binder once and records the outcome. It never fails.
func Bind(ctx context.Context, b Binders) *Set {
	s := &Set{causes: make(map[Name]error)}

	var err error
	s.metadata, err = bindOne(ctx, Metadata, b.Metadata)
	s.record(Metadata, err)
	s.usage, err = bindOne(ctx, Usage, b.Usage)
	s.record(Usage, err)
	s.changes, err = bindOne(ctx, Changes, b.Changes)
	s.record(Changes, err)

	return s
}

// Empty returns a Set with every capability unavailable.
func Empty() *Set {
	return Bind(context.Background(), Binders{})
}

func (s *Set) record(name Name, err error) {
	if err == nil {
		return
	}
	s.causes[name] = err
	slog.Debug("capability unavailable", "capability", string(name), "error", err)
}

// bindOne invokes fn, converting a panic or a nil handle into an error.
func bindOne[T comparable](ctx context.Context, name Name, fn func(context.Context) (T, error)) (handle T, err error) {
	var zero T
	if fn == nil {
		return zero, ErrNotInstalled
	}

	defer func() {
		if r := recover(); r != nil {
			handle = zero
			err = fmt.Errorf("binding %s panicked: %v", name, r)
		}
	}()

	h, err := fn(ctx)
	if err != nil {
		return zero, err
	}
	if h == zero {
		return zero, fmt.Errorf("binding %s returned no handle", name)
	}
	return h, nil
}

// MetadataManager returns the bound metadata manager, or nil.
func (s *Set) MetadataManager() MetadataManager { return s.metadata }

// UsageTracker returns the bound usage tracker, or nil.
func (s *Set) UsageTracker() UsageTracker { return s.usage }

// ChangeDetector returns the bound change detector, or nil.
func (s *Set) ChangeDetector() ChangeDetector { return s.changes }

// Available reports whether the named capability is bound.
func (s *Set) Available(name Name) bool {
	switch name {
	case Metadata:
		return s.metadata != nil
	case Usage:
		return s.usage != nil
	case Changes:
		return s.changes != nil
	}
	return false
}

// Cause returns why a capability is unavailable (nil when bound).
func (s *Set) Cause(name Name) error {
	if s.Available(name) {
		return nil
	}
	if err, ok := s.causes[name]; ok {
		return err
	}
	return ErrNotInstalled
}

// Require returns an *UnavailableError for the first missing capability.
func (s *Set) Require(names ...Name) error {
	for _, name := range names {
		if !s.Available(name) {
			return &UnavailableError{Name: name, Cause: s.Cause(name)}
		}
	}
	return nil
}

// Status describes one capability slot.
type Status struct {
	Name      Name   `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Status reports every slot in All order.
func (s *Set) Status() []Status {
	out := make([]Status, 0, len(All))
	for _, name := range All {
		st := Status{Name: name, Available: s.Available(name)}
		if !st.Available {
			st.Reason = s.Cause(name).Error()
		}
		out = append(out, st)
	}
	return out
}

// UnavailableError reports that a handler needs a capability that is not bound.
type UnavailableError struct {
	Name  Name
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("feature unavailable: %s", e.Name)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

package kbmeta

import (
	"path"
	"strings"

	goslug "github.com/gosimple/slug"

	"github.com/aidanlsb/kb/internal/paths"
)

// Resolver resolves wiki-link targets to entry IDs.
type Resolver struct {
	ids      map[string]struct{}
	shortMap map[string][]string
	slugMap  map[string]string
}

// NewResolver indexes the given entry IDs.
func NewResolver(ids []string) *Resolver {
	r := &Resolver{
		ids:      make(map[string]struct{}, len(ids)),
		shortMap: make(map[string][]string),
		slugMap:  make(map[string]string),
	}
	for _, id := range ids {
		r.ids[id] = struct{}{}
		short := path.Base(id)
		r.shortMap[short] = append(r.shortMap[short], id)
		r.slugMap[PathSlug(id)] = id
	}
	return r
}

// Resolve returns the ID target refers to. ok is false when the target is
// unknown or matches more than one entry by short name.
func (r *Resolver) Resolve(target string) (id string, ok bool) {
	ref := paths.EntryID(strings.TrimSpace(target))
	if ref == "" {
		return "", false
	}
	if _, found := r.ids[ref]; found {
		return ref, true
	}
	if !strings.Contains(ref, "/") {
		if matches := r.shortMap[ref]; len(matches) == 1 {
			return matches[0], true
		} else if len(matches) > 1 {
			return "", false
		}
	}
	if id, found := r.slugMap[PathSlug(ref)]; found {
		return id, true
	}
	if !strings.Contains(ref, "/") {
		slugged := PathSlug(ref)
		var hit string
		for id := range r.ids {
			if PathSlug(path.Base(id)) == slugged {
				if hit != "" {
					return "", false
				}
				hit = id
			}
		}
		if hit != "" {
			return hit, true
		}
	}
	return "", false
}

// PathSlug slugifies each "/"-separated component of an entry ID.
func PathSlug(id string) string {
	parts := strings.Split(strings.TrimSuffix(id, ".md"), "/")
	for i, part := range parts {
		s := goslug.Make(part)
		if s == "" {
			s = strings.ToLower(strings.ReplaceAll(part, " ", "-"))
		}
		parts[i] = s
	}
	return strings.Join(parts, "/")
}

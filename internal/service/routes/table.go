package routes

import (
	"sort"
	"strings"
	"sync"
)

// Classification describes how a request path is treated by the gateway.
type Classification string

const (
	// Public paths are forwarded without credential checks.
	Public Classification = "public"
	// Protected paths require a validated bearer token.
	Protected Classification = "protected"
)

// Table is a thread-safe route authorization table. Every path is protected
// unless it is registered as public, either by exact match or by prefix.
type Table struct {
	mu       sync.RWMutex
	exact    map[string]struct{}
	prefixes []string
}

// Snapshot is a point-in-time copy of the table contents, sorted for stable
// presentation.
type Snapshot struct {
	PublicExact    []string `json:"public_exact"`
	PublicPrefixes []string `json:"public_prefixes"`
}

// NewTable creates a table pre-populated with the given public entries.
// Empty and unnormalized entries are cleaned up the same way the mutation
// methods do.
func NewTable(exact, prefixes []string) *Table {
	t := &Table{
		exact: make(map[string]struct{}, len(exact)),
	}
	for _, p := range exact {
		t.AddExact(p)
	}
	for _, p := range prefixes {
		t.AddPrefix(p)
	}
	return t
}

// Classify returns the classification for a request path.
func (t *Table) Classify(path string) Classification {
	if t.IsPublic(path) {
		return Public
	}
	return Protected
}

// IsPublic reports whether path is registered as public.
func (t *Table) IsPublic(path string) bool {
	path = normalizePath(path)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.exact[path]; ok {
		return true
	}
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsProtected reports whether path requires authentication.
func (t *Table) IsProtected(path string) bool {
	return !t.IsPublic(path)
}

// AddExact registers a path as public by exact match.
func (t *Table) AddExact(path string) {
	path = normalizePath(path)
	if path == "" {
		return
	}

	t.mu.Lock()
	t.exact[path] = struct{}{}
	t.mu.Unlock()
}

// AddPrefix registers a path prefix as public.
func (t *Table) AddPrefix(prefix string) {
	prefix = normalizePath(prefix)
	if prefix == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, existing := range t.prefixes {
		if existing == prefix {
			return
		}
	}
	t.prefixes = append(t.prefixes, prefix)
}

// RemoveExact unregisters an exact public path. Returns true if the entry
// existed.
func (t *Table) RemoveExact(path string) bool {
	path = normalizePath(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.exact[path]; !ok {
		return false
	}
	delete(t.exact, path)
	return true
}

// RemovePrefix unregisters a public prefix. Returns true if the entry existed.
func (t *Table) RemovePrefix(prefix string) bool {
	prefix = normalizePath(prefix)

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, existing := range t.prefixes {
		if existing == prefix {
			t.prefixes = append(t.prefixes[:i], t.prefixes[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the entire table contents atomically. Used by file reloads so
// a partially applied update is never observable.
func (t *Table) Replace(exact, prefixes []string) {
	newExact := make(map[string]struct{}, len(exact))
	for _, p := range exact {
		if p = normalizePath(p); p != "" {
			newExact[p] = struct{}{}
		}
	}
	newPrefixes := make([]string, 0, len(prefixes))
	seen := make(map[string]struct{}, len(prefixes))
	for _, p := range prefixes {
		p = normalizePath(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		newPrefixes = append(newPrefixes, p)
	}

	t.mu.Lock()
	t.exact = newExact
	t.prefixes = newPrefixes
	t.mu.Unlock()
}

// Snapshot returns a sorted copy of the current table contents.
func (t *Table) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		PublicExact:    make([]string, 0, len(t.exact)),
		PublicPrefixes: make([]string, len(t.prefixes)),
	}
	for p := range t.exact {
		snap.PublicExact = append(snap.PublicExact, p)
	}
	copy(snap.PublicPrefixes, t.prefixes)

	sort.Strings(snap.PublicExact)
	sort.Strings(snap.PublicPrefixes)
	return snap
}

// normalizePath trims whitespace and ensures a leading slash. Trailing
// slashes are kept: "/docs/" as a prefix intentionally differs from "/docs".
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

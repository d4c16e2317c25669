// Package directory maps conversation keys to display names and categories.
package directory

import (
	"strings"
	"sync"
)

// DefaultCategory is used when no entry assigns one.
const DefaultCategory = "user"

// Entry is what a directory knows about a correspondent.
type Entry struct {
	DisplayName string
	Category    string
}

// Directory looks up conversation keys. Implementations must be safe for
// concurrent use.
type Directory interface {
	Lookup(key string) (Entry, bool)
}

// Revisioned is implemented by directories that change over time. The
// revision increases on every change.
type Revisioned interface {
	Revision() uint64
}

// Revision returns d's revision, or 0 for directories that never change.
func Revision(d Directory) uint64 {
	if r, ok := d.(Revisioned); ok {
		return r.Revision()
	}
	return 0
}

// Static is an in-memory directory that can be replaced wholesale.
type Static struct {
	mu      sync.RWMutex
	entries map[string]Entry
	rev     uint64
	notify  []func()
}

// NewStatic creates a directory holding a copy of entries.
func NewStatic(entries map[string]Entry) *Static {
	s := &Static{}
	s.Replace(entries)
	return s
}

// Lookup implements Directory. Entries with a blank name are ignored.
func (s *Static) Lookup(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || strings.TrimSpace(e.DisplayName) == "" {
		return Entry{}, false
	}
	return e, true
}

// Replace swaps the whole mapping and bumps the revision.
func (s *Static) Replace(entries map[string]Entry) {
	cp := make(map[string]Entry, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	s.mu.Lock()
	s.entries = cp
	s.rev++
	notify := s.notify
	s.mu.Unlock()
	for _, fn := range notify {
		fn()
	}
}

// OnChange registers fn to run after every Replace, on the caller's
// goroutine.
func (s *Static) OnChange(fn func()) {
	s.mu.Lock()
	s.notify = append(s.notify, fn)
	s.mu.Unlock()
}

// Len returns the number of entries.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Revision implements Revisioned.
func (s *Static) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Chain consults each directory in order and returns the first hit.
type Chain []Directory

// Lookup implements Directory.
func (c Chain) Lookup(key string) (Entry, bool) {
	for _, d := range c {
		if d == nil {
			continue
		}
		if e, ok := d.Lookup(key); ok {
			return e, true
		}
	}
	return Entry{}, false
}

// Revision sums the revisions of the chained directories.
func (c Chain) Revision() uint64 {
	var sum uint64
	for _, d := range c {
		if d != nil {
			sum += Revision(d)
		}
	}
	return sum
}

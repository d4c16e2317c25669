// Package reconcile holds the in-memory message set that bulk fetches, push
// events and optimistic writes are merged into.
//
// A Store is not safe for concurrent use. The engine owns it and applies
// every mutation from a single goroutine.
package reconcile

import (
	"reflect"
	"slices"
	"strings"

	"github.com/matheus3301/wachat/internal/identity"
	"github.com/matheus3301/wachat/internal/message"
)

type entry struct {
	msg      message.Message
	inFlight bool
	seq      uint64
}

// Store is the deduplicated message set, kept in arrival order.
type Store struct {
	byID    map[string]*entry
	order   []*entry // sorted by seq
	nextSeq uint64
	version uint64
}

// MergeResult counts what a Merge did with each record.
type MergeResult struct {
	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
}

// Changed reports whether the merge mutated the store.
func (r MergeResult) Changed() bool {
	return r.Inserted > 0 || r.Updated > 0
}

// Removed is an entry taken out of the store, kept so it can be put back
// exactly as it was.
type Removed struct {
	Message  message.Message
	InFlight bool
	seq      uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{byID: make(map[string]*entry)}
}

// Merge folds records from src into the store. New keys are appended.
// Existing keys are replaced by bulk and push values, keeping their
// conversation key, arrival position and in-flight mark; local values never
// replace an existing entry. Records with neither an identifier nor a
// conversation key are skipped.
func (s *Store) Merge(src message.Source, recs []message.Record) MergeResult {
	var res MergeResult
	for _, rec := range recs {
		if rec.ConversationKey() == "" && !identity.Explicit(rec) {
			res.Skipped++
			continue
		}
		key := identity.Key(rec)
		if strings.TrimSpace(key) == "" {
			res.Skipped++
			continue
		}
		incoming := message.FromRecord(rec, key, src)

		cur, ok := s.byID[key]
		if !ok {
			s.insert(incoming, false, s.allocSeq())
			res.Inserted++
			continue
		}
		if src == message.SourceLocal {
			res.Unchanged++
			continue
		}
		incoming.ConversationKey = cur.msg.ConversationKey
		if sameContent(cur.msg, incoming) {
			res.Unchanged++
			continue
		}
		cur.msg = incoming
		res.Updated++
	}
	if res.Changed() {
		s.version++
	}
	return res
}

// InsertLocal adds an optimistic entry and marks it in-flight. It returns
// false and leaves the store alone if the key is already present.
func (s *Store) InsertLocal(m message.Message) bool {
	if m.ID == "" {
		return false
	}
	if _, ok := s.byID[m.ID]; ok {
		return false
	}
	m = m.Clone()
	m.Source = message.SourceLocal
	s.insert(m, true, s.allocSeq())
	s.version++
	return true
}

// Confirm clears the in-flight mark of id.
func (s *Store) Confirm(id string) bool {
	e, ok := s.byID[id]
	if !ok || !e.inFlight {
		return false
	}
	e.inFlight = false
	s.version++
	return true
}

// UpdateStatus sets the status of id in place. An absent id is a no-op and
// returns false.
func (s *Store) UpdateStatus(id string, st message.Status) bool {
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	if e.msg.Status != st {
		e.msg.Status = st
		s.version++
	}
	return true
}

// Remove deletes id and returns the removed entry for a later Restore.
func (s *Store) Remove(id string) (Removed, bool) {
	e, ok := s.byID[id]
	if !ok {
		return Removed{}, false
	}
	delete(s.byID, id)
	if i, found := s.position(e.seq); found {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.version++
	return Removed{Message: e.msg.Clone(), InFlight: e.inFlight, seq: e.seq}, true
}

// Restore puts a removed entry back at its original arrival position. It
// is a no-op if the key was populated again in the meantime.
func (s *Store) Restore(r Removed) bool {
	if r.Message.ID == "" {
		return false
	}
	if _, ok := s.byID[r.Message.ID]; ok {
		return false
	}
	s.insert(r.Message.Clone(), r.InFlight, r.seq)
	s.version++
	return true
}

// Snapshot returns deep copies of all messages in arrival order.
func (s *Store) Snapshot() []message.Message {
	out := make([]message.Message, len(s.order))
	for i, e := range s.order {
		out[i] = e.msg.Clone()
	}
	return out
}

// Get returns a copy of the message stored under id.
func (s *Store) Get(id string) (message.Message, bool) {
	e, ok := s.byID[id]
	if !ok {
		return message.Message{}, false
	}
	return e.msg.Clone(), true
}

// InFlight reports whether id is an unconfirmed optimistic entry.
func (s *Store) InFlight(id string) bool {
	e, ok := s.byID[id]
	return ok && e.inFlight
}

// Len returns the number of stored messages.
func (s *Store) Len() int { return len(s.order) }

// Version increases on every mutation.
func (s *Store) Version() uint64 { return s.version }

func (s *Store) allocSeq() uint64 {
	s.nextSeq++
	return s.nextSeq
}

func (s *Store) insert(m message.Message, inFlight bool, seq uint64) {
	e := &entry{msg: m, inFlight: inFlight, seq: seq}
	s.byID[m.ID] = e
	i, _ := s.position(seq)
	s.order = slices.Insert(s.order, i, e)
}

func (s *Store) position(seq uint64) (int, bool) {
	return slices.BinarySearchFunc(s.order, seq, func(e *entry, seq uint64) int {
		switch {
		case e.seq < seq:
			return -1
		case e.seq > seq:
			return 1
		}
		return 0
	})
}

// sameContent compares two values of one entry ignoring where they came from.
func sameContent(a, b message.Message) bool {
	a.Source, b.Source = "", ""
	return reflect.DeepEqual(a, b)
}

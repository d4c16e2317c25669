// Package projection groups the flat message set into conversations for
// presentation.
package projection

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wachat/internal/directory"
	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/timestamp"
)

// PreviewRunes is the length of the chat-list preview.
const PreviewRunes = 40

// Conversation is one correspondent and its messages in chronological order.
type Conversation struct {
	Key          string
	DisplayName  string
	Category     string
	Messages     []message.Message
	LastActivity timestamp.Millis
	Preview      string
}

// Last returns the most recent message.
func (c Conversation) Last() (message.Message, bool) {
	if len(c.Messages) == 0 {
		return message.Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Project groups msgs by conversation key. Messages are sorted ascending by
// timestamp with unknown timestamps treated as now; ties keep input order.
// Conversations are ordered most recently active first, then by key.
func Project(msgs []message.Message, dir directory.Directory, now time.Time) []Conversation {
	nowMs := timestamp.FromTime(now)
	groups := make(map[string][]message.Message)
	var keys []string
	for _, m := range msgs {
		if m.ConversationKey == "" {
			continue
		}
		if _, ok := groups[m.ConversationKey]; !ok {
			keys = append(keys, m.ConversationKey)
		}
		groups[m.ConversationKey] = append(groups[m.ConversationKey], m)
	}

	out := make([]Conversation, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		slices.SortStableFunc(g, func(a, b message.Message) int {
			return cmp.Compare(a.Timestamp.Or(nowMs), b.Timestamp.Or(nowMs))
		})
		last := g[len(g)-1]
		name, category := displayName(key, g, dir)
		out = append(out, Conversation{
			Key:          key,
			DisplayName:  name,
			Category:     category,
			Messages:     g,
			LastActivity: last.Timestamp.Or(nowMs),
			Preview:      message.Preview(last, PreviewRunes),
		})
	}

	slices.SortFunc(out, func(a, b Conversation) int {
		if c := cmp.Compare(b.LastActivity, a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

func displayName(key string, msgs []message.Message, dir directory.Directory) (string, string) {
	category := directory.DefaultCategory
	if dir != nil {
		if e, ok := dir.Lookup(key); ok {
			if e.Category != "" {
				category = e.Category
			}
			return e.DisplayName, category
		}
	}
	for _, m := range msgs {
		if m.SenderDisplayName != "" {
			return m.SenderDisplayName, category
		}
	}
	return "User (" + key + ")", category
}

// Projector caches the projection of a store until the store or the
// directory changes or Invalidate is called. Messages with an unknown
// timestamp are placed at the clock reading of the last recompute, not of
// each View. It is safe for concurrent use, but the store must only be
// passed from the goroutine that owns it.
type Projector struct {
	dir   directory.Directory
	clock func() time.Time

	mu      sync.Mutex
	valid   bool
	version uint64
	rev     uint64
	cached  []Conversation
}

// NewProjector creates a projector reading names from dir. A nil clock
// means time.Now.
func NewProjector(dir directory.Directory, clock func() time.Time) *Projector {
	if clock == nil {
		clock = time.Now
	}
	return &Projector{dir: dir, clock: clock}
}

// View returns the projection of s, recomputing it only when needed. The
// result is shared between callers and must not be modified.
func (p *Projector) View(s *reconcile.Store) []Conversation {
	rev := directory.Revision(p.dir)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.valid && p.version == s.Version() && p.rev == rev {
		return p.cached
	}
	p.cached = Project(s.Snapshot(), p.dir, p.clock())
	p.version = s.Version()
	p.rev = rev
	p.valid = true
	return p.cached
}

// Invalidate drops the cached projection.
func (p *Projector) Invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}

// Find returns the conversation with key from convs.
func Find(convs []Conversation, key string) (Conversation, bool) {
	for _, c := range convs {
		if c.Key == key {
			return c, true
		}
	}
	return Conversation{}, false
}

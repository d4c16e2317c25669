package optimistic

import (
	"context"
	"sync"
)

// Kind is the user action being applied.
type Kind string

const (
	KindSend   Kind = "send"
	KindDelete Kind = "delete"
)

// Phase is where an action is in its lifecycle. Sends start Pending and
// deletes start Applied; both end Confirmed, RolledBack or Discarded.
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseApplied    Phase = "applied"
	PhaseConfirmed  Phase = "confirmed"
	PhaseRolledBack Phase = "rolled_back"
	// PhaseDiscarded means the write completed after teardown and nothing
	// was applied.
	PhaseDiscarded Phase = "discarded"
)

// Terminal reports whether p is a final phase.
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseRolledBack || p == PhaseDiscarded
}

// Action tracks one optimistic send or delete.
type Action struct {
	ID              string
	ConversationKey string
	Kind            Kind

	mu    sync.Mutex
	phase Phase
	err   error
	done  chan struct{}
}

func newAction(kind Kind, id, key string, phase Phase) *Action {
	return &Action{ID: id, ConversationKey: key, Kind: kind, phase: phase, done: make(chan struct{})}
}

// Phase returns the current phase.
func (a *Action) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Err returns the write error once the action is rolled back.
func (a *Action) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Done is closed when the action reaches a terminal phase.
func (a *Action) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the action finishes or ctx is done, and returns the
// write error if the action was rolled back.
func (a *Action) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Action) finish(p Phase, err error) {
	a.mu.Lock()
	a.phase = p
	a.err = err
	a.mu.Unlock()
	close(a.done)
}

// Package model holds the state the TUI renders, fed from the engine's
// projection.
package model

import (
	"context"
	"strings"
	"sync"

	"github.com/matheus3301/wachat/internal/projection"
	"github.com/matheus3301/wachat/internal/status"
)

// Source provides the projection and the client state.
type Source interface {
	View(ctx context.Context) ([]projection.Conversation, error)
	Status() status.State
}

// ViewModel caches the latest projection for the UI goroutine.
type ViewModel struct {
	mu sync.RWMutex

	src       Source
	convs     []projection.Conversation
	activeKey string
	state     status.State
}

// NewViewModel creates a view model over src.
func NewViewModel(src Source) *ViewModel {
	return &ViewModel{src: src, state: src.Status()}
}

// Refresh reloads the projection and the client state.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	convs, err := vm.src.View(ctx)
	if err != nil {
		return err
	}
	st := vm.src.Status()
	vm.mu.Lock()
	vm.convs = convs
	vm.state = st
	vm.mu.Unlock()
	return nil
}

// Conversations returns the cached projection.
func (vm *ViewModel) Conversations() []projection.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.convs
}

// Counts returns the number of conversations and messages.
func (vm *ViewModel) Counts() (convs, msgs int) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.convs {
		msgs += len(c.Messages)
	}
	return len(vm.convs), msgs
}

// Open makes key the active conversation.
func (vm *ViewModel) Open(key string) {
	vm.mu.Lock()
	vm.activeKey = key
	vm.mu.Unlock()
}

// Close clears the active conversation.
func (vm *ViewModel) Close() {
	vm.Open("")
}

// Active returns the active conversation. A key with no messages yet, as
// after :new, yields an empty conversation named by its key.
func (vm *ViewModel) Active() (projection.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.activeKey == "" {
		return projection.Conversation{}, false
	}
	if c, ok := projection.Find(vm.convs, vm.activeKey); ok {
		return c, true
	}
	return projection.Conversation{Key: vm.activeKey, DisplayName: vm.activeKey}, true
}

// Resolve finds a conversation by exact key, then by display name, then
// by a unique partial name match.
func (vm *ViewModel) Resolve(query string) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	for _, c := range vm.convs {
		if c.Key == query {
			return c.Key, true
		}
	}
	for _, c := range vm.convs {
		if strings.EqualFold(c.DisplayName, query) {
			return c.Key, true
		}
	}
	q := strings.ToLower(query)
	found := ""
	for _, c := range vm.convs {
		if strings.Contains(strings.ToLower(c.DisplayName), q) {
			if found != "" {
				return "", false
			}
			found = c.Key
		}
	}
	return found, found != ""
}

// SetStatus records a state change seen on the bus.
func (vm *ViewModel) SetStatus(s status.State) {
	vm.mu.Lock()
	vm.state = s
	vm.mu.Unlock()
}

// Status returns the last known client state.
func (vm *ViewModel) Status() status.State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.state
}

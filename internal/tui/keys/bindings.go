// Package keys maps key events to actions per page.
package keys

import (
	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/wachat/internal/tui/ui"
)

// Action is one key binding.
type Action struct {
	Key     tcell.Key
	Rune    rune
	Label   string // shown in the menu; empty hides the binding
	Handler func()
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Hint returns the menu entry for the action.
func (a *Action) Hint() ui.MenuHint {
	key := string(a.Rune)
	if a.Key != tcell.KeyRune {
		key = tcell.KeyNames[a.Key]
	}
	return ui.MenuHint{Key: key, Description: a.Label}
}

// Registry holds bindings in registration order, global and per page.
type Registry struct {
	global []*Action
	pages  map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Action)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(a *Action) {
	r.global = append(r.global, a)
}

// AddPage registers a binding for one page.
func (r *Registry) AddPage(page string, a *Action) {
	r.pages[page] = append(r.pages[page], a)
}

// Hints returns the visible bindings of page followed by the global ones.
func (r *Registry) Hints(page string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, set := range [][]*Action{r.pages[page], r.global} {
		for _, a := range set {
			if a.Label != "" {
				hints = append(hints, a.Hint())
			}
		}
	}
	return hints
}

// HandleEvent runs the first binding matching ev, page bindings first.
// It reports whether one matched.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, set := range [][]*Action{r.pages[page], r.global} {
		for _, a := range set {
			if a.Matches(ev) {
				a.Handler()
				return true
			}
		}
	}
	return false
}

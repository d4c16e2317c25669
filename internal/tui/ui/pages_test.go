package ui

import (
	"slices"
	"testing"

	"github.com/rivo/tview"
)

type stubComponent string

func (s stubComponent) Name() string      { return string(s) }
func (s stubComponent) Hints() []MenuHint { return nil }

func TestPagesStack(t *testing.T) {
	p := NewPages()
	p.Register("list", stubComponent("Conversations"), tview.NewBox())
	p.Register("thread", stubComponent("Ravi"), tview.NewBox())
	p.Register("help", stubComponent("Help"), tview.NewBox())

	var crumbs []string
	var top Component
	p.SetOnChange(func(c Component, cr []string) { top, crumbs = c, cr })

	p.Reset("list")
	p.Push("thread")
	p.Push("thread")
	p.Push("help")
	if p.Depth() != 3 {
		t.Fatalf("Depth() = %d, want 3", p.Depth())
	}
	if !slices.Equal(crumbs, []string{"Conversations", "Ravi", "Help"}) {
		t.Errorf("crumbs = %v", crumbs)
	}
	if top.Name() != "Help" {
		t.Errorf("top = %q", top.Name())
	}

	if got := p.Pop(); got != "help" {
		t.Errorf("Pop() = %q", got)
	}
	if p.Current() != "thread" {
		t.Errorf("Current() = %q", p.Current())
	}
	p.Pop()
	if got := p.Pop(); got != "" {
		t.Errorf("popping the root returned %q", got)
	}
	if p.Current() != "list" {
		t.Errorf("root lost: %q", p.Current())
	}
}

package ui

import "github.com/rivo/tview"

// Pages is a stack of registered components on top of tview.Pages.
type Pages struct {
	*tview.Pages
	comps    map[string]Component
	stack    []string
	onChange func(top Component, crumbs []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages: tview.NewPages(),
		comps: make(map[string]Component),
	}
}

// Register adds a hidden page.
func (p *Pages) Register(id string, c Component, prim tview.Primitive) {
	p.comps[id] = c
	p.AddPage(id, prim, true, false)
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(top Component, crumbs []string)) {
	p.onChange = fn
}

// Push shows id on top of the stack. Pushing the current page again only
// refreshes the crumbs.
func (p *Pages) Push(id string) {
	if p.Current() == id {
		p.Refresh()
		return
	}
	if cur := p.Current(); cur != "" {
		p.HidePage(cur)
	}
	p.stack = append(p.stack, id)
	p.ShowPage(id)
	p.SendToFront(id)
	p.notify()
}

// Pop removes the top page unless it is the last one. It returns the
// popped id or "".
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	cur := p.stack[len(p.stack)-1]
	p.ShowPage(cur)
	p.SendToFront(cur)
	p.notify()
	return top
}

// Reset clears the stack down to id.
func (p *Pages) Reset(id string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{id}
	p.ShowPage(id)
	p.SendToFront(id)
	p.notify()
}

// Current returns the id of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Depth returns the current stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

// Crumbs returns the display names along the stack.
func (p *Pages) Crumbs() []string {
	out := make([]string, 0, len(p.stack))
	for _, id := range p.stack {
		if c, ok := p.comps[id]; ok {
			out = append(out, c.Name())
		} else {
			out = append(out, id)
		}
	}
	return out
}

// Refresh re-reads the component names, which may change with the data.
func (p *Pages) Refresh() {
	p.notify()
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.comps[p.Current()], p.Crumbs())
	}
}

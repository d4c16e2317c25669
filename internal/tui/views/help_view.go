package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/wachat/internal/tui/ui"
)

// HelpView displays the key and command reference.
type HelpView struct {
	*tview.TextView
}

type helpEntry struct{ key, what string }

var helpSections = []struct {
	title   string
	entries []helpEntry
}{
	{"Global", []helpEntry{
		{":", "Command mode"},
		{"/", "Filter conversations"},
		{"?", "This help"},
		{"Esc", "Back / cancel"},
		{"q", "Back, quit from the list"},
		{"Ctrl-C", "Quit"},
	}},
	{"Conversations", []helpEntry{
		{"Enter", "Open conversation"},
		{"1-9", "Open the nth conversation"},
		{"r", "Refetch all messages"},
	}},
	{"Thread", []helpEntry{
		{"i", "Focus composer, Enter sends"},
		{"j / k", "Select next / previous message"},
		{"x", "Delete selected message"},
		{"d", "Conversation details"},
	}},
	{"Commands", []helpEntry{
		{":chat <name|number>", "Open a conversation"},
		{":new <number>", "Start a conversation"},
		{":resync", "Refetch all messages"},
		{":help, :h", "This help"},
		{":quit, :q", "Quit"},
	}},
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	kc := ui.Tag(theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, e := range s.entries {
			fmt.Fprintf(&b, "  [%s]%-22s[-] %s\n", kc, tview.Escape(e.key), e.what)
		}
	}
	_, _ = fmt.Fprint(tv, b.String())
	return &HelpView{TextView: tv}
}

// Name implements ui.Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements ui.Component.
func (hv *HelpView) Hints() []ui.MenuHint { return nil }

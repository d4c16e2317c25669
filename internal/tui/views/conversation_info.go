package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/wachat/internal/projection"
	"github.com/matheus3301/wachat/internal/tui/ui"
)

// ConversationInfo displays details about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
	name  string
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{TextView: tv, theme: theme}
}

// Name implements ui.Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements ui.Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint { return nil }

// Update renders conv.
func (ci *ConversationInfo) Update(conv projection.Conversation, now time.Time) {
	ci.Clear()
	fg := ui.Tag(ci.theme.FgColor)
	ct := ui.Tag(ci.theme.CounterColor)

	lastActive := "-"
	if conv.LastActivity.Known() {
		lastActive = conv.LastActivity.Time().In(now.Location()).Format("02/01/2006 15:04")
	}
	preview := conv.Preview
	if preview == "" {
		preview = "-"
	}

	_, _ = fmt.Fprintf(ci,
		"\n [%s::b]Name:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]Number:[-:-:-]       [%s]%s[-]\n"+
			" [%s::b]Category:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]Messages:[-:-:-]     [%s]%d[-]\n"+
			" [%s::b]Last Active:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]Last Message:[-:-:-] [%s]%s[-]",
		fg, ct, display(conv.DisplayName),
		fg, ct, display(conv.Key),
		fg, ct, display(conv.Category),
		fg, ct, len(conv.Messages),
		fg, ct, lastActive,
		fg, ct, display(preview),
	)
	ci.SetTitle(fmt.Sprintf(" %s ", display(conv.DisplayName)))
}

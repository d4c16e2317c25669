package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/projection"
	"github.com/matheus3301/wachat/internal/tui/ui"
)

// ConversationList is the chat list page.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []projection.Conversation
	visible []projection.Conversation
	filter  string
	now     func() time.Time
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{Table: table, theme: theme, now: time.Now}
}

// Name implements ui.Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Hints implements ui.Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "1-9", Description: "Jump"},
	}
}

// Update replaces the conversations, keeping the selected one selected.
func (cl *ConversationList) Update(convs []projection.Conversation) {
	selected := cl.SelectedKey()
	cl.convs = convs
	cl.render()
	cl.SelectKey(selected)
}

// SetFilter narrows the list to conversations matching text.
func (cl *ConversationList) SetFilter(text string) {
	cl.filter = strings.TrimSpace(text)
	cl.render()
	cl.ScrollToBeginning()
	if len(cl.visible) > 0 {
		cl.Table.Select(1, 0)
	}
}

// Filter returns the active filter.
func (cl *ConversationList) Filter() string { return cl.filter }

// Matches reports whether c passes filter. Name, key and preview are
// searched case-insensitively.
func Matches(c projection.Conversation, filter string) bool {
	if filter == "" {
		return true
	}
	f := strings.ToLower(filter)
	for _, s := range []string{c.DisplayName, c.Key, c.Preview} {
		if strings.Contains(strings.ToLower(s), f) {
			return true
		}
	}
	return false
}

func (cl *ConversationList) render() {
	cl.Clear()
	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" TYPE", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.visible = cl.visible[:0]
	now := cl.now()
	for _, c := range cl.convs {
		if !Matches(c, cl.filter) {
			continue
		}
		cl.visible = append(cl.visible, c)
		row := len(cl.visible)

		name := fmt.Sprintf(" [%s]%-2s[-] %s", ui.Tag(cl.theme.CounterColor), message.Initials(c.DisplayName), display(c.DisplayName))
		cl.SetCell(row, 0, tview.NewTableCell(name).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+display(c.Preview)).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(ListTime(c.LastActivity, now)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(" "+strings.ToUpper(c.Category)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) /%s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// SelectKey moves the cursor to the conversation with key, if visible.
func (cl *ConversationList) SelectKey(key string) {
	for i, c := range cl.visible {
		if c.Key == key {
			cl.Table.Select(i+1, 0)
			return
		}
	}
}

// SelectedKey returns the key of the conversation under the cursor.
func (cl *ConversationList) SelectedKey() string {
	row, _ := cl.GetSelection()
	return cl.KeyByIndex(row)
}

// KeyByIndex returns the key of the nth visible conversation (1-based).
func (cl *ConversationList) KeyByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].Key
}

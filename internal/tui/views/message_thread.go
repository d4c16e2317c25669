package views

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/projection"
	"github.com/matheus3301/wachat/internal/tui/ui"
)

// MessageThread displays one conversation and the composer.
type MessageThread struct {
	*tview.Flex
	theme      *ui.Theme
	messages   *tview.TextView
	composer   *tview.InputField
	platformID string
	loc        *time.Location

	conv     projection.Conversation
	cursor   int
	cursorID string
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view. Messages sent from
// platformID are shown as the user's own.
func NewMessageThread(theme *ui.Theme, platformID string) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0).
		SetPlaceholder("Type a message")
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:       flex,
		theme:      theme,
		messages:   messages,
		composer:   composer,
		platformID: platformID,
		loc:        time.Local,
		cursor:     -1,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		if text := composer.GetText(); strings.TrimSpace(text) != "" {
			mt.onSend(text)
			composer.SetText("")
		}
	})

	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string {
	if mt.conv.DisplayName != "" {
		return mt.conv.DisplayName
	}
	return "Messages"
}

// Hints implements ui.Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "j/k", Description: "Select"},
	}
}

// SetOnSend sets the callback when a message is submitted.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Key returns the conversation key on display.
func (mt *MessageThread) Key() string {
	return mt.conv.Key
}

// Open shows conv with the newest message selected.
func (mt *MessageThread) Open(conv projection.Conversation) {
	mt.conv = conv
	mt.cursorID = ""
	mt.cursor = len(conv.Messages) - 1
	mt.render()
	mt.messages.ScrollToEnd()
}

// Update redraws conv keeping the selected message when it still exists.
func (mt *MessageThread) Update(conv projection.Conversation) {
	atEnd := mt.cursor >= len(mt.conv.Messages)-1
	mt.conv = conv
	mt.cursor = -1
	for i, m := range conv.Messages {
		if m.ID == mt.cursorID {
			mt.cursor = i
			break
		}
	}
	if mt.cursor < 0 || atEnd {
		mt.cursor = len(conv.Messages) - 1
	}
	mt.render()
	if atEnd {
		mt.messages.ScrollToEnd()
	}
}

// Move shifts the selection by delta messages.
func (mt *MessageThread) Move(delta int) {
	next := mt.cursor + delta
	if next < 0 || next >= len(mt.conv.Messages) {
		return
	}
	mt.cursor = next
	mt.highlight()
}

// Selected returns the selected message.
func (mt *MessageThread) Selected() (message.Message, bool) {
	if mt.cursor < 0 || mt.cursor >= len(mt.conv.Messages) {
		return message.Message{}, false
	}
	return mt.conv.Messages[mt.cursor], true
}

func (mt *MessageThread) render() {
	mt.messages.Clear()
	mt.messages.SetTitle(fmt.Sprintf(" %s · %s ", display(mt.conv.DisplayName), display(mt.conv.Key)))

	sep := ui.Tag(mt.theme.SeparatorColor)
	lastDay := ""
	for i, m := range mt.conv.Messages {
		if day := DayLabel(m.Timestamp, mt.loc); day != "" && day != lastDay {
			_, _ = fmt.Fprintf(mt.messages, "[%s]──── %s ────[-]\n", sep, day)
			lastDay = day
		}
		_, _ = fmt.Fprintf(mt.messages, "[\"m%d\"]%s[\"\"]\n\n", i, mt.line(m))
	}
	if len(mt.conv.Messages) == 0 {
		_, _ = fmt.Fprintf(mt.messages, "[%s]No messages yet. Press i to write one.[-]", sep)
	}
	mt.highlight()
}

func (mt *MessageThread) line(m message.Message) string {
	sender := m.SenderDisplayName
	if sender == "" {
		sender = mt.conv.DisplayName
	}
	color := mt.theme.OtherSenderColor
	mark := ""
	if m.IsOwn(mt.platformID) {
		sender = "You"
		color = mt.theme.OwnSenderColor
		mark = " " + StatusGlyph(m.Status, mt.theme)
	}

	body := m.Body
	switch m.ContentType {
	case message.TypeImage, message.TypeVideo, message.TypeDocument:
		body = message.Preview(m, 0)
	}
	return fmt.Sprintf("[%s::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s",
		ui.Tag(color), display(sender), Clock(m.Timestamp, mt.loc), mark, display(body))
}

func (mt *MessageThread) highlight() {
	if mt.cursor < 0 {
		mt.cursorID = ""
		mt.messages.Highlight()
		return
	}
	mt.cursorID = mt.conv.Messages[mt.cursor].ID
	mt.messages.Highlight("m" + strconv.Itoa(mt.cursor))
	mt.messages.ScrollToHighlight()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

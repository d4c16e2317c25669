package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// FlashMessage is a flash notification with a level and expiry.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel keeps the unexpired notifications, newest last.
type FlashModel struct {
	mu    sync.Mutex
	now   func() time.Time
	queue []FlashMessage
}

// NewFlashModel creates a flash model on the wall clock.
func NewFlashModel() *FlashModel {
	return &FlashModel{now: time.Now}
}

// Info shows an info-level message.
func (f *FlashModel) Info(msg string) {
	f.set(msg, FlashInfo, 4*time.Second)
}

// Warn shows a warn-level message.
func (f *FlashModel) Warn(msg string) {
	f.set(msg, FlashWarn, 8*time.Second)
}

// Err shows an error-level message.
func (f *FlashModel) Err(msg string) {
	f.set(msg, FlashErr, 10*time.Second)
}

func (f *FlashModel) set(msg string, level FlashLevel, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked()
	f.queue = append(f.queue, FlashMessage{Text: msg, Level: level, Expires: f.now().Add(d)})
}

func (f *FlashModel) pruneLocked() {
	now := f.now()
	kept := f.queue[:0]
	for _, m := range f.queue {
		if now.Before(m.Expires) {
			kept = append(kept, m)
		}
	}
	f.queue = kept
}

// Current returns the newest live message and how many older ones are
// still live. ok is false when nothing is showing.
func (f *FlashModel) Current() (msg FlashMessage, older int, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked()
	if len(f.queue) == 0 {
		return FlashMessage{}, 0, false
	}
	return f.queue[len(f.queue)-1], len(f.queue) - 1, true
}

// FlashBar displays the current flash message.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update renders the model's current message.
func (fb *FlashBar) Update(f *FlashModel) {
	fb.Clear()
	msg, older, ok := f.Current()
	if !ok {
		return
	}
	color := fb.theme.FlashInfoColor
	switch msg.Level {
	case FlashWarn:
		color = fb.theme.FlashWarnColor
	case FlashErr:
		color = fb.theme.FlashErrColor
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", Tag(color), tview.Escape(msg.Text))
	if older > 0 {
		_, _ = fmt.Fprintf(fb, " [%s](+%d)[-]", Tag(fb.theme.FgColor), older)
	}
}

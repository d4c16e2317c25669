package views

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rivo/tview"

	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/timestamp"
	"github.com/matheus3301/wachat/internal/tui/ui"
)

// ListTime renders a chat-list time: the clock for today, else the date.
func ListTime(ts timestamp.Millis, now time.Time) string {
	if !ts.Known() {
		return ""
	}
	t := ts.Time().In(now.Location())
	if sameDay(t, now) {
		return t.Format("15:04")
	}
	return t.Format("Jan 2")
}

// Clock renders a message time.
func Clock(ts timestamp.Millis, loc *time.Location) string {
	if !ts.Known() {
		return ""
	}
	return ts.Time().In(loc).Format("15:04")
}

// DayLabel renders a thread date separator.
func DayLabel(ts timestamp.Millis, loc *time.Location) string {
	if !ts.Known() {
		return ""
	}
	return ts.Time().In(loc).Format("02/01/2006")
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// StatusGlyph renders the delivery mark of an own message.
func StatusGlyph(st message.Status, theme *ui.Theme) string {
	switch st {
	case message.StatusRead:
		return fmt.Sprintf("[%s]✓✓[-]", ui.Tag(theme.ReadTickColor))
	case message.StatusDelivered:
		return fmt.Sprintf("[%s]✓✓[-]", ui.Tag(theme.TickColor))
	case message.StatusSent:
		return fmt.Sprintf("[%s]✓[-]", ui.Tag(theme.TickColor))
	default:
		return fmt.Sprintf("[%s]…[-]", ui.Tag(theme.InFlightColor))
	}
}

// display makes s safe for a dynamic-color text view. Emoji modifiers and
// joiners that tcell renders at the wrong width are dropped.
func display(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r >= 0x1F3FB && r <= 0x1F3FF, // skin tones
			r == 0x200D,                  // zero width joiner
			r >= 0xFE00 && r <= 0xFE0F,   // variation selectors
			r >= 0xE0100 && r <= 0xE01EF: // variation selectors supplement
			continue
		}
		b.WriteRune(r)
	}
	return tview.Escape(b.String())
}

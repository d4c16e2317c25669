package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/wachat/internal/status"
)

// SessionData is what the header shows about the running client.
type SessionData struct {
	Session       string
	Platform      string
	Status        status.State
	Conversations int
	Messages      int
	Uptime        time.Duration
}

// SessionInfo renders SessionData in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates the header panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)
	return &SessionInfo{TextView: tv, theme: theme}
}

// Update renders d.
func (si *SessionInfo) Update(d SessionData) {
	si.Clear()
	fg := Tag(si.theme.FgColor)
	ct := Tag(si.theme.CounterColor)
	st := Tag(si.StatusColor(d.Status))

	platform := d.Platform
	if platform == "" {
		platform = "-"
	}
	_, _ = fmt.Fprintf(si,
		"[%s::b]Session:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Number:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Status:[-:-:-]  [%s::b]%s[-:-:-]\n"+
			"[%s::b]Chats:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Msgs:[-:-:-]    [%s]%d[-]\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fg, ct, tview.Escape(d.Session),
		fg, ct, tview.Escape(platform),
		fg, st, d.Status,
		fg, ct, d.Conversations,
		fg, ct, d.Messages,
		fg, ct, FormatUptime(d.Uptime),
	)
}

// StatusColor maps a client state to its header color.
func (si *SessionInfo) StatusColor(s status.State) tcell.Color {
	switch s {
	case status.Live:
		return si.theme.LiveColor
	case status.Degraded, status.Stopped:
		return si.theme.DegradedColor
	default:
		return si.theme.WaitingColor
	}
}

// FormatUptime renders d as 1h5m or 12m.
func FormatUptime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/timestamp"
	"github.com/matheus3301/wachat/internal/tui/ui"
)

func TestListTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ts   timestamp.Millis
		want string
	}{
		{"today", timestamp.FromTime(time.Date(2024, 3, 10, 9, 5, 0, 0, time.UTC)), "09:05"},
		{"earlier", timestamp.FromTime(time.Date(2024, 2, 7, 9, 5, 0, 0, time.UTC)), "Feb 7"},
		{"unknown", timestamp.Unknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ListTime(tt.ts, now); got != tt.want {
				t.Errorf("ListTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDayLabelAndClock(t *testing.T) {
	ts := timestamp.FromTime(time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC))
	if got := DayLabel(ts, time.UTC); got != "05/01/2024" {
		t.Errorf("DayLabel() = %q", got)
	}
	if got := Clock(ts, time.UTC); got != "14:30" {
		t.Errorf("Clock() = %q", got)
	}
}

func TestStatusGlyph(t *testing.T) {
	theme := ui.DefaultTheme()
	tests := []struct {
		st   message.Status
		mark string
	}{
		{message.StatusRead, "✓✓"},
		{message.StatusDelivered, "✓✓"},
		{message.StatusSent, "✓"},
		{message.StatusPending, "…"},
		{"", "…"},
	}
	for _, tt := range tests {
		got := StatusGlyph(tt.st, theme)
		if !strings.Contains(got, tt.mark) {
			t.Errorf("StatusGlyph(%q) = %q, want %q", tt.st, got, tt.mark)
		}
	}
	if StatusGlyph(message.StatusRead, theme) == StatusGlyph(message.StatusDelivered, theme) {
		t.Error("read and delivered render the same")
	}
}

func TestDisplay(t *testing.T) {
	if got := display("👍🏻 [red]"); got != "👍 [red[]" {
		t.Errorf("display() = %q", got)
	}
}

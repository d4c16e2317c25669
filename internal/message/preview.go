package message

import "strings"

// Preview renders the chat-list summary of a message. Media messages get a
// placeholder; text is cut to max runes.
func Preview(m Message, max int) string {
	var text string
	switch m.ContentType {
	case TypeImage:
		text = "📷 Photo"
	case TypeVideo:
		text = "🎥 Video"
	case TypeDocument:
		text = "📄 Document"
	default:
		text = strings.TrimSpace(m.Body)
	}
	if max <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return text
}

// Initials returns up to two leading letters of a display name.
func Initials(name string) string {
	var b strings.Builder
	n := 0
	for _, f := range strings.Fields(name) {
		r := []rune(f)
		b.WriteRune(r[0])
		n++
		if n == 2 {
			break
		}
	}
	return b.String()
}

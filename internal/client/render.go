package client

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/roomwager/internal/protocol"
)

var (
	TimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	SenderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	DealerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Italic(true)

	PresenceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Italic(true)

	RedCardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	MediaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4"))
)

// Render formats an event as one terminal line
func Render(ev protocol.Event) string {
	var b strings.Builder
	if !ev.Time.IsZero() {
		b.WriteString(TimeStyle.Render(ev.Time.Local().Format("15:04:05")))
		b.WriteByte(' ')
	}

	switch ev.Kind {
	case protocol.KindPresence:
		b.WriteString(PresenceStyle.Render("* " + ev.Content))
		return b.String()
	case protocol.KindNotice:
		b.WriteString(DealerStyle.Render(ev.Sender + " (to you)"))
		b.WriteString(": ")
		b.WriteString(NoticeStyle.Render(ev.Content))
		return b.String()
	case protocol.KindBroadcast:
		b.WriteString(DealerStyle.Render(ev.Sender))
	default:
		b.WriteString(SenderStyle.Render(ev.Sender))
	}
	b.WriteString(": ")
	b.WriteString(colorSuits(ev.Content))
	if ev.Media != "" {
		b.WriteByte(' ')
		b.WriteString(MediaStyle.Render("[" + ev.Media + "]"))
	}
	return b.String()
}

// colorSuits highlights red suit symbols
func colorSuits(s string) string {
	if !strings.ContainsAny(s, "♥♦") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == '♥' || r == '♦' {
			b.WriteString(RedCardStyle.Render(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

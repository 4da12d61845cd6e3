package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/go-go-golems/chatbot/pkg/chat"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	emptyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	thinkingStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("246"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("118"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// newMarkdown returns a glamour renderer matching the terminal background.
func newMarkdown(width int) (*glamour.TermRenderer, error) {
	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(style)}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	return glamour.NewTermRenderer(opts...)
}

// renderConversation renders the text parts of every message, in order. md may be
// nil, in which case assistant text is shown as typed.
func renderConversation(snap chat.Snapshot, width int, md *glamour.TermRenderer) string {
	if snap.Empty() {
		return emptyStyle.Render("👋 Hello!\nStart a conversation now.")
	}
	wrap := lipgloss.NewStyle()
	if width > 0 {
		wrap = wrap.Width(width)
	}
	var b strings.Builder
	for i, m := range snap.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		if m.Role == chat.RoleUser {
			b.WriteString(userLabel.Render("You"))
		} else {
			b.WriteString(assistantLabel.Render("Assistant"))
		}
		b.WriteString("\n")
		text := m.Text()
		if md != nil && m.Role == chat.RoleAssistant {
			if out, err := md.Render(text); err == nil {
				b.WriteString(strings.Trim(out, "\n"))
				b.WriteString("\n")
				continue
			}
		}
		b.WriteString(wrap.Render(text))
		b.WriteString("\n")
	}
	return b.String()
}

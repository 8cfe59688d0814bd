package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#4ade80")
	colorMuted  = lipgloss.Color("#6b7280")
	colorWarn   = lipgloss.Color("#facc15")
	colorError  = lipgloss.Color("#f87171")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	unreadStyle   = lipgloss.NewStyle().Bold(true)
	readStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	cursorStyle   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError)
	headerDivider = lipgloss.NewStyle().Foreground(colorMuted)
)

// stateStyle colours the connection badge in the header.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "open":
		return lipgloss.NewStyle().Foreground(colorAccent)
	case "connecting":
		return lipgloss.NewStyle().Foreground(colorWarn)
	default:
		return lipgloss.NewStyle().Foreground(colorError)
	}
}

// categoryBadge renders a short tag for the notification category.
func categoryBadge(category string) string {
	if category == "" {
		return ""
	}

	return mutedStyle.Render("[" + category + "]")
}

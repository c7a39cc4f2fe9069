package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Help overlay styles
var (
	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Background(ColorSurfaceBg).
			Padding(1, 2)

	helpTitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			MarginBottom(1)
)

// renderHelpOverlay renders a centered help box with every key binding.
func (m Model) renderHelpOverlay() string {
	lines := []string{
		helpTitleStyle.Render("Keyboard Shortcuts"),
		m.help.FullHelpView(keys.FullHelp()),
		"",
		MutedStyle.Render("Press ? or esc to close"),
	}

	w, h := m.size()
	return lipgloss.Place(
		w,
		h,
		lipgloss.Center,
		lipgloss.Center,
		helpBoxStyle.Render(strings.Join(lines, "\n")),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(ColorDarkBg),
	)
}

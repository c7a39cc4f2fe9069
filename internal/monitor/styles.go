package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/sbctool/sbctool/internal/telemetry"
)

// Dashboard color palette - Electric Synthwave
const (
	ColorDarkBg    = lipgloss.Color("#0A0A0F") // Deep void
	ColorSurfaceBg = lipgloss.Color("#12121A") // Dark surface
	ColorBorder    = lipgloss.Color("#2A2A4A") // Glass border (purple tint)

	ColorHealthy  = lipgloss.Color("#39FF14") // Neon green
	ColorWarning  = lipgloss.Color("#FFAA00") // Electric amber
	ColorCritical = lipgloss.Color("#FF0055") // Hot red-pink
	ColorDebug    = lipgloss.Color("#4D7CFF") // Electric blue

	ColorTextPrimary   = lipgloss.Color("#FFFFFF") // Pure white
	ColorTextSecondary = lipgloss.Color("#B4B4D0") // Lavender gray
	ColorTextMuted     = lipgloss.Color("#6B6B8D") // Purple-gray

	ColorAccent    = lipgloss.Color("#FF2E97") // Neon pink
	ColorAccentDim = lipgloss.Color("#BF40FF") // Neon purple
	ColorCyan      = lipgloss.Color("#00FFFF") // Neon cyan
)

// Base styles for the dashboard
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary)

	// Chip is the one highlighted field
	ChipStyle = lipgloss.NewStyle().
			Foreground(ColorHealthy).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	EmptyStyle = lipgloss.NewStyle().
			Foreground(ColorCritical)
)

// LevelColor returns the color for a log level.
func LevelColor(level telemetry.Level) lipgloss.Color {
	switch level {
	case telemetry.LevelError:
		return ColorCritical
	case telemetry.LevelWarn:
		return ColorWarning
	case telemetry.LevelInfo:
		return ColorHealthy
	case telemetry.LevelDebug:
		return ColorDebug
	default:
		return ColorTextPrimary
	}
}

// LevelStyle returns the bold style for a log level tag.
func LevelStyle(level telemetry.Level) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(LevelColor(level)).Bold(true)
}

// SectionHeader renders a section header with the title on the left and value on the right.
// Format: ╭─ Title ────────────────────────────────────── Value ╮
func SectionHeader(title, value string, width int) string {
	if width < 10 {
		width = 10
	}

	// Left: "╭─ " + title + " ", right: " " + value + " ╮"
	leftWidth := 3 + lipgloss.Width(title) + 1
	rightWidth := 1 + lipgloss.Width(value) + 2

	fillWidth := width - leftWidth - rightWidth
	if fillWidth < 1 {
		fillWidth = 1
	}
	middle := strings.Repeat("─", fillWidth)

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	valueStyle := lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)

	return borderStyle.Render("╭─ ") +
		TitleStyle.Render(title) +
		borderStyle.Render(" "+middle+" ") +
		valueStyle.Render(value) +
		borderStyle.Render(" ╮")
}

// SectionFooter renders the bottom border of a section.
// Format: ╰────────────────────────────────────────────────────╯
func SectionFooter(width int) string {
	if width < 2 {
		width = 2
	}
	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	return borderStyle.Render("╰" + strings.Repeat("─", width-2) + "╯")
}

// SectionContentLine renders a content line with left and right borders, padded
// or truncated to width.
// Format: │ content                                              │
func SectionContentLine(content string, width int) string {
	if width < 4 {
		width = 4
	}

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)

	innerWidth := width - 4
	if lipgloss.Width(content) > innerWidth {
		content = ansi.Truncate(content, innerWidth, "…")
	}
	padding := innerWidth - lipgloss.Width(content)
	if padding < 0 {
		padding = 0
	}

	return borderStyle.Render("│") + " " + content + strings.Repeat(" ", padding) + " " + borderStyle.Render("│")
}

// Sanitize strips terminal control sequences and flattens whitespace in text
// that came from the remote board.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
	return s
}

package ui

import "github.com/charmbracelet/lipgloss"

// Semantic colors for status indication. ANSI codes keep the output readable
// on any terminal palette.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// GradientColors cycle through the spinner frames.
var GradientColors = []lipgloss.Color{
	"#FF2E97", // Neon pink
	"#BF40FF", // Neon purple
	"#00FFFF", // Neon cyan
	"#39FF14", // Neon green
}

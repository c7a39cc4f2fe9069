package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/sbctool/sbctool/internal/telemetry"
)

// Size assumed before the first WindowSizeMsg arrives.
const (
	defaultWidth  = 100
	defaultHeight = 30
)

// labelWidth aligns the values of the system info pane.
const labelWidth = 14

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	infoWidth, logWidth, bodyHeight := m.paneSizes()
	if m.sideBySide() {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderInfoPane(infoWidth, bodyHeight),
			m.renderLogPane(logWidth, bodyHeight),
		))
	} else {
		info := m.renderInfoPane(infoWidth, 0)
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left,
			info,
			m.renderLogPane(logWidth, bodyHeight-lipgloss.Height(info)),
		))
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) size() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

func (m Model) sideBySide() bool {
	w, _ := m.size()
	return w >= BreakpointSideBySide
}

// paneSizes splits the terminal between the two panes. Header and footer
// take one line each.
func (m Model) paneSizes() (infoWidth, logWidth, bodyHeight int) {
	w, h := m.size()
	bodyHeight = max(h-2, HeightMinimal)
	if !m.sideBySide() {
		return w, w, bodyHeight
	}
	infoWidth = w / 2
	return infoWidth, w - infoWidth, bodyHeight
}

// renderHeader renders the title bar with the target and data freshness.
func (m Model) renderHeader() string {
	title := TitleStyle.Render("sbctool")

	target := m.target
	if target == "" {
		target = "auto"
	}

	stats := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(fmt.Sprintf(" | %s | %d log entries | last update %s",
			Sanitize(target), m.state.Logs().Len(), m.lastUpdateText()))

	w, _ := m.size()
	return HeaderStyle.Render(ansi.Truncate(title+stats, w-2, "…"))
}

// lastUpdateText renders how long ago the state last changed.
func (m Model) lastUpdateText() string {
	updated := m.state.UpdatedAt()
	if updated.IsZero() {
		return "never"
	}
	now := m.lastTick
	if now.IsZero() {
		now = m.now()
	}
	switch secs := int(now.Sub(updated) / time.Second); {
	case secs <= 0:
		return "just now"
	case secs == 1:
		return "1s ago"
	default:
		return fmt.Sprintf("%ds ago", secs)
	}
}

// renderInfoPane renders the system information box. A height of zero
// sizes the box to its content.
func (m Model) renderInfoPane(width, height int) string {
	lines := m.infoLines()

	var b strings.Builder
	b.WriteString(SectionHeader("SBC System Information", m.platformLabel(), width))
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(SectionContentLine(l, width))
		b.WriteString("\n")
	}
	for i := len(lines) + 2; i < height; i++ {
		b.WriteString(SectionContentLine("", width))
		b.WriteString("\n")
	}
	b.WriteString(SectionFooter(width))
	return b.String()
}

func (m Model) platformLabel() string {
	info, ok := m.state.SystemInfo()
	if !ok || info.Platform == "" {
		return "…"
	}
	return string(info.Platform)
}

// infoLines lists the system info fields, or a spinner until the first
// snapshot arrives.
func (m Model) infoLines() []string {
	info, ok := m.state.SystemInfo()
	if !ok {
		return []string{m.spinner.View() + " " + MutedStyle.Render("Collecting system information...")}
	}

	lines := []string{
		field("Hostname", info.Hostname),
		field("Kernel", info.Kernel),
		field("Architecture", info.Architecture),
		"",
	}
	if info.HasChip() {
		lines = append(lines, ChipStyle.Render(padLabel("Chip")+Sanitize(info.Chip)), "")
	}
	return append(lines,
		field("CPU", info.CPU),
		field("Memory", info.Memory),
		field("Uptime", info.Uptime),
		field("OS", info.OS),
	)
}

func padLabel(label string) string {
	return fmt.Sprintf("%-*s", labelWidth, label+":")
}

func field(label, value string) string {
	return LabelStyle.Render(padLabel(label)) + ValueStyle.Render(Sanitize(value))
}

// renderLogPane renders the scrollable log box around the viewport.
func (m Model) renderLogPane(width, height int) string {
	shown := min(m.state.Logs().Len(), m.visibleLogs)
	counter := fmt.Sprintf("%d/%d", shown, m.state.Logs().Len())

	var b strings.Builder
	b.WriteString(SectionHeader("Logs", counter, width))
	b.WriteString("\n")

	body := strings.Split(m.logView.View(), "\n")
	for i := 0; i < max(height-2, 1); i++ {
		line := ""
		if i < len(body) {
			line = body[i]
		}
		b.WriteString(SectionContentLine(line, width))
		b.WriteString("\n")
	}
	b.WriteString(SectionFooter(width))
	return b.String()
}

// renderLogLines renders the newest entries, newest first, each cut to width.
func (m Model) renderLogLines(width int) string {
	entries := m.state.Logs().Newest(m.visibleLogs)
	if len(entries) == 0 {
		return MutedStyle.Render("No log entries yet")
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := RenderLogEntry(e)
		if width > 0 {
			line = ansi.Truncate(line, width, "…")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RenderLogEntry formats one entry as "[timestamp] LEVEL: message".
func RenderLogEntry(e telemetry.LogEntry) string {
	return TimestampStyle.Render("["+Sanitize(e.Timestamp)+"] ") +
		LevelStyle(e.Level).Render(string(e.Level)+": ") +
		ValueStyle.Render(Sanitize(e.Message))
}

// renderFooter renders the keyboard hints.
func (m Model) renderFooter() string {
	return FooterStyle.Render(m.help.ShortHelpView(keys.ShortHelp()))
}

package monitor

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sbctool/sbctool/internal/telemetry"
)

// keyMap defines the dashboard key bindings.
type keyMap struct {
	Quit     key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "page down"),
	),
	Top: key.NewBinding(
		key.WithKeys("home"),
		key.WithHelp("home", "newest"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("end"),
		key.WithHelp("end", "oldest"),
	),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Refresh, k.Help}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Refresh, k.Help},
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Top, k.Bottom},
	}
}

// RefreshMessage is logged each time a refresh is accepted.
const RefreshMessage = "Refreshing system information..."

// HandleKeyMsg processes keyboard input and returns updated model state and command.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	// Help toggle takes priority; Esc closes an open overlay before it quits.
	if key.Matches(msg, keys.Help) {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && msg.String() == "esc" {
		m.showHelp = false
		return true, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return true, m.quit()

	case key.Matches(msg, keys.Refresh):
		m.refresh()
		return true, nil

	case key.Matches(msg, keys.Up, keys.Down, keys.PageUp, keys.PageDown):
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return true, cmd

	case key.Matches(msg, keys.Top):
		m.logView.GotoTop()
		return true, nil

	case key.Matches(msg, keys.Bottom):
		m.logView.GotoBottom()
		return true, nil
	}

	return false, nil
}

// quit cancels the collectors and ends the program.
func (m *Model) quit() tea.Cmd {
	m.quitting = true
	if m.cancel != nil {
		m.cancel()
	}
	return tea.Quit
}

// refresh logs the request and wakes the collectors, at most once per
// cooldown. Throttled presses are dropped.
func (m *Model) refresh() {
	if m.limiter != nil && !m.limiter.AllowN(m.now(), 1) {
		return
	}
	m.state.Apply(telemetry.Logs(telemetry.NewLocalEntry(m.now(), telemetry.LevelInfo, RefreshMessage)))
	m.syncLogView()
	if m.refresher != nil {
		m.refresher.Refresh()
	}
}

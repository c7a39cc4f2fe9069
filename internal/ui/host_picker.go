package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sbctool/sbctool/pkg/sshutil"
)

// hostItem implements list.Item for the Bubbles list component.
type hostItem struct {
	host sshutil.HostEntry
}

func (i hostItem) Title() string {
	return i.host.Alias
}

func (i hostItem) Description() string {
	return i.host.Description()
}

func (i hostItem) FilterValue() string {
	// Allow searching by alias, hostname, and user
	values := []string{i.host.Alias}
	if i.host.Hostname != "" {
		values = append(values, i.host.Hostname)
	}
	if i.host.User != "" {
		values = append(values, i.host.User)
	}
	return strings.Join(values, " ")
}

// HostPickerModel is a Bubble Tea model for choosing an SSH alias.
type HostPickerModel struct {
	list     list.Model
	selected string
	quitting bool
}

type hostPickerKeyMap struct {
	Enter key.Binding
	Quit  key.Binding
}

var hostPickerKeys = hostPickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "connect"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "cancel"),
	),
}

// NewHostPickerModel creates a picker over hosts.
func NewHostPickerModel(hosts []sshutil.HostEntry) HostPickerModel {
	items := make([]list.Item, len(hosts))
	for i, h := range hosts {
		items[i] = hostItem{host: h}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderForeground(ColorSecondary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorMuted)

	l := list.New(items, delegate, 80, 15)
	l.Title = "Select a board from your SSH config"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorInfo).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	return HostPickerModel{list: l}
}

// Init implements tea.Model.
func (m HostPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m HostPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Keys belong to the filter input while it is open
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, hostPickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(hostItem); ok {
				m.selected = item.host.Alias
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, hostPickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m HostPickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Selected returns the chosen alias, or "" if the picker was cancelled.
func (m HostPickerModel) Selected() string {
	return m.selected
}

// PickHost runs the picker on the given terminal streams. It returns "" when
// the user cancels or hosts is empty.
func PickHost(hosts []sshutil.HostEntry, input io.Reader, output io.Writer) (string, error) {
	if len(hosts) == 0 {
		return "", nil
	}

	p := tea.NewProgram(
		NewHostPickerModel(hosts),
		tea.WithInput(input),
		tea.WithOutput(output),
	)

	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("host picker: %w", err)
	}
	if m, ok := final.(HostPickerModel); ok {
		return m.Selected(), nil
	}
	return "", nil
}

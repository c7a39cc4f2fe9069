package monitor

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestKeyBindings(t *testing.T) {
	tests := []struct {
		name    string
		msg     tea.KeyMsg
		binding key.Binding
	}{
		{"q quits", runeKey("q"), keys.Quit},
		{"esc quits", tea.KeyMsg{Type: tea.KeyEsc}, keys.Quit},
		{"ctrl+c quits", tea.KeyMsg{Type: tea.KeyCtrlC}, keys.Quit},
		{"r refreshes", runeKey("r"), keys.Refresh},
		{"? toggles help", runeKey("?"), keys.Help},
		{"k scrolls up", runeKey("k"), keys.Up},
		{"down scrolls down", tea.KeyMsg{Type: tea.KeyDown}, keys.Down},
		{"pgup pages", tea.KeyMsg{Type: tea.KeyPgUp}, keys.PageUp},
		{"home jumps", tea.KeyMsg{Type: tea.KeyHome}, keys.Top},
		{"end jumps", tea.KeyMsg{Type: tea.KeyEnd}, keys.Bottom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, key.Matches(tt.msg, tt.binding))
		})
	}
}

func TestKeyMap_Help(t *testing.T) {
	assert.Len(t, keys.ShortHelp(), 3)

	total := 0
	for _, row := range keys.FullHelp() {
		total += len(row)
	}
	assert.Equal(t, 9, total)
}

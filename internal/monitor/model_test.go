package monitor

import (
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbctool/sbctool/internal/telemetry"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// clock is a settable time source.
type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 14, 18, 49, 25, 0, time.Local)}
}

// countingRefresher records Refresh calls.
type countingRefresher struct {
	calls int
}

func (r *countingRefresher) Refresh() { r.calls++ }

func testInfo() telemetry.SystemInfo {
	return telemetry.SystemInfo{
		Hostname:     "rock-5b",
		Kernel:       "6.1.43-rockchip",
		Architecture: "aarch64",
		Chip:         "Rockchip RK3588",
		CPU:          "Cortex-A76/A55 (8 cores)",
		Memory:       "15.6 GB",
		Uptime:       "up 3 days, 4 hours",
		OS:           "Debian GNU/Linux 12 (bookworm)",
		Platform:     telemetry.PlatformLinux,
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel(Options{Target: "pi@host:22"})

	assert.Equal(t, DefaultTick, m.tick)
	assert.Equal(t, DefaultVisibleLogs, m.visibleLogs)
	assert.NotNil(t, m.State())
	assert.Equal(t, 0, m.State().Logs().Len())
	assert.False(t, m.Quitting())
	assert.Equal(t, 0, m.OpenSources())

	_, ok := m.State().SystemInfo()
	assert.False(t, ok)
}

func TestNewModel_InitialEntries(t *testing.T) {
	c := newClock()
	m := NewModel(Options{
		Now:     c.Now,
		Initial: []telemetry.LogEntry{telemetry.NewLocalEntry(c.Now(), telemetry.LevelInfo, "Connecting to pi@host:22 via SSH")},
	})

	entries := m.State().Logs().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "18:49:25", entries[0].Timestamp)
	assert.Equal(t, "Connecting to pi@host:22 via SSH", entries[0].Message)
}

func TestUpdate_AppliesCollectorUpdates(t *testing.T) {
	sysCh := make(chan telemetry.Update, 1)
	logCh := make(chan telemetry.Update, 1)
	m := NewModel(Options{Updates: []<-chan telemetry.Update{sysCh, logCh}})
	assert.Equal(t, 2, m.OpenSources())

	sysCh <- telemetry.SystemInfoUpdate{Info: testInfo()}
	msg := m.waitCmd(0)()
	require.IsType(t, updateMsg{}, msg)

	m, cmd := update(t, m, msg)
	assert.NotNil(t, cmd, "waiter should be re-armed")
	info, ok := m.State().SystemInfo()
	require.True(t, ok)
	assert.Equal(t, "rock-5b", info.Hostname)

	logCh <- telemetry.Logs(telemetry.LogEntry{Timestamp: "t", Level: telemetry.LevelWarn, Message: "low voltage"})
	m, _ = update(t, m, m.waitCmd(1)())
	assert.Equal(t, 1, m.State().Logs().Len())
}

func TestUpdate_ClosedSource(t *testing.T) {
	ch := make(chan telemetry.Update)
	close(ch)
	m := NewModel(Options{Updates: []<-chan telemetry.Update{ch}})

	msg := m.waitCmd(0)()
	assert.Equal(t, sourceClosedMsg{source: 0}, msg)

	m, cmd := update(t, m, msg)
	assert.Nil(t, cmd)
	assert.Equal(t, 0, m.OpenSources())
}

func TestWaitCmd_OutOfRange(t *testing.T) {
	m := NewModel(Options{})
	assert.Nil(t, m.waitCmd(0))
	assert.Nil(t, m.waitCmd(-1))
}

func TestUpdate_TickReschedules(t *testing.T) {
	m := NewModel(Options{})
	now := time.Now()

	m, cmd := update(t, m, tickMsg(now))
	assert.NotNil(t, cmd)
	assert.Equal(t, now, m.lastTick)
}

func TestUpdate_SpinnerStopsOnceInfoArrives(t *testing.T) {
	m := NewModel(Options{})
	m.State().Apply(telemetry.SystemInfoUpdate{Info: testInfo()})

	_, cmd := update(t, m, m.spinner.Tick())
	assert.Nil(t, cmd)
}

func TestRefresh_Throttled(t *testing.T) {
	c := newClock()
	r := &countingRefresher{}
	m := NewModel(Options{Now: c.Now, Refresher: r})

	m, _ = update(t, m, runeKey("r"))
	assert.Equal(t, 1, r.calls)
	entries := m.State().Logs().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, telemetry.LevelInfo, entries[0].Level)
	assert.Equal(t, RefreshMessage, entries[0].Message)

	// Presses inside the cooldown are dropped entirely.
	c.Advance(500 * time.Millisecond)
	m, _ = update(t, m, runeKey("r"))
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, m.State().Logs().Len())

	c.Advance(500 * time.Millisecond)
	m, _ = update(t, m, runeKey("r"))
	assert.Equal(t, 2, r.calls)
	assert.Equal(t, 2, m.State().Logs().Len())
}

func TestQuit_CancelsCollectors(t *testing.T) {
	keysToTry := []tea.KeyMsg{
		runeKey("q"),
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	}

	for _, k := range keysToTry {
		t.Run(k.String(), func(t *testing.T) {
			cancelled := false
			m := NewModel(Options{Cancel: func() { cancelled = true }})

			m, cmd := update(t, m, k)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.True(t, cancelled)
			assert.True(t, m.Quitting())
			assert.Empty(t, m.View())
		})
	}
}

func TestHelpOverlay(t *testing.T) {
	cancelled := false
	m := NewModel(Options{Cancel: func() { cancelled = true }})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = update(t, m, runeKey("?"))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	// Esc closes the overlay instead of quitting.
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.False(t, m.showHelp)
	assert.False(t, cancelled)
	assert.False(t, m.Quitting())
}

func TestUnhandledKeyIsIgnored(t *testing.T) {
	r := &countingRefresher{}
	m := NewModel(Options{Refresher: r})

	m, cmd := update(t, m, runeKey("x"))
	assert.Nil(t, cmd)
	assert.Equal(t, 0, r.calls)
	assert.False(t, m.Quitting())
}

func TestScrollKeysAreHandled(t *testing.T) {
	m := NewModel(Options{VisibleLogs: 50})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 12})
	for i := 0; i < 40; i++ {
		m.State().Apply(telemetry.Logs(telemetry.LogEntry{Timestamp: "t", Level: telemetry.LevelInfo, Message: strings.Repeat("x", i)}))
	}
	m.syncLogView()

	handled, _ := m.HandleKeyMsg(tea.KeyMsg{Type: tea.KeyEnd})
	assert.True(t, handled)
	assert.Positive(t, m.logView.YOffset)

	handled, _ = m.HandleKeyMsg(tea.KeyMsg{Type: tea.KeyHome})
	assert.True(t, handled)
	assert.Equal(t, 0, m.logView.YOffset)

	handled, _ = m.HandleKeyMsg(runeKey("j"))
	assert.True(t, handled)
	assert.Equal(t, 1, m.logView.YOffset)
}

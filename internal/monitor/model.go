package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/sbctool/sbctool/internal/telemetry"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTick            = 100 * time.Millisecond
	DefaultVisibleLogs     = 20
	DefaultRefreshCooldown = time.Second
)

// Width and height below which the panes stack instead of sitting side by side.
const (
	BreakpointSideBySide = 80
	HeightMinimal        = 10
)

// Refresher asks the collectors for an out-of-cycle collection.
type Refresher interface {
	Refresh()
}

// Options configures a Model.
type Options struct {
	// Target names the board in the header, e.g. "pi@192.168.1.20:22".
	Target string

	// Updates are the collectors' channels. Each is drained by its own
	// waiting command.
	Updates []<-chan telemetry.Update

	Refresher Refresher

	// Cancel stops the collectors when the user quits.
	Cancel context.CancelFunc

	Tick            time.Duration
	VisibleLogs     int
	RefreshCooldown time.Duration

	// Initial entries shown before any collector reports.
	Initial []telemetry.LogEntry

	Now func() time.Time
}

// Model is the Bubble Tea model for the dashboard. It is the only owner of
// the telemetry state; collectors reach it through messages.
type Model struct {
	state     *telemetry.State
	target    string
	updates   []<-chan telemetry.Update
	open      int
	refresher Refresher
	cancel    context.CancelFunc
	limiter   *rate.Limiter

	tick        time.Duration
	visibleLogs int
	now         func() time.Time
	lastTick    time.Time

	logView  viewport.Model
	spinner  spinner.Model
	help     help.Model
	width    int
	height   int
	quitting bool
	showHelp bool
}

// tickMsg drives re-rendering.
type tickMsg time.Time

// updateMsg carries one collector update.
type updateMsg struct {
	source int
	update telemetry.Update
}

// sourceClosedMsg reports that a collector channel was closed.
type sourceClosedMsg struct {
	source int
}

// NewModel creates a dashboard model.
func NewModel(opts Options) Model {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.VisibleLogs <= 0 {
		opts.VisibleLogs = DefaultVisibleLogs
	}
	if opts.RefreshCooldown <= 0 {
		opts.RefreshCooldown = DefaultRefreshCooldown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = SpinnerStyle

	m := Model{
		state:       telemetry.NewStateWithClock(opts.Now),
		target:      opts.Target,
		updates:     opts.Updates,
		open:        len(opts.Updates),
		refresher:   opts.Refresher,
		cancel:      opts.Cancel,
		limiter:     rate.NewLimiter(rate.Every(opts.RefreshCooldown), 1),
		tick:        opts.Tick,
		visibleLogs: opts.VisibleLogs,
		now:         opts.Now,
		logView:     viewport.New(0, 0),
		spinner:     sp,
		help:        help.New(),
	}
	m.help.Styles.ShortKey = LabelStyle
	m.help.Styles.ShortDesc = MutedStyle
	m.help.Styles.FullKey = LabelStyle
	m.help.Styles.FullDesc = MutedStyle

	if len(opts.Initial) > 0 {
		m.state.Apply(telemetry.Logs(opts.Initial...))
	}
	return m
}

// Init starts the tick, the spinner and one waiter per collector channel.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tickCmd(), m.spinner.Tick}
	for i := range m.updates {
		cmds = append(cmds, m.waitCmd(i))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLogView()

	case tickMsg:
		m.lastTick = time.Time(msg)
		return m, m.tickCmd()

	case updateMsg:
		m.state.Apply(msg.update)
		if _, ok := msg.update.(telemetry.LogUpdate); ok {
			m.syncLogView()
		}
		return m, m.waitCmd(msg.source)

	case sourceClosedMsg:
		m.open--

	case spinner.TickMsg:
		// The spinner only matters until the first snapshot arrives.
		if _, ok := m.state.SystemInfo(); ok {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// State exposes the telemetry state for rendering and tests.
func (m Model) State() *telemetry.State {
	return m.state
}

// Quitting reports whether the user asked to quit.
func (m Model) Quitting() bool {
	return m.quitting
}

// OpenSources counts collector channels that have not been closed.
func (m Model) OpenSources() int {
	return m.open
}

// tickCmd returns a command that sends a tick after the render interval.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitCmd blocks on one collector channel and returns its next update.
func (m Model) waitCmd(source int) tea.Cmd {
	if source < 0 || source >= len(m.updates) {
		return nil
	}
	ch := m.updates[source]
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return sourceClosedMsg{source: source}
		}
		return updateMsg{source: source, update: u}
	}
}

// resizeLogView fits the log viewport to the current layout.
func (m *Model) resizeLogView() {
	_, logWidth, bodyHeight := m.paneSizes()
	// Border header and footer take two lines, the side borders four columns.
	m.logView.Width = max(logWidth-4, 1)
	m.logView.Height = max(bodyHeight-2, 1)
	m.syncLogView()
}

// syncLogView re-renders the log lines into the viewport. Newest entries are
// on top, so the view stays anchored there unless the user scrolled.
func (m *Model) syncLogView() {
	offset := m.logView.YOffset
	m.logView.SetContent(m.renderLogLines(m.logView.Width))
	m.logView.SetYOffset(offset)
}

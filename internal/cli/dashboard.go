package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/sbctool/sbctool/internal/collector"
	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/logger"
	"github.com/sbctool/sbctool/internal/monitor"
	"github.com/sbctool/sbctool/internal/telemetry"
	"github.com/sbctool/sbctool/internal/transport"
	"github.com/sbctool/sbctool/internal/ui"
	"github.com/sbctool/sbctool/pkg/sshutil"
)

// LogFileEnv names a file that receives log output while the dashboard owns
// the terminal. Unset, that output is discarded.
const LogFileEnv = "SBCTOOL_LOG_FILE"

// runProgram runs the dashboard until the user quits or ctx ends.
var runProgram = func(ctx context.Context, m tea.Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	stop := context.AfterFunc(ctx, p.Quit)
	defer stop()

	_, err := p.Run()
	return err
}

// launchDashboard is the last step of every transport command.
var launchDashboard = runDashboard

// runDashboard starts the collectors on session and shows the dashboard. It
// owns session and closes it on return.
func runDashboard(ctx context.Context, session transport.Session, cfg *config.Config, greeting string) error {
	defer sshutil.CloseAgent()
	defer session.Close()

	restore, err := redirectLog()
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := collector.OptionsFromConfig(cfg, logger.NewEnvLogger("[collector]"))
	sup := collector.NewSupervisor(session, opts, cfg.Dashboard.ShutdownTimeout)
	sup.Start(ctx)

	model := monitor.NewModel(monitor.Options{
		Target:          session.Target().String(),
		Updates:         sup.Updates(),
		Refresher:       sup,
		Cancel:          cancel,
		Tick:            cfg.Dashboard.Tick,
		VisibleLogs:     cfg.Dashboard.VisibleLogs,
		RefreshCooldown: cfg.Dashboard.RefreshCooldown,
		Initial:         []telemetry.LogEntry{telemetry.NewLocalEntry(time.Now(), telemetry.LevelInfo, greeting)},
	})

	runErr := runProgram(ctx, model)

	cancel()
	if err := sup.Stop(); err != nil {
		logger.NewEnvLogger("[dashboard]").Warn("%s", errors.Summary(err))
	}

	if runErr != nil {
		return errors.Wrap(runErr, "Dashboard stopped unexpectedly")
	}
	return nil
}

// redirectLog points the standard logger away from the terminal for the
// lifetime of the dashboard.
func redirectLog() (func(), error) {
	reset := func() {
		log.SetOutput(os.Stderr)
		log.SetPrefix("")
	}

	path := os.Getenv(LogFileEnv)
	if path == "" {
		log.SetOutput(io.Discard)
		return reset, nil
	}

	f, err := tea.LogToFile(config.ExpandTilde(path), "sbctool ")
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot open log file: "+path,
			"Check "+LogFileEnv+" points at a writable location")
	}
	return func() {
		reset()
		f.Close()
	}, nil
}

// connect dials with a progress line on stderr. dial receives a pause
// function that interactive prompts call before they take the terminal.
func connect(label string, dial func(pause func()) (transport.Session, error)) (transport.Session, error) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintln(os.Stderr, label+"...")
		return dial(func() {})
	}

	s := ui.NewSpinner(os.Stderr, label)
	s.Start()
	var once sync.Once
	pause := func() {
		once.Do(func() {
			s.Stop()
			fmt.Fprintln(os.Stderr)
		})
	}

	session, err := dial(pause)
	if err != nil {
		s.Fail()
		return nil, err
	}
	s.Success()
	return session, nil
}

package cli

import (
	"context"
	stderrors "errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/monitor"
	"github.com/sbctool/sbctool/internal/telemetry"
	"github.com/sbctool/sbctool/internal/transport"
	transporttest "github.com/sbctool/sbctool/internal/transport/testing"
)

func swapRunProgram(t *testing.T, fn func(context.Context, tea.Model) error) {
	t.Helper()
	orig := runProgram
	t.Cleanup(func() { runProgram = orig })
	runProgram = fn
}

func TestRunDashboard_SeedsGreetingAndClosesSession(t *testing.T) {
	t.Setenv(LogFileEnv, "")
	session := transporttest.Linux(false)

	var first telemetry.LogEntry
	swapRunProgram(t, func(_ context.Context, m tea.Model) error {
		model, ok := m.(monitor.Model)
		require.True(t, ok)
		entries := model.State().Logs().Entries()
		require.NotEmpty(t, entries)
		first = entries[0]
		return nil
	})

	err := runDashboard(context.Background(), session, config.DefaultConfig(), "Connecting to rpi via SSH")
	require.NoError(t, err)

	assert.Equal(t, telemetry.LevelInfo, first.Level)
	assert.Equal(t, "Connecting to rpi via SSH", first.Message)
	assert.True(t, session.Closed())
}

func TestRunDashboard_ProgramFailure(t *testing.T) {
	t.Setenv(LogFileEnv, "")
	session := transporttest.Android()

	swapRunProgram(t, func(context.Context, tea.Model) error {
		return stderrors.New("no tty")
	})

	err := runDashboard(context.Background(), session, config.DefaultConfig(), "Connecting to ADB device: auto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dashboard stopped unexpectedly")
	assert.True(t, session.Closed())
}

func TestRunDashboard_CancelledContext(t *testing.T) {
	t.Setenv(LogFileEnv, "")
	session := transporttest.Linux(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	swapRunProgram(t, func(ctx context.Context, _ tea.Model) error {
		<-ctx.Done()
		return nil
	})

	require.NoError(t, runDashboard(ctx, session, config.DefaultConfig(), "hello"))
	assert.True(t, session.Closed())
}

func TestRedirectLog_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sbctool.log")
	t.Setenv(LogFileEnv, path)

	restore, err := redirectLog()
	require.NoError(t, err)
	log.Print("collector warning")
	restore()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "sbctool "))
	assert.Contains(t, string(data), "collector warning")
	assert.Equal(t, os.Stderr, log.Writer())
}

func TestRedirectLog_UnwritablePath(t *testing.T) {
	t.Setenv(LogFileEnv, filepath.Join(t.TempDir(), "missing", "dir", "sbctool.log"))

	_, err := redirectLog()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestConnect_WithoutTerminal(t *testing.T) {
	session := transporttest.Linux(false)

	got, err := connect("Connecting to rpi via SSH", func(pause func()) (transport.Session, error) {
		pause()
		pause()
		return session, nil
	})
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = connect("Connecting to rpi via SSH", func(func()) (transport.Session, error) {
		return nil, errors.New(errors.ErrTransport, "Connection refused", "")
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
}

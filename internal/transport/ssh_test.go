package transport

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/logger"
	"github.com/sbctool/sbctool/pkg/sshutil"
	sshtesting "github.com/sbctool/sbctool/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sshTarget = Target{Kind: KindSSH, Spec: "rpi", SSH: &sshutil.Target{Spec: "rpi", Hostname: "rpi", Port: "22", User: "pi"}}

func TestSSHSession_ExecuteTrimsOutput(t *testing.T) {
	client := sshtesting.NewMockClient("rpi")
	client.SetCommandResponse("hostname", sshtesting.CommandResponse{Stdout: []byte("  raspberrypi \n")})
	s := NewSSHSession(client, sshTarget, time.Second)

	out, err := s.Execute(context.Background(), "hostname", 0)
	require.NoError(t, err)
	assert.Equal(t, "raspberrypi", out)
	assert.True(t, s.Persistent())
	assert.Equal(t, sshTarget, s.Target())
}

func TestSSHSession_ExitStatus(t *testing.T) {
	client := sshtesting.NewMockClient("rpi")
	client.SetCommandResponse("which journalctl", sshtesting.CommandResponse{ExitCode: 1, Stderr: []byte("no journalctl\n")})
	s := NewSSHSession(client, sshTarget, time.Second)

	_, err := s.Execute(context.Background(), "which journalctl", time.Second)
	require.Error(t, err)

	code, ok := errors.GetExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 1, code)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))

	var exitErr *errors.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, "no journalctl", exitErr.Stderr)
}

func TestSSHSession_TransportFailure(t *testing.T) {
	client := sshtesting.NewMockClient("rpi")
	client.SetCommandResponse("uptime", sshtesting.CommandResponse{ExitCode: -1, Error: stderrors.New("broken pipe")})
	s := NewSSHSession(client, sshTarget, time.Second)

	_, err := s.Execute(context.Background(), "uptime", time.Second)
	require.Error(t, err)
	_, isExit := errors.GetExitCode(err)
	assert.False(t, isExit)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestSSHSession_Timeout(t *testing.T) {
	s := NewSSHSession(sshtesting.NewMockClient("rpi"), sshTarget, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	_, err := s.Execute(ctx, "sleep 10", time.Second)
	assert.Error(t, err)
}

func TestSSHSession_Stream(t *testing.T) {
	client := sshtesting.NewMockClient("rpi")
	client.SetStreamLines("journalctl -f --no-hostname --output=short-iso",
		"2024-01-15T10:30:45+0000 sshd[1]: Accepted publickey",
		"2024-01-15T10:30:46+0000 kernel: usb 1-1: new device")
	s := NewSSHSession(client, sshTarget, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var lines []string
	err := s.Stream(ctx, "journalctl -f --no-hostname --output=short-iso", func(l string) { lines = append(lines, l) })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Accepted publickey")
}

func TestSSHSession_StreamEnds(t *testing.T) {
	client := sshtesting.NewMockClient("rpi")
	client.SetCommandResponse("journalctl -f", sshtesting.CommandResponse{Stdout: []byte("one\ntwo")})
	s := NewSSHSession(client, sshTarget, time.Second)

	var lines []string
	err := s.Stream(context.Background(), "journalctl -f", func(l string) { lines = append(lines, l) })
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestExternalSSHSession_IsNotStreamer(t *testing.T) {
	var s Session = NewExternalSSHSession(sshtesting.NewMockClient("rpi"), sshTarget, time.Second)
	_, ok := s.(Streamer)
	assert.False(t, ok)
	assert.False(t, s.Persistent())

	var p Session = NewSSHSession(sshtesting.NewMockClient("rpi"), sshTarget, time.Second)
	_, ok = p.(Streamer)
	assert.True(t, ok)
}

func TestSSHSession_Close(t *testing.T) {
	client := sshtesting.NewMockClient("rpi")
	s := NewSSHSession(client, sshTarget, time.Second)
	require.NoError(t, s.Close())
	assert.True(t, client.IsClosed())
}

func TestDialSSH_ExecMode(t *testing.T) {
	r := NewResolver(func(context.Context) (Target, error) { return sshTarget, nil })
	cfg := config.DefaultConfig().SSH
	cfg.Mode = config.SSHModeExec

	s, err := DialSSH(context.Background(), r, cfg, SSHOptions{Logger: logger.Noop()})
	require.NoError(t, err)
	assert.IsType(t, &ExternalSSHSession{}, s)
	assert.False(t, s.Persistent())
}

func TestDialSSH_ResolveError(t *testing.T) {
	r := NewResolver(func(context.Context) (Target, error) {
		return Target{}, errors.New(errors.ErrResolve, "no user", "")
	})

	_, err := DialSSH(context.Background(), r, config.DefaultConfig().SSH, SSHOptions{})
	assert.True(t, errors.IsCode(err, errors.ErrResolve))
}

func TestLineWriter(t *testing.T) {
	var lines []string
	w := &lineWriter{onLine: func(l string) { lines = append(lines, l) }}

	_, _ = w.Write([]byte("alpha\r\nbe"))
	_, _ = w.Write([]byte("ta\ngam"))
	assert.Equal(t, []string{"alpha", "beta"}, lines)

	w.flush()
	assert.Equal(t, []string{"alpha", "beta", "gam"}, lines)
}

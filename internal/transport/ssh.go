package transport

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/logger"
	"github.com/sbctool/sbctool/pkg/sshutil"
)

// sshSession adapts an sshutil client to Session.
type sshSession struct {
	client         sshutil.SSHClient
	target         Target
	persistent     bool
	defaultTimeout time.Duration
}

func (s *sshSession) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	ctx, cancel, timeout := withTimeout(ctx, timeout, s.defaultTimeout)
	defer cancel()

	stdout, stderr, code, err := s.client.Run(ctx, command)
	if err != nil {
		return "", commandFailure(ctx, command, timeout, err)
	}
	if code != 0 {
		return "", exitFailure(command, code, stderr)
	}
	return strings.TrimSpace(string(stdout)), nil
}

func (s *sshSession) Target() Target   { return s.target }
func (s *sshSession) Persistent() bool { return s.persistent }
func (s *sshSession) Close() error     { return s.client.Close() }

// PersistentSSHSession keeps one authenticated connection and opens a
// channel per command. It can stream.
type PersistentSSHSession struct {
	sshSession
}

// NewSSHSession wraps a connected client.
func NewSSHSession(client sshutil.SSHClient, target Target, defaultTimeout time.Duration) *PersistentSSHSession {
	return &PersistentSSHSession{sshSession{client: client, target: target, persistent: true, defaultTimeout: defaultTimeout}}
}

// Stream follows command, calling onLine per stdout line.
func (s *PersistentSSHSession) Stream(ctx context.Context, command string, onLine func(string)) error {
	w := &lineWriter{onLine: onLine}
	code, err := s.client.Stream(ctx, command, w)
	w.flush()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return err
	}
	return errors.WrapWithCode(&errors.ExitError{Code: code}, errors.ErrTransport,
		"`"+command+"` stopped", "")
}

// ExternalSSHSession runs every command through the system ssh client.
type ExternalSSHSession struct {
	sshSession
}

// NewExternalSSHSession returns a session that spawns ssh per command.
func NewExternalSSHSession(client sshutil.SSHClient, target Target, defaultTimeout time.Duration) *ExternalSSHSession {
	return &ExternalSSHSession{sshSession{client: client, target: target, defaultTimeout: defaultTimeout}}
}

// SSHOptions carries what DialSSH needs beyond the config.
type SSHOptions struct {
	Password sshutil.PasswordPrompt
	Logger   logger.Logger
}

// DialSSH resolves the target and opens a session in the configured mode.
func DialSSH(ctx context.Context, r *Resolver, cfg config.SSHConfig, opts SSHOptions) (Session, error) {
	log := logger.Or(opts.Logger)

	target, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("ssh target %s (user from %s)", target, target.SSH.UserSource)

	if cfg.Mode == config.SSHModeExec {
		return NewExternalSSHSession(sshutil.NewExternalClient(target.SSH), target, cfg.CommandTimeout), nil
	}

	client, err := sshutil.Dial(ctx, target.SSH, sshutil.DialOptions{
		Timeout:               cfg.ConnectTimeout,
		StrictHostKeyChecking: cfg.StrictHostKeyChecking,
		Password:              opts.Password,
	})
	if err != nil {
		return nil, err
	}
	return NewSSHSession(client, target, cfg.CommandTimeout), nil
}

// lineWriter splits a byte stream into lines.
type lineWriter struct {
	onLine  func(string)
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	data := append(w.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		w.onLine(strings.TrimRight(string(data[:i]), "\r"))
		data = data[i+1:]
	}
	w.partial = append(w.partial[:0:0], data...)
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.partial) > 0 {
		w.onLine(strings.TrimRight(string(w.partial), "\r"))
		w.partial = nil
	}
}

var _ io.Writer = (*lineWriter)(nil)

package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/sbctool/sbctool/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Run runs a command on the remote host in its own channel and returns the
// output. Cancelling ctx closes the channel.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Run(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode, err = c.run(ctx, cmd, &stdoutBuf, &stderrBuf)
	if err != nil {
		return nil, nil, -1, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// Stream runs a long-lived command and writes its stdout to w as it
// arrives. Stderr is discarded.
func (c *Client) Stream(ctx context.Context, cmd string, w io.Writer) (exitCode int, err error) {
	return c.run(ctx, cmd, w, io.Discard)
}

func (c *Client) run(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	session, err := c.openSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrTransport,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Start(cmd); err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Failed to start command: %s", cmd),
			"The connection may have dropped.")
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		session.Close()
		<-done
		return -1, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			// Command ran, just had non-zero exit
			return exitErr.ExitStatus(), nil
		}
		return -1, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"The connection may have dropped.")
	}
	return 0, nil
}

package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/sbctool/sbctool/internal/errors"
)

// sshFailureStatus is what the OpenSSH client exits with when it fails
// itself rather than relaying the remote command's status.
const sshFailureStatus = 255

// externalOptions make every invocation non-interactive and quick to give
// up on a dead board. Host keys are not checked in this mode.
var externalOptions = []string{
	"-o", "ConnectTimeout=5",
	"-o", "ServerAliveInterval=2",
	"-o", "ServerAliveCountMax=3",
	"-o", "BatchMode=yes",
	"-o", "RequestTTY=no",
	"-o", "StrictHostKeyChecking=no",
	"-o", "UserKnownHostsFile=/dev/null",
	"-o", "LogLevel=ERROR",
}

// ExternalClient runs each command through the system ssh binary. It keeps
// no connection open between commands.
type ExternalClient struct {
	Target *Target
	// Binary is the ssh executable, "ssh" when empty.
	Binary string
}

// NewExternalClient returns a client that shells out to ssh for target.
func NewExternalClient(target *Target) *ExternalClient {
	return &ExternalClient{Target: target, Binary: "ssh"}
}

// Args returns the full argument list used to run cmd.
func (c *ExternalClient) Args(cmd string) []string {
	args := append([]string{}, externalOptions...)
	for _, id := range c.Target.IdentityFiles {
		args = append(args, "-i", id)
	}
	args = append(args,
		"-p", c.Target.Port,
		"-l", c.Target.User,
		c.Target.Hostname,
		"--", cmd)
	return args
}

func (c *ExternalClient) command(ctx context.Context, cmd string) *exec.Cmd {
	bin := c.Binary
	if bin == "" {
		bin = "ssh"
	}
	return exec.CommandContext(ctx, bin, c.Args(cmd)...)
}

// Run executes cmd and returns its output and exit code.
func (c *ExternalClient) Run(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode, err = c.run(ctx, cmd, &stdoutBuf, &stderrBuf)
	if err != nil {
		return nil, nil, -1, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// Stream executes a long-running cmd, copying stdout to w as it arrives.
func (c *ExternalClient) Stream(ctx context.Context, cmd string, w io.Writer) (exitCode int, err error) {
	var stderrBuf bytes.Buffer
	return c.run(ctx, cmd, w, &stderrBuf)
}

func (c *ExternalClient) run(ctx context.Context, cmd string, stdout io.Writer, stderr *bytes.Buffer) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	proc := c.command(ctx, cmd)
	proc.Stdout = stdout
	proc.Stderr = stderr

	err := proc.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !stderrors.As(err, &exitErr) {
		return -1, errors.WrapWithCode(err, errors.ErrTransport,
			"Couldn't run the ssh client",
			"Make sure OpenSSH is installed and on your PATH.")
	}

	code := exitErr.ExitCode()
	if code == sshFailureStatus {
		msg := strings.TrimSpace(stderr.String())
		return -1, errors.WrapWithCode(fmt.Errorf("%s", msg), errors.ErrTransport,
			fmt.Sprintf("ssh to '%s' failed", c.Target.Spec),
			"External mode needs key-based login. Check: ssh "+c.Target.Login())
	}
	return code, nil
}

// Close is a no-op; there is no persistent connection.
func (c *ExternalClient) Close() error { return nil }

// GetHost returns the original target string.
func (c *ExternalClient) GetHost() string { return c.Target.Spec }

// GetAddress returns the resolved host:port address.
func (c *ExternalClient) GetAddress() string { return c.Target.Address() }

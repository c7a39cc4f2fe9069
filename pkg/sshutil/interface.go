package sshutil

import (
	"context"
	"io"
)

// SSHClient defines the interface for SSH command execution.
// The in-process Client, the ExternalClient and mock implementations
// all satisfy it.
type SSHClient interface {
	// Run runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Run(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Stream runs a command and copies its stdout to w as it arrives.
	// It returns when the command exits or ctx is cancelled.
	Stream(ctx context.Context, cmd string, w io.Writer) (exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}

// Package transport runs shell commands on a remote board over SSH or ADB
// behind one Session contract.
package transport

import (
	"context"
	"time"

	"github.com/sbctool/sbctool/internal/adb"
	"github.com/sbctool/sbctool/pkg/sshutil"
)

// Kind is the transport family of a target.
type Kind string

const (
	KindSSH Kind = "ssh"
	KindADB Kind = "adb"
)

// Target is a resolved remote endpoint. Exactly one of SSH and ADB is set,
// matching Kind.
type Target struct {
	Kind Kind
	// Spec is what the user typed.
	Spec string
	SSH  *sshutil.Target
	ADB  adb.Address
	// Serial is filled in once an ADB device is connected.
	Serial string
}

// IsAndroid reports whether the target runs Android.
func (t Target) IsAndroid() bool {
	return t.Kind == KindADB
}

// String describes the target for log lines.
func (t Target) String() string {
	switch t.Kind {
	case KindSSH:
		if t.SSH != nil {
			return t.SSH.Login() + ":" + t.SSH.Port
		}
	case KindADB:
		if t.Serial != "" {
			return t.Serial
		}
		return t.ADB.String()
	}
	return t.Spec
}

// Session executes commands on one target.
type Session interface {
	// Execute runs command and returns its trimmed stdout. A non-zero exit
	// is an error carrying the code (see errors.GetExitCode); so is a
	// timeout or a broken connection.
	Execute(ctx context.Context, command string, timeout time.Duration) (string, error)
	Target() Target
	// Persistent reports whether commands share one live connection.
	Persistent() bool
	Close() error
}

// Streamer is implemented by sessions that can follow a long-running
// command line by line.
type Streamer interface {
	// Stream calls onLine for every stdout line until the command exits or
	// ctx is cancelled. It always returns a non-nil error.
	Stream(ctx context.Context, command string, onLine func(string)) error
}

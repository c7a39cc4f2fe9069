package testing

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"

	"github.com/sbctool/sbctool/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates an SSH connection for testing. Commands are answered
// from registered responses; unknown commands exit 127.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	closed   bool
	commands map[string]CommandResponse // pattern -> response
	streams  map[string][]string
	calls    []string
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// NewMockClient creates a new mock SSH client.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		address:  host + ":22",
		commands: make(map[string]CommandResponse),
		streams:  make(map[string][]string),
	}
}

// Run returns the registered response for cmd. Exact matches win over
// regex patterns.
func (m *MockClient) Run(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, -1, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	m.calls = append(m.calls, cmd)

	resp, ok := m.lookup(cmd)
	if !ok {
		return nil, []byte("sh: command not found"), 127, nil
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

func (m *MockClient) lookup(cmd string) (CommandResponse, bool) {
	if resp, ok := m.commands[cmd]; ok {
		return resp, true
	}
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp, true
		}
	}
	return CommandResponse{}, false
}

// Stream writes the registered stream lines for cmd, then blocks until ctx
// is cancelled. Commands without registered lines behave like Run.
func (m *MockClient) Stream(ctx context.Context, cmd string, w io.Writer) (exitCode int, err error) {
	m.mu.Lock()
	lines, ok := m.streams[cmd]
	closed := m.closed
	if ok {
		m.calls = append(m.calls, cmd)
	}
	m.mu.Unlock()

	if closed {
		return -1, errors.New("connection closed")
	}
	if !ok {
		out, _, code, err := m.Run(ctx, cmd)
		if err != nil {
			return -1, err
		}
		_, _ = w.Write(out)
		return code, nil
	}

	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return -1, err
		}
	}
	<-ctx.Done()
	return -1, ctx.Err()
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// SetStreamLines registers the lines Stream emits for an exact command.
func (m *MockClient) SetStreamLines(cmd string, lines ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[cmd] = lines
}

// Calls returns every command received so far, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

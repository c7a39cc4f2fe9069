// Package testing provides a scripted transport.Session for collector tests.
package testing

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/transport"
)

// Response is the canned outcome of one command.
type Response struct {
	Output string
	// ExitCode, when non-zero, makes Execute fail the way a real session
	// does for a non-zero exit.
	ExitCode int
	// Err is returned as is, e.g. a TRANSPORT error.
	Err error
}

// FakeSession answers Execute from registered responses. Unknown commands
// exit 127. Exact matches win over regex patterns.
type FakeSession struct {
	mu         sync.Mutex
	target     transport.Target
	persistent bool
	exact      map[string][]Response
	patterns   []patternResponse
	calls      []string
	closed     bool
}

type patternResponse struct {
	re   *regexp.Regexp
	resp Response
}

var _ transport.Session = (*FakeSession)(nil)

// NewFakeSession returns a session for target.
func NewFakeSession(target transport.Target, persistent bool) *FakeSession {
	return &FakeSession{
		target:     target,
		persistent: persistent,
		exact:      make(map[string][]Response),
	}
}

// Linux returns a fake SSH session to a Linux board.
func Linux(persistent bool) *FakeSession {
	return NewFakeSession(transport.Target{Kind: transport.KindSSH, Spec: "rpi"}, persistent)
}

// Android returns a fake ADB session.
func Android() *FakeSession {
	return NewFakeSession(transport.Target{Kind: transport.KindADB, Spec: "emulator-5554", Serial: "emulator-5554"}, false)
}

// On registers responses for an exact command. Successive calls consume
// them in order; the last one repeats.
func (f *FakeSession) On(command string, resps ...Response) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exact[command] = append(f.exact[command], resps...)
	return f
}

// OnOutput is On with a single successful output.
func (f *FakeSession) OnOutput(command, output string) *FakeSession {
	return f.On(command, Response{Output: output})
}

// OnMatch registers a response for commands matching pattern.
func (f *FakeSession) OnMatch(pattern string, resp Response) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, patternResponse{re: regexp.MustCompile(pattern), resp: resp})
	return f
}

// Execute returns the scripted response for command.
func (f *FakeSession) Execute(ctx context.Context, command string, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	f.calls = append(f.calls, command)
	resp, ok := f.next(command)
	closed := f.closed
	f.mu.Unlock()

	if closed {
		return "", errors.New(errors.ErrTransport, "session closed", "")
	}
	if !ok {
		resp = Response{ExitCode: 127}
	}
	if resp.Err != nil {
		return "", resp.Err
	}
	if resp.ExitCode != 0 {
		return "", errors.WrapWithCode(&errors.ExitError{Code: resp.ExitCode}, errors.ErrTransport,
			"`"+command+"` failed", "")
	}
	return resp.Output, nil
}

func (f *FakeSession) next(command string) (Response, bool) {
	if queue := f.exact[command]; len(queue) > 0 {
		resp := queue[0]
		if len(queue) > 1 {
			f.exact[command] = queue[1:]
		}
		return resp, true
	}
	for _, p := range f.patterns {
		if p.re.MatchString(command) {
			return p.resp, true
		}
	}
	return Response{}, false
}

// Calls returns every executed command, in order.
func (f *FakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts executions of command.
func (f *FakeSession) CallCount(command string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == command {
			n++
		}
	}
	return n
}

func (f *FakeSession) Target() transport.Target { return f.target }
func (f *FakeSession) Persistent() bool         { return f.persistent }

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeStreamer is a FakeSession that can also stream. Each Stream call
// consumes the next script; with none left it blocks until ctx ends.
type FakeStreamer struct {
	*FakeSession
	mu      sync.Mutex
	scripts []StreamScript
	streams int
}

// StreamScript is one Stream invocation: lines to emit, then Err (or a
// generic end-of-stream error when nil).
type StreamScript struct {
	Lines []string
	Err   error
}

var _ transport.Streamer = (*FakeStreamer)(nil)

// NewFakeStreamer returns a persistent Linux session that streams.
func NewFakeStreamer(scripts ...StreamScript) *FakeStreamer {
	return &FakeStreamer{FakeSession: Linux(true), scripts: scripts}
}

// Stream plays the next script.
func (f *FakeStreamer) Stream(ctx context.Context, command string, onLine func(string)) error {
	f.FakeSession.mu.Lock()
	f.FakeSession.calls = append(f.FakeSession.calls, command)
	f.FakeSession.mu.Unlock()

	f.mu.Lock()
	f.streams++
	if len(f.scripts) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	script := f.scripts[0]
	f.scripts = f.scripts[1:]
	f.mu.Unlock()

	for _, line := range script.Lines {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onLine(line)
	}
	if script.Err != nil {
		return script.Err
	}
	return errors.New(errors.ErrTransport, "`"+command+"` stopped", "")
}

// Streams counts Stream invocations.
func (f *FakeStreamer) Streams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams
}

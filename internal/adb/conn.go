package adb

import (
	"context"
	"crypto/rsa"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a closed connection or stream.
var ErrClosed = stderrors.New("adb: connection closed")

// ErrAuthRejected means the device never accepted our key.
var ErrAuthRejected = stderrors.New("adb: device did not accept the host key")

// HandshakeOptions tunes the CNXN/AUTH exchange.
type HandshakeOptions struct {
	Key *rsa.PrivateKey
	// AcceptTimeout bounds the wait for the user to approve our public key
	// on the device.
	AcceptTimeout time.Duration
	// OnPrompt is called once when the device must show its "Allow USB
	// debugging?" dialog.
	OnPrompt func()
}

// Conn is an authenticated link to adbd carrying any number of streams.
type Conn struct {
	rw     io.ReadWriteCloser
	banner string

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint32
	streams map[uint32]*stream
	err     error
	done    chan struct{}
}

// Handshake authenticates over rw and starts the read loop. rw is closed
// if the handshake fails.
func Handshake(ctx context.Context, rw io.ReadWriteCloser, opts HandshakeOptions) (*Conn, error) {
	stop := context.AfterFunc(ctx, func() { rw.Close() })
	defer stop()

	banner, err := handshake(rw, opts)
	if err != nil {
		rw.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if !stop() {
		rw.Close()
		return nil, ctx.Err()
	}

	c := &Conn{
		rw:      rw,
		banner:  banner,
		streams: make(map[uint32]*stream),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func handshake(rw io.ReadWriter, opts HandshakeOptions) (string, error) {
	if err := writePacket(rw, packet{
		command: cmdCNXN,
		arg0:    protocolVersion,
		arg1:    maxPayload,
		data:    []byte("host::\x00"),
	}); err != nil {
		return "", err
	}

	sentSignature := false
	for {
		p, err := readPacket(rw)
		if err != nil {
			return "", err
		}

		switch p.command {
		case cmdCNXN:
			return strings.TrimRight(string(p.data), "\x00"), nil

		case cmdAUTH:
			if p.arg0 != authToken {
				return "", fmt.Errorf("adb: unexpected AUTH type %d", p.arg0)
			}
			if opts.Key == nil {
				return "", ErrAuthRejected
			}
			if !sentSignature {
				sig, err := signToken(opts.Key, p.data)
				if err != nil {
					return "", err
				}
				sentSignature = true
				if err := writePacket(rw, packet{command: cmdAUTH, arg0: authSignature, data: sig}); err != nil {
					return "", err
				}
				continue
			}

			// Signature refused: offer the public key and wait for the user.
			pub, err := encodePublicKey(&opts.Key.PublicKey, keyName())
			if err != nil {
				return "", err
			}
			if err := writePacket(rw, packet{command: cmdAUTH, arg0: authRSAPublicKey, data: pub}); err != nil {
				return "", err
			}
			if opts.OnPrompt != nil {
				opts.OnPrompt()
			}
			return awaitAccept(rw, opts.AcceptTimeout)

		default:
			return "", fmt.Errorf("adb: unexpected %s during handshake", p)
		}
	}
}

func awaitAccept(rw io.ReadWriter, timeout time.Duration) (string, error) {
	type result struct {
		banner string
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			p, err := readPacket(rw)
			if err != nil {
				ch <- result{err: err}
				return
			}
			if p.command == cmdCNXN {
				ch <- result{banner: strings.TrimRight(string(p.data), "\x00")}
				return
			}
			if p.command == cmdAUTH {
				// The device re-challenges when the user dismisses the prompt.
				ch <- result{err: ErrAuthRejected}
				return
			}
		}
	}()

	if timeout <= 0 {
		r := <-ch
		return r.banner, r.err
	}
	select {
	case r := <-ch:
		return r.banner, r.err
	case <-time.After(timeout):
		return "", ErrAuthRejected
	}
}

// Banner returns the device's connect banner, e.g.
// "device::ro.product.name=x;ro.product.model=y;features=shell_v2,cmd".
func (c *Conn) Banner() string {
	return c.banner
}

// Features lists the feature flags advertised in the banner.
func (c *Conn) Features() []string {
	return bannerFeatures(c.banner)
}

func bannerFeatures(banner string) []string {
	_, props, _ := strings.Cut(banner, "::")
	for _, kv := range strings.Split(props, ";") {
		if v, ok := strings.CutPrefix(kv, "features="); ok {
			return strings.Split(v, ",")
		}
	}
	return nil
}

func (c *Conn) send(p packet) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writePacket(c.rw, p)
}

func (c *Conn) readLoop() {
	var err error
	for {
		var p packet
		p, err = readPacket(c.rw)
		if err != nil {
			break
		}

		c.mu.Lock()
		s := c.streams[p.arg1]
		c.mu.Unlock()
		if s == nil {
			if p.command == cmdWRTE {
				// Unknown stream: tell the device to drop it.
				_ = c.send(packet{command: cmdCLSE, arg1: p.arg0})
			}
			continue
		}

		switch p.command {
		case cmdOKAY:
			s.handleOkay(p.arg0)
		case cmdWRTE:
			s.handleWrite(p.data)
			_ = c.send(packet{command: cmdOKAY, arg0: s.localID, arg1: p.arg0})
		case cmdCLSE:
			s.handleClose()
			c.forget(s.localID)
		}
	}

	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	streams := c.streams
	c.streams = map[uint32]*stream{}
	c.mu.Unlock()

	for _, s := range streams {
		s.handleClose()
	}
	close(c.done)
}

func (c *Conn) forget(id uint32) {
	c.mu.Lock()
	delete(c.streams, id)
	c.mu.Unlock()
}

// Open starts a service such as "shell,v2,raw:uname -a" and returns its
// stream once the device acknowledges it.
func (c *Conn) Open(ctx context.Context, service string) (io.ReadWriteCloser, error) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	s := newStream(c, c.nextID)
	c.streams[s.localID] = s
	c.mu.Unlock()

	if err := c.send(packet{command: cmdOPEN, arg0: s.localID, data: append([]byte(service), 0)}); err != nil {
		c.forget(s.localID)
		return nil, err
	}

	select {
	case <-s.ready:
	case <-s.closed:
		c.forget(s.localID)
		return nil, fmt.Errorf("adb: device refused service %q", serviceName(service))
	case <-ctx.Done():
		c.forget(s.localID)
		return nil, ctx.Err()
	}
	return s, nil
}

func serviceName(service string) string {
	name, _, _ := strings.Cut(service, ":")
	return name
}

// Done is closed when the link to the device is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close tears down the link and every open stream.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()
	return c.rw.Close()
}

// stream is one multiplexed service. Writes wait for the device's OKAY
// before the next payload goes out.
type stream struct {
	conn     *Conn
	localID  uint32
	remoteID uint32

	ready     chan struct{}
	readyOnce sync.Once
	acks      chan struct{}

	mu      sync.Mutex
	pending [][]byte
	buf     []byte
	notify  chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

func newStream(c *Conn, id uint32) *stream {
	return &stream{
		conn:    c,
		localID: id,
		ready:   make(chan struct{}),
		acks:    make(chan struct{}, 1),
		notify:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

func (s *stream) handleOkay(remote uint32) {
	first := false
	s.readyOnce.Do(func() {
		s.mu.Lock()
		s.remoteID = remote
		s.mu.Unlock()
		first = true
		close(s.ready)
	})
	if first {
		return
	}
	select {
	case s.acks <- struct{}{}:
	default:
	}
}

func (s *stream) handleWrite(data []byte) {
	s.mu.Lock()
	s.pending = append(s.pending, data)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *stream) handleClose() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Read drains buffered payloads and blocks for more until the device
// closes the stream.
func (s *stream) Read(p []byte) (int, error) {
	for {
		s.mu.Lock()
		if len(s.buf) == 0 && len(s.pending) > 0 {
			s.buf = s.pending[0]
			s.pending = s.pending[1:]
		}
		if len(s.buf) > 0 {
			n := copy(p, s.buf)
			s.buf = s.buf[n:]
			s.mu.Unlock()
			return n, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.closed:
			s.mu.Lock()
			empty := len(s.buf) == 0 && len(s.pending) == 0
			s.mu.Unlock()
			if empty {
				return 0, io.EOF
			}
		}
	}
}

func (s *stream) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > int(maxPayload) {
			chunk = chunk[:maxPayload]
		}
		s.mu.Lock()
		remote := s.remoteID
		s.mu.Unlock()

		if err := s.conn.send(packet{command: cmdWRTE, arg0: s.localID, arg1: remote, data: chunk}); err != nil {
			return written, err
		}
		select {
		case <-s.acks:
		case <-s.closed:
			return written, ErrClosed
		}
		written += len(chunk)
		p = p[len(chunk):]
	}
	return written, nil
}

func (s *stream) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	s.mu.Lock()
	remote := s.remoteID
	s.mu.Unlock()
	s.handleClose()
	s.conn.forget(s.localID)
	return s.conn.send(packet{command: cmdCLSE, arg0: s.localID, arg1: remote})
}

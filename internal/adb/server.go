package adb

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultServerAddr is where the adb server listens unless
// ANDROID_ADB_SERVER_PORT says otherwise.
const DefaultServerAddr = "127.0.0.1:5037"

// ServerError is a FAIL reply from the adb server.
type ServerError struct {
	Request string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("adb server refused %s: %s", e.Request, e.Message)
}

// DeviceInfo is one line of host:devices.
type DeviceInfo struct {
	Serial string
	// State is "device" when usable; also "offline", "unauthorized", ...
	State string
}

// Server speaks the adb server's host protocol: each request is a
// 4-digit hex length followed by the payload, answered by OKAY or FAIL.
type Server struct {
	Addr        string
	DialTimeout time.Duration
}

// NewServer returns a client for the adb server at addr.
func NewServer(addr string) *Server {
	if addr == "" {
		addr = DefaultServerAddr
	}
	return &Server{Addr: addr, DialTimeout: 5 * time.Second}
}

func (s *Server) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: s.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}

// request sends one host-protocol request and waits for its status.
func request(conn net.Conn, req string) error {
	if _, err := fmt.Fprintf(conn, "%04x%s", len(req), req); err != nil {
		return err
	}
	return readStatus(conn, req)
}

func readStatus(r io.Reader, req string) error {
	status := make([]byte, 4)
	if _, err := io.ReadFull(r, status); err != nil {
		return err
	}
	switch string(status) {
	case "OKAY":
		return nil
	case "FAIL":
		msg, err := readLengthPrefixed(r)
		if err != nil {
			return err
		}
		return &ServerError{Request: req, Message: msg}
	default:
		return fmt.Errorf("adb: unexpected server status %q", status)
	}
}

func readLengthPrefixed(r io.Reader) (string, error) {
	hex := make([]byte, 4)
	if _, err := io.ReadFull(r, hex); err != nil {
		return "", err
	}
	n, err := strconv.ParseUint(string(hex), 16, 32)
	if err != nil {
		return "", fmt.Errorf("adb: bad length prefix %q", hex)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", err
	}
	return string(body), nil
}

// query runs a request whose OKAY is followed by one length-prefixed reply.
func (s *Server) query(ctx context.Context, req string) (string, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := request(conn, req); err != nil {
		return "", err
	}
	return readLengthPrefixed(conn)
}

// Devices lists the devices the server knows about.
func (s *Server) Devices(ctx context.Context) ([]DeviceInfo, error) {
	out, err := s.query(ctx, "host:devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

func parseDevices(out string) []DeviceInfo {
	var devices []DeviceInfo
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, DeviceInfo{Serial: fields[0], State: fields[1]})
	}
	return devices
}

// Features returns the feature flags of a device, e.g. shell_v2.
func (s *Server) Features(ctx context.Context, serial string) ([]string, error) {
	out, err := s.query(ctx, "host-serial:"+serial+":features")
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimSpace(out), ","), nil
}

// Kill asks the server to exit, releasing any USB interface it holds.
func (s *Server) Kill(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = request(conn, "host:kill")
	if err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Device returns an Opener that routes services to serial.
func (s *Server) Device(serial string) *ServerDevice {
	return &ServerDevice{server: s, serial: serial}
}

// ServerDevice opens services on one device through the adb server. Each
// Open uses a fresh server connection.
type ServerDevice struct {
	server *Server
	serial string
}

// Serial returns the device serial.
func (d *ServerDevice) Serial() string {
	return d.serial
}

// Open switches a new server connection to the device and starts service.
func (d *ServerDevice) Open(ctx context.Context, service string) (io.ReadWriteCloser, error) {
	conn, err := d.server.dial(ctx)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := request(conn, "host:transport:"+d.serial); err != nil {
		conn.Close()
		return nil, err
	}
	if err := request(conn, service); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

package adb

import (
	"context"
	"crypto/rsa"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/logger"
)

// Route names how a Device is reached.
const (
	RouteTCP    = "tcp"
	RouteUSB    = "usb"
	RouteServer = "server"
)

// acceptTimeout bounds the wait for the user to allow debugging on the
// device after a new key is offered.
const acceptTimeout = 60 * time.Second

// Options configures Connect.
type Options struct {
	ServerAddr     string
	KeyPath        string
	USB            bool
	ConnectTimeout time.Duration
	// Pick chooses among several server devices. Nil makes that case an
	// error listing the serials.
	Pick func(serials []string) (string, error)
	// OnAuthPrompt is called when the device shows its debugging prompt.
	OnAuthPrompt func()
	// OpenUSB claims the USB device. Defaults to the package OpenUSB.
	OpenUSB func() (USBLink, error)
	Logger  logger.Logger
}

// Device is a connected Android device.
type Device struct {
	opener  Opener
	closer  io.Closer
	serial  string
	route   string
	shellV2 bool
}

// Shell runs cmd on the device.
func (d *Device) Shell(ctx context.Context, cmd string) (*ShellResult, error) {
	return Shell(ctx, d.opener, cmd, d.shellV2)
}

// Serial identifies the device: its serial number or ip:port.
func (d *Device) Serial() string { return d.serial }

// Route reports whether the device is reached over tcp, usb or the server.
func (d *Device) Route() string { return d.route }

// ShellV2 reports whether the device supports the v2 shell protocol.
func (d *Device) ShellV2() bool { return d.shellV2 }

// Close releases the device link. Server-routed devices hold nothing open.
func (d *Device) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Connect reaches the device named by addr.
func Connect(ctx context.Context, addr Address, opts Options) (*Device, error) {
	log := logger.Or(opts.Logger)
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	switch addr.Mode {
	case ModeDirect:
		return connectTCP(ctx, addr, opts, log)
	case ModeServer:
		return connectServer(ctx, NewServer(opts.ServerAddr), addr.Serial, opts)
	default:
		return connectAuto(ctx, opts, log)
	}
}

func connectTCP(ctx context.Context, addr Address, opts Options, log logger.Logger) (*Device, error) {
	target := net.JoinHostPort(addr.Host, strconv.Itoa(addr.Port))
	d := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Can't reach adbd at %s", target),
			"Enable wireless debugging on the device, or run: adb tcpip 5555")
	}

	c, err := handshakeLink(ctx, conn, opts, log)
	if err != nil {
		return nil, err
	}
	return &Device{opener: c, closer: c, serial: target, route: RouteTCP, shellV2: hasShellV2(c.Features())}, nil
}

func connectAuto(ctx context.Context, opts Options, log logger.Logger) (*Device, error) {
	server := NewServer(opts.ServerAddr)

	if opts.USB {
		openUSB := opts.OpenUSB
		if openUSB == nil {
			openUSB = OpenUSB
		}

		link, err := openUSB()
		if stderrors.Is(err, ErrUSBBusy) {
			log.Info("USB device is held by the adb server, asking it to exit")
			if killErr := server.Kill(ctx); killErr != nil {
				log.Debug("adb server kill: %v", killErr)
			}
			link, err = openUSB()
		}
		if err == nil {
			c, err := handshakeLink(ctx, link, opts, log)
			if err != nil {
				return nil, err
			}
			return &Device{opener: c, closer: c, serial: link.Serial(), route: RouteUSB, shellV2: hasShellV2(c.Features())}, nil
		}
		log.Debug("USB discovery: %v", err)
	}

	devices, err := server.Devices(ctx)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrResolve,
			"No USB device found and the adb server isn't reachable",
			"Plug in one device, start the server with 'adb start-server', or pass -s <ip[:port]>.")
	}

	var serials []string
	for _, dev := range devices {
		if dev.State == "device" {
			serials = append(serials, dev.Serial)
		}
	}

	switch len(serials) {
	case 0:
		return nil, errors.New(errors.ErrResolve,
			"No Android devices found",
			"Check the cable and that USB debugging is enabled, or pass -s <ip[:port]>.")
	case 1:
		return connectServer(ctx, server, serials[0], opts)
	}

	if opts.Pick == nil {
		return nil, errors.New(errors.ErrResolve,
			fmt.Sprintf("Several devices attached: %s", strings.Join(serials, ", ")),
			"Pick one with: sbctool adb -s <serial>")
	}
	serial, err := opts.Pick(serials)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrResolve, "No device selected", "")
	}
	return connectServer(ctx, server, serial, opts)
}

func connectServer(ctx context.Context, server *Server, serial string, opts Options) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	devices, err := server.Devices(ctx)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrResolve,
			fmt.Sprintf("Can't ask the adb server at %s about '%s'", server.Addr, serial),
			"Start it with: adb start-server")
	}

	idx := slices.IndexFunc(devices, func(d DeviceInfo) bool { return d.Serial == serial })
	if idx == -1 {
		return nil, errors.New(errors.ErrResolve,
			fmt.Sprintf("Device '%s' isn't attached", serial),
			"List devices with: adb devices")
	}
	if state := devices[idx].State; state != "device" {
		code := errors.ErrResolve
		suggestion := "Reconnect the device and try again."
		if state == "unauthorized" {
			code = errors.ErrAuth
			suggestion = "Accept the USB debugging prompt on the device."
		}
		return nil, errors.New(code, fmt.Sprintf("Device '%s' is %s", serial, state), suggestion)
	}

	features, err := server.Features(ctx, serial)
	if err != nil {
		features = nil
	}
	return &Device{opener: server.Device(serial), serial: serial, route: RouteServer, shellV2: hasShellV2(features)}, nil
}

func handshakeLink(ctx context.Context, link io.ReadWriteCloser, opts Options, log logger.Logger) (*Conn, error) {
	key, err := hostKey(opts.KeyPath, log)
	if err != nil {
		link.Close()
		return nil, errors.WrapWithCode(err, errors.ErrAuth, "Couldn't prepare an adb key", "")
	}

	hctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout+acceptTimeout)
	defer cancel()

	c, err := Handshake(hctx, link, HandshakeOptions{
		Key:           key,
		AcceptTimeout: acceptTimeout,
		OnPrompt:      opts.OnAuthPrompt,
	})
	if err != nil {
		if stderrors.Is(err, ErrAuthRejected) {
			return nil, errors.WrapWithCode(err, errors.ErrAuth,
				"The device didn't authorize this computer",
				"Accept the 'Allow USB debugging?' prompt on the device and try again.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrTransport,
			"adb handshake failed",
			"Make sure debugging is enabled on the device.")
	}
	return c, nil
}

// hostKey loads the adb key at path, or makes a throwaway one.
func hostKey(path string, log logger.Logger) (*rsa.PrivateKey, error) {
	if path != "" {
		key, err := LoadKey(path)
		if err == nil {
			return key, nil
		}
		log.Debug("adb key %s unusable (%v), using a temporary key", path, err)
	}
	return GenerateKey()
}

func hasShellV2(features []string) bool {
	return slices.Contains(features, "shell_v2")
}

package adb

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestKey(t *testing.T) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(testKey(t))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "adbkey")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0600))
	return path
}

func devicesServer(t *testing.T, list string) *fakeServer {
	return newFakeServer(t, func(req string, conn net.Conn) bool {
		switch req {
		case "host:devices":
			okay(conn, list)
		case "host-serial:emulator-5554:features", "host-serial:R58M42:features":
			okay(conn, "shell_v2,cmd")
		default:
			fail(conn, "unexpected "+req)
		}
		return false
	})
}

func TestConnect_Direct(t *testing.T) {
	key := testKey(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	errc := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			errc <- err
			return
		}
		defer conn.Close()
		d := &fakeDevice{conn: conn}
		errc <- d.acceptSignature(&key.PublicKey)
		_, _ = readPacket(conn)
	}()

	tcp := ln.Addr().(*net.TCPAddr)
	dev, err := Connect(context.Background(),
		Address{Mode: ModeDirect, Host: "127.0.0.1", Port: tcp.Port},
		Options{KeyPath: writeTestKey(t), ConnectTimeout: 2 * time.Second, Logger: logger.Noop()})
	require.NoError(t, err)
	defer dev.Close()
	require.NoError(t, <-errc)

	assert.Equal(t, RouteTCP, dev.Route())
	assert.Equal(t, ln.Addr().String(), dev.Serial())
	assert.True(t, dev.ShellV2())
}

func TestConnect_DirectUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Connect(context.Background(), Address{Mode: ModeDirect, Host: "127.0.0.1", Port: port},
		Options{ConnectTimeout: time.Second, Logger: logger.Noop()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTransport))
}

func TestConnect_ServerSerial(t *testing.T) {
	srv := devicesServer(t, "emulator-5554\tdevice\n")

	dev, err := Connect(context.Background(), ParseAddress("emulator-5554", 5555),
		Options{ServerAddr: srv.addr(), Logger: logger.Noop()})
	require.NoError(t, err)

	assert.Equal(t, RouteServer, dev.Route())
	assert.Equal(t, "emulator-5554", dev.Serial())
	assert.True(t, dev.ShellV2())
	assert.NoError(t, dev.Close())
}

func TestConnect_ServerSerialMissing(t *testing.T) {
	srv := devicesServer(t, "emulator-5554\tdevice\n")

	_, err := Connect(context.Background(), ParseAddress("nope", 5555),
		Options{ServerAddr: srv.addr(), Logger: logger.Noop()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrResolve))
}

func TestConnect_ServerUnauthorized(t *testing.T) {
	srv := devicesServer(t, "R58M42\tunauthorized\n")

	_, err := Connect(context.Background(), ParseAddress("R58M42", 5555),
		Options{ServerAddr: srv.addr(), Logger: logger.Noop()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAuth))
}

func TestConnect_AutoSingleDevice(t *testing.T) {
	srv := devicesServer(t, "emulator-5554\tdevice\nR58M42\toffline\n")

	dev, err := Connect(context.Background(), Address{Mode: ModeAuto},
		Options{ServerAddr: srv.addr(), Logger: logger.Noop()})
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", dev.Serial())
}

func TestConnect_AutoNoDevices(t *testing.T) {
	srv := devicesServer(t, "")

	_, err := Connect(context.Background(), Address{Mode: ModeAuto},
		Options{ServerAddr: srv.addr(), Logger: logger.Noop()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrResolve))
	assert.Contains(t, err.Error(), "No Android devices found")
}

func TestConnect_AutoSeveralDevices(t *testing.T) {
	srv := devicesServer(t, "emulator-5554\tdevice\nR58M42\tdevice\n")

	_, err := Connect(context.Background(), Address{Mode: ModeAuto},
		Options{ServerAddr: srv.addr(), Logger: logger.Noop()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrResolve))
	assert.Contains(t, err.Error(), "emulator-5554, R58M42")

	var offered []string
	dev, err := Connect(context.Background(), Address{Mode: ModeAuto}, Options{
		ServerAddr: srv.addr(),
		Logger:     logger.Noop(),
		Pick: func(serials []string) (string, error) {
			offered = serials
			return "R58M42", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"emulator-5554", "R58M42"}, offered)
	assert.Equal(t, "R58M42", dev.Serial())
}

func TestConnect_AutoServerDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Connect(context.Background(), Address{Mode: ModeAuto},
		Options{ServerAddr: addr, Logger: logger.Noop()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrResolve))
}

func TestHostKey_FallsBackToGenerated(t *testing.T) {
	key, err := hostKey(filepath.Join(t.TempDir(), "missing"), logger.Noop())
	require.NoError(t, err)
	assert.Equal(t, rsaKeyBits, key.N.BitLen())
}

// pipeLink is a USBLink over one end of a net.Pipe.
type pipeLink struct {
	net.Conn
	serial string
}

func (l *pipeLink) Serial() string { return l.serial }

// usbOpens returns an OpenUSB replacement that answers from results in turn
// and counts its calls.
func usbOpens(results ...func() (USBLink, error)) (func() (USBLink, error), *int) {
	calls := new(int)
	return func() (USBLink, error) {
		r := results[min(*calls, len(results)-1)]
		*calls++
		return r()
	}, calls
}

func usbErr(err error) func() (USBLink, error) {
	return func() (USBLink, error) { return nil, err }
}

// killableServer lists list and accepts host:kill the way a real server
// does, by closing the connection.
func killableServer(t *testing.T, list string) *fakeServer {
	return newFakeServer(t, func(req string, conn net.Conn) bool {
		switch req {
		case "host:kill":
		case "host:devices":
			okay(conn, list)
		case "host-serial:emulator-5554:features":
			okay(conn, "shell_v2")
		default:
			fail(conn, "unexpected "+req)
		}
		return false
	})
}

func TestConnect_AutoUSBBusyRetriesAfterKill(t *testing.T) {
	key := testKey(t)
	srv := killableServer(t, "")

	host, errc := runDevice(func(d *fakeDevice) error {
		return d.acceptSignature(&key.PublicKey)
	})

	open, calls := usbOpens(
		usbErr(fmt.Errorf("claim interface: %w", ErrUSBBusy)),
		func() (USBLink, error) { return &pipeLink{Conn: host, serial: "RK3588USB"}, nil },
	)

	dev, err := Connect(context.Background(), Address{Mode: ModeAuto}, Options{
		ServerAddr:     srv.addr(),
		KeyPath:        writeTestKey(t),
		USB:            true,
		OpenUSB:        open,
		ConnectTimeout: 2 * time.Second,
		Logger:         logger.Noop(),
	})
	require.NoError(t, err)
	defer dev.Close()
	require.NoError(t, <-errc)

	assert.Equal(t, 2, *calls, "one retry after the kill")
	assert.Equal(t, []string{"host:kill"}, srv.seen())
	assert.Equal(t, RouteUSB, dev.Route())
	assert.Equal(t, "RK3588USB", dev.Serial())
}

func TestConnect_AutoUSBStillBusyFallsBackToServer(t *testing.T) {
	srv := killableServer(t, "emulator-5554\tdevice\n")
	open, calls := usbOpens(usbErr(ErrUSBBusy))

	dev, err := Connect(context.Background(), Address{Mode: ModeAuto}, Options{
		ServerAddr: srv.addr(),
		USB:        true,
		OpenUSB:    open,
		Logger:     logger.Noop(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, *calls, "busy twice means no third attempt")
	seen := srv.seen()
	require.NotEmpty(t, seen)
	assert.Equal(t, "host:kill", seen[0])
	assert.Contains(t, seen, "host:devices")
	assert.Equal(t, RouteServer, dev.Route())
	assert.Equal(t, "emulator-5554", dev.Serial())
}

func TestConnect_AutoNoUSBDeviceSkipsKill(t *testing.T) {
	srv := killableServer(t, "emulator-5554\tdevice\n")
	open, calls := usbOpens(usbErr(ErrNoUSBDevice))

	dev, err := Connect(context.Background(), Address{Mode: ModeAuto}, Options{
		ServerAddr: srv.addr(),
		USB:        true,
		OpenUSB:    open,
		Logger:     logger.Noop(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
	assert.NotContains(t, srv.seen(), "host:kill")
	assert.Equal(t, RouteServer, dev.Route())
}

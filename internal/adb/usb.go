//go:build cgo && !nousb

package adb

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/gousb"
)

// USB interface triple that identifies adbd.
const (
	usbClass    = gousb.ClassVendorSpec
	usbSubClass = 0x42
	usbProtocol = 0x01
)

// usbLink is a bulk IN/OUT endpoint pair on a claimed adb interface.
type usbLink struct {
	usb    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	ctx    context.Context
	cancel context.CancelFunc
}

func (l *usbLink) Read(p []byte) (int, error) {
	return l.in.ReadContext(l.ctx, p)
}

func (l *usbLink) Write(p []byte) (int, error) {
	return l.out.WriteContext(l.ctx, p)
}

func (l *usbLink) Close() error {
	l.cancel()
	l.intf.Close()
	l.cfg.Close()
	l.dev.Close()
	return l.usb.Close()
}

// adbSetting locates the adb interface in a device descriptor.
type adbSetting struct {
	config   int
	iface    int
	alt      int
	inEP     int
	outEP    int
	hasInOut bool
}

func findADBSetting(desc *gousb.DeviceDesc) (adbSetting, bool) {
	for cfgNum, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class != usbClass || alt.SubClass != usbSubClass || alt.Protocol != usbProtocol {
					continue
				}
				s := adbSetting{config: cfgNum, iface: alt.Number, alt: alt.Alternate}
				var haveIn, haveOut bool
				for _, ep := range alt.Endpoints {
					if ep.TransferType != gousb.TransferTypeBulk {
						continue
					}
					if ep.Direction == gousb.EndpointDirectionIn {
						s.inEP, haveIn = ep.Number, true
					} else {
						s.outEP, haveOut = ep.Number, true
					}
				}
				s.hasInOut = haveIn && haveOut
				if s.hasInOut {
					return s, true
				}
			}
		}
	}
	return adbSetting{}, false
}

// OpenUSB claims the adb interface of the only attached Android device.
// It returns ErrNoUSBDevice unless exactly one is present, and wraps
// ErrUSBBusy when another process (usually the adb server) holds it.
func OpenUSB() (USBLink, error) {
	usb := gousb.NewContext()
	type busAddr struct{ bus, addr int }
	settings := map[busAddr]adbSetting{}
	devs, openErr := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		s, ok := findADBSetting(desc)
		if ok {
			settings[busAddr{desc.Bus, desc.Address}] = s
		}
		return ok
	})
	if len(devs) != 1 {
		for _, d := range devs {
			d.Close()
		}
		usb.Close()
		if len(devs) == 0 && openErr != nil {
			return nil, classifyUSBError(openErr)
		}
		return nil, fmt.Errorf("%w (found %d)", ErrNoUSBDevice, len(devs))
	}

	dev := devs[0]
	fail := func(err error) (USBLink, error) {
		dev.Close()
		usb.Close()
		return nil, classifyUSBError(err)
	}

	s := settings[busAddr{dev.Desc.Bus, dev.Desc.Address}]
	_ = dev.SetAutoDetach(true)
	cfg, err := dev.Config(s.config)
	if err != nil {
		return fail(err)
	}
	intf, err := cfg.Interface(s.iface, s.alt)
	if err != nil {
		cfg.Close()
		return fail(err)
	}
	in, err := intf.InEndpoint(s.inEP)
	if err != nil {
		intf.Close()
		cfg.Close()
		return fail(err)
	}
	out, err := intf.OutEndpoint(s.outEP)
	if err != nil {
		intf.Close()
		cfg.Close()
		return fail(err)
	}

	serial, _ := dev.SerialNumber()
	ctx, cancel := context.WithCancel(context.Background())
	return &usbDevice{
		usbLink: &usbLink{usb: usb, dev: dev, cfg: cfg, intf: intf, in: in, out: out, ctx: ctx, cancel: cancel},
		serial:  serial,
	}, nil
}

type usbDevice struct {
	*usbLink
	serial string
}

func (d *usbDevice) Serial() string { return d.serial }

func classifyUSBError(err error) error {
	if stderrors.Is(err, gousb.ErrorBusy) {
		return fmt.Errorf("%w: %v", ErrUSBBusy, err)
	}
	return fmt.Errorf("adb: usb: %w", err)
}

package adb

import (
	stderrors "errors"
	"io"
)

// USBLink is a claimed adb USB interface.
type USBLink interface {
	io.ReadWriteCloser
	Serial() string
}

var (
	// ErrNoUSBDevice means zero or several adb USB devices are attached.
	ErrNoUSBDevice = stderrors.New("adb: no single USB device")
	// ErrUSBBusy means another process holds the device's adb interface.
	ErrUSBBusy = stderrors.New("adb: USB interface busy")
	// ErrUSBUnavailable means this build has no USB support.
	ErrUSBUnavailable = stderrors.New("adb: built without USB support")
)

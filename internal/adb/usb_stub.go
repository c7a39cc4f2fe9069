//go:build !cgo || nousb

package adb

// OpenUSB always fails in builds without cgo or with the nousb tag.
func OpenUSB() (USBLink, error) {
	return nil, ErrUSBUnavailable
}

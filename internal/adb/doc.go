// Package adb talks to Android devices without the adb binary.
//
// Three routes reach a device. A direct TCP connection or a USB bulk
// interface speaks the device wire protocol (CNXN/AUTH/OPEN/WRTE/OKAY/CLSE)
// and multiplexes shell streams over one link. A serial number is routed
// through the local adb server using its host protocol. Connect picks the
// route from an Address.
package adb

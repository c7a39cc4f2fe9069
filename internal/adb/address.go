package adb

import (
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the adbd TCP port used when an address carries none.
const DefaultPort = 5555

// Mode says how a device is reached.
type Mode int

const (
	// ModeAuto tries USB first, then the adb server's device list.
	ModeAuto Mode = iota
	// ModeDirect is a TCP connection straight to adbd.
	ModeDirect
	// ModeServer routes through the local adb server by serial.
	ModeServer
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeServer:
		return "server"
	default:
		return "auto"
	}
}

// Address is a classified device address.
type Address struct {
	Mode   Mode
	Host   string
	Port   int
	Serial string
}

// String renders the address the way a user would type it.
func (a Address) String() string {
	switch a.Mode {
	case ModeDirect:
		return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
	case ModeServer:
		return a.Serial
	default:
		return "auto"
	}
}

// ParseAddress classifies s by specificity:
//
//	host:port   direct TCP
//	ip          direct TCP on defaultPort
//	anything    serial routed through the adb server
//	""          auto-discovery
func ParseAddress(s string, defaultPort int) Address {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{Mode: ModeAuto}
	}
	if defaultPort <= 0 {
		defaultPort = DefaultPort
	}

	if host, portStr, err := net.SplitHostPort(s); err == nil && host != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 && port <= 65535 {
			return Address{Mode: ModeDirect, Host: host, Port: port}
		}
	}

	if ip := net.ParseIP(strings.Trim(s, "[]")); ip != nil {
		return Address{Mode: ModeDirect, Host: ip.String(), Port: defaultPort}
	}

	return Address{Mode: ModeServer, Serial: s}
}

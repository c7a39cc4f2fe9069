package adb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want Address
	}{
		{"", Address{Mode: ModeAuto}},
		{"   ", Address{Mode: ModeAuto}},
		{"192.168.1.15:5555", Address{Mode: ModeDirect, Host: "192.168.1.15", Port: 5555}},
		{"192.168.1.15", Address{Mode: ModeDirect, Host: "192.168.1.15", Port: 5555}},
		{"phone.lan:40123", Address{Mode: ModeDirect, Host: "phone.lan", Port: 40123}},
		{"[fe80::1]:5555", Address{Mode: ModeDirect, Host: "fe80::1", Port: 5555}},
		{"fe80::1", Address{Mode: ModeDirect, Host: "fe80::1", Port: 5555}},
		{"emulator-5554", Address{Mode: ModeServer, Serial: "emulator-5554"}},
		{"R58M42ABCDE", Address{Mode: ModeServer, Serial: "R58M42ABCDE"}},
		{"host:notaport", Address{Mode: ModeServer, Serial: "host:notaport"}},
		{"host:0", Address{Mode: ModeServer, Serial: "host:0"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAddress(tt.in, 5555))
		})
	}
}

func TestParseAddress_DefaultPort(t *testing.T) {
	assert.Equal(t, 6000, ParseAddress("10.0.0.5", 6000).Port)
	assert.Equal(t, DefaultPort, ParseAddress("10.0.0.5", 0).Port)
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "10.0.0.5:5555", ParseAddress("10.0.0.5", 5555).String())
	assert.Equal(t, "emulator-5554", ParseAddress("emulator-5554", 5555).String())
	assert.Equal(t, "auto", ParseAddress("", 5555).String())
	assert.Equal(t, "direct", ModeDirect.String())
	assert.Equal(t, "server", ModeServer.String())
	assert.Equal(t, "auto", ModeAuto.String())
}

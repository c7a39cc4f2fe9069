package sshutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolver(t *testing.T, userConfig string, sshG map[string]string, env map[string]string) *Resolver {
	t.Helper()
	r := &Resolver{
		UseSSHG:          sshG != nil,
		UserConfigPath:   filepath.Join(t.TempDir(), "missing"),
		SystemConfigPath: filepath.Join(t.TempDir(), "missing"),
		Getenv:           func(k string) string { return env[k] },
	}
	if userConfig != "" {
		r.UserConfigPath = writeSSHConfig(t, userConfig)
	}
	if sshG != nil {
		r.SSHG = func(_ context.Context, alias string) ([]byte, error) {
			out, ok := sshG[alias]
			if !ok {
				return nil, fmt.Errorf("ssh: no output")
			}
			return []byte(out), nil
		}
	}
	return r
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec  string
		user  string
		alias string
		port  string
	}{
		{"rpi", "", "rpi", ""},
		{"pi@rpi", "pi", "rpi", ""},
		{"pi@192.168.1.20:2222", "pi", "192.168.1.20", "2222"},
		{"rpi:22", "", "rpi", "22"},
		{"rpi:notaport", "", "rpi:notaport", ""},
		{"[fe80::1]:2200", "", "fe80::1", "2200"},
		{"fe80::1", "", "fe80::1", ""},
		{"@rpi", "", "rpi", ""},
		{"  rpi  ", "", "rpi", ""},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			target, err := parseSpec(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.user, target.User)
			assert.Equal(t, tt.alias, target.Alias)
			assert.Equal(t, tt.port, target.Port)
		})
	}
}

func TestParseSpec_Invalid(t *testing.T) {
	for _, spec := range []string{"", "   ", "pi@", "two words"} {
		t.Run(spec, func(t *testing.T) {
			_, err := parseSpec(spec)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrResolve))
		})
	}
}

func TestResolve_ExplicitUserWins(t *testing.T) {
	r := testResolver(t, `
Host rpi
    HostName 10.0.0.2
    User configuser
`, nil, map[string]string{"USER": "envuser"})

	target, err := r.Resolve(context.Background(), "pi@rpi")
	require.NoError(t, err)
	assert.Equal(t, "pi", target.User)
	assert.Equal(t, "10.0.0.2", target.Hostname)
	assert.Equal(t, "22", target.Port)
	assert.Equal(t, "10.0.0.2:22", target.Address())
	assert.Equal(t, "pi@10.0.0.2", target.Login())
}

func TestResolve_SSHGPreferredOverConfig(t *testing.T) {
	r := testResolver(t, `
Host rpi
    HostName 10.0.0.2
    User configuser
`, map[string]string{
		"rpi": "user sshguser\nhostname 10.0.0.9\nport 2222\nidentityfile /keys/id_rpi\nidentityfile /keys/id_other\n",
	}, nil)

	target, err := r.Resolve(context.Background(), "rpi")
	require.NoError(t, err)
	assert.Equal(t, "sshguser", target.User)
	assert.Equal(t, "ssh -G", target.UserSource)
	assert.Equal(t, "10.0.0.9", target.Hostname)
	assert.Equal(t, "2222", target.Port)
	assert.Equal(t, []string{"/keys/id_rpi", "/keys/id_other"}, target.IdentityFiles)
}

func TestResolve_SSHGFailureFallsBackToConfig(t *testing.T) {
	r := testResolver(t, `
Host rpi
    HostName 10.0.0.2
    Port 2200
    User configuser
    IdentityFile /keys/id_rpi
`, map[string]string{}, nil)

	target, err := r.Resolve(context.Background(), "rpi")
	require.NoError(t, err)
	assert.Equal(t, "configuser", target.User)
	assert.Equal(t, "~/.ssh/config", target.UserSource)
	assert.Equal(t, "10.0.0.2:2200", target.Address())
	assert.Equal(t, []string{"/keys/id_rpi"}, target.IdentityFiles)
}

func TestResolve_SSHGDisabledByEnv(t *testing.T) {
	r := testResolver(t, "", map[string]string{"rpi": "user sshguser\nhostname rpi\n"},
		map[string]string{NoSSHGEnv: "1", "USER": "envuser"})

	target, err := r.Resolve(context.Background(), "rpi")
	require.NoError(t, err)
	assert.Equal(t, "envuser", target.User)
	assert.Equal(t, "$USER", target.UserSource)
}

func TestResolve_EnvFallbacks(t *testing.T) {
	r := testResolver(t, "", nil, map[string]string{"LOGNAME": "loguser"})

	target, err := r.Resolve(context.Background(), "10.0.0.3:2022")
	require.NoError(t, err)
	assert.Equal(t, "loguser", target.User)
	assert.Equal(t, "10.0.0.3", target.Hostname)
	assert.Equal(t, "2022", target.Port)
}

func TestResolve_NoUser(t *testing.T) {
	r := testResolver(t, "", nil, map[string]string{})

	_, err := r.Resolve(context.Background(), "rpi")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrResolve))
}

func TestParseSSHGOutput(t *testing.T) {
	s, ok := parseSSHGOutput([]byte("host rpi\nuser pi\nhostname 10.0.0.2\nport 22\nidentityfile ~/.ssh/id_ed25519\n"))
	require.True(t, ok)
	assert.Equal(t, "pi", s.user)
	assert.Equal(t, "10.0.0.2", s.hostname)
	assert.Equal(t, "22", s.port)
	assert.Equal(t, []string{expandPath("~/.ssh/id_ed25519")}, s.identityFiles)

	_, ok = parseSSHGOutput([]byte("garbage"))
	assert.False(t, ok)
}

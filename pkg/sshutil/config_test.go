package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestListHostsFile(t *testing.T) {
	configPath := writeSSHConfig(t, `
Host rpi
    HostName 192.168.1.100
    User pi
    Port 22
    IdentityFile ~/.ssh/id_rpi

Host rock5b
    HostName rock5b.lan
    User radxa

Host *
    ServerAliveInterval 60

Host lab-*
    User labuser
`)

	hosts, err := ListHostsFile(configPath)
	require.NoError(t, err)

	// Wildcards (*) and patterns (lab-*) are excluded
	require.Len(t, hosts, 2)

	assert.Equal(t, "rock5b", hosts[0].Alias)
	assert.Equal(t, "rpi", hosts[1].Alias)

	rpi := hosts[1]
	assert.Equal(t, "192.168.1.100", rpi.Hostname)
	assert.Equal(t, "pi", rpi.User)
	assert.Equal(t, "22", rpi.Port)

	rock := hosts[0]
	assert.Equal(t, "rock5b.lan", rock.Hostname)
	assert.Equal(t, "radxa", rock.User)
	assert.Equal(t, "", rock.Port)
}

func TestListHostsFile_NotExists(t *testing.T) {
	hosts, err := ListHostsFile("/nonexistent/config")

	assert.NoError(t, err)
	assert.Nil(t, hosts)
}

func TestListHostsFile_StopsAtMatch(t *testing.T) {
	configPath := writeSSHConfig(t, `
Host before-match
    HostName before.example.com

Match host *.example.com
    User matchuser

Host after-match
    HostName after.example.com
`)

	hosts, err := ListHostsFile(configPath)
	require.NoError(t, err)

	require.Len(t, hosts, 1)
	assert.Equal(t, "before-match", hosts[0].Alias)
}

func TestListHostsFile_MultiplePatternsAndDuplicates(t *testing.T) {
	configPath := writeSSHConfig(t, `
Host opi opi5
    HostName 10.0.0.5

Host opi
    User orangepi

Host !bad
    User nobody
`)

	hosts, err := ListHostsFile(configPath)
	require.NoError(t, err)

	var aliases []string
	for _, h := range hosts {
		aliases = append(aliases, h.Alias)
	}
	assert.Equal(t, []string{"opi", "opi5"}, aliases)
}

func TestListHostsFile_SkipsNegatedPatterns(t *testing.T) {
	configPath := writeSSHConfig(t, `
Host rock !rock-old
    HostName 192.168.1.20

Host !jump
    ProxyJump bastion
`)

	hosts, err := ListHostsFile(configPath)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "rock", hosts[0].Alias)
	assert.Equal(t, "192.168.1.20", hosts[0].Hostname)
}

func TestListHostsFile_Empty(t *testing.T) {
	hosts, err := ListHostsFile(writeSSHConfig(t, "# only comments\n"))
	require.NoError(t, err)
	assert.Empty(t, hosts)
}

func TestHostEntryDescription(t *testing.T) {
	tests := []struct {
		name     string
		entry    HostEntry
		expected string
	}{
		{
			name:     "full entry",
			entry:    HostEntry{Alias: "rpi", Hostname: "192.168.1.100", User: "pi", Port: "2222"},
			expected: "192.168.1.100, user: pi, port: 2222",
		},
		{
			name:     "default port",
			entry:    HostEntry{Alias: "rpi", Hostname: "192.168.1.100", User: "pi", Port: "22"},
			expected: "192.168.1.100, user: pi",
		},
		{
			name:     "hostname same as alias",
			entry:    HostEntry{Alias: "rpi", Hostname: "rpi", User: "pi"},
			expected: "user: pi",
		},
		{
			name:     "only port",
			entry:    HostEntry{Alias: "rpi", Port: "2200"},
			expected: "port: 2200",
		},
		{
			name:     "minimal entry",
			entry:    HostEntry{Alias: "rpi"},
			expected: "rpi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.entry.Description())
		})
	}
}

func TestHostEntryCompletion(t *testing.T) {
	e := HostEntry{Alias: "rpi", Hostname: "10.0.0.2"}
	assert.Equal(t, "rpi\t10.0.0.2", e.Completion())
}

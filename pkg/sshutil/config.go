package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// HostEntry is a concrete Host alias from an ssh_config file.
type HostEntry struct {
	Alias    string // The Host pattern (alias)
	Hostname string // The HostName value (actual host to connect to)
	User     string
	Port     string
}

// Description returns a user-friendly description of the host.
func (h HostEntry) Description() string {
	parts := []string{}

	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}

	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}

	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}

	if len(parts) == 0 {
		return h.Alias
	}

	return strings.Join(parts, ", ")
}

// Completion formats the entry for shell completion ("alias\tdescription").
func (h HostEntry) Completion() string {
	return h.Alias + "\t" + h.Description()
}

// ListHosts parses ~/.ssh/config and returns its concrete host aliases.
// Wildcard patterns are skipped.
func ListHosts() ([]HostEntry, error) {
	return ListHostsFile(filepath.Join(homeDir(), ".ssh", "config"))
}

// ListHostsFile parses the specified SSH config file.
func ListHostsFile(configPath string) ([]HostEntry, error) {
	content, _, err := preprocessSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No SSH config is fine
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var hosts []HostEntry
	seen := make(map[string]bool)

	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()

			if strings.ContainsAny(alias, "*?!") {
				continue
			}
			// String drops the "!" of a negated pattern; Matches does not.
			if !host.Matches(alias) {
				continue
			}
			if seen[alias] {
				continue
			}
			seen[alias] = true

			entry := HostEntry{Alias: alias}
			entry.Hostname, _ = cfg.Get(alias, "HostName")
			entry.User, _ = cfg.Get(alias, "User")
			entry.Port, _ = cfg.Get(alias, "Port")

			hosts = append(hosts, entry)
		}
	}

	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Alias < hosts[j].Alias
	})

	return hosts, nil
}

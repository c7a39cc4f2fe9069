package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/crypto/ssh/agent"

	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/util"
	"github.com/sbctool/sbctool/pkg/sshutil"
)

// SSHKeyCheck verifies one of the default identity files exists.
type SSHKeyCheck struct {
	// Keys are the private key paths to look for. Defaults to
	// sshutil.DefaultIdentityFiles.
	Keys []string
}

func (c *SSHKeyCheck) Name() string     { return "ssh_key" }
func (c *SSHKeyCheck) Category() string { return CategorySSH }

func (c *SSHKeyCheck) keys() []string {
	if len(c.Keys) > 0 {
		return c.Keys
	}
	return sshutil.DefaultIdentityFiles()
}

func (c *SSHKeyCheck) Run(context.Context) CheckResult {
	for _, keyPath := range c.keys() {
		if _, err := os.Stat(keyPath); err == nil {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: fmt.Sprintf("SSH key found: %s", filepath.Base(keyPath)),
			}
		}
	}

	// Agent keys, IdentityFile entries and passwords still work.
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    "No default SSH key found",
		Suggestion: "Generate a key with: ssh-keygen -t ed25519\nThen copy it to the board: ssh-copy-id <user@host>",
	}
}

func (c *SSHKeyCheck) Fix() error {
	return nil // Generating keys is too invasive for --fix
}

// SSHAgentCheck verifies the SSH agent is reachable and holds keys.
type SSHAgentCheck struct{}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return CategorySSH }

func (c *SSHAgentCheck) Run(ctx context.Context) CheckResult {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Fix: eval $(ssh-agent) && ssh-add",
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Fix: eval $(ssh-agent) && ssh-add",
		}
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Cannot query SSH agent: %v", err),
			Suggestion: "Check SSH agent: ssh-add -l",
		}
	}

	if len(keys) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %d %s loaded", len(keys), util.Pluralize(len(keys), "key", "keys")),
	}
}

func (c *SSHAgentCheck) Fix() error {
	return nil // ssh-add is interactive
}

// SSHKeyPermissionsCheck verifies private keys are not group or world
// readable, which OpenSSH refuses.
type SSHKeyPermissionsCheck struct {
	Keys []string
}

func (c *SSHKeyPermissionsCheck) Name() string     { return "ssh_key_permissions" }
func (c *SSHKeyPermissionsCheck) Category() string { return CategorySSH }

func (c *SSHKeyPermissionsCheck) keys() []string {
	if len(c.Keys) > 0 {
		return c.Keys
	}
	return sshutil.DefaultIdentityFiles()
}

func (c *SSHKeyPermissionsCheck) insecure() []string {
	var bad []string
	for _, keyPath := range c.keys() {
		info, err := os.Stat(keyPath)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o077 != 0 {
			bad = append(bad, keyPath)
		}
	}
	return bad
}

func (c *SSHKeyPermissionsCheck) Run(context.Context) CheckResult {
	bad := c.insecure()
	if len(bad) == 0 {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "SSH key permissions OK",
		}
	}

	names := make([]string, len(bad))
	for i, p := range bad {
		names[i] = filepath.Base(p)
	}
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusFail,
		Message:    fmt.Sprintf("Insecure permissions on: %v", names),
		Suggestion: "Fix: chmod 600 ~/.ssh/<keyfile>",
		Fixable:    true,
	}
}

func (c *SSHKeyPermissionsCheck) Fix() error {
	for _, keyPath := range c.insecure() {
		if err := os.Chmod(keyPath, 0o600); err != nil {
			return fmt.Errorf("failed to fix permissions on %s: %w", keyPath, err)
		}
	}
	return nil
}

// SSHClientCheck verifies the system ssh client is installed. It is
// required in exec mode and used for alias resolution otherwise.
type SSHClientCheck struct {
	Mode            string
	ResolveWithSSHG bool

	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
}

func (c *SSHClientCheck) Name() string     { return "ssh_client" }
func (c *SSHClientCheck) Category() string { return CategorySSH }

func (c *SSHClientCheck) Run(context.Context) CheckResult {
	lookPath := c.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	path, err := lookPath("ssh")
	if err == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("ssh client: %s", path),
		}
	}

	if c.Mode == config.SSHModeExec {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "ssh client not found, required by ssh.mode=exec",
			Suggestion: "Install OpenSSH or set ssh.mode: session",
		}
	}
	if c.ResolveWithSSHG {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "ssh client not found, aliases resolve from ~/.ssh/config only",
			Suggestion: "Install OpenSSH for full ssh_config support (Match, Include)",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "ssh client not needed in session mode",
	}
}

func (c *SSHClientCheck) Fix() error {
	return nil
}

// SSHConfigCheck verifies ~/.ssh/config parses and reports its aliases.
type SSHConfigCheck struct {
	// Path overrides ~/.ssh/config.
	Path string
}

func (c *SSHConfigCheck) Name() string     { return "ssh_config" }
func (c *SSHConfigCheck) Category() string { return CategorySSH }

func (c *SSHConfigCheck) Run(context.Context) CheckResult {
	var hosts []sshutil.HostEntry
	var err error
	if c.Path != "" {
		hosts, err = sshutil.ListHostsFile(c.Path)
	} else {
		hosts, err = sshutil.ListHosts()
	}
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot parse SSH config: %v", err),
			Suggestion: "Check the syntax of ~/.ssh/config",
		}
	}

	if len(hosts) == 0 {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No host aliases in SSH config",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%d host %s in SSH config", len(hosts), util.Pluralize(len(hosts), "alias", "aliases")),
	}
}

func (c *SSHConfigCheck) Fix() error {
	return nil
}

// NewSSHChecks creates all SSH-related checks.
func NewSSHChecks(cfg config.SSHConfig) []Check {
	return []Check{
		&SSHKeyCheck{},
		&SSHAgentCheck{},
		&SSHKeyPermissionsCheck{},
		&SSHClientCheck{Mode: cfg.Mode, ResolveWithSSHG: cfg.ResolveWithSSHG},
		&SSHConfigCheck{},
	}
}

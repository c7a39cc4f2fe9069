package sshutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/sbctool/sbctool/internal/errors"
)

// NoSSHGEnv disables `ssh -G` probing when set to any non-empty value.
const NoSSHGEnv = "SBCTOOL_NO_SSH_G"

// SystemConfigPath is the system-wide client config consulted after the
// user's own.
const SystemConfigPath = "/etc/ssh/ssh_config"

// Target is a fully resolved SSH endpoint.
type Target struct {
	// Spec is the string the user typed.
	Spec string
	// Alias is Spec without any user@ prefix or :port suffix.
	Alias    string
	Hostname string
	Port     string
	User     string
	// IdentityFiles come from ssh -G or ssh_config, in preference order.
	IdentityFiles []string
	// UserSource names where User came from, for debug output.
	UserSource string
}

// Address returns the host:port string for dialing.
func (t *Target) Address() string {
	return net.JoinHostPort(t.Hostname, t.Port)
}

// Login returns user@host for display.
func (t *Target) Login() string {
	return t.User + "@" + t.Hostname
}

// SSHGFunc runs `ssh -G <alias>` and returns its output.
type SSHGFunc func(ctx context.Context, alias string) ([]byte, error)

// Resolver turns a target string into a Target. The user is taken from the
// first source that names one:
//
//  1. explicit user@host
//  2. ssh -G (unless disabled)
//  3. ~/.ssh/config
//  4. /etc/ssh/ssh_config
//  5. $USER, then $LOGNAME
//
// HostName, Port and IdentityFile follow the same order from step 2.
type Resolver struct {
	UseSSHG          bool
	SSHG             SSHGFunc
	UserConfigPath   string
	SystemConfigPath string
	Getenv           func(string) string
	Timeout          time.Duration
}

// NewResolver returns a Resolver reading the standard config locations.
func NewResolver(useSSHG bool) *Resolver {
	return &Resolver{
		UseSSHG:          useSSHG,
		SSHG:             runSSHG,
		UserConfigPath:   filepath.Join(homeDir(), ".ssh", "config"),
		SystemConfigPath: SystemConfigPath,
		Getenv:           os.Getenv,
		Timeout:          5 * time.Second,
	}
}

// hostSettings is what one source knows about a host.
type hostSettings struct {
	hostname      string
	port          string
	user          string
	identityFiles []string
}

// Resolve resolves spec into a Target.
func (r *Resolver) Resolve(ctx context.Context, spec string) (*Target, error) {
	t, err := parseSpec(spec)
	if err != nil {
		return nil, err
	}

	sources := []struct {
		name string
		get  func() (*hostSettings, bool)
	}{
		{"ssh -G", func() (*hostSettings, bool) { return r.fromSSHG(ctx, t.Alias) }},
		{"~/.ssh/config", func() (*hostSettings, bool) { return fromConfigFile(r.UserConfigPath, t.Alias) }},
		{SystemConfigPath, func() (*hostSettings, bool) { return fromConfigFile(r.SystemConfigPath, t.Alias) }},
	}

	for _, src := range sources {
		s, ok := src.get()
		if !ok {
			continue
		}
		if t.Hostname == "" && s.hostname != "" {
			t.Hostname = s.hostname
		}
		if t.Port == "" && s.port != "" {
			t.Port = s.port
		}
		if t.User == "" && s.user != "" {
			t.User = s.user
			t.UserSource = src.name
		}
		if len(t.IdentityFiles) == 0 && len(s.identityFiles) > 0 {
			t.IdentityFiles = s.identityFiles
		}
	}

	if t.Hostname == "" {
		t.Hostname = t.Alias
	}
	if t.Port == "" {
		t.Port = "22"
	}
	if t.User == "" {
		for _, env := range []string{"USER", "LOGNAME"} {
			if u := r.getenv(env); u != "" {
				t.User = u
				t.UserSource = "$" + env
				break
			}
		}
	}
	if t.User == "" {
		return nil, errors.New(errors.ErrResolve,
			fmt.Sprintf("Couldn't work out which user to log in to '%s' as", spec),
			"Use user@host, or add a User line for this host to ~/.ssh/config.")
	}

	return t, nil
}

func (r *Resolver) getenv(key string) string {
	if r.Getenv == nil {
		return os.Getenv(key)
	}
	return r.Getenv(key)
}

// parseSpec splits [user@]host[:port]. IPv6 literals must be bracketed to
// carry a port.
func parseSpec(spec string) (*Target, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return nil, errors.New(errors.ErrResolve,
			"No SSH target given",
			"Pass a host, user@host, or an alias from ~/.ssh/config.")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return nil, errors.New(errors.ErrResolve,
			fmt.Sprintf("'%s' isn't a valid SSH target", spec),
			"Targets can't contain whitespace.")
	}

	t := &Target{Spec: spec}
	if at := strings.LastIndex(s, "@"); at != -1 {
		if user := s[:at]; user != "" {
			t.User = user
			t.UserSource = "user@host"
		}
		s = s[at+1:]
	}

	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "]"); end != -1 {
			host := s[1:end]
			rest := s[end+1:]
			if strings.HasPrefix(rest, ":") && isPort(rest[1:]) {
				t.Port = rest[1:]
			}
			s = host
		}
	} else if strings.Count(s, ":") == 1 {
		host, port, _ := strings.Cut(s, ":")
		if isPort(port) {
			s = host
			t.Port = port
		}
	}

	if s == "" {
		return nil, errors.New(errors.ErrResolve,
			fmt.Sprintf("'%s' has no host part", spec),
			"Use user@host or an alias from ~/.ssh/config.")
	}
	t.Alias = s
	return t, nil
}

func isPort(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0 && n <= 65535
}

// fromSSHG asks the local OpenSSH client to evaluate its config for alias,
// which honours Include, Match and everything else ssh_config can express.
func (r *Resolver) fromSSHG(ctx context.Context, alias string) (*hostSettings, bool) {
	if !r.UseSSHG || r.getenv(NoSSHGEnv) != "" || r.SSHG == nil {
		return nil, false
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	out, err := r.SSHG(ctx, alias)
	if err != nil {
		return nil, false
	}
	return parseSSHGOutput(out)
}

// parseSSHGOutput reads the lowercase "key value" lines printed by ssh -G.
func parseSSHGOutput(out []byte) (*hostSettings, bool) {
	s := &hostSettings{}
	found := false
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "hostname":
			s.hostname = value
			found = true
		case "user":
			s.user = value
			found = true
		case "port":
			s.port = value
		case "identityfile":
			s.identityFiles = append(s.identityFiles, expandPath(value))
		}
	}
	return s, found
}

func runSSHG(ctx context.Context, alias string) ([]byte, error) {
	return exec.CommandContext(ctx, "ssh", "-G", alias).Output()
}

// configCache avoids re-reading config files across resolutions.
var (
	configCacheMu sync.Mutex
	configCache   = map[string]*ssh_config.Config{}
)

func loadConfig(path string) (*ssh_config.Config, error) {
	configCacheMu.Lock()
	defer configCacheMu.Unlock()
	if cfg, ok := configCache[path]; ok {
		return cfg, nil
	}

	// The kevinburke/ssh_config library doesn't support Match, so only
	// content before the first Match block is parsed.
	content, matchLine, err := preprocessSSHConfig(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	if matchLine > 0 {
		matchWarningOnce.Do(func() {
			emitWarning(fmt.Sprintf(
				"%s has a Match block at line %d; hosts defined after it are ignored unless ssh -G is enabled", path, matchLine))
		})
	}
	configCache[path] = cfg
	return cfg, nil
}

func fromConfigFile(path, alias string) (*hostSettings, bool) {
	if path == "" {
		return nil, false
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, false
	}

	s := &hostSettings{}
	found := false
	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		s.hostname = hostname
		found = true
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		s.port = port
		found = true
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		s.user = user
		found = true
	}
	if ids, _ := cfg.GetAll(alias, "IdentityFile"); len(ids) > 0 {
		for _, id := range ids {
			s.identityFiles = append(s.identityFiles, expandPath(id))
		}
		found = true
	}
	return s, found
}

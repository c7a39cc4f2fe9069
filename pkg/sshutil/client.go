package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sbctool/sbctool/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client wraps an SSH connection with additional metadata. Channels opened
// on it are serialized; see openSession.
type Client struct {
	*ssh.Client
	Host    string // The original target string used to connect
	Address string // The resolved address (host:port)

	openMu sync.Mutex
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// WarningHandler is a function that handles warning messages.
// If nil, warnings are printed via log.Printf.
var WarningHandler func(message string)

// emitWarning sends a warning through the configured handler or falls back to log.Printf.
func emitWarning(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
	} else {
		log.Printf("Warning: %s", message)
	}
}

// PasswordPrompt asks the user for a password. It is the last link of the
// auth chain and is only called if every key was rejected.
type PasswordPrompt func(user, host string) (string, error)

// DialOptions controls connection setup.
type DialOptions struct {
	// Timeout bounds the TCP connect and the handshake, excluding time
	// spent waiting on the password prompt.
	Timeout time.Duration
	// StrictHostKeyChecking verifies the server against ~/.ssh/known_hosts.
	StrictHostKeyChecking bool
	// KnownHostsPath overrides ~/.ssh/known_hosts.
	KnownHostsPath string
	// Password is consulted when key-based methods fail. Nil disables it.
	Password PasswordPrompt
}

// Dial establishes an SSH connection to a resolved target.
//
// Authentication is tried in order: the identity files named by ssh -G or
// ssh_config, the default identity files, keys held by ssh-agent, and
// finally an interactive password prompt.
func Dial(ctx context.Context, target *Target, opts DialOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	address := target.Address()
	dialer := net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Can't reach '%s' at %s", target.Spec, address),
			suggestionForDialError(err))
	}

	deadline := func() { _ = conn.SetDeadline(time.Now().Add(opts.Timeout)) }
	deadline()

	settings := &authSettings{
		user:          target.User,
		host:          target.Hostname,
		identityFiles: target.IdentityFiles,
	}
	config, err := buildSSHConfig(settings, opts, conn, deadline)
	if err != nil {
		conn.Close()
		var sErr *errors.Error
		if stderrors.As(err, &sErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Couldn't set up SSH for '%s'", target.Spec),
			"Check your keys are loaded: ssh-add -l")
	}

	// Abort the handshake if the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	stop()
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrAuth,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		var unknownErr *UnknownHostError
		if stderrors.As(err, &unknownErr) {
			return nil, errors.New(errors.ErrAuth,
				unknownErr.Error(),
				unknownErr.Suggestion())
		}

		code := errors.ErrTransport
		if isAuthFailure(err) {
			code = errors.ErrAuth
		}
		return nil, errors.WrapWithCode(err, code,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", target.Spec),
			suggestionForHandshakeError(err, settings.encryptedKeys))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    target.Spec,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original target string used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// openSession opens one channel. Channel open requests are serialized so
// concurrent callers sharing the connection never interleave them.
func (c *Client) openSession() (*ssh.Session, error) {
	c.openMu.Lock()
	defer c.openMu.Unlock()
	return c.Client.NewSession()
}

// authSettings tracks what the auth chain found while being built.
type authSettings struct {
	user          string
	host          string
	identityFiles []string
	encryptedKeys []string // Keys that exist but are encrypted
}

// buildSSHConfig creates an SSH client config with the auth chain.
// It also populates settings.encryptedKeys with any keys that exist but are encrypted.
func buildSSHConfig(settings *authSettings, opts DialOptions, conn net.Conn, resetDeadline func()) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod
	tried := map[string]bool{}

	tryKeyFile := func(keyPath string) {
		if keyPath == "" || tried[keyPath] {
			return
		}
		tried[keyPath] = true
		keyAuth, err := keyFileAuth(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				settings.encryptedKeys = append(settings.encryptedKeys, keyPath)
			}
			return
		}
		authMethods = append(authMethods, keyAuth)
	}

	for _, id := range settings.identityFiles {
		tryKeyFile(id)
	}

	for _, keyPath := range DefaultIdentityFiles() {
		tryKeyFile(keyPath)
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	if opts.Password != nil {
		prompt := memoizedPrompt(func() (string, error) {
			// The user may take longer than the handshake timeout to type.
			_ = conn.SetDeadline(time.Time{})
			defer resetDeadline()
			return opts.Password(settings.user, settings.host)
		})
		authMethods = append(authMethods,
			ssh.PasswordCallback(prompt),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					if echos[i] {
						continue
					}
					pw, err := prompt()
					if err != nil {
						return nil, err
					}
					answers[i] = pw
				}
				return answers, nil
			}),
		)
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		suggestion := "Check your keys are loaded: ssh-add -l"

		if len(settings.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.encryptedKeys, ", "))
			suggestion = addKeysSuggestion(settings.encryptedKeys)
		}

		return nil, errors.New(errors.ErrAuth, msg, suggestion)
	}

	var hostKeyCallback ssh.HostKeyCallback
	if opts.StrictHostKeyChecking {
		knownHostsPath := opts.KnownHostsPath
		if knownHostsPath == "" {
			knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
		}
		var err error
		hostKeyCallback, err = createHostKeyCallback(knownHostsPath)
		if err != nil {
			return nil, err
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // User explicitly disabled host key checking
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}, nil
}

// memoizedPrompt asks once per connection attempt, so password and
// keyboard-interactive share one answer.
func memoizedPrompt(ask func() (string, error)) func() (string, error) {
	var (
		once sync.Once
		pw   string
		err  error
	)
	return func() (string, error) {
		once.Do(func() { pw, err = ask() })
		return pw, err
	}
}

// DefaultIdentityFiles lists the private keys OpenSSH tries by default.
func DefaultIdentityFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// Returns nil if the agent has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open. A later dial
// connects again. It must not race with Dial.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
	agentConn, agentClient = nil, nil
	agentConnOnce = sync.Once{}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) ||
			strings.Contains(err.Error(), "encrypted") ||
			strings.Contains(err.Error(), "passphrase") ||
			isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// Helper functions

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func isAuthFailure(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods")
}

func addKeysSuggestion(keys []string) string {
	var sb strings.Builder
	sb.WriteString("Add your key(s) to the agent:\n")
	for _, key := range keys {
		if runtime.GOOS == "darwin" {
			sb.WriteString(fmt.Sprintf("  ssh-add --apple-use-keychain %s\n", key))
		} else {
			sb.WriteString(fmt.Sprintf("  ssh-add %s\n", key))
		}
	}
	sb.WriteString("\nNot sure which key? Check with: ssh -v <host>")
	return sb.String()
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that board? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. The board might be offline or blocked by a firewall."
	}
	if strings.Contains(errStr, "no such host") {
		return "The name didn't resolve. Check the hostname or your ~/.ssh/config alias."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	if isAuthFailure(err) {
		if len(encryptedKeys) > 0 {
			return "Your key(s) are encrypted. " + addKeysSuggestion(encryptedKeys)
		}
		return "Auth failed. Check your keys are loaded (ssh-add -l) or that password login is enabled."
	}
	if strings.Contains(err.Error(), "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := stripPort(e.Hostname)

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the board was reflashed, remove the old entry:\n"+
			"    ssh-keygen -R %s",
		wantStr, e.ReceivedType, host)
}

// UnknownHostError is returned when the host has no known_hosts entry.
type UnknownHostError struct {
	Hostname   string
	KnownHosts string
}

func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("%s isn't in %s", stripPort(e.Hostname), e.KnownHosts)
}

// Suggestion returns actionable steps to trust the host.
func (e *UnknownHostError) Suggestion() string {
	host := stripPort(e.Hostname)
	return fmt.Sprintf(
		"Connect once with ssh to verify and record its key:\n"+
			"    ssh %s\n\n"+
			"  Or turn off verification with ssh.strict_host_key_checking: false", host)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Returns the original content if no Match directive is found.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED")) ||
		bytes.Contains(data, []byte("Proc-Type: 4,ENCRYPTED"))
}

// createHostKeyCallback wraps the knownhosts callback to provide better error
// messages. A missing known_hosts file means every host is unknown.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		return func(hostname string, _ net.Addr, _ ssh.PublicKey) error {
			return &UnknownHostError{Hostname: hostname, KnownHosts: knownHostsPath}
		}, nil
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to load known_hosts",
			"Check "+knownHostsPath+" is readable")
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) {
				if len(keyErr.Want) > 0 {
					return &HostKeyMismatchError{
						Hostname:     hostname,
						ReceivedType: key.Type(),
						KnownHosts:   knownHostsPath,
						Want:         keyErr.Want,
					}
				}
				return &UnknownHostError{Hostname: hostname, KnownHosts: knownHostsPath}
			}
		}
		return err
	}, nil
}

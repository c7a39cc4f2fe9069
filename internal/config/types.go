package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// SSH execution strategies.
const (
	// SSHModeSession keeps one authenticated connection open and opens a
	// channel per command. Required for journal streaming.
	SSHModeSession = "session"
	// SSHModeExec spawns the system ssh client for every command.
	SSHModeExec = "exec"
)

// Config represents the complete sbctool configuration.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	SSH       SSHConfig       `yaml:"ssh" mapstructure:"ssh"`
	ADB       ADBConfig       `yaml:"adb" mapstructure:"adb"`
	Collect   CollectConfig   `yaml:"collect" mapstructure:"collect"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
}

// SSHConfig controls how SSH targets are resolved and reached.
type SSHConfig struct {
	// Mode is "session" (persistent connection) or "exec" (system ssh per command).
	Mode string `yaml:"mode" mapstructure:"mode"`

	// ConnectTimeout bounds the TCP dial and handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// CommandTimeout bounds a single remote command.
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`

	// StrictHostKeyChecking verifies host keys against known_hosts in session mode.
	StrictHostKeyChecking bool `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`

	// ResolveWithSSHG asks the local ssh client (ssh -G) to resolve aliases.
	ResolveWithSSHG bool `yaml:"resolve_with_ssh_g" mapstructure:"resolve_with_ssh_g"`

	// StreamJournal follows the journal over a live channel instead of polling.
	StreamJournal bool `yaml:"stream_journal" mapstructure:"stream_journal"`
}

// ADBConfig controls how Android devices are reached.
type ADBConfig struct {
	// ServerAddr is the local adb server used for serial-addressed devices.
	ServerAddr string `yaml:"server_addr" mapstructure:"server_addr"`

	// DefaultPort is used for bare IP addresses.
	DefaultPort int `yaml:"default_port" mapstructure:"default_port"`

	// USB enables USB auto-discovery when no device is specified.
	USB bool `yaml:"usb" mapstructure:"usb"`

	// KeyPath is the RSA private key presented to adbd.
	KeyPath string `yaml:"key_path" mapstructure:"key_path"`

	// ConnectTimeout bounds connection setup and authentication.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// CommandTimeout bounds a single shell command.
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`
}

// CollectConfig controls the background collectors.
type CollectConfig struct {
	SysinfoInterval     time.Duration `yaml:"sysinfo_interval" mapstructure:"sysinfo_interval"`
	AndroidLogInterval  time.Duration `yaml:"android_log_interval" mapstructure:"android_log_interval"`
	JournalInterval     time.Duration `yaml:"journal_interval" mapstructure:"journal_interval"`
	SyslogInterval      time.Duration `yaml:"syslog_interval" mapstructure:"syslog_interval"`
	StreamRetryInterval time.Duration `yaml:"stream_retry_interval" mapstructure:"stream_retry_interval"`

	// LogLines is N in every "last N lines" query.
	LogLines int `yaml:"log_lines" mapstructure:"log_lines"`

	// SyslogPaths are tried in order when the journal is unavailable.
	SyslogPaths []string `yaml:"syslog_paths" mapstructure:"syslog_paths"`
}

// DashboardConfig controls the terminal UI.
type DashboardConfig struct {
	// Tick is the render cadence.
	Tick time.Duration `yaml:"tick" mapstructure:"tick"`

	// VisibleLogs is how many of the newest entries the log pane shows.
	VisibleLogs int `yaml:"visible_logs" mapstructure:"visible_logs"`

	// RefreshCooldown is the minimum spacing between honoured refresh requests.
	RefreshCooldown time.Duration `yaml:"refresh_cooldown" mapstructure:"refresh_cooldown"`

	// ShutdownTimeout bounds how long quitting waits for collectors.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		SSH: SSHConfig{
			Mode:                  SSHModeSession,
			ConnectTimeout:        10 * time.Second,
			CommandTimeout:        30 * time.Second,
			StrictHostKeyChecking: true,
			ResolveWithSSHG:       true,
			StreamJournal:         true,
		},
		ADB: ADBConfig{
			ServerAddr:     "127.0.0.1:5037",
			DefaultPort:    5555,
			USB:            true,
			KeyPath:        "~/.android/adbkey",
			ConnectTimeout: 10 * time.Second,
			CommandTimeout: 30 * time.Second,
		},
		Collect: CollectConfig{
			SysinfoInterval:     30 * time.Second,
			AndroidLogInterval:  2 * time.Second,
			JournalInterval:     3 * time.Second,
			SyslogInterval:      5 * time.Second,
			StreamRetryInterval: 3 * time.Second,
			LogLines:            20,
			SyslogPaths: []string{
				"/var/log/syslog",
				"/var/log/messages",
				"/var/log/kern.log",
			},
		},
		Dashboard: DashboardConfig{
			Tick:            100 * time.Millisecond,
			VisibleLogs:     20,
			RefreshCooldown: time.Second,
			ShutdownTimeout: 2 * time.Second,
		},
	}
}

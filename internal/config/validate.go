package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sbctool/sbctool/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try running the command again.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but sbctool only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade sbctool or lower the version field.")
	}

	if err := validateSSH(cfg.SSH); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'ssh' section of your config.")
	}

	if err := validateADB(cfg.ADB); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'adb' section of your config.")
	}

	if err := validateCollect(cfg.Collect); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'collect' section of your config.")
	}

	if err := validateDashboard(cfg.Dashboard); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'dashboard' section of your config.")
	}

	return nil
}

func validateSSH(c SSHConfig) error {
	switch c.Mode {
	case SSHModeSession, SSHModeExec:
	default:
		return fmt.Errorf("ssh.mode must be %q or %q, got %q", SSHModeSession, SSHModeExec, c.Mode)
	}
	if err := positive("ssh.connect_timeout", c.ConnectTimeout); err != nil {
		return err
	}
	return positive("ssh.command_timeout", c.CommandTimeout)
}

func validateADB(c ADBConfig) error {
	host, port, err := net.SplitHostPort(c.ServerAddr)
	if err != nil || host == "" {
		return fmt.Errorf("adb.server_addr must be host:port, got %q", c.ServerAddr)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("adb.server_addr has an invalid port %q", port)
	}
	if c.DefaultPort < 1 || c.DefaultPort > 65535 {
		return fmt.Errorf("adb.default_port must be between 1 and 65535, got %d", c.DefaultPort)
	}
	if err := positive("adb.connect_timeout", c.ConnectTimeout); err != nil {
		return err
	}
	return positive("adb.command_timeout", c.CommandTimeout)
}

func validateCollect(c CollectConfig) error {
	intervals := []struct {
		name string
		d    time.Duration
	}{
		{"collect.sysinfo_interval", c.SysinfoInterval},
		{"collect.android_log_interval", c.AndroidLogInterval},
		{"collect.journal_interval", c.JournalInterval},
		{"collect.syslog_interval", c.SyslogInterval},
		{"collect.stream_retry_interval", c.StreamRetryInterval},
	}
	for _, iv := range intervals {
		if err := positive(iv.name, iv.d); err != nil {
			return err
		}
	}
	if c.LogLines < 1 {
		return fmt.Errorf("collect.log_lines must be at least 1, got %d", c.LogLines)
	}
	if len(c.SyslogPaths) == 0 {
		return fmt.Errorf("collect.syslog_paths needs at least one path")
	}
	return nil
}

func validateDashboard(c DashboardConfig) error {
	if err := positive("dashboard.tick", c.Tick); err != nil {
		return err
	}
	if c.VisibleLogs < 1 {
		return fmt.Errorf("dashboard.visible_logs must be at least 1, got %d", c.VisibleLogs)
	}
	if c.RefreshCooldown < 0 {
		return fmt.Errorf("dashboard.refresh_cooldown can't be negative")
	}
	return positive("dashboard.shutdown_timeout", c.ShutdownTimeout)
}

func positive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be a positive duration like '5s', got %s", name, d)
	}
	return nil
}

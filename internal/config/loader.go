package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/spf13/viper"
)

const (
	// GlobalConfigDir is the directory for the user config, relative to home.
	GlobalConfigDir = ".config/sbctool"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override (SBCTOOL_SSH_MODE, ...).
	EnvPrefix = "SBCTOOL"
	// ADBServerPortEnv is honoured the way the adb client honours it.
	ADBServerPortEnv = "ANDROID_ADB_SERVER_PORT"
)

// Load reads config from path, or from the default location when path is
// empty. A missing default file is not an error; defaults and environment
// overrides still apply. The result is validated.
func Load(path string) (*Config, error) {
	found, err := Find(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if found != "" {
		v.SetConfigFile(found)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML: "+found)
		}
	}

	cfg, err := parseConfig(v, found)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find locates the config file:
// 1. Explicit path (from --config flag), which must exist
// 2. ~/.config/sbctool/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		explicit = ExpandTilde(explicit)
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", nil
	}
	global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	if _, err := os.Stat(global); err == nil {
		return global, nil
	}
	return "", nil
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "your environment overrides"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+where)
	}

	cfg.ADB.KeyPath = ExpandTilde(cfg.ADB.KeyPath)

	// The adb client's own port variable wins over the configured default
	// but not over an explicit SBCTOOL_ADB_SERVER_ADDR.
	if port := os.Getenv(ADBServerPortEnv); port != "" && os.Getenv(EnvPrefix+"_ADB_SERVER_ADDR") == "" {
		if _, err := strconv.Atoi(port); err == nil {
			cfg.ADB.ServerAddr = "127.0.0.1:" + port
		}
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("ssh.mode", d.SSH.Mode)
	v.SetDefault("ssh.connect_timeout", d.SSH.ConnectTimeout.String())
	v.SetDefault("ssh.command_timeout", d.SSH.CommandTimeout.String())
	v.SetDefault("ssh.strict_host_key_checking", d.SSH.StrictHostKeyChecking)
	v.SetDefault("ssh.resolve_with_ssh_g", d.SSH.ResolveWithSSHG)
	v.SetDefault("ssh.stream_journal", d.SSH.StreamJournal)

	v.SetDefault("adb.server_addr", d.ADB.ServerAddr)
	v.SetDefault("adb.default_port", d.ADB.DefaultPort)
	v.SetDefault("adb.usb", d.ADB.USB)
	v.SetDefault("adb.key_path", d.ADB.KeyPath)
	v.SetDefault("adb.connect_timeout", d.ADB.ConnectTimeout.String())
	v.SetDefault("adb.command_timeout", d.ADB.CommandTimeout.String())

	v.SetDefault("collect.sysinfo_interval", d.Collect.SysinfoInterval.String())
	v.SetDefault("collect.android_log_interval", d.Collect.AndroidLogInterval.String())
	v.SetDefault("collect.journal_interval", d.Collect.JournalInterval.String())
	v.SetDefault("collect.syslog_interval", d.Collect.SyslogInterval.String())
	v.SetDefault("collect.stream_retry_interval", d.Collect.StreamRetryInterval.String())
	v.SetDefault("collect.log_lines", d.Collect.LogLines)
	v.SetDefault("collect.syslog_paths", d.Collect.SyslogPaths)

	v.SetDefault("dashboard.tick", d.Dashboard.Tick.String())
	v.SetDefault("dashboard.visible_logs", d.Dashboard.VisibleLogs)
	v.SetDefault("dashboard.refresh_cooldown", d.Dashboard.RefreshCooldown.String())
	v.SetDefault("dashboard.shutdown_timeout", d.Dashboard.ShutdownTimeout.String())
}

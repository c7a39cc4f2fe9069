package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Marshal renders the effective config as YAML, with durations in their
// human form ("30s") so the output can be pasted back into a config file.
func Marshal(cfg *Config) ([]byte, error) {
	doc := mapping(
		pair("version", intNode(cfg.Version)),
		pair("ssh", mapping(
			pair("mode", strNode(cfg.SSH.Mode)),
			pair("connect_timeout", durNode(cfg.SSH.ConnectTimeout)),
			pair("command_timeout", durNode(cfg.SSH.CommandTimeout)),
			pair("strict_host_key_checking", boolNode(cfg.SSH.StrictHostKeyChecking)),
			pair("resolve_with_ssh_g", boolNode(cfg.SSH.ResolveWithSSHG)),
			pair("stream_journal", boolNode(cfg.SSH.StreamJournal)),
		)),
		pair("adb", mapping(
			pair("server_addr", strNode(cfg.ADB.ServerAddr)),
			pair("default_port", intNode(cfg.ADB.DefaultPort)),
			pair("usb", boolNode(cfg.ADB.USB)),
			pair("key_path", strNode(cfg.ADB.KeyPath)),
			pair("connect_timeout", durNode(cfg.ADB.ConnectTimeout)),
			pair("command_timeout", durNode(cfg.ADB.CommandTimeout)),
		)),
		pair("collect", mapping(
			pair("sysinfo_interval", durNode(cfg.Collect.SysinfoInterval)),
			pair("android_log_interval", durNode(cfg.Collect.AndroidLogInterval)),
			pair("journal_interval", durNode(cfg.Collect.JournalInterval)),
			pair("syslog_interval", durNode(cfg.Collect.SyslogInterval)),
			pair("stream_retry_interval", durNode(cfg.Collect.StreamRetryInterval)),
			pair("log_lines", intNode(cfg.Collect.LogLines)),
			pair("syslog_paths", seqNode(cfg.Collect.SyslogPaths)),
		)),
		pair("dashboard", mapping(
			pair("tick", durNode(cfg.Dashboard.Tick)),
			pair("visible_logs", intNode(cfg.Dashboard.VisibleLogs)),
			pair("refresh_cooldown", durNode(cfg.Dashboard.RefreshCooldown)),
			pair("shutdown_timeout", durNode(cfg.Dashboard.ShutdownTimeout)),
		)),
	)

	root := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return []byte(buf.String()), nil
}

type kv struct {
	key   string
	value *yaml.Node
}

func pair(key string, value *yaml.Node) kv { return kv{key: key, value: value} }

func mapping(pairs ...kv) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range pairs {
		n.Content = append(n.Content, strNode(p.key), p.value)
	}
	return n
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func intNode(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
}

func boolNode(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
}

func durNode(d time.Duration) *yaml.Node {
	return strNode(d.String())
}

func seqNode(items []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, item := range items {
		n.Content = append(n.Content, strNode(item))
	}
	return n
}

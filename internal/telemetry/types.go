package telemetry

import (
	"strings"
	"time"
)

// Unknown is the placeholder for any SystemInfo field that could not be
// determined.
const Unknown = "Unknown"

// UnknownArch is the placeholder for an undeterminable architecture.
const UnknownArch = "unknown"

// SystemInfo is a point-in-time snapshot of the target machine. Values are
// replaced as a whole, never field by field.
type SystemInfo struct {
	Hostname     string
	Kernel       string
	Architecture string
	// Chip is empty when no chip label could be resolved.
	Chip     string
	CPU      string
	Memory   string
	Uptime   string
	OS       string
	Platform Platform

	CollectedAt time.Time
}

// HasChip reports whether a chip label was resolved.
func (s SystemInfo) HasChip() bool {
	return s.Chip != ""
}

// UnknownSystemInfo returns a snapshot with every field at its placeholder.
func UnknownSystemInfo() SystemInfo {
	return SystemInfo{
		Hostname:     Unknown,
		Kernel:       Unknown,
		Architecture: UnknownArch,
		CPU:          Unknown,
		Memory:       Unknown,
		Uptime:       Unknown,
		OS:           Unknown,
	}
}

// Platform is the family of the target operating system.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformAndroid Platform = "android"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelError   Level = "ERROR"
	LevelWarn    Level = "WARN"
	LevelInfo    Level = "INFO"
	LevelDebug   Level = "DEBUG"
	LevelUnknown Level = "UNKNOWN"
)

// ParseLevel maps a severity token to a Level. It accepts full names in any
// case and the single-letter priorities used by Android's logcat.
func ParseLevel(token string) Level {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "E", "F", "A", "ERROR", "ERR", "FATAL", "ASSERT", "CRIT", "CRITICAL", "ALERT", "EMERG":
		return LevelError
	case "W", "WARN", "WARNING":
		return LevelWarn
	case "I", "INFO", "NOTICE":
		return LevelInfo
	case "D", "V", "DEBUG", "VERBOSE", "TRACE":
		return LevelDebug
	default:
		return LevelUnknown
	}
}

// LogEntry is one parsed line from the target's logs.
type LogEntry struct {
	Timestamp string
	Level     Level
	Message   string
}

// ClockFormat is the timestamp layout of entries produced locally.
const ClockFormat = "15:04:05"

// NewLocalEntry creates an entry stamped with the local wall clock.
func NewLocalEntry(now time.Time, level Level, message string) LogEntry {
	return LogEntry{
		Timestamp: now.Format(ClockFormat),
		Level:     level,
		Message:   message,
	}
}

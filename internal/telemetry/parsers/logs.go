package parsers

import (
	"bufio"
	"strings"

	"github.com/sbctool/sbctool/internal/telemetry"
)

// LineParser parses one line of log output.
type LineParser func(line string) (telemetry.LogEntry, bool)

// ParseLines applies p to every line of out, dropping lines it rejects.
func ParseLines(out string, p LineParser) []telemetry.LogEntry {
	var entries []telemetry.LogEntry
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e, ok := p(scanner.Text()); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// Logcat parses `logcat -v threadtime` output:
//
//	09-05 18:49:25.123  1234  1256 I ActivityManager: Start proc
func Logcat(line string) (telemetry.LogEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return telemetry.LogEntry{}, false
	}
	return telemetry.LogEntry{
		Timestamp: fields[0] + " " + fields[1],
		Level:     telemetry.ParseLevel(fields[4]),
		Message:   strings.Join(fields[5:], " "),
	}, true
}

// Journal parses one line of `journalctl -o short-iso`:
//
//	2025-09-05T18:49:25+0000 orangepi5 systemd[1]: Started Session 1.
//
// The message is everything after the first colon that follows the
// timestamp. Journal banner lines ("-- No entries --") are rejected.
func Journal(line string) (telemetry.LogEntry, bool) {
	if strings.HasPrefix(line, "--") {
		return telemetry.LogEntry{}, false
	}
	ts, rest, ok := strings.Cut(line, " ")
	if !ok {
		return telemetry.LogEntry{}, false
	}
	_, msg, ok := strings.Cut(rest, ":")
	if !ok {
		return telemetry.LogEntry{}, false
	}
	msg = strings.TrimSpace(msg)
	return telemetry.LogEntry{
		Timestamp: ts,
		Level:     ClassifyLevel(msg),
		Message:   msg,
	}, true
}

// JournalStream parses one line of
// `journalctl -f --no-hostname --output=short-iso`. The timestamp is reduced
// to its clock part and the unit field is dropped.
func JournalStream(line string) (telemetry.LogEntry, bool) {
	if strings.HasPrefix(line, "--") {
		return telemetry.LogEntry{}, false
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return telemetry.LogEntry{}, false
	}
	msg := parts[2]
	return telemetry.LogEntry{
		Timestamp: clockPart(parts[0]),
		Level:     ClassifyStreamLevel(msg),
		Message:   msg,
	}, true
}

// clockPart returns the text between the date/time separator and the
// timezone designator of an ISO-8601 timestamp.
func clockPart(ts string) string {
	_, clock, ok := strings.Cut(ts, "T")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(clock, "+-Z"); i >= 0 {
		clock = clock[:i]
	}
	return clock
}

// Syslog parses a classic BSD syslog line:
//
//	Sep  5 18:49:25 orangepi5 sshd[812]: Accepted publickey for root
func Syslog(line string) (telemetry.LogEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return telemetry.LogEntry{}, false
	}
	service := strings.TrimSuffix(fields[4], ":")
	msg := strings.Join(fields[5:], " ")
	return telemetry.LogEntry{
		Timestamp: fields[0] + " " + fields[1] + " " + fields[2],
		Level:     ClassifyLevel(msg),
		Message:   service + ": " + msg,
	}, true
}

// ClassifyLevel is the keyword heuristic for polled journal and syslog
// lines. Anything unmatched is DEBUG.
func ClassifyLevel(message string) telemetry.Level {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "error"):
		return telemetry.LevelError
	case strings.Contains(m, "warn"):
		return telemetry.LevelWarn
	case strings.Contains(m, "info"):
		return telemetry.LevelInfo
	default:
		return telemetry.LevelDebug
	}
}

// ClassifyStreamLevel is the keyword heuristic for streamed journal lines.
// Anything unmatched is UNKNOWN.
func ClassifyStreamLevel(message string) telemetry.Level {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "error"), strings.Contains(m, "fail"):
		return telemetry.LevelError
	case strings.Contains(m, "warn"):
		return telemetry.LevelWarn
	case strings.Contains(m, "info"), strings.Contains(m, "start"):
		return telemetry.LevelInfo
	case strings.Contains(m, "debug"):
		return telemetry.LevelDebug
	default:
		return telemetry.LevelUnknown
	}
}

package parsers

import (
	"testing"

	"github.com/sbctool/sbctool/internal/telemetry"
)

func validLevel(l telemetry.Level) bool {
	switch l {
	case telemetry.LevelError, telemetry.LevelWarn, telemetry.LevelInfo, telemetry.LevelDebug, telemetry.LevelUnknown:
		return true
	}
	return false
}

func fuzzLineParser(f *testing.F, p LineParser, seeds ...string) {
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, line string) {
		e, ok := p(line)
		if !ok {
			return
		}
		if !validLevel(e.Level) {
			t.Fatalf("invalid level %q for %q", e.Level, line)
		}
		again, ok2 := p(line)
		if !ok2 || again != e {
			t.Fatalf("parser is not deterministic for %q", line)
		}
	})
}

func FuzzLogcat(f *testing.F) {
	fuzzLineParser(f, Logcat,
		"09-05 18:49:25.123  1234  1256 I ActivityManager: Start proc",
		"--------- beginning of main",
		"")
}

func FuzzJournal(f *testing.F) {
	fuzzLineParser(f, Journal,
		"2025-09-05T18:49:25+0000 orangepi5 systemd[1]: Started Session 1.",
		"-- No entries --",
		":")
}

func FuzzJournalStream(f *testing.F) {
	fuzzLineParser(f, JournalStream,
		"2025-09-05T18:49:25+0000 systemd[1]: Started Session 1.",
		"T T T",
		"  ")
}

func FuzzSyslog(f *testing.F) {
	fuzzLineParser(f, Syslog,
		"Sep  5 18:49:25 orangepi5 sshd[812]: Accepted publickey for root",
		"a b c d e f")
}

func FuzzSystemInfoParsers(f *testing.F) {
	f.Add(unameRK3588)
	f.Add(cpuinfoARM64)
	f.Add("MemTotal: 8039576 kB")
	f.Add("12345.67 1.0")
	f.Fuzz(func(t *testing.T, s string) {
		Kernel(s)
		Architecture(s)
		ResolveChip(s, s, s)
		DescribeCPU(s)
		Memory(s)
		Uptime(s)
		UptimeCommand(s)
		PrettyName(s)
		FreeTotal(s)
	})
}

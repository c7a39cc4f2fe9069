package collector

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/telemetry"
	"github.com/sbctool/sbctool/internal/telemetry/parsers"
	"github.com/sbctool/sbctool/internal/transport"
)

// Tier is the log source a LogCollector settled on.
type Tier string

const (
	TierUnknown       Tier = ""
	TierLogcat        Tier = "logcat"
	TierJournalStream Tier = "journal-stream"
	TierJournal       Tier = "journal"
	TierSyslog        Tier = "syslog"
)

// Source is the human name of the tier used in failure entries.
func (t Tier) Source() string {
	switch t {
	case TierLogcat:
		return "Android logs"
	case TierJournal, TierJournalStream:
		return "journald logs"
	case TierSyslog:
		return "syslog"
	default:
		return "logs"
	}
}

// LogCollector tails the target's system log.
type LogCollector struct {
	session transport.Session
	opts    Options

	// previous raw batch per query, for overlap trimming
	previous map[string][]string
}

// NewLogCollector creates a collector over session.
func NewLogCollector(session transport.Session, opts Options) *LogCollector {
	return &LogCollector{
		session:  session,
		opts:     opts.withDefaults(),
		previous: make(map[string][]string),
	}
}

// Run picks a tier once and then collects until ctx is done. Every failed
// cycle becomes exactly one ERROR entry.
func (c *LogCollector) Run(ctx context.Context, out chan<- telemetry.Update, refresh <-chan struct{}) error {
	tier, ok := c.chooseTier(ctx, out, refresh)
	if !ok {
		return nil
	}
	c.opts.Logger.Debug("log tier: %s", tier)

	if tier == TierJournalStream {
		c.stream(ctx, out, refresh)
		return nil
	}
	c.poll(ctx, out, refresh, tier)
	return nil
}

// chooseTier decides between logcat, the journal and syslog files. A
// journal probe that fails without an exit status says nothing about the
// target, so it is retried.
func (c *LogCollector) chooseTier(ctx context.Context, out chan<- telemetry.Update, refresh <-chan struct{}) (Tier, bool) {
	if c.session.Target().IsAndroid() {
		return TierLogcat, true
	}

	for {
		_, err := c.session.Execute(ctx, cmdWhichJournal, c.opts.CommandTimeout)
		if ctx.Err() != nil {
			return TierUnknown, false
		}
		if err == nil {
			if _, ok := c.session.(transport.Streamer); ok && c.opts.StreamJournal {
				return TierJournalStream, true
			}
			return TierJournal, true
		}
		if _, exited := errors.GetExitCode(err); exited {
			return TierSyslog, true
		}

		if !c.fail(ctx, out, TierUnknown, err) {
			return TierUnknown, false
		}
		if !sleep(ctx, c.opts.Collect.JournalInterval, refresh) {
			return TierUnknown, false
		}
	}
}

// stream follows the journal, restarting after StreamRetryInterval
// whenever the stream ends.
func (c *LogCollector) stream(ctx context.Context, out chan<- telemetry.Update, refresh <-chan struct{}) {
	streamer := c.session.(transport.Streamer)
	for {
		err := streamer.Stream(ctx, cmdJournalFollow, func(line string) {
			if e, ok := parsers.JournalStream(line); ok {
				emit(ctx, out, telemetry.Logs(e))
			}
		})
		if ctx.Err() != nil {
			return
		}
		if !c.fail(ctx, out, TierJournalStream, err) {
			return
		}
		// A refresh pressed while streaming has nothing to speed up.
		drain(refresh)
		if !sleep(ctx, c.opts.Collect.StreamRetryInterval, refresh) {
			return
		}
	}
}

// poll repeats a "last N lines" query at the tier's interval.
func (c *LogCollector) poll(ctx context.Context, out chan<- telemetry.Update, refresh <-chan struct{}, tier Tier) {
	interval := c.interval(tier)
	for {
		entries, err := c.Poll(ctx, tier)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !c.fail(ctx, out, tier, err) {
				return
			}
		} else if len(entries) > 0 {
			if !emit(ctx, out, telemetry.Logs(entries...)) {
				return
			}
		}
		if !sleep(ctx, interval, refresh) {
			return
		}
	}
}

func (c *LogCollector) interval(tier Tier) time.Duration {
	switch tier {
	case TierLogcat:
		return c.opts.Collect.AndroidLogInterval
	case TierSyslog:
		return c.opts.Collect.SyslogInterval
	default:
		return c.opts.Collect.JournalInterval
	}
}

// Poll runs one collection cycle for a polling tier and returns the entries
// not delivered by the previous cycle.
func (c *LogCollector) Poll(ctx context.Context, tier Tier) ([]telemetry.LogEntry, error) {
	n := c.opts.Collect.LogLines
	switch tier {
	case TierLogcat:
		return c.query(ctx, logcatQuery(n), parsers.Logcat)
	case TierJournal:
		return c.query(ctx, journalQuery(n), parsers.Journal)
	case TierSyslog:
		return c.pollSyslog(ctx)
	default:
		return nil, errors.New(errors.ErrTransport, "no polling query for "+string(tier), "")
	}
}

// pollSyslog uses the first candidate file that yields parsed lines.
func (c *LogCollector) pollSyslog(ctx context.Context) ([]telemetry.LogEntry, error) {
	for _, path := range c.opts.Collect.SyslogPaths {
		command := tailQuery(path, c.opts.Collect.LogLines)
		out, err := c.session.Execute(ctx, command, c.opts.CommandTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		lines := splitLines(out)
		if len(parseNew(lines, parsers.Syslog)) == 0 {
			continue
		}
		return parseNew(c.trim(command, lines), parsers.Syslog), nil
	}
	return nil, errors.New(errors.ErrTransport, "no syslog files found",
		"Checked "+strings.Join(c.opts.Collect.SyslogPaths, ", "))
}

func (c *LogCollector) query(ctx context.Context, command string, p parsers.LineParser) ([]telemetry.LogEntry, error) {
	out, err := c.session.Execute(ctx, command, c.opts.CommandTimeout)
	if err != nil {
		return nil, err
	}
	return parseNew(c.trim(command, splitLines(out)), p), nil
}

// trim drops the lines a previous run of command already returned. The
// overlap is the longest tail of the previous batch that the new batch starts
// with; without one the whole batch is new.
func (c *LogCollector) trim(command string, lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	prev, seen := c.previous[command]
	c.previous[command] = lines
	if !seen {
		return lines
	}
	return lines[overlap(prev, lines):]
}

// overlap returns the largest k where the last k lines of prev equal the
// first k lines of next.
func overlap(prev, next []string) int {
	for k := min(len(prev), len(next)); k > 0; k-- {
		if slices.Equal(prev[len(prev)-k:], next[:k]) {
			return k
		}
	}
	return 0
}

// fail publishes the synthetic entry for a failed cycle.
func (c *LogCollector) fail(ctx context.Context, out chan<- telemetry.Update, tier Tier, err error) bool {
	msg := "Failed to get " + tier.Source() + ": " + errors.Summary(err)
	c.opts.Logger.Warn("%s", msg)
	return emit(ctx, out, telemetry.Logs(telemetry.NewLocalEntry(c.opts.Now(), telemetry.LevelError, msg)))
}

func splitLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func parseNew(lines []string, p parsers.LineParser) []telemetry.LogEntry {
	var entries []telemetry.LogEntry
	for _, l := range lines {
		if e, ok := p(l); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

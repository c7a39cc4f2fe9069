package collector

import (
	"context"
	"strings"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/telemetry"
	"github.com/sbctool/sbctool/internal/telemetry/parsers"
	"github.com/sbctool/sbctool/internal/transport"
)

// SystemInfoCollector builds SystemInfo snapshots from shell probes.
type SystemInfoCollector struct {
	session transport.Session
	opts    Options
}

// NewSystemInfoCollector creates a collector over session.
func NewSystemInfoCollector(session transport.Session, opts Options) *SystemInfoCollector {
	return &SystemInfoCollector{session: session, opts: opts.withDefaults()}
}

// Batched reports whether all probes go out as a single command. That only
// pays off when commands share a live connection, and the probe script
// assumes a Linux shell.
func (c *SystemInfoCollector) Batched() bool {
	return c.session.Persistent() && !c.session.Target().IsAndroid()
}

// Collect probes the target once. It never fails: fields that could not be
// determined hold their placeholder.
func (c *SystemInfoCollector) Collect(ctx context.Context) telemetry.SystemInfo {
	info, _ := c.collect(ctx)
	return info
}

// Run publishes a snapshot now and then every SysinfoInterval, or sooner
// when refresh fires. It returns when ctx is done.
func (c *SystemInfoCollector) Run(ctx context.Context, out chan<- telemetry.Update, refresh <-chan struct{}) error {
	if !emit(ctx, out, c.entry(telemetry.LevelInfo, "Starting system info collection...")) {
		return nil
	}

	reported := false
	for {
		info, err := c.collect(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			c.opts.Logger.Warn("system info: %v", errors.Summary(err))
			if !emit(ctx, out, c.entry(telemetry.LevelError, "Failed to collect system info: "+errors.Summary(err))) {
				return nil
			}
		} else {
			if !emit(ctx, out, telemetry.SystemInfoUpdate{Info: info}) {
				return nil
			}
			// announced once, after the first cycle that worked
			if !reported && !emit(ctx, out, c.entry(telemetry.LevelInfo, "System info collected successfully")) {
				return nil
			}
			reported = true
		}

		if !sleep(ctx, c.opts.Collect.SysinfoInterval, refresh) {
			return nil
		}
	}
}

func (c *SystemInfoCollector) entry(level telemetry.Level, msg string) telemetry.LogUpdate {
	return telemetry.Logs(telemetry.NewLocalEntry(c.opts.Now(), level, msg))
}

// collect returns an error only when no probe produced any output.
func (c *SystemInfoCollector) collect(ctx context.Context) (telemetry.SystemInfo, error) {
	p := &prober{ctx: ctx, session: c.session, opts: c.opts}

	var info telemetry.SystemInfo
	switch {
	case c.session.Target().IsAndroid():
		info = c.collectAndroid(p)
	case c.Batched():
		info = c.collectBatched(p)
	default:
		info = c.collectSequential(p)
	}
	info.CollectedAt = c.opts.Now()

	if p.succeeded == 0 {
		if p.lastErr == nil {
			p.lastErr = errors.New(errors.ErrTransport, "no probe returned output", "")
		}
		return info, p.lastErr
	}
	return info, nil
}

// collectBatched runs the eight Linux probes in one command.
func (c *SystemInfoCollector) collectBatched(p *prober) telemetry.SystemInfo {
	out, ok := p.run(BuildBatchedCommand(batchedProbes))
	if !ok {
		return telemetry.UnknownSystemInfo()
	}
	// The script exits 0 whatever happens, so empty output means nothing ran.
	if strings.TrimSpace(strings.ReplaceAll(out, SectionMarker, "")) == "" {
		p.succeeded--
	}
	s := SplitSections(out, len(batchedProbes))

	info := linuxInfo(s[secUname], s[secHostname], s[secModel], s[secCompatible], s[secCPUInfo], s[secMemInfo], s[secUptime])
	if name, found := parsers.PrettyName(s[secOSRelease]); found {
		info.OS = name
	} else {
		info.OS = osFallback(p)
	}
	return info
}

// collectSequential runs one command per field.
func (c *SystemInfoCollector) collectSequential(p *prober) telemetry.SystemInfo {
	uname, _ := p.run(cmdUname)
	hostname, _ := p.run(cmdHostname)
	model, _ := p.run(cmdModel)
	compatible, _ := p.run(cmdCompatible)
	cpuinfo, _ := p.run(cmdCPUInfo)
	meminfo, _ := p.run(cmdMemInfo)
	uptime, _ := p.run(cmdProcUptime)

	info := linuxInfo(uname, hostname, model, compatible, cpuinfo, meminfo, uptime)
	if release, ok := p.run(cmdOSRelease); ok {
		if name, found := parsers.PrettyName(release); found {
			info.OS = name
			return info
		}
	}
	info.OS = osFallback(p)
	return info
}

// collectAndroid reads identity from system properties and prefers the
// toybox commands over /proc.
func (c *SystemInfoCollector) collectAndroid(p *prober) telemetry.SystemInfo {
	info := telemetry.UnknownSystemInfo()
	info.Platform = telemetry.PlatformAndroid

	if uname, ok := p.run(cmdUname); ok {
		applyUname(&info, uname)
	}
	if hostname, ok := p.run(cmdHostname); ok && strings.TrimSpace(hostname) != "" {
		info.Hostname = strings.TrimSpace(hostname)
	}

	manufacturer, _ := p.run(getprop(propManufacturer))
	model, _ := p.run(getprop(propModel))
	board, _ := p.run(getprop(propBoard))
	if chip, ok := parsers.AndroidChip(manufacturer, model, board); ok {
		info.Chip = chip
	}

	if cpuinfo, ok := p.run(cmdCPUInfo); ok {
		info.CPU = parsers.DescribeCPU(cpuinfo)
	}

	if free, ok := p.run(cmdFree); ok {
		if kb, found := parsers.FreeTotal(free); found {
			info.Memory = parsers.FormatMemory(kb)
		}
	}
	if info.Memory == telemetry.Unknown {
		if meminfo, ok := p.run(cmdMemInfo); ok {
			if mem, found := parsers.Memory(meminfo); found {
				info.Memory = mem
			}
		}
	}

	if out, ok := p.run(cmdUptime); ok {
		if up, found := parsers.UptimeCommand(out); found {
			info.Uptime = up
		}
	}
	if info.Uptime == telemetry.Unknown {
		if out, ok := p.run(cmdProcUptime); ok {
			if up, found := parsers.Uptime(out); found {
				info.Uptime = up
			}
		}
	}

	release, _ := p.run(getprop(propRelease))
	displayID, _ := p.run(getprop(propDisplayID))
	if name, ok := parsers.AndroidOS(release, displayID); ok {
		info.OS = name
	}

	return info
}

// linuxInfo assembles the Linux fields shared by both strategies.
func linuxInfo(uname, hostname, model, compatible, cpuinfo, meminfo, uptime string) telemetry.SystemInfo {
	info := telemetry.UnknownSystemInfo()
	info.Platform = telemetry.PlatformLinux

	applyUname(&info, uname)
	if h := strings.TrimSpace(hostname); h != "" {
		info.Hostname = h
	}
	if chip, ok := parsers.ResolveChip(model, compatible, cpuinfo); ok {
		info.Chip = chip
	}
	if strings.TrimSpace(cpuinfo) != "" {
		info.CPU = parsers.DescribeCPU(cpuinfo)
	}
	if mem, ok := parsers.Memory(meminfo); ok {
		info.Memory = mem
	}
	if up, ok := parsers.Uptime(uptime); ok {
		info.Uptime = up
	}
	return info
}

func applyUname(info *telemetry.SystemInfo, uname string) {
	if k, ok := parsers.Kernel(uname); ok {
		info.Kernel = k
	}
	if a, ok := parsers.Architecture(uname); ok {
		info.Architecture = a
	}
}

// osFallback tries lsb-release and then `uname -o`.
func osFallback(p *prober) string {
	if lsb, ok := p.run(cmdLSBRelease); ok {
		if d, found := parsers.DistribDescription(lsb); found {
			return d
		}
	}
	if out, ok := p.run(cmdUnameOS); ok && strings.TrimSpace(out) != "" {
		return strings.TrimSpace(out)
	}
	return telemetry.Unknown
}

// prober runs probe commands and tracks whether any of them worked.
type prober struct {
	ctx       context.Context
	session   transport.Session
	opts      Options
	succeeded int
	lastErr   error
}

func (p *prober) run(command string) (string, bool) {
	if p.ctx.Err() != nil {
		return "", false
	}
	out, err := p.session.Execute(p.ctx, command, p.opts.CommandTimeout)
	if err != nil {
		p.lastErr = err
		p.opts.Logger.Debug("probe %q: %s", command, errors.Summary(err))
		return "", false
	}
	p.succeeded++
	return out, true
}

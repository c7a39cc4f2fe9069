package parsers

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Kernel returns "<kernel-name> <release>" from `uname -a` output, or just
// the kernel name when fewer than three fields are present.
func Kernel(unameA string) (string, bool) {
	fields := strings.Fields(unameA)
	switch {
	case len(fields) >= 3:
		return fields[0] + " " + fields[2], true
	case len(fields) >= 1:
		return fields[0], true
	default:
		return "", false
	}
}

// Architecture returns the machine hardware name, the 13th field of
// `uname -a` on GNU systems.
func Architecture(unameA string) (string, bool) {
	fields := strings.Fields(unameA)
	if len(fields) > 12 {
		return fields[12], true
	}
	return "", false
}

// DeviceModel cleans /proc/device-tree/model, which is NUL-terminated.
func DeviceModel(model string) (string, bool) {
	m := strings.TrimSpace(strings.ReplaceAll(model, "\x00", ""))
	if m == "" || m == "No model" {
		return "", false
	}
	return m, true
}

// cpuinfoValue returns the text after the first colon of a cpuinfo line.
func cpuinfoValue(line string) (string, bool) {
	_, v, ok := strings.Cut(line, ":")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// ChipFromCPUInfo resolves a chip label from /proc/cpuinfo. A non-empty
// Hardware line wins, except the generic BCM2835 reported by every
// Raspberry Pi kernel. Otherwise the first known CPU implementer is used.
func ChipFromCPUInfo(cpuinfo string) (string, bool) {
	var implementer string

	scanner := bufio.NewScanner(strings.NewReader(cpuinfo))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "Hardware"):
			if v, ok := cpuinfoValue(line); ok && v != "" && v != "BCM2835" {
				return v, true
			}
		case strings.HasPrefix(line, "CPU implementer"):
			if v, ok := cpuinfoValue(line); ok && implementer == "" {
				if name, known := implementers[v]; known {
					implementer = name
				}
			}
		}
	}

	if implementer != "" {
		return implementer, true
	}
	return "", false
}

// ResolveChip applies the chip precedence: device-tree model, then the
// compatible string, then cpuinfo.
func ResolveChip(model, compatible, cpuinfo string) (string, bool) {
	if m, ok := DeviceModel(model); ok {
		return m, true
	}
	if c, ok := ChipFromCompatible(compatible); ok {
		return c, true
	}
	return ChipFromCPUInfo(cpuinfo)
}

// DescribeCPU builds a CPU description from /proc/cpuinfo. The "model name"
// (x86) or "Processor" (older ARM kernels) line is used verbatim when
// present; otherwise the description is assembled from the implementer,
// architecture and processor count.
func DescribeCPU(cpuinfo string) string {
	var (
		implementer  string
		architecture string
		processors   int
	)

	scanner := bufio.NewScanner(strings.NewReader(cpuinfo))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "model name"), strings.HasPrefix(line, "Processor"):
			if v, ok := cpuinfoValue(line); ok {
				return v
			}
		case strings.HasPrefix(line, "processor"):
			processors++
		case strings.HasPrefix(line, "CPU implementer"):
			if v, ok := cpuinfoValue(line); ok {
				implementer = v
			}
		case strings.HasPrefix(line, "CPU architecture"):
			if v, ok := cpuinfoValue(line); ok {
				architecture = v
			}
		}
	}

	var parts []string
	if implementer != "" {
		name, ok := implementers[implementer]
		if !ok {
			name = "Unknown"
		}
		parts = append(parts, name)
	}
	if architecture != "" {
		parts = append(parts, "v"+architecture)
	}
	if processors > 0 {
		parts = append(parts, fmt.Sprintf("(%d cores)", processors))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d cores", processors)
	}
	return strings.Join(parts, " ")
}

// FormatMemory renders a size in kB as whole gigabytes, or whole megabytes
// below 1 GB. Both divisions truncate.
func FormatMemory(kb uint64) string {
	mb := kb / 1024
	gb := mb / 1024
	if gb > 0 {
		return fmt.Sprintf("%d GB", gb)
	}
	return fmt.Sprintf("%d MB", mb)
}

// MemTotal extracts MemTotal (in kB) from /proc/meminfo.
func MemTotal(meminfo string) (uint64, bool) {
	scanner := bufio.NewScanner(strings.NewReader(meminfo))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb, true
	}
	return 0, false
}

// Memory renders MemTotal from /proc/meminfo.
func Memory(meminfo string) (string, bool) {
	kb, ok := MemTotal(meminfo)
	if !ok {
		return "", false
	}
	return FormatMemory(kb), true
}

// FreeTotal extracts the total from the "Mem:" row of `free -k` output.
func FreeTotal(free string) (uint64, bool) {
	scanner := bufio.NewScanner(strings.NewReader(free))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Mem:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb, true
	}
	return 0, false
}

// FormatUptime renders whole seconds as "{d}d {h}h {m}m", dropping leading
// zero units. Minutes are always shown.
func FormatUptime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := uint64(seconds)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Uptime renders the first field of /proc/uptime.
func Uptime(procUptime string) (string, bool) {
	fields := strings.Fields(procUptime)
	if len(fields) == 0 {
		return "", false
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || seconds < 0 {
		return "", false
	}
	return FormatUptime(seconds), true
}

// UptimeCommand extracts the duration from `uptime` output, the text
// between "up" and the first comma:
//
//	18:57:16 up  1:42,  0 users,  load average: 1.09, 1.06, 1.02
func UptimeCommand(out string) (string, bool) {
	_, rest, ok := strings.Cut(out, "up")
	if !ok {
		return "", false
	}
	d, _, _ := strings.Cut(rest, ",")
	d = strings.TrimSpace(d)
	if d == "" {
		return "", false
	}
	return d, true
}

// KeyValue finds KEY=value in shell-style release files such as
// /etc/os-release and strips surrounding quotes.
func KeyValue(content, key string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		k, v, ok := strings.Cut(line, "=")
		if !ok || k != key {
			continue
		}
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		if v == "" {
			return "", false
		}
		return v, true
	}
	return "", false
}

// PrettyName returns PRETTY_NAME from /etc/os-release.
func PrettyName(osRelease string) (string, bool) {
	return KeyValue(osRelease, "PRETTY_NAME")
}

// DistribDescription returns DISTRIB_DESCRIPTION from /etc/lsb-release.
func DistribDescription(lsbRelease string) (string, bool) {
	return KeyValue(lsbRelease, "DISTRIB_DESCRIPTION")
}

// AndroidChip builds "<manufacturer> <model>", appending "(<board>)" when
// the board name adds information.
func AndroidChip(manufacturer, model, board string) (string, bool) {
	manufacturer = strings.TrimSpace(manufacturer)
	model = strings.TrimSpace(model)
	board = strings.TrimSpace(board)

	label := strings.TrimSpace(manufacturer + " " + model)
	if label == "" {
		return "", false
	}
	if board != "" && !strings.EqualFold(board, model) {
		label += " (" + board + ")"
	}
	return label, true
}

// AndroidOS builds "Android <release> (<display id>)". Either part may be
// missing.
func AndroidOS(release, displayID string) (string, bool) {
	release = strings.TrimSpace(release)
	displayID = strings.TrimSpace(displayID)

	var parts []string
	if release != "" {
		parts = append(parts, "Android "+release)
	}
	if displayID != "" {
		parts = append(parts, "("+displayID+")")
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

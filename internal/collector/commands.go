package collector

import (
	"fmt"
	"strings"

	"github.com/sbctool/sbctool/internal/util"
)

// Remote commands issued by the collectors.
const (
	cmdUname         = "uname -a"
	cmdHostname      = "hostname"
	cmdModel         = "cat /proc/device-tree/model"
	cmdCompatible    = "cat /proc/device-tree/compatible"
	cmdCPUInfo       = "cat /proc/cpuinfo"
	cmdMemInfo       = "cat /proc/meminfo"
	cmdProcUptime    = "cat /proc/uptime"
	cmdOSRelease     = "cat /etc/os-release"
	cmdLSBRelease    = "cat /etc/lsb-release"
	cmdUnameOS       = "uname -o"
	cmdFree          = "free -k"
	cmdUptime        = "uptime"
	cmdWhichJournal  = "which journalctl"
	cmdJournalFollow = "journalctl -f --no-hostname --output=short-iso"
)

// Android system properties.
const (
	propManufacturer = "ro.product.manufacturer"
	propModel        = "ro.product.model"
	propBoard        = "ro.product.board"
	propRelease      = "ro.build.version.release"
	propDisplayID    = "ro.build.display.id"
)

// SectionMarker separates the outputs of a batched probe.
const SectionMarker = "__SBCTOOL_SECTION__"

// batchedProbes is the order of sections in the batched system info probe.
var batchedProbes = []string{
	cmdUname,
	cmdHostname,
	cmdModel,
	cmdCompatible,
	cmdCPUInfo,
	cmdMemInfo,
	cmdProcUptime,
	cmdOSRelease,
}

// Section indexes into batchedProbes.
const (
	secUname = iota
	secHostname
	secModel
	secCompatible
	secCPUInfo
	secMemInfo
	secUptime
	secOSRelease
)

// BuildBatchedCommand joins commands into one shell invocation whose
// outputs are separated by SectionMarker lines. Stderr is discarded and
// the script always exits 0 so a missing file does not fail the batch.
func BuildBatchedCommand(commands []string) string {
	parts := make([]string, 0, len(commands)+1)
	for i, c := range commands {
		part := c + " 2>/dev/null"
		if i < len(commands)-1 {
			part += fmt.Sprintf("; echo; echo %q", SectionMarker)
		}
		parts = append(parts, part)
	}
	parts = append(parts, "exit 0")
	return strings.Join(parts, "; ")
}

// SplitSections splits batched output into exactly n trimmed sections.
// Missing trailing sections come back empty.
func SplitSections(output string, n int) []string {
	raw := strings.Split(output, SectionMarker)
	sections := make([]string, n)
	for i := 0; i < n && i < len(raw); i++ {
		sections[i] = strings.TrimSpace(raw[i])
	}
	return sections
}

func getprop(name string) string {
	return "getprop " + name
}

func journalQuery(lines int) string {
	return fmt.Sprintf("journalctl --no-pager -n %d -o short-iso", lines)
}

func logcatQuery(lines int) string {
	return fmt.Sprintf("logcat -d -v threadtime -t %d", lines)
}

func tailQuery(path string, lines int) string {
	return fmt.Sprintf("tail -n %d %s", lines, util.ShellArg(path))
}

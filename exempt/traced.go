// Package exempt provides ready-made detection exemptions: conditions
// under which stall reporting is suppressed while monitoring continues.
package exempt

import (
	"os"
	"strconv"
	"strings"

	"github.com/stallwatch/stallwatch/watchdog"
)

// TracedExemption is active while a ptrace tracer (a debugger such as
// delve, or strace) is attached to the process. A paused-in-debugger
// process would otherwise trip the watchdog on every breakpoint.
//
// Tracer detection reads TracerPid from /proc/self/status; on platforms
// without procfs the exemption is never active.
type TracedExemption struct {
	statusPath string
}

var _ watchdog.Exemption = (*TracedExemption)(nil)

func NewTracedExemption() *TracedExemption {
	return &TracedExemption{statusPath: "/proc/self/status"}
}

func (e *TracedExemption) Active() bool {
	data, err := os.ReadFile(e.statusPath)
	if err != nil {
		return false
	}
	return tracerPID(string(data)) != 0
}

// tracerPID extracts the TracerPid field from /proc/<pid>/status content.
// Returns 0 when the field is absent or unparseable.
func tracerPID(status string) int {
	for _, line := range strings.Split(status, "\n") {
		value, found := strings.CutPrefix(line, "TracerPid:")
		if !found {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0
		}
		return pid
	}
	return 0
}

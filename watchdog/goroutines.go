package watchdog

import (
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// GoroutineProvider is the default unit provider. It enumerates all live
// goroutines from a full runtime stack dump, sorted by goroutine id
// ascending, optionally narrowed by a filter.
//
// The dump is taken once per ProvideUnits call, so every returned unit
// captures a consistent view; a goroutine that exits afterwards simply
// keeps its captured stack.
type GoroutineProvider struct {
	filter UnitFilter // nil means no narrowing
}

// NewGoroutineProvider returns a provider narrowed by filter. Pass nil to
// report every goroutine, including the detector's own workers.
func NewGoroutineProvider(filter UnitFilter) *GoroutineProvider {
	return &GoroutineProvider{filter: filter}
}

func (p *GoroutineProvider) ProvideUnits() []Unit {
	snapshots := parseGoroutineDump(dumpAllStacks())
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ID < snapshots[j].ID
	})
	units := make([]Unit, 0, len(snapshots))
	for _, snap := range snapshots {
		u := goroutineUnit{snap: snap}
		if p.filter != nil && !p.filter.Allowed(u) {
			continue
		}
		units = append(units, u)
	}
	return units
}

// goroutineUnit carries the snapshot parsed at enumeration time.
type goroutineUnit struct {
	snap UnitSnapshot
}

func (g goroutineUnit) ID() uint64            { return g.snap.ID }
func (g goroutineUnit) Group() string         { return g.snap.Group }
func (g goroutineUnit) Capture() UnitSnapshot { return g.snap }

// dumpAllStacks returns the stacks of all live goroutines, growing the
// buffer until the dump fits.
func dumpAllStacks() string {
	buf := make([]byte, 1<<18)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// parseGoroutineDump converts runtime.Stack output into snapshots. Each
// record looks like:
//
//	goroutine 18 [chan receive, 2 minutes]:
//	main.consume(0xc000026060)
//		/app/main.go:42 +0x9c
//	created by main.main in goroutine 1
//		/app/main.go:17 +0x58
//
// The status up to the first comma becomes the Group; the topmost
// non-runtime function becomes the Name. The "created by" trailer is not
// part of the call stack and is skipped.
func parseGoroutineDump(dump string) []UnitSnapshot {
	var snapshots []UnitSnapshot
	for _, record := range strings.Split(dump, "\n\n") {
		lines := strings.Split(strings.TrimRight(record, "\n"), "\n")
		if len(lines) == 0 {
			continue
		}
		id, group, ok := parseGoroutineHeader(lines[0])
		if !ok {
			continue
		}
		snap := UnitSnapshot{
			ID:    id,
			Group: group,
		}
		for i := 1; i+1 < len(lines); i += 2 {
			if strings.HasPrefix(lines[i], "created by ") {
				break
			}
			fn := trimCallArguments(lines[i])
			file, line := parseLocationLine(lines[i+1])
			snap.Stack = append(snap.Stack, Frame{Function: fn, File: file, Line: line})
			if snap.Name == "" && !strings.HasPrefix(fn, "runtime.") {
				snap.Name = fn
			}
		}
		if snap.Name == "" {
			snap.Name = "goroutine-" + strconv.FormatUint(id, 10)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

// parseGoroutineHeader extracts the id and status from a
// "goroutine N [status]:" line. A duration suffix in the status
// ("chan receive, 2 minutes") is dropped.
func parseGoroutineHeader(line string) (id uint64, group string, ok bool) {
	rest, found := strings.CutPrefix(line, "goroutine ")
	if !found {
		return 0, "", false
	}
	idStr, rest, found := strings.Cut(rest, " ")
	if !found {
		return 0, "", false
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, "", false
	}
	rest = strings.TrimSuffix(strings.TrimPrefix(rest, "["), "]:")
	group, _, _ = strings.Cut(rest, ",")
	return id, group, true
}

// trimCallArguments strips the argument list from a function line, e.g.
// "main.consume(0xc000026060)" -> "main.consume".
func trimCallArguments(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.LastIndexByte(line, '('); i > 0 {
		return line[:i]
	}
	return line
}

// parseLocationLine splits a "\t/path/file.go:42 +0x9c" line into file
// and line number.
func parseLocationLine(line string) (file string, lineNo int) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, ' '); i > 0 {
		line = line[:i]
	}
	i := strings.LastIndexByte(line, ':')
	if i < 0 {
		return line, 0
	}
	n, err := strconv.Atoi(line[i+1:])
	if err != nil {
		return line, 0
	}
	return line[:i], n
}

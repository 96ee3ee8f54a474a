package exempt

import (
	"os"
	"path/filepath"
	"testing"
)

const statusTraced = `Name:	stallwatchd
State:	t (tracing stop)
Pid:	4242
TracerPid:	9001
Uid:	1000	1000	1000	1000
`

const statusUntraced = `Name:	stallwatchd
State:	S (sleeping)
Pid:	4242
TracerPid:	0
Uid:	1000	1000	1000	1000
`

func TestTracerPID(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   int
	}{
		{"Traced", statusTraced, 9001},
		{"Untraced", statusUntraced, 0},
		{"Empty", "", 0},
		{"Garbage", "TracerPid:\tnotanumber\n", 0},
		{"FieldAbsent", "Name:\tfoo\nPid:\t1\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tracerPID(tt.status); got != tt.want {
				t.Errorf("tracerPID = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTracedExemptionReadsStatusFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status")

	e := &TracedExemption{statusPath: path}

	if e.Active() {
		t.Error("active with missing status file")
	}

	if err := os.WriteFile(path, []byte(statusUntraced), 0o644); err != nil {
		t.Fatal(err)
	}
	if e.Active() {
		t.Error("active with TracerPid 0")
	}

	if err := os.WriteFile(path, []byte(statusTraced), 0o644); err != nil {
		t.Fatal(err)
	}
	if !e.Active() {
		t.Error("inactive with a tracer attached")
	}
}

func TestNewTracedExemptionNeverPanics(t *testing.T) {
	// Whatever the host looks like, Active must return a boolean, not
	// fail. Under `go test` no tracer should be attached.
	e := NewTracedExemption()
	_ = e.Active()
}

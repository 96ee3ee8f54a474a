package watchdog

import (
	"fmt"
	"strings"
	"time"
)

// Frame is a single call-stack entry of a captured unit.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// UnitSnapshot is the captured state of one unit at detection time.
// It is immutable after construction.
type UnitSnapshot struct {
	// Name is a display name, e.g. the top application function of a
	// goroutine.
	Name string

	// Group is the unit's category, e.g. the goroutine status
	// ("running", "IO wait", "chan receive").
	Group string

	// ID is the unit's numeric identity.
	ID uint64

	// Priority is the unit's scheduling priority. Zero for units whose
	// runtime has no priority notion (goroutines).
	Priority int

	// Stack holds the call-stack frames, outermost last. Empty when the
	// unit terminated between enumeration and capture.
	Stack []Frame
}

func (s UnitSnapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unit %q (id: %d, group: %q)", s.Name, s.ID, s.Group)
	for _, f := range s.Stack {
		b.WriteString("\n\tat ")
		b.WriteString(f.String())
	}
	return b.String()
}

// StallEvent reports that the monitored context failed to execute posted
// work for at least BlockedFor. It is created once per report and never
// mutated afterwards.
type StallEvent struct {
	// BlockedFor is the measured blocking duration. It is at least the
	// configured threshold and at most threshold + inspection interval.
	BlockedFor time.Duration

	// Units holds the snapshots selected for this report, in exactly the
	// order the provider returned them. Units whose stack could not be
	// captured are omitted.
	Units []UnitSnapshot
}

func (e *StallEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "monitored context blocked for at least %v", e.BlockedFor)
	for _, u := range e.Units {
		b.WriteString("\n")
		b.WriteString(u.String())
	}
	return b.String()
}

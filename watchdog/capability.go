package watchdog

// Poster posts tasks onto the monitored context (a UI loop, an event loop,
// a worker pool -- any entity that accepts and executes units of work).
// Post must enqueue the task and return; it must never wait for the task
// to run. The detector measures liveness by how long a posted probe takes
// to execute, so a Post that runs tasks inline defeats detection.
type Poster interface {
	Post(task func())
}

// PosterFunc adapts a function to the Poster interface.
type PosterFunc func(task func())

func (f PosterFunc) Post(task func()) { f(task) }

// Unit is a handle to one execution entity eligible for diagnostic
// snapshotting, e.g. a goroutine.
type Unit interface {
	// ID is the unit's stable numeric identity. Providers return units
	// sorted by it; the library-unit filter matches against it.
	ID() uint64

	// Group names the category the unit belongs to.
	Group() string

	// Capture records the unit's current snapshot. A snapshot with an
	// empty stack means the unit vanished between enumeration and
	// capture; the reporter drops such snapshots from the event.
	Capture() UnitSnapshot
}

// UnitProvider enumerates the units to snapshot when a stall is detected.
// The order of the returned slice is preserved into the final event.
type UnitProvider interface {
	ProvideUnits() []Unit
}

// UnitProviderFunc adapts a function to the UnitProvider interface.
type UnitProviderFunc func() []Unit

func (f UnitProviderFunc) ProvideUnits() []Unit { return f() }

// UnitFilter decides whether a unit is included in stall reports.
// Implementations must be safe to call from a background goroutine.
type UnitFilter interface {
	Allowed(u Unit) bool
}

// UnitFilterFunc adapts a function to the UnitFilter interface.
type UnitFilterFunc func(u Unit) bool

func (f UnitFilterFunc) Allowed(u Unit) bool { return f(u) }

// Exemption suppresses stall reporting while it is active, e.g. while a
// debugger is attached. It does not pause monitoring: the detector reads
// it at every inspection tick and clears the accumulated blocking time
// while it is active, so a fresh measurement window starts once the
// exemption ends.
type Exemption interface {
	Active() bool
}

// ExemptionFunc adapts a function to the Exemption interface.
type ExemptionFunc func() bool

func (f ExemptionFunc) Active() bool { return f() }

// Listener receives stall events. It is invoked on the detector's single
// reporter goroutine: a slow listener delays subsequent reports but never
// inspection ticks. It must not block indefinitely.
type Listener interface {
	OnStall(d *Detector, ev *StallEvent)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(d *Detector, ev *StallEvent)

func (f ListenerFunc) OnStall(d *Detector, ev *StallEvent) { f(d, ev) }

// CombineUnitFilters returns a filter that allows a unit only when every
// member filter allows it. Evaluation short-circuits on the first
// rejection.
func CombineUnitFilters(filters ...UnitFilter) UnitFilter {
	combined := append([]UnitFilter(nil), filters...)
	return UnitFilterFunc(func(u Unit) bool {
		for _, f := range combined {
			if !f.Allowed(u) {
				return false
			}
		}
		return true
	})
}

// CombineExemptions returns an exemption that is active when any member
// exemption is active. Evaluation short-circuits on the first active
// match.
func CombineExemptions(exemptions ...Exemption) Exemption {
	combined := append([]Exemption(nil), exemptions...)
	return ExemptionFunc(func() bool {
		for _, e := range combined {
			if e.Active() {
				return true
			}
		}
		return false
	})
}

// FilterUnits narrows a provider by a filter, preserving the provider's
// order for the units that pass.
func FilterUnits(p UnitProvider, f UnitFilter) UnitProvider {
	return UnitProviderFunc(func() []Unit {
		units := p.ProvideUnits()
		filtered := make([]Unit, 0, len(units))
		for _, u := range units {
			if f.Allowed(u) {
				filtered = append(filtered, u)
			}
		}
		return filtered
	})
}

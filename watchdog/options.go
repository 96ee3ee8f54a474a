package watchdog

import (
	"fmt"
	"time"
)

// DefaultThreshold is the blocking duration after which a stall is
// reported when no threshold is configured.
const DefaultThreshold = 1000 * time.Millisecond

// Bounds for the derived inspection interval: threshold/5 clamped into
// [minInspectionInterval, maxInspectionInterval].
const (
	minInspectionInterval = 100 * time.Millisecond
	maxInspectionInterval = 500 * time.Millisecond
)

// Option configures a Detector under construction.
type Option func(*settings)

type settings struct {
	threshold  time.Duration
	interval   time.Duration
	provider   UnitProvider
	listener   Listener
	exemptions []Exemption
	filters    []UnitFilter
}

// WithThreshold sets the minimum time the monitored context must be
// blocked before a stall event is reported. Must be positive.
func WithThreshold(threshold time.Duration) Option {
	return func(s *settings) { s.threshold = threshold }
}

// WithInspectionInterval sets the interval between inspection ticks.
// Must be positive; together with the threshold it decides if and how
// soon stalls are detected. When unset, threshold/5 clamped into
// [100ms, 500ms] is used.
func WithInspectionInterval(interval time.Duration) Option {
	return func(s *settings) { s.interval = interval }
}

// WithUnitProvider replaces the default goroutine provider.
func WithUnitProvider(provider UnitProvider) Option {
	return func(s *settings) { s.provider = provider }
}

// WithListener replaces the default log-writing listener.
func WithListener(listener Listener) Option {
	return func(s *settings) { s.listener = listener }
}

// WithExemption adds an exemption. Multiple exemptions are OR-combined:
// reporting is suppressed while any of them is active.
func WithExemption(exemption Exemption) Option {
	return func(s *settings) { s.exemptions = append(s.exemptions, exemption) }
}

// WithUnitFilter adds a filter narrowing the reported units. Multiple
// filters are AND-combined: a unit is reported only when every filter
// allows it. Filters apply to the default provider as well as to a
// provider set with WithUnitProvider.
func WithUnitFilter(filter UnitFilter) Option {
	return func(s *settings) { s.filters = append(s.filters, filter) }
}

// New builds a Detector monitoring the context reached through poster.
// Configuration errors are rejected here, not at Start.
func New(poster Poster, opts ...Option) (*Detector, error) {
	if poster == nil {
		return nil, fmt.Errorf("watchdog: poster is required")
	}

	s := settings{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(&s)
	}

	if s.threshold <= 0 {
		return nil, fmt.Errorf("watchdog: threshold must be positive, got %v", s.threshold)
	}
	if s.interval < 0 {
		return nil, fmt.Errorf("watchdog: inspection interval must be positive, got %v", s.interval)
	}
	if s.interval == 0 {
		s.interval = defaultInspectionInterval(s.threshold)
	}
	for i, e := range s.exemptions {
		if e == nil {
			return nil, fmt.Errorf("watchdog: exemption %d is nil", i)
		}
	}
	for i, f := range s.filters {
		if f == nil {
			return nil, fmt.Errorf("watchdog: unit filter %d is nil", i)
		}
	}

	provider := s.provider
	switch {
	case provider == nil:
		filter := LibraryUnitFilter()
		if len(s.filters) > 0 {
			filter = CombineUnitFilters(append([]UnitFilter{filter}, s.filters...)...)
		}
		provider = NewGoroutineProvider(filter)
	case len(s.filters) == 1:
		provider = FilterUnits(provider, s.filters[0])
	case len(s.filters) > 1:
		provider = FilterUnits(provider, CombineUnitFilters(s.filters...))
	}

	listener := s.listener
	if listener == nil {
		listener = NewLogListener(nil)
	}

	var exemption Exemption
	switch len(s.exemptions) {
	case 0:
	case 1:
		exemption = s.exemptions[0]
	default:
		exemption = CombineExemptions(s.exemptions...)
	}

	return &Detector{
		poster:    poster,
		provider:  provider,
		listener:  listener,
		exemption: exemption,
		threshold: s.threshold,
		interval:  s.interval,
		reporter:  newWorker("reporter", reporterQueueSize),
	}, nil
}

// defaultInspectionInterval derives the tick interval from the threshold:
// a fifth of it, clamped into [100ms, 500ms].
func defaultInspectionInterval(threshold time.Duration) time.Duration {
	interval := threshold / 5
	if interval < minInspectionInterval {
		return minInspectionInterval
	}
	if interval > maxInspectionInterval {
		return maxInspectionInterval
	}
	return interval
}

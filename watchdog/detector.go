// Package watchdog detects when a continuously-running task consumer (a
// UI loop, an event loop, a worker pool) stops executing posted work for
// longer than a configured threshold. It probes the monitored context
// with tiny tasks, accumulates the time the latest probe has been
// pending, and reports a StallEvent with goroutine snapshots once the
// accumulated time reaches the threshold. At most one event is reported
// per contiguous blocking episode.
package watchdog

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Start after Close has released the detector's
// resources.
var ErrClosed = errors.New("watchdog: detector closed")

// Detector is the liveness detection engine. Create one with New, then
// control it through Start, Stop and Close. All methods are safe for
// concurrent use.
type Detector struct {
	poster    Poster
	provider  UnitProvider
	listener  Listener
	exemption Exemption // nil when none configured

	threshold time.Duration
	interval  time.Duration

	// blockedFor accumulates how long the monitored context has been
	// blocked, in nanoseconds. Written from the inspector goroutine and
	// from probe callbacks running on the monitored context; the
	// monitored context must never wait on a lock, hence atomics.
	blockedFor atomic.Int64

	// reported is true once the current unresolved episode has been
	// reported. Cleared together with blockedFor.
	reported atomic.Bool

	// mu guards the run-state below. Held only for the short critical
	// sections of Start/Stop/Running/Close, never across a tick.
	mu     sync.Mutex
	cancel context.CancelFunc // non-nil while running
	closed bool

	reporter *worker
}

// reporterQueueSize bounds the reports queued behind a slow listener.
// The queue can only fill when a listener hangs across that many
// completed episodes; further reports are dropped with a log line rather
// than ever stalling the inspector.
const reporterQueueSize = 16

// Start begins detection. It is idempotent: when the detector is already
// running the call has no effect. The first inspection tick runs after
// delay; subsequent ticks run every inspection interval. The detector is
// considered running as soon as Start returns, even while the first tick
// is still delayed.
func (d *Detector) Start(delay time.Duration) error {
	if delay < 0 {
		return errors.New("watchdog: start delay must not be negative")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.cancel != nil {
		return nil
	}
	d.resetEpisode()
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.inspect(ctx, delay)
	return nil
}

// Stop cancels the inspection schedule. It is idempotent and does not
// wait for an in-flight tick or an already-dispatched report to finish.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Running reports whether detection is currently scheduled.
func (d *Detector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// Close stops detection and shuts down the reporter goroutine after any
// queued reports have drained. The detector cannot be restarted
// afterwards. Close is idempotent.
func (d *Detector) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
	d.reporter.close()
}

// Threshold returns the configured minimum blocking duration that
// triggers a report.
func (d *Detector) Threshold() time.Duration { return d.threshold }

// InspectionInterval returns the interval between inspection ticks.
func (d *Detector) InspectionInterval() time.Duration { return d.interval }

// inspect is the inspector goroutine. Ticks execute strictly one after
// another; there is no overlap of the tick routine with itself.
func (d *Detector) inspect(ctx context.Context, delay time.Duration) {
	id := currentUnitID()
	libraryUnits.add(id)
	defer libraryUnits.remove(id)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	d.tick()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// tick runs one inspection round. A panic from a capability (exemption or
// poster) is logged and the tick abandoned; the next tick proceeds
// normally.
func (d *Detector) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[inspector] recovered panic in inspection tick: %v", r)
		}
	}()

	if d.exemption != nil && d.exemption.Active() {
		// Clearing the accumulator here means leaving the exemption
		// starts a fresh measurement window instead of firing on stale
		// elapsed time.
		d.resetEpisode()
		return
	}

	blockedSince := time.Duration(d.blockedFor.Add(int64(d.interval)) - int64(d.interval))
	if blockedSince == 0 {
		// First tick of a new episode: enqueue a probe. It executes only
		// once the monitored context gets around to it, and its sole job
		// is to clear the accumulator. While the context is blocked the
		// probe stays pending and the accumulator keeps growing. Exactly
		// one probe is in flight per episode, so a stuck context never
		// piles up probes.
		d.poster.Post(d.resetEpisode)
	} else if blockedSince >= d.threshold && !d.reported.Swap(true) {
		d.report(blockedSince)
	}
}

// resetEpisode clears the accumulator and the reported flag. Runs on the
// inspector and, as the probe callback, on the monitored context.
func (d *Detector) resetEpisode() {
	d.blockedFor.Store(0)
	d.reported.Store(false)
}

// report hands event construction to the reporter goroutine so that
// querying and snapshotting units never delays the next inspection tick.
func (d *Detector) report(blockedFor time.Duration) {
	ok := d.reporter.submit(func() {
		units := d.provider.ProvideUnits()
		snapshots := make([]UnitSnapshot, 0, len(units))
		for _, u := range units {
			snap := u.Capture()
			if len(snap.Stack) == 0 {
				// Unit vanished between enumeration and capture.
				continue
			}
			snapshots = append(snapshots, snap)
		}
		d.listener.OnStall(d, &StallEvent{
			BlockedFor: blockedFor,
			Units:      snapshots,
		})
	})
	if !ok {
		log.Printf("[inspector] stall report dropped, reporter queue full (blocked for %v)", blockedFor)
	}
}

package exempt

import (
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/stallwatch/stallwatch/watchdog"
)

// SystemLoadExemption is active while host CPU utilisation is at or
// above a percentage limit. When the whole machine is saturated every
// task consumer is slow and stall reports are mostly noise.
//
// Utilisation is measured since the previous tick's reading, so the
// value tracks the watchdog's own inspection cadence. A sampling failure
// never suppresses reporting.
type SystemLoadExemption struct {
	limit float64
	// sample returns host CPU utilisation in percent. Replaceable in
	// tests.
	sample func() (float64, error)
}

var _ watchdog.Exemption = (*SystemLoadExemption)(nil)

// NewSystemLoadExemption creates an exemption active at or above limit
// percent total CPU utilisation (0 < limit <= 100).
func NewSystemLoadExemption(limit float64) *SystemLoadExemption {
	return &SystemLoadExemption{
		limit:  limit,
		sample: sampleCPUPercent,
	}
}

func (e *SystemLoadExemption) Active() bool {
	utilisation, err := e.sample()
	if err != nil {
		return false
	}
	return utilisation >= e.limit
}

// sampleCPUPercent reports total CPU utilisation since the last call.
// The first call has no baseline and reports utilisation since boot,
// which is fine for a suppression heuristic.
func sampleCPUPercent() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

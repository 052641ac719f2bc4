package anomaly

import (
	"fmt"
)

// Detector flags implausible cumulative-counter movement with a configurable threshold
type Detector struct {
	counterJumpThreshold float64
}

// NewDetector creates a new detector with the specified jump threshold
func NewDetector(counterJumpThreshold float64) *Detector {
	return &Detector{
		counterJumpThreshold: counterJumpThreshold,
	}
}

// DetectCounterAnomaly compares a new cumulative counter value against the
// previously projected one. A backward jump is a counter reset (device
// reboot); a forward jump beyond threshold x previous is a suspected
// misreport. Findings are advisory: readings are never rejected for them.
func (d *Detector) DetectCounterAnomaly(previous, current float64) (bool, string) {
	if current < previous {
		return true, fmt.Sprintf("counter reset detected: value %.2f dropped below previous %.2f", current, previous)
	}

	if previous > 0 && current > d.counterJumpThreshold*previous {
		return true, fmt.Sprintf("counter jump detected: value %.2f exceeds %.1fx previous %.2f",
			current, d.counterJumpThreshold, previous)
	}

	return false, ""
}

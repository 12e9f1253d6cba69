// Package metrics records discovery run and phase measurements.
package metrics

import "time"

// Recorder receives measurements from the discovery orchestrator.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// PhaseCompleted records a finished phase and how many hosts it reported.
	PhaseCompleted(method string, duration time.Duration, found int)

	// PhaseFailed records a phase that was downgraded to an empty result.
	PhaseFailed(method, errorType string)

	// HostsProbed records how many hosts a phase targeted.
	HostsProbed(method string, count int)

	// DevicesReported records the meaningfulness filter outcome.
	DevicesReported(kept, filtered int)

	// RunCompleted records the end of a run.
	RunCompleted(status string, duration time.Duration)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) PhaseCompleted(string, time.Duration, int) {}
func (Nop) PhaseFailed(string, string)                {}
func (Nop) HostsProbed(string, int)                   {}
func (Nop) DevicesReported(int, int)                  {}
func (Nop) RunCompleted(string, time.Duration)        {}

var (
	_ Recorder = Nop{}
	_ Recorder = (*PrometheusMetrics)(nil)
)

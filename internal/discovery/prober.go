package discovery

import (
	"context"

	"github.com/anstrom/netprobe/internal/device"
)

// Target is what a phase is asked to probe.
type Target struct {
	// Network is the CIDR range of the run.
	Network string
	// Exclusions are addresses and ranges no probe may be sent to.
	Exclusions []string
	// Hosts are the IPs reported by earlier phases, sorted.
	Hosts []string
}

// PhaseResult is what a prober hands back to the orchestrator.
type PhaseResult struct {
	Records []device.ProbeRecord
	// Stats is the prober-specific statistics block for the result document.
	Stats any
	// Errors are phase-level problems that did not stop the phase.
	Errors []error
}

// ScannerInfo describes a prober for display.
type ScannerInfo struct {
	Name    string         `json:"name"`
	Method  device.Method  `json:"method"`
	Enabled bool           `json:"enabled"`
	Version string         `json:"version,omitempty"`
	Tooling string         `json:"tooling,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

// HostnameResolver looks up a host name for an IP, returning "" when
// there is none. Implementations must not fail the caller.
type HostnameResolver interface {
	LookupHostname(ctx context.Context, ip string) string
}

// Prober is one discovery technique.
type Prober interface {
	Method() device.Method
	Enabled() bool
	// Scan probes target. A returned error means the phase could not run
	// at all; the orchestrator records it and continues with the next phase.
	Scan(ctx context.Context, target Target) (*PhaseResult, error)
	Info() ScannerInfo
}

package discovery

import (
	"fmt"
	"time"

	"github.com/anstrom/netprobe/internal/device"
	apperrors "github.com/anstrom/netprobe/internal/errors"
)

// Metadata describes a discovery run.
type Metadata struct {
	ScanID          string          `json:"scan_id"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	Target          string          `json:"target"`
	Exclusions      []string        `json:"exclusions"`
	DurationSeconds float64         `json:"duration_seconds"`
	TotalDevices    int             `json:"total_devices"`
	ScanMethodsUsed []device.Method `json:"scan_methods_used"`
}

// ErrorEntry is a non-fatal failure recorded in the result.
type ErrorEntry struct {
	Kind      string              `json:"type"`
	Code      apperrors.ErrorCode `json:"code"`
	Message   string              `json:"message"`
	Phase     device.Method       `json:"phase,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Result is the document a discovery run produces.
type Result struct {
	Metadata   Metadata         `json:"scan_metadata"`
	Devices    []*device.Device `json:"devices"`
	Statistics map[string]any   `json:"statistics"`
	Errors     []ErrorEntry     `json:"errors"`
}

// PhaseStatus is recorded for phases that produced no prober statistics.
type PhaseStatus struct {
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// FilterStats summarizes the meaningfulness filter.
type FilterStats struct {
	Consolidated int `json:"consolidated"`
	Reported     int `json:"reported"`
	Dropped      int `json:"dropped"`
}

func newResult(scanID string, start time.Time, network string, exclusions []string) *Result {
	return &Result{
		Metadata: Metadata{
			ScanID:          scanID,
			StartTime:       start,
			Target:          network,
			Exclusions:      exclusions,
			ScanMethodsUsed: []device.Method{},
		},
		Devices:    []*device.Device{},
		Statistics: make(map[string]any),
		Errors:     []ErrorEntry{},
	}
}

func (r *Result) addError(phase device.Method, err error, at time.Time) {
	kind := "discovery_error"
	if phase != "" {
		kind = fmt.Sprintf("%s_scan_error", phase)
	}
	r.Errors = append(r.Errors, ErrorEntry{
		Kind:      kind,
		Code:      errorCode(err),
		Message:   err.Error(),
		Phase:     phase,
		Timestamp: at,
	})
}

// HasErrors reports whether any phase recorded an error.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Device returns the device with the given IP, or nil.
func (r *Result) Device(ip string) *device.Device {
	for _, d := range r.Devices {
		if d.IP == ip {
			return d
		}
	}
	return nil
}

// Package discovery runs the discovery phases over one target range and
// consolidates their findings into one device per IP address.
//
// Phases run strictly in the order ARP, port/service scan, SNMP. The SNMP
// phase probes exactly the hosts found by the earlier phases, and the merge
// policies assume that order.
package discovery

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/netprobe/internal/device"
	apperrors "github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/netutil"
)

const (
	statusDisabled  = "disabled"
	statusFailed    = "failed"
	statusCompleted = "completed"
	statusPartial   = "partial"
)

// phaseOrder ranks the built-in methods; other methods run after them in
// the order they were registered.
var phaseOrder = map[device.Method]int{
	device.MethodARP:  0,
	device.MethodNmap: 1,
	device.MethodSNMP: 2,
}

// TargetSpec is the input of one discovery run.
type TargetSpec struct {
	// Network is the CIDR range to discover.
	Network string
	// Exclusions are explicit addresses or ranges to skip. Network,
	// broadcast and local addresses are added automatically.
	Exclusions []string
}

// Engine runs discovery phases and merges their results.
type Engine struct {
	probers        []Prober
	policies       map[device.Method]MergePolicy
	logger         *logging.Logger
	metrics        metrics.Recorder
	localAddresses func() []string
	now            func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the measurement recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithMergePolicy registers the merge policy for a method.
func WithMergePolicy(method device.Method, policy MergePolicy) Option {
	return func(e *Engine) {
		e.policies[method] = policy
	}
}

// WithLocalAddresses replaces local interface detection.
func WithLocalAddresses(fn func() []string) Option {
	return func(e *Engine) {
		e.localAddresses = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over the given probers.
func NewEngine(probers []Prober, opts ...Option) *Engine {
	e := &Engine{
		policies:       DefaultMergePolicies(),
		logger:         logging.Default(),
		metrics:        metrics.Nop{},
		localAddresses: netutil.LocalAddresses,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("discovery")

	e.probers = append([]Prober(nil), probers...)
	sort.SliceStable(e.probers, func(i, j int) bool {
		return rank(e.probers[i].Method()) < rank(e.probers[j].Method())
	})
	return e
}

func rank(m device.Method) int {
	if r, ok := phaseOrder[m]; ok {
		return r
	}
	return len(phaseOrder)
}

// Probers returns the probers in execution order.
func (e *Engine) Probers() []Prober {
	return append([]Prober(nil), e.probers...)
}

// Info returns the descriptors of all probers.
func (e *Engine) Info() []ScannerInfo {
	infos := make([]ScannerInfo, 0, len(e.probers))
	for _, p := range e.probers {
		infos = append(infos, p.Info())
	}
	return infos
}

// Run discovers spec.Network. The only error returned is an invalid
// target range; every phase failure is recorded in the result instead.
func (e *Engine) Run(ctx context.Context, spec TargetSpec) (*Result, error) {
	start := e.now()

	if !netutil.ValidateCIDR(spec.Network) {
		e.metrics.RunCompleted(statusFailed, 0)
		return nil, apperrors.ErrInvalidTarget(spec.Network, nil)
	}

	exclusions, err := netutil.ComputeExclusionsWithLocal(spec.Network, spec.Exclusions, e.localAddresses())
	if err != nil {
		e.metrics.RunCompleted(statusFailed, 0)
		return nil, apperrors.ErrInvalidTarget(spec.Network, err)
	}

	scanID := uuid.New().String()
	logger := e.logger.WithScanID(scanID)
	logger.InfoDiscovery("Starting discovery", spec.Network,
		"exclusions", len(exclusions),
		"phases", len(e.probers))

	result := newResult(scanID, start, spec.Network, exclusions)
	c := newConsolidator(e.policies)

	for _, p := range e.probers {
		method := p.Method()
		if !p.Enabled() {
			logger.InfoPhase("Phase disabled", string(method))
			result.Statistics[string(method)] = PhaseStatus{Status: statusDisabled}
			continue
		}

		target := Target{
			Network:    spec.Network,
			Exclusions: append([]string(nil), exclusions...),
			Hosts:      c.ips(),
		}

		phaseStart := e.now()
		phase, err := e.runPhase(ctx, p, target)
		elapsed := e.now().Sub(phaseStart)

		if err != nil {
			logger.ErrorPhase("Phase failed", string(method), err)
			result.addError(method, err, e.now())
			result.Statistics[string(method)] = PhaseStatus{Status: statusFailed, DurationSeconds: elapsed.Seconds()}
			e.metrics.PhaseFailed(string(method), string(errorCode(err)))
			continue
		}

		for _, perr := range phase.Errors {
			logger.ErrorPhase("Phase reported an error", string(method), perr)
			result.addError(method, perr, e.now())
			e.metrics.PhaseFailed(string(method), string(errorCode(perr)))
		}

		for _, rec := range phase.Records {
			c.add(rec)
		}

		if phase.Stats != nil {
			result.Statistics[string(method)] = phase.Stats
		} else {
			result.Statistics[string(method)] = PhaseStatus{Status: statusCompleted, DurationSeconds: elapsed.Seconds()}
		}
		e.metrics.PhaseCompleted(string(method), elapsed, len(phase.Records))
		logger.InfoPhase("Phase completed", string(method),
			"records", len(phase.Records),
			"devices_total", c.len(),
			"duration", elapsed)
	}

	all := c.devices()
	kept, dropped := FilterMeaningful(all)
	result.Devices = kept
	result.Statistics["filter"] = FilterStats{Consolidated: len(all), Reported: len(kept), Dropped: dropped}
	e.metrics.DevicesReported(len(kept), dropped)

	e.finalize(result)

	status := statusCompleted
	if result.HasErrors() {
		status = statusPartial
	}
	e.metrics.RunCompleted(status, time.Duration(result.Metadata.DurationSeconds*float64(time.Second)))
	logger.InfoDiscovery("Discovery completed", spec.Network,
		"devices", result.Metadata.TotalDevices,
		"dropped", dropped,
		"errors", len(result.Errors),
		"duration_seconds", result.Metadata.DurationSeconds)

	return result, nil
}

// runPhase calls the prober and turns a panic into an error so that one
// broken phase cannot take the run down.
func (e *Engine) runPhase(ctx context.Context, p Prober, target Target) (phase *PhaseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Phase panicked", "phase", p.Method(), "panic", r, "stack", string(debug.Stack()))
			phase = nil
			err = apperrors.ErrPhaseFailed(string(p.Method()), fmt.Errorf("panic: %v", r))
		}
	}()

	phase, err = p.Scan(ctx, target)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		phase = &PhaseResult{}
	}
	return phase, nil
}

func errorCode(err error) apperrors.ErrorCode {
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		return apperrors.CodeScanFailed
	}
	return code
}

func (e *Engine) finalize(result *Result) {
	end := e.now()
	result.Metadata.EndTime = end
	result.Metadata.DurationSeconds = end.Sub(result.Metadata.StartTime).Seconds()
	result.Metadata.TotalDevices = len(result.Devices)

	used := make(map[device.Method]struct{})
	for _, d := range result.Devices {
		for _, m := range d.DiscoveryMethods {
			used[m] = struct{}{}
		}
	}
	methods := make([]device.Method, 0, len(used))
	for m := range used {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	result.Metadata.ScanMethodsUsed = methods
}

// consolidator owns the IP-keyed device map of a run. It is only touched
// from the engine goroutine between phases.
type consolidator struct {
	policies map[device.Method]MergePolicy
	byIP     map[string]*device.Device
}

func newConsolidator(policies map[device.Method]MergePolicy) *consolidator {
	return &consolidator{policies: policies, byIP: make(map[string]*device.Device)}
}

func (c *consolidator) add(rec device.ProbeRecord) {
	if net.ParseIP(rec.IP) == nil {
		return
	}
	existing, ok := c.byIP[rec.IP]
	if !ok {
		c.byIP[rec.IP] = device.New(rec)
		return
	}
	policy, ok := c.policies[rec.Method]
	if !ok {
		policy = MergeFill
	}
	policy(existing, rec)
}

func (c *consolidator) len() int {
	return len(c.byIP)
}

func (c *consolidator) ips() []string {
	ips := make([]string, 0, len(c.byIP))
	for ip := range c.byIP {
		ips = append(ips, ip)
	}
	netutil.SortIPs(ips)
	return ips
}

func (c *consolidator) devices() []*device.Device {
	out := make([]*device.Device, 0, len(c.byIP))
	for _, ip := range c.ips() {
		out = append(out, c.byIP[ip])
	}
	return out
}

package scanning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/netprobe/internal/catalog"
	"github.com/anstrom/netprobe/internal/device"
	"github.com/anstrom/netprobe/internal/discovery"
	apperrors "github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/workers"
)

const (
	defaultBinary       = "nmap"
	versionProbeTimeout = 5 * time.Second
	resolveParallel     = 16
)

// Runner executes one nmap invocation.
type Runner interface {
	Run(ctx context.Context, opts []nmap.Option) (*nmap.Run, []string, error)
}

// NmapRunner runs the nmap binary through the nmap library.
type NmapRunner struct{}

// Run implements Runner.
func (NmapRunner) Run(ctx context.Context, opts []nmap.Option) (*nmap.Run, []string, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	result, warnings, err := scanner.Run()
	var w []string
	if warnings != nil {
		w = *warnings
	}
	return result, w, err
}

// Prober implements the port/service discovery phase.
type Prober struct {
	config   Config
	catalog  *catalog.Catalog
	resolver discovery.HostnameResolver
	runner   Runner
	readFile func(string) ([]byte, error)
	version  func(ctx context.Context, binary string) (string, error)
	logger   *logging.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// Option configures a Prober.
type Option func(*Prober)

// WithRunner replaces the nmap invocation.
func WithRunner(r Runner) Option {
	return func(p *Prober) { p.runner = r }
}

// WithResolver sets the reverse lookup used when nmap reports no name.
func WithResolver(r discovery.HostnameResolver) Option {
	return func(p *Prober) { p.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the measurement recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *Prober) {
		if r != nil {
			p.metrics = r
		}
	}
}

// New creates a port/service prober. cat supplies the vendor tables.
func New(cfg Config, cat *catalog.Catalog, opts ...Option) *Prober {
	if cat == nil {
		cat = catalog.Default()
	}
	p := &Prober{
		config:   cfg,
		catalog:  cat,
		runner:   NmapRunner{},
		readFile: os.ReadFile,
		version:  binaryVersion,
		logger:   logging.Default(),
		metrics:  metrics.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("scanning").WithPhase(string(device.MethodNmap))
	return p
}

// Method implements discovery.Prober.
func (p *Prober) Method() device.Method { return device.MethodNmap }

// Enabled implements discovery.Prober.
func (p *Prober) Enabled() bool { return p.config.Enabled }

// Info implements discovery.Prober.
func (p *Prober) Info() discovery.ScannerInfo {
	info := discovery.ScannerInfo{
		Name:    "Nmap Scanner",
		Method:  device.MethodNmap,
		Enabled: p.config.Enabled,
		Tooling: p.binary(),
		Config: map[string]any{
			"tcp_ports":         p.config.TCPPorts,
			"udp_ports":         p.config.UDPPorts,
			"scan_type":         p.config.ScanType,
			"timing":            p.config.Timing,
			"service_detection": p.config.ServiceDetection,
			"version_intensity": p.config.VersionIntensity,
			"os_detection":      p.config.OSDetection,
			"scripts":           p.config.Scripts,
			"host_timeout":      p.config.HostTimeout.String(),
		},
	}
	if p.config.XMLInput != "" {
		info.Tooling = "replay of " + p.config.XMLInput
		info.Config["xml_input"] = p.config.XMLInput
		return info
	}

	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()
	if v, err := p.version(ctx, p.binary()); err == nil {
		info.Version = v
	} else {
		p.logger.Debug("Could not determine nmap version", "error", err)
	}
	return info
}

func (p *Prober) binary() string {
	if p.config.BinaryPath != "" {
		return p.config.BinaryPath
	}
	return defaultBinary
}

// Scan implements discovery.Prober. One nmap invocation covers the
// whole range.
func (p *Prober) Scan(ctx context.Context, target discovery.Target) (*discovery.PhaseResult, error) {
	if !p.config.Enabled {
		return &discovery.PhaseResult{}, nil
	}
	start := p.now()

	run, warnings, err := p.obtainRun(ctx, target)
	if err != nil {
		p.logger.ErrorPhase("Port scan failed", string(device.MethodNmap), err, "network", target.Network)
		return nil, err
	}

	stats := &Stats{
		HostsTargeted: run.Stats.Hosts.Total,
		NmapVersion:   run.Version,
		CommandLine:   run.Args,
		Warnings:      warnings,
		Replayed:      p.config.XMLInput != "",
	}
	records := p.normalizeRun(ctx, run, stats)
	stats.DurationSeconds = p.now().Sub(start).Seconds()

	p.metrics.HostsProbed(string(device.MethodNmap), stats.HostsTargeted)
	p.logger.InfoPhase("Port scan completed", string(device.MethodNmap),
		"hosts_up", stats.HostsUp,
		"open_ports", stats.OpenPorts,
		"hosts_with_os", stats.HostsWithOS,
		"replayed", stats.Replayed)

	return &discovery.PhaseResult{Records: records, Stats: stats}, nil
}

func (p *Prober) obtainRun(ctx context.Context, target discovery.Target) (*nmap.Run, []string, error) {
	if p.config.XMLInput != "" {
		return p.replay()
	}

	plan, err := newScanPlan(p.config, target)
	if err != nil {
		return nil, nil, apperrors.WrapDiscoveryError(apperrors.CodeValidation, "invalid scan arguments", err).
			WithMethod(string(device.MethodNmap)).
			WithNetwork(target.Network)
	}

	if p.config.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ScanTimeout)
		defer cancel()
	}

	p.logger.InfoPhase("Starting port scan", string(device.MethodNmap),
		"network", target.Network,
		"exclusions", len(target.Exclusions),
		"tcp_ports", plan.tcpPorts,
		"udp_ports", plan.udpPorts)

	run, warnings, err := p.runner.Run(ctx, plan.options(p.config))
	if err != nil {
		return nil, warnings, classifyRunError(ctx, err)
	}
	if run == nil {
		return nil, warnings, apperrors.NewDiscoveryError(apperrors.CodeParseFailed, "nmap returned no result").
			WithMethod(string(device.MethodNmap))
	}
	for _, w := range warnings {
		p.logger.Warn("nmap warning", "warning", w)
	}
	return run, warnings, nil
}

func (p *Prober) replay() (*nmap.Run, []string, error) {
	data, err := p.readFile(p.config.XMLInput)
	if err != nil {
		return nil, nil, apperrors.WrapDiscoveryError(apperrors.CodeConfiguration, "cannot read nmap XML report", err).
			WithMethod(string(device.MethodNmap))
	}
	run := &nmap.Run{}
	err = nmap.Parse(data, run)
	if err != nil {
		return nil, nil, apperrors.WrapDiscoveryError(apperrors.CodeParseFailed, "cannot parse nmap XML report", err).
			WithMethod(string(device.MethodNmap))
	}
	p.logger.InfoPhase("Replaying nmap report", string(device.MethodNmap), "path", p.config.XMLInput, "hosts", len(run.Hosts))
	return run, nil, nil
}

func classifyRunError(ctx context.Context, err error) error {
	method := string(device.MethodNmap)
	switch {
	case errors.Is(err, nmap.ErrNmapNotInstalled), errors.Is(err, exec.ErrNotFound):
		return apperrors.ErrToolUnavailable(method, "nmap", err)
	case errors.Is(err, nmap.ErrScanTimeout), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.WrapDiscoveryError(apperrors.CodeTimeout, "nmap scan timed out", err).WithMethod(method)
	case errors.Is(ctx.Err(), context.Canceled):
		return apperrors.WrapDiscoveryError(apperrors.CodeCanceled, "nmap scan canceled", err).WithMethod(method)
	default:
		return apperrors.ErrPhaseFailed(method, err)
	}
}

// scanPlan is the argument set of one invocation.
type scanPlan struct {
	targets    []string
	exclusions []string
	tcpPorts   string
	udpPorts   string
	tcpScan    string
	udpScan    bool
}

func newScanPlan(cfg Config, target discovery.Target) (*scanPlan, error) {
	if strings.TrimSpace(target.Network) == "" {
		return nil, fmt.Errorf("no target network")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan := &scanPlan{
		targets:    []string{target.Network},
		exclusions: target.Exclusions,
		tcpPorts:   compactPorts(cfg.TCPPorts),
		udpPorts:   compactPorts(cfg.UDPPorts),
	}
	if plan.tcpPorts != "" {
		plan.tcpScan = cfg.ScanType
		if plan.tcpScan == "" {
			plan.tcpScan = scanTypeConnect
		}
	}
	plan.udpScan = plan.udpPorts != ""
	return plan, nil
}

func compactPorts(ports string) string {
	var parts []string
	for _, p := range strings.Split(ports, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ",")
}

// portSpec renders the -p argument. Protocol prefixes are only needed
// when both TCP and UDP ports are scanned.
func (s *scanPlan) portSpec() string {
	switch {
	case s.tcpPorts != "" && s.udpPorts != "":
		return "T:" + s.tcpPorts + ",U:" + s.udpPorts
	case s.udpPorts != "":
		return s.udpPorts
	default:
		return s.tcpPorts
	}
}

func (s *scanPlan) options(cfg Config) []nmap.Option {
	opts := []nmap.Option{
		nmap.WithTargets(s.targets...),
		nmap.WithPorts(s.portSpec()),
	}
	if len(s.exclusions) > 0 {
		opts = append(opts, nmap.WithTargetExclusions(strings.Join(s.exclusions, ",")))
	}
	if cfg.BinaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(cfg.BinaryPath))
	}

	switch s.tcpScan {
	case scanTypeSYN:
		opts = append(opts, nmap.WithSYNScan())
	case scanTypeConnect:
		opts = append(opts, nmap.WithConnectScan())
	}
	if s.udpScan {
		opts = append(opts, nmap.WithUDPScan())
	}

	opts = append(opts, nmap.WithTimingTemplate(nmap.Timing(cfg.Timing)))

	if cfg.ServiceDetection {
		opts = append(opts,
			nmap.WithServiceInfo(),
			nmap.WithVersionIntensity(int16(cfg.VersionIntensity)),
		)
	}
	if cfg.OSDetection {
		opts = append(opts, nmap.WithOSDetection())
		if cfg.OSScanGuess {
			opts = append(opts, nmap.WithOSScanGuess())
		}
	}
	if len(cfg.Scripts) > 0 {
		opts = append(opts, nmap.WithScripts(cfg.Scripts...))
	}
	if cfg.SkipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}
	if cfg.HostTimeout > 0 {
		opts = append(opts, nmap.WithHostTimeout(cfg.HostTimeout))
	}
	return opts
}

var nmapVersionLine = regexp.MustCompile(`Nmap version (\S+)`)

func binaryVersion(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return "", err
	}
	m := nmapVersionLine.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unrecognized version output")
	}
	return string(m[1]), nil
}

// normalizeRun converts every reported host that is up into a record.
func (p *Prober) normalizeRun(ctx context.Context, run *nmap.Run, stats *Stats) []device.ProbeRecord {
	hosts := make([]*nmap.Host, 0, len(run.Hosts))
	for i := range run.Hosts {
		h := &run.Hosts[i]
		if h.Status.State != "" && h.Status.State != "up" {
			continue
		}
		hosts = append(hosts, h)
	}
	if stats.HostsTargeted == 0 {
		stats.HostsTargeted = len(run.Hosts)
	}

	pool := workers.New(workers.Config{Name: "nmap-normalize", Size: resolveParallel}, p.logger)
	records, _ := workers.Map(ctx, pool, hosts, func(ctx context.Context, h *nmap.Host) (hostRecord, bool, error) {
		rec, ok := p.normalizeHost(ctx, h)
		return rec, ok, nil
	})

	out := make([]device.ProbeRecord, 0, len(records))
	for _, r := range records {
		stats.HostsUp++
		stats.PortsProbed += r.portsProbed
		stats.OpenPorts += r.openPorts
		if r.record.OSInfo != nil {
			stats.HostsWithOS++
		}
		out = append(out, r.record)
	}
	return out
}

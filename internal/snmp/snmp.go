// Package snmp polls the hosts found by earlier phases. Each host is
// tested against the configured (version, community) matrix; responders
// are asked for their system group, interface table, load figures and
// vendor objects using plain GET requests.
package snmp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anstrom/netprobe/internal/catalog"
	"github.com/anstrom/netprobe/internal/device"
	"github.com/anstrom/netprobe/internal/discovery"
	apperrors "github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/netutil"
	"github.com/anstrom/netprobe/internal/workers"
)

// Prober implements the SNMP discovery phase.
type Prober struct {
	config  Config
	catalog *catalog.Catalog
	dialer  Dialer
	logger  *logging.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// Option configures a Prober.
type Option func(*Prober)

// WithDialer replaces the UDP session dialer.
func WithDialer(d Dialer) Option {
	return func(p *Prober) { p.dialer = d }
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

// New creates an SNMP prober. cat supplies the OID catalogs and vendor
// tables.
func New(cfg Config, cat *catalog.Catalog, opts ...Option) *Prober {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if cfg.MaxInterfaces <= 0 || cfg.MaxInterfaces > MaxInterfaces {
		cfg.MaxInterfaces = MaxInterfaces
	}
	if cat == nil {
		cat = catalog.Default()
	}

	p := &Prober{
		config:  cfg,
		catalog: cat,
		dialer:  UDPDialer{Port: cfg.Port, Timeout: cfg.Timeout, Retries: cfg.Retries},
		logger:  logging.Default(),
		metrics: metrics.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("snmp").WithPhase(string(device.MethodSNMP))
	return p
}

// Method implements discovery.Prober.
func (p *Prober) Method() device.Method { return device.MethodSNMP }

// Enabled implements discovery.Prober.
func (p *Prober) Enabled() bool { return p.config.Enabled }

// Info implements discovery.Prober.
func (p *Prober) Info() discovery.ScannerInfo {
	communities := make([]string, len(p.config.Communities))
	for i, c := range p.config.Communities {
		communities[i] = p.displayCommunity(c)
	}
	return discovery.ScannerInfo{
		Name:    "SNMP Scanner",
		Method:  device.MethodSNMP,
		Enabled: p.config.Enabled,
		Tooling: "gosnmp",
		Config: map[string]any{
			"versions":        p.config.Versions,
			"communities":     communities,
			"port":            p.config.Port,
			"timeout":         p.config.Timeout.String(),
			"retries":         p.config.Retries,
			"max_parallel":    p.config.MaxParallel,
			"max_interfaces":  p.config.MaxInterfaces,
			"vendor_catalogs": p.catalog.VendorCatalogs(),
		},
	}
}

func (p *Prober) displayCommunity(c string) string {
	if p.config.MaskCommunity {
		return maskedCommunity
	}
	return c
}

// Scan implements discovery.Prober. Only target.Hosts are polled.
func (p *Prober) Scan(ctx context.Context, target discovery.Target) (*discovery.PhaseResult, error) {
	if !p.config.Enabled {
		return &discovery.PhaseResult{}, nil
	}
	if err := p.config.Validate(); err != nil {
		return nil, apperrors.WrapDiscoveryError(apperrors.CodeConfiguration, "invalid SNMP settings", err).
			WithMethod(string(device.MethodSNMP))
	}
	start := p.now()

	hosts, err := p.targets(target)
	if err != nil {
		return nil, apperrors.ErrInvalidTarget(target.Network, err).WithMethod(string(device.MethodSNMP))
	}

	stats := &Stats{
		HostsTested:      len(hosts),
		VersionsUsed:     make(map[string]int),
		CommunitiesTried: len(p.config.Communities),
	}
	p.logger.InfoPhase("Starting SNMP discovery", string(device.MethodSNMP),
		"hosts", len(hosts),
		"versions", p.config.Versions,
		"communities", len(p.config.Communities))

	var mu sync.Mutex
	pool := workers.New(workers.Config{
		Name:      "snmp-hosts",
		Size:      p.config.MaxParallel,
		RateLimit: p.config.RateLimit,
	}, p.logger)
	records, _ := workers.Map(ctx, pool, hosts, func(ctx context.Context, ip string) (device.ProbeRecord, bool, error) {
		rec, version, oids, ok := p.probeHost(ctx, ip)
		if !ok {
			return device.ProbeRecord{}, false, nil
		}
		mu.Lock()
		stats.Responsive++
		stats.VersionsUsed[version]++
		stats.OIDsCollected += oids
		mu.Unlock()
		return rec, true, nil
	})

	sort.Slice(records, func(i, j int) bool {
		return netutil.LessIP(records[i].IP, records[j].IP)
	})
	stats.DurationSeconds = p.now().Sub(start).Seconds()

	p.metrics.HostsProbed(string(device.MethodSNMP), len(hosts))
	p.logger.InfoPhase("SNMP discovery completed", string(device.MethodSNMP),
		"tested", stats.HostsTested,
		"responsive", stats.Responsive,
		"oids", stats.OIDsCollected)
	return &discovery.PhaseResult{Records: records, Stats: stats}, nil
}

// targets drops duplicates and anything excluded.
func (p *Prober) targets(target discovery.Target) ([]string, error) {
	excluded, err := netutil.NewExclusionSet(target.Exclusions)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(target.Hosts))
	hosts := make([]string, 0, len(target.Hosts))
	for _, h := range target.Hosts {
		if _, dup := seen[h]; dup || excluded.ContainsString(h) {
			continue
		}
		seen[h] = struct{}{}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

type agent struct {
	client    Client
	version   string
	community string
	rtt       time.Duration
}

// reach walks the version/community matrix and stops at the first pair
// whose sysDescr GET answers.
func (p *Prober) reach(ctx context.Context, ip string) (*agent, bool) {
	for _, name := range p.config.Versions {
		version, err := ParseVersion(name)
		if err != nil {
			continue
		}
		for _, community := range p.config.Communities {
			if ctx.Err() != nil {
				return nil, false
			}
			started := time.Now()
			client, err := p.dialer.Dial(ctx, ip, version, community)
			if err != nil {
				p.logger.DebugHost("SNMP session failed", ip, "version", name, "error", err)
				continue
			}
			if _, ok := getOne(client, catalog.OIDSysDescr); ok {
				return &agent{client: client, version: name, community: community, rtt: time.Since(started)}, true
			}
			_ = client.Close()
		}
	}
	return nil, false
}

func (p *Prober) probeHost(ctx context.Context, ip string) (device.ProbeRecord, string, int, bool) {
	a, ok := p.reach(ctx, ip)
	if !ok {
		p.logger.DebugHost("No SNMP response", ip)
		return device.ProbeRecord{}, "", 0, false
	}
	defer func() { _ = a.client.Close() }()

	c := &collector{client: a.client}
	system := c.system(p.catalog.SystemOIDs())
	ifaces := c.interfaces(p.catalog.InterfaceCountOID(), p.catalog.InterfaceColumns(), p.config.MaxInterfaces)
	perf := c.performance(p.catalog.CPUOIDs(), p.catalog.MemoryOIDs())
	vendor := InferVendor(p.catalog, system)
	vendorData := c.vendorData(p.catalog, vendor)

	community := p.displayCommunity(a.community)
	rtt := float64(a.rtt.Microseconds()) / 1000

	deviceType := device.TypeUnknown
	if p.catalog.IsNetworkVendor(vendor) {
		deviceType = device.TypeNetworkDevice
	}

	rec := device.ProbeRecord{
		IP:           ip,
		MAC:          firstMAC(ifaces),
		Hostname:     system["sysName"],
		Vendor:       vendor,
		DeviceType:   deviceType,
		Method:       device.MethodSNMP,
		ResponseTime: &rtt,
		Services: []device.Service{{
			Port:     int(p.config.Port),
			Protocol: "udp",
			Name:     "snmp",
			Version:  "v" + a.version,
			State:    "open",
			Banner:   system["sysDescr"],
		}},
		SNMP: &device.SNMPData{
			Version:       a.version,
			Community:     community,
			System:        system,
			Interfaces:    ifaces,
			Performance:   perf,
			VendorData:    vendorData,
			OIDsCollected: c.oids,
		},
		Details: map[string]any{
			"version":        a.version,
			"community":      community,
			"oids_collected": c.oids,
			"interfaces":     len(ifaces),
		},
		Timestamp: p.now(),
	}

	p.logger.DebugHost("SNMP host collected", ip,
		"version", a.version,
		"vendor", vendor,
		"interfaces", len(ifaces),
		"oids", c.oids)
	return rec, a.version, c.oids, true
}

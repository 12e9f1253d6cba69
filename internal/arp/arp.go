// Package arp discovers hosts through the operating system's neighbor
// cache. A concurrent ping sweep over the target range populates the
// cache, then the ARP table is read and filtered back to the range.
package arp

import (
	"context"
	"net"
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

const (
	defaultMaxParallel = 50
	defaultPingCount   = 1
	defaultPingTimeout = time.Second
	defaultMaxHosts    = 65536

	sourceTable   = "arp_table"
	sourcePassive = "passive_capture"
)

// Config holds ARP phase settings.
type Config struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxParallel int           `yaml:"max_parallel" json:"max_parallel" validate:"min=1,max=1024"`
	PingCount   int           `yaml:"ping_count" json:"ping_count" validate:"min=1,max=10"`
	PingTimeout time.Duration `yaml:"ping_timeout" json:"ping_timeout"`
	// RateLimit caps ping starts per second, 0 disables the cap.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit" validate:"min=0"`
	// MaxHosts refuses ranges larger than this many addresses.
	MaxHosts int `yaml:"max_hosts" json:"max_hosts" validate:"min=0"`
	// PassiveCapture listens for ARP replies during the sweep. It needs a
	// build with the pcap tag and capture privileges.
	PassiveCapture bool   `yaml:"passive_capture" json:"passive_capture"`
	Interface      string `yaml:"interface" json:"interface"`
}

// DefaultConfig returns the default ARP settings.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		MaxParallel: defaultMaxParallel,
		PingCount:   defaultPingCount,
		PingTimeout: defaultPingTimeout,
		MaxHosts:    defaultMaxHosts,
	}
}

// Entry is one row of the neighbor table.
type Entry struct {
	IP        string
	MAC       string
	Interface string
}

// Pinger sends echo requests to one host.
type Pinger interface {
	Ping(ctx context.Context, ip string, count int, timeout time.Duration) error
}

// TableReader returns the current neighbor table.
type TableReader interface {
	ReadTable(ctx context.Context) ([]Entry, error)
}

// Capturer reports ARP replies seen on the wire until ctx is done.
type Capturer interface {
	Capture(ctx context.Context, network *net.IPNet, sink func(Entry)) error
}

// Stats is the ARP block of the result statistics.
type Stats struct {
	Targets        int `json:"targets"`
	PingResponsive int `json:"ping_responsive"`
	// TableEntries is the raw neighbor table size before filtering.
	TableEntries   int `json:"table_entries"`
	PassiveEntries int `json:"passive_entries,omitempty"`
	// ARPEntriesKept counts the entries that survived the range and MAC
	// filters, one per IP.
	ARPEntriesKept  int     `json:"arp_entries_kept"`
	DevicesFound    int     `json:"devices_found"`
	DurationSeconds float64 `json:"duration_seconds"`
	SuccessRate     float64 `json:"success_rate"`
}

// Prober implements the ARP discovery phase.
type Prober struct {
	config   Config
	catalog  *catalog.Catalog
	resolver discovery.HostnameResolver
	pinger   Pinger
	table    TableReader
	capturer Capturer
	logger   *logging.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// Option configures a Prober.
type Option func(*Prober)

// WithPinger replaces the system ping command.
func WithPinger(p Pinger) Option {
	return func(pr *Prober) { pr.pinger = p }
}

// WithTableReader replaces the system ARP table reader.
func WithTableReader(t TableReader) Option {
	return func(pr *Prober) { pr.table = t }
}

// WithCapturer replaces the passive capture backend.
func WithCapturer(c Capturer) Option {
	return func(pr *Prober) { pr.capturer = c }
}

// WithResolver sets the reverse lookup used for host names.
func WithResolver(r discovery.HostnameResolver) Option {
	return func(pr *Prober) { pr.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(pr *Prober) {
		if l != nil {
			pr.logger = l
		}
	}
}

// WithMetrics sets the measurement recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(pr *Prober) {
		if r != nil {
			pr.metrics = r
		}
	}
}

// New creates an ARP prober. cat supplies the OUI table.
func New(cfg Config, cat *catalog.Catalog, opts ...Option) *Prober {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if cfg.PingCount <= 0 {
		cfg.PingCount = defaultPingCount
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaultPingTimeout
	}
	if cat == nil {
		cat = catalog.Default()
	}

	p := &Prober{
		config:  cfg,
		catalog: cat,
		pinger:  SystemPinger{},
		table:   NewSystemTable(),
		logger:  logging.Default(),
		metrics: metrics.Nop{},
		now:     time.Now,
	}
	if cfg.PassiveCapture {
		p.capturer = newPassiveCapturer(cfg.Interface)
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("arp").WithPhase(string(device.MethodARP))
	return p
}

// Method implements discovery.Prober.
func (p *Prober) Method() device.Method { return device.MethodARP }

// Enabled implements discovery.Prober.
func (p *Prober) Enabled() bool { return p.config.Enabled }

// Info implements discovery.Prober.
func (p *Prober) Info() discovery.ScannerInfo {
	tooling := "ping + system ARP table"
	if p.config.PassiveCapture {
		tooling += " + passive capture"
	}
	return discovery.ScannerInfo{
		Name:    "ARP Scanner",
		Method:  device.MethodARP,
		Enabled: p.config.Enabled,
		Tooling: tooling,
		Config: map[string]any{
			"max_parallel":    p.config.MaxParallel,
			"ping_count":      p.config.PingCount,
			"ping_timeout":    p.config.PingTimeout.String(),
			"rate_limit":      p.config.RateLimit,
			"max_hosts":       p.config.MaxHosts,
			"passive_capture": p.config.PassiveCapture,
			"oui_prefixes":    p.catalog.Summary()["oui_prefixes"],
		},
	}
}

// Scan implements discovery.Prober.
func (p *Prober) Scan(ctx context.Context, target discovery.Target) (*discovery.PhaseResult, error) {
	if !p.config.Enabled {
		return &discovery.PhaseResult{}, nil
	}
	start := p.now()

	excluded, err := netutil.NewExclusionSet(target.Exclusions)
	if err != nil {
		return nil, apperrors.ErrInvalidTarget(target.Network, err).WithMethod(string(device.MethodARP))
	}
	hosts, err := netutil.Hosts(target.Network, excluded, p.config.MaxHosts)
	if err != nil {
		return nil, apperrors.ErrInvalidTarget(target.Network, err).WithMethod(string(device.MethodARP))
	}
	ipnet, _ := netutil.ParseNetwork(target.Network)

	stats := &Stats{Targets: len(hosts)}
	result := &discovery.PhaseResult{Stats: stats}
	p.logger.InfoPhase("Starting ARP discovery", string(device.MethodARP),
		"network", target.Network,
		"targets", len(hosts))

	var (
		capMu    sync.Mutex
		captured []Entry
		capWG    sync.WaitGroup
	)
	captureCtx, stopCapture := context.WithCancel(ctx)
	defer stopCapture()
	if p.config.PassiveCapture {
		if p.capturer == nil {
			result.Errors = append(result.Errors,
				apperrors.ErrToolUnavailable(string(device.MethodARP), "packet capture", nil))
			p.logger.Warn("Passive capture requested but this build has no capture support")
		} else {
			capWG.Add(1)
			go func() {
				defer capWG.Done()
				err := p.capturer.Capture(captureCtx, ipnet, func(e Entry) {
					capMu.Lock()
					captured = append(captured, e)
					capMu.Unlock()
				})
				if err != nil {
					capMu.Lock()
					result.Errors = append(result.Errors,
						apperrors.WrapDiscoveryError(apperrors.CodeProtocolUnavailable, "passive capture failed", err).
							WithMethod(string(device.MethodARP)))
					capMu.Unlock()
				}
			}()
		}
	}

	stats.PingResponsive = p.sweep(ctx, hosts)

	stopCapture()
	capWG.Wait()

	entries, err := p.table.ReadTable(ctx)
	if err != nil {
		p.logger.ErrorPhase("Failed to read ARP table", string(device.MethodARP), err)
		result.Errors = append(result.Errors,
			apperrors.WrapDiscoveryError(apperrors.CodeScanFailed, "failed to read ARP table", err).
				WithMethod(string(device.MethodARP)))
	}
	stats.TableEntries = len(entries)
	stats.PassiveEntries = len(captured)

	kept := filterEntries(hosts, tagSource(entries, sourceTable), tagSource(captured, sourcePassive))
	stats.ARPEntriesKept = len(kept)
	result.Records = p.buildRecords(ctx, kept)

	stats.DevicesFound = len(result.Records)
	stats.DurationSeconds = p.now().Sub(start).Seconds()
	if stats.Targets > 0 {
		stats.SuccessRate = float64(stats.DevicesFound) / float64(stats.Targets)
	}

	p.metrics.HostsProbed(string(device.MethodARP), len(hosts))
	p.logger.InfoPhase("ARP discovery completed", string(device.MethodARP),
		"targets", stats.Targets,
		"responsive", stats.PingResponsive,
		"table_entries", stats.TableEntries,
		"arp_entries_kept", stats.ARPEntriesKept,
		"devices", stats.DevicesFound)
	return result, nil
}

// sweep pings every host to populate the neighbor cache and returns the
// number that answered. Failures only count against that number.
func (p *Prober) sweep(ctx context.Context, hosts []string) int {
	if len(hosts) == 0 {
		return 0
	}
	pool := workers.New(workers.Config{
		Name:      "arp-sweep",
		Size:      p.config.MaxParallel,
		RateLimit: p.config.RateLimit,
	}, p.logger)

	stats := pool.Run(ctx, len(hosts), func(ctx context.Context, i int) error {
		return p.pinger.Ping(ctx, hosts[i], p.config.PingCount, p.config.PingTimeout)
	})
	return stats.Completed
}

type sourcedEntry struct {
	Entry
	source string
}

func tagSource(entries []Entry, source string) []sourcedEntry {
	out := make([]sourcedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, sourcedEntry{Entry: e, source: source})
	}
	return out
}

// filterEntries keeps entries for generated targets with a usable MAC.
// The first entry for an IP wins, so table rows take precedence over
// captured replies.
func filterEntries(hosts []string, groups ...[]sourcedEntry) []sourcedEntry {
	targets := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		targets[h] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []sourcedEntry
	for _, group := range groups {
		for _, e := range group {
			ip := net.ParseIP(e.IP)
			if ip == nil {
				continue
			}
			key := ip.String()
			if _, ok := targets[key]; !ok {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			mac := device.NormalizeMAC(e.MAC)
			if !device.IsRealMAC(mac) {
				continue
			}
			seen[key] = struct{}{}
			e.IP, e.MAC = key, mac
			out = append(out, e)
		}
	}
	return out
}

func (p *Prober) buildRecords(ctx context.Context, entries []sourcedEntry) []device.ProbeRecord {
	if len(entries) == 0 {
		return nil
	}
	pool := workers.New(workers.Config{Name: "arp-resolve", Size: p.config.MaxParallel}, p.logger)
	records, _ := workers.Map(ctx, pool, entries, func(ctx context.Context, e sourcedEntry) (device.ProbeRecord, bool, error) {
		rec := device.ProbeRecord{
			IP:        e.IP,
			MAC:       e.MAC,
			Vendor:    p.catalog.LookupOUI(e.MAC),
			Method:    device.MethodARP,
			Timestamp: p.now(),
			Details: map[string]any{
				"source": e.source,
			},
		}
		if e.Interface != "" {
			rec.Details["interface"] = e.Interface
		}
		if p.resolver != nil {
			rec.Hostname = p.resolver.LookupHostname(ctx, e.IP)
		}
		p.logger.DebugHost("ARP entry matched", e.IP, "mac", e.MAC, "vendor", rec.Vendor)
		return rec, true, nil
	})
	return records
}

package cli

import (
	"context"
	"fmt"

	"github.com/anstrom/netprobe/internal/arp"
	"github.com/anstrom/netprobe/internal/catalog"
	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/discovery"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/resolve"
	"github.com/anstrom/netprobe/internal/scanning"
	"github.com/anstrom/netprobe/internal/snmp"
	"github.com/anstrom/netprobe/internal/store"
)

// runner owns everything one or more discovery runs share: the engine,
// the metrics registry and the persistence settings.
type runner struct {
	cfg     *config.Config
	engine  *discovery.Engine
	metrics *metrics.PrometheusMetrics
	logger  *logging.Logger
}

// newRunner builds the probers in their fixed order ARP, nmap, SNMP.
func newRunner(cfg *config.Config, logger *logging.Logger) (*runner, error) {
	if logger == nil {
		logger = logging.Default()
	}

	cat, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		return nil, fmt.Errorf("error loading vendor catalog: %w", err)
	}

	recorder := metrics.NewPrometheusMetrics()
	resolver := resolve.New(cfg.DNS, logger)

	probers := []discovery.Prober{
		arp.New(cfg.ARP, cat,
			arp.WithResolver(resolver),
			arp.WithLogger(logger),
			arp.WithMetrics(recorder)),
		scanning.New(cfg.Nmap, cat,
			scanning.WithResolver(resolver),
			scanning.WithLogger(logger),
			scanning.WithMetrics(recorder)),
		snmp.New(cfg.SNMP, cat,
			snmp.WithLogger(logger),
			snmp.WithMetrics(recorder)),
	}

	engine := discovery.NewEngine(probers,
		discovery.WithLogger(logger),
		discovery.WithMetrics(recorder))

	return &runner{cfg: cfg, engine: engine, metrics: recorder, logger: logger}, nil
}

// run performs one discovery and the optional follow-ups. Persistence and
// metrics export failures are logged and never change the result.
func (r *runner) run(ctx context.Context, spec discovery.TargetSpec) (*discovery.Result, error) {
	if timeout := r.cfg.DiscoveryTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := r.engine.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	if r.cfg.IsDatabaseEnabled() {
		r.persist(ctx, result)
	}
	if path := r.cfg.Metrics.Textfile; path != "" {
		if err := r.metrics.WriteTextfile(path); err != nil {
			r.logger.Warn("Failed to export metrics", "path", path, "error", err)
		}
	}
	return result, nil
}

func (r *runner) persist(ctx context.Context, result *discovery.Result) {
	err := withStore(context.WithoutCancel(ctx), r.cfg, func(st *store.Store) error {
		_, err := st.SaveResult(context.WithoutCancel(ctx), result)
		return err
	})
	if err != nil {
		r.logger.ErrorDatabase("Failed to store discovery result", err,
			"scan_id", result.Metadata.ScanID)
	}
}

// targetSpec resolves the network to discover: the positional argument
// wins over the configured default.
func targetSpec(cfg *config.Config, args []string, extraExclusions []string) (discovery.TargetSpec, error) {
	network := cfg.Discovery.Network
	if len(args) > 0 {
		network = args[0]
	}
	if network == "" {
		return discovery.TargetSpec{}, fmt.Errorf("no network given; pass a CIDR or set discovery.network")
	}

	exclusions := append([]string(nil), cfg.Discovery.Exclusions...)
	exclusions = append(exclusions, extraExclusions...)
	return discovery.TargetSpec{Network: network, Exclusions: exclusions}, nil
}
